package codeanalysis

import (
	"context"

	"code-analysis-api/internal/shared/telemetry"
)

// backgroundWithRequestID detaches ctx from request cancellation while
// keeping the request ID for log correlation.
func backgroundWithRequestID(ctx context.Context) context.Context {
	requestID := telemetry.RequestID(ctx)
	if requestID == "" {
		return context.Background()
	}
	return telemetry.WithRequestID(context.Background(), requestID)
}
