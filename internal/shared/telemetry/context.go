package telemetry

import "context"

type requestIDKey struct{}

// WithRequestID stores a request ID on ctx so log lines from detached work can
// be correlated with the originating HTTP request or queue message.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID reads the request ID placed by WithRequestID.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
