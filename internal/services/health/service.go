// Package health reports liveness for the root endpoint.
package health

import (
	"context"
	"time"

	"code-analysis-api/internal/shared/telemetry"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	pingTimeout = 2 * time.Second
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the payload served at GET /.
type Report struct {
	Status   string            `json:"status"`
	Pipeline string            `json:"pipeline,omitempty"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	db       Pinger
	pipeline bool
}

// NewService constructs a health service. db may be nil when records are
// kept in memory.
func NewService(db Pinger, pipelineReady bool) *Service {
	return &Service{db: db, pipeline: pipelineReady}
}

// Status pings the database, if any, and reports the pipeline state. Only a
// failed ping degrades the status; a missing pipeline still serves reads.
// Ping errors are logged, never returned to the caller.
func (s *Service) Status(ctx context.Context) Report {
	rep := Report{Status: StatusOK, Pipeline: "ready"}
	if s == nil {
		return rep
	}
	if !s.pipeline {
		rep.Pipeline = "unavailable"
	}
	if s.db == nil {
		return rep
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		telemetry.Warn("health.database_unavailable", map[string]any{
			"request_id": telemetry.RequestID(ctx),
			"error":      err,
		})
		rep.Status = StatusDegraded
		rep.Checks = map[string]string{"database": "unavailable"}
		return rep
	}
	rep.Checks = map[string]string{"database": "ok"}
	return rep
}
