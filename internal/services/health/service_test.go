package health

import (
	"context"
	"errors"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestStatusWithoutDatabase(t *testing.T) {
	rep := NewService(nil, true).Status(context.Background())
	if rep.Status != StatusOK || rep.Pipeline != "ready" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if rep.Checks != nil {
		t.Fatalf("expected no checks, got %v", rep.Checks)
	}
}

func TestStatusDegradedOnPingFailure(t *testing.T) {
	svc := NewService(pingFunc(func(context.Context) error { return errors.New("connection refused") }), false)
	rep := svc.Status(context.Background())
	if rep.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %q", rep.Status)
	}
	if rep.Checks["database"] != "unavailable" {
		t.Fatalf("unexpected checks %v", rep.Checks)
	}
	if rep.Pipeline != "unavailable" {
		t.Fatalf("expected pipeline unavailable, got %q", rep.Pipeline)
	}
}

func TestStatusPingsWithDeadline(t *testing.T) {
	var hasDeadline bool
	svc := NewService(pingFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}), true)
	if rep := svc.Status(context.Background()); rep.Checks["database"] != "ok" {
		t.Fatalf("unexpected report %+v", rep)
	}
	if !hasDeadline {
		t.Fatalf("expected ping deadline")
	}
}
