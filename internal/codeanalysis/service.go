package codeanalysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"code-analysis-api/internal/queue"
	"code-analysis-api/internal/shared/metrics"
	"code-analysis-api/internal/shared/telemetry"
)

const maxErrorLen = 2000

// Runner executes the analysis pipeline for one record to completion.
type Runner interface {
	Run(ctx context.Context, analysisID, repositoryURL string) error
}

// Service contains business logic for code analyses.
type Service struct {
	Repo     Repo
	Runner   Runner
	JobQueue queue.Client

	validateOnce sync.Once
	validate     *validator.Validate
	inFlight     sync.WaitGroup
}

// Create validates the URL, stores an IN_PROGRESS record and starts the
// pipeline without waiting for it. With a job queue the pipeline runs in the
// worker; otherwise it runs in a detached goroutine.
func (s *Service) Create(ctx context.Context, repositoryURL string) (Record, error) {
	repositoryURL = strings.TrimSpace(repositoryURL)
	if err := s.validator().Var(repositoryURL, "required,http_url"); err != nil {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryURL, repositoryURL)
	}
	if s.JobQueue == nil && s.Runner == nil {
		return Record{}, ErrPipelineUnavailable
	}

	rec, err := s.Repo.Create(ctx, Record{
		ID:            uuid.NewString(),
		RepositoryURL: repositoryURL,
		Status:        StatusInProgress,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return Record{}, err
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        telemetry.RequestID(ctx),
		"analysis_id":       rec.ID,
		"repository_url":    rec.RepositoryURL,
		"status":            StatusInProgress,
		"status_transition": "none->" + string(StatusInProgress),
	})

	if s.JobQueue != nil {
		msg := queue.NewMessage(rec.ID, telemetry.RequestID(ctx), time.Now())
		if err := s.JobQueue.Send(ctx, msg); err != nil {
			s.failAnalysis(ctx, rec.ID, fmt.Errorf("enqueue analysis: %w", err), nil)
			return Record{}, err
		}
		return rec, nil
	}

	s.inFlight.Add(1)
	go s.runAsync(backgroundWithRequestID(ctx), rec)
	return rec, nil
}

// ProcessAnalysis runs the pipeline synchronously for a queued record.
// Records that already reached a terminal status are skipped, which makes
// queue redelivery harmless.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) error {
	if s.Runner == nil {
		return ErrPipelineUnavailable
	}
	rec, err := s.Repo.Get(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("analysis lookup: %w", err)
	}
	if rec.Status != StatusInProgress {
		telemetry.Info("analysis.skip", map[string]any{
			"request_id":  telemetry.RequestID(ctx),
			"analysis_id": rec.ID,
			"status":      rec.Status,
		})
		return nil
	}
	return s.runGuarded(ctx, rec)
}

// Get returns a record by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Record, error) {
	return s.Repo.Get(ctx, analysisID)
}

// List returns records newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]Record, error) {
	return s.Repo.List(ctx, filters)
}

// Report returns the markdown body of a report field.
func (s *Service) Report(ctx context.Context, analysisID string, field Field) (string, error) {
	if !field.IsReport() {
		return "", ErrUnknownReport
	}
	rec, err := s.Repo.Get(ctx, analysisID)
	if err != nil {
		return "", err
	}
	text, ok := rec.Text(field)
	if !ok {
		return "", ErrReportUnavailable
	}
	return text, nil
}

// Wait blocks until in-process pipeline runs finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) runAsync(ctx context.Context, rec Record) {
	defer s.inFlight.Done()
	_ = s.runGuarded(ctx, rec)
}

func (s *Service) runGuarded(ctx context.Context, rec Record) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.failAnalysis(ctx, rec.ID, err, &startedAt)
		}
	}()

	metrics.IncAnalysisStarted()
	if err := s.Runner.Run(ctx, rec.ID, rec.RepositoryURL); err != nil {
		s.failAnalysis(ctx, rec.ID, err, &startedAt)
		return err
	}

	final, err := s.Repo.Get(ctx, rec.ID)
	if err != nil {
		telemetry.Error("analysis.final_lookup_failed", map[string]any{
			"request_id":  telemetry.RequestID(ctx),
			"analysis_id": rec.ID,
			"error":       err,
		})
		return err
	}
	completedAt := time.Now().UTC()
	switch final.Status {
	case StatusCompleted:
		metrics.IncAnalysisCompleted()
	case StatusError:
		metrics.IncAnalysisFailed()
	default:
		err = errors.New("pipeline finished without a terminal status")
		s.failAnalysis(ctx, rec.ID, err, &startedAt)
		return err
	}
	metrics.ObserveAnalysisDuration(completedAt.Sub(startedAt))
	fields := map[string]any{
		"request_id":        telemetry.RequestID(ctx),
		"analysis_id":       rec.ID,
		"status":            final.Status,
		"status_transition": string(StatusInProgress) + "->" + string(final.Status),
		"duration_ms":       durationMs(startedAt, completedAt),
	}
	if final.Error != nil {
		fields["error"] = *final.Error
	}
	telemetry.Info("analysis.status", fields)
	return nil
}

// failAnalysis force-writes ERROR. The store keeps an earlier failure message
// if one was already recorded.
func (s *Service) failAnalysis(ctx context.Context, analysisID string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	update := NewUpdate().SetStatus(StatusError).SetError(msg)
	if _, updateErr := s.Repo.Update(context.Background(), analysisID, update); updateErr != nil {
		telemetry.Error("analysis.fail_update_failed", map[string]any{
			"request_id":  telemetry.RequestID(ctx),
			"analysis_id": analysisID,
			"error":       updateErr,
			"cause":       msg,
		})
	}
	metrics.IncAnalysisFailed()
	fields := map[string]any{
		"request_id":        telemetry.RequestID(ctx),
		"analysis_id":       analysisID,
		"status":            StatusError,
		"status_transition": string(StatusInProgress) + "->" + string(StatusError),
		"error":             msg,
	}
	if startedAt != nil {
		metrics.ObserveAnalysisDuration(completedAt.Sub(*startedAt))
		fields["duration_ms"] = durationMs(*startedAt, completedAt)
	}
	telemetry.Error("analysis.status", fields)
}

func (s *Service) validator() *validator.Validate {
	s.validateOnce.Do(func() {
		s.validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return s.validate
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}

// SanitizeError flattens err to a single line capped for storage.
func SanitizeError(err error) string {
	return sanitizeError(err)
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	return msg
}
