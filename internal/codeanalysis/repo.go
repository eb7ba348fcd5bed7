package codeanalysis

import (
	"context"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Filters narrows List results.
type Filters struct {
	Status *Status
	Limit  int
	Offset int
}

func (f Filters) normalized() Filters {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Repo defines persistence operations for analysis records.
type Repo interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// Update applies a field-scoped update and returns the stored record.
	// An empty update is a plain read.
	Update(ctx context.Context, id string, u *Update) (Record, error)
	List(ctx context.Context, filters Filters) ([]Record, error)
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
