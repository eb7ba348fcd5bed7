package codeanalysis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analysis records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Record
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Record),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := validateID(rec.ID); err != nil {
		return Record{}, err
	}
	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = cloneRecord(rec)
	return cloneRecord(rec), nil
}

// Get returns a record by its ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Update applies u under the write lock.
func (r *MemoryRepo) Update(ctx context.Context, id string, u *Update) (Record, error) {
	if u.IsEmpty() {
		return r.Get(ctx, id)
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := validateID(id); err != nil {
		return Record{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec = u.ApplyTo(rec)
	rec.UpdatedAt = r.now()
	r.byID[id] = rec
	return cloneRecord(rec), nil
}

// List returns records newest first, with optional status filter and paging.
func (r *MemoryRepo) List(ctx context.Context, filters Filters) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filters = filters.normalized()

	r.mu.RLock()
	all := make([]Record, 0, len(r.byID))
	for _, rec := range r.byID {
		if filters.Status != nil && rec.Status != *filters.Status {
			continue
		}
		all = append(all, cloneRecord(rec))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if filters.Offset >= len(all) {
		return []Record{}, nil
	}
	end := len(all)
	if filters.Offset+filters.Limit < end {
		end = filters.Offset + filters.Limit
	}
	return all[filters.Offset:end], nil
}

func cloneRecord(rec Record) Record {
	out := rec
	out.Error = cloneString(rec.Error)
	out.IngestedRepository = cloneString(rec.IngestedRepository)
	out.DataModelAnalysis = cloneString(rec.DataModelAnalysis)
	out.RoutesInterfacesAnalysis = cloneString(rec.RoutesInterfacesAnalysis)
	out.BusinessLogicAnalysis = cloneString(rec.BusinessLogicAnalysis)
	out.ProductRequirements = cloneString(rec.ProductRequirements)
	out.ArchitectureDocumentation = cloneString(rec.ArchitectureDocumentation)
	out.Technologies = cloneList(rec.Technologies)
	out.DataModelFiles = cloneList(rec.DataModelFiles)
	out.RoutesInterfacesFiles = cloneList(rec.RoutesInterfacesFiles)
	out.BusinessLogicFiles = cloneList(rec.BusinessLogicFiles)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneList(v []string) []string {
	if v == nil {
		return nil
	}
	return append([]string{}, v...)
}

var _ Repo = (*MemoryRepo)(nil)
