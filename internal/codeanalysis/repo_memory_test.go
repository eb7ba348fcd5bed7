package codeanalysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	rec, err := repo.Create(ctx, Record{ID: uuid.NewString(), RepositoryURL: "https://github.com/acme/shop", Status: StatusInProgress})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.CreatedAt.IsZero() || !rec.UpdatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("expected timestamps to be assigned, got %+v", rec)
	}

	same, err := repo.Update(ctx, rec.ID, NewUpdate())
	if err != nil {
		t.Fatalf("empty Update: %v", err)
	}
	if !same.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Fatalf("expected empty update to be a read")
	}

	updated, err := repo.Update(ctx, rec.ID, NewUpdate().SetIngestedRepository("repo text").SetTechnologies([]string{"go"}))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IngestedRepository == nil || *updated.IngestedRepository != "repo text" {
		t.Fatalf("expected ingested repository to be stored")
	}
	if len(updated.Technologies) != 1 {
		t.Fatalf("expected technologies to be stored")
	}
	if updated.DataModelFiles != nil {
		t.Fatalf("expected untouched fields to stay absent")
	}
}

func TestMemoryRepoIDErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	if _, err := repo.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := repo.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Update(ctx, uuid.NewString(), NewUpdate().SetStatus(StatusCompleted)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemoryRepoListNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uuid.NewString()
		if _, err := repo.Create(ctx, Record{ID: ids[i], RepositoryURL: "https://example.com/r", Status: StatusInProgress, CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := repo.Update(ctx, ids[1], NewUpdate().SetStatus(StatusCompleted)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := repo.List(ctx, Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Fatalf("expected newest first, got %v", recordIDs(all))
	}

	completed := StatusCompleted
	filtered, err := repo.List(ctx, Filters{Status: &completed})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != ids[1] {
		t.Fatalf("expected only completed record, got %v", recordIDs(filtered))
	}

	page, err := repo.List(ctx, Filters{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List paged: %v", err)
	}
	if len(page) != 1 || page[0].ID != ids[1] {
		t.Fatalf("unexpected page %v", recordIDs(page))
	}
}

func recordIDs(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
