package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/custsim/internal/models"
)

func TestSQLiteStorage_Batches(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStorage(filepath.Join(dir, "nested", "ingest.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ok := &models.IngestReport{
		BatchID: "b1", Status: models.IngestSucceeded, RecordCount: 3,
		DuplicateIDs: []string{"C1"}, ReceivedAt: base, DurationMs: 12,
	}
	failed := &models.IngestReport{
		BatchID: "b2", Status: models.IngestFailed, RecordCount: 2,
		Error: "embedding failed: provider unavailable", ReceivedAt: base.Add(time.Minute),
	}
	for _, r := range []*models.IngestReport{ok, failed} {
		if err := store.CreateBatch(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.GetBatch(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.IngestSucceeded || got.RecordCount != 3 || got.DurationMs != 12 {
		t.Errorf("got %+v", got)
	}
	if len(got.DuplicateIDs) != 1 || got.DuplicateIDs[0] != "C1" {
		t.Errorf("DuplicateIDs = %v, want [C1]", got.DuplicateIDs)
	}
	if !got.ReceivedAt.Equal(base) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, base)
	}

	got, err = store.GetBatch(ctx, "b2")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.IngestFailed || got.Error == "" || got.DuplicateIDs != nil {
		t.Errorf("got %+v", got)
	}

	list, err := store.ListBatches(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].BatchID != "b2" || list[1].BatchID != "b1" {
		t.Errorf("ListBatches order wrong: %+v", list)
	}
	page, err := store.ListBatches(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].BatchID != "b1" {
		t.Errorf("offset page = %+v", page)
	}

	n, err := store.CountBatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountBatches = %d, want 2", n)
	}

	if err := store.CreateBatch(ctx, ok); err == nil {
		t.Error("expected error inserting a duplicate batch id")
	}
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store, err := NewSQLiteStorage(MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.GetBatch(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetBatch = %v, want ErrNotFound", err)
	}
	list, err := store.ListBatches(context.Background(), 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("ListBatches on empty log = %v, want empty slice", list)
	}
}

func TestSQLiteStorage_MemoryIsShared(t *testing.T) {
	store, err := NewSQLiteStorage("")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if store.Path() != MemoryPath {
		t.Errorf("Path = %q, want %q", store.Path(), MemoryPath)
	}
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.CreateBatch(ctx, &models.IngestReport{BatchID: id, Status: models.IngestSucceeded, ReceivedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.CountBatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountBatches = %d, want 3", n)
	}
}
