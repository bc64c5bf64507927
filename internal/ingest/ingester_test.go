package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/custsim/internal/embedding"
	"github.com/hyperjump/custsim/internal/keyword"
	"github.com/hyperjump/custsim/internal/models"
	"github.com/hyperjump/custsim/internal/search"
	"github.com/hyperjump/custsim/internal/storage"
)

type failingEmbedder struct {
	*embedding.MockEmbedder
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider unavailable")
}

type fixture struct {
	ingester *Ingester
	index    *search.Index
	log      *storage.SQLiteStorage
	keywords *keyword.BleveIndex
}

func newFixture(t *testing.T, emb embedding.Embedder) *fixture {
	t.Helper()
	ix, err := search.NewIndex(emb)
	if err != nil {
		t.Fatal(err)
	}
	log, err := storage.NewSQLiteStorage(storage.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = log.Close() })
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	return &fixture{
		ingester: NewIngester(ix, log, WithKeywordIndex(kw)),
		index:    ix,
		log:      log,
		keywords: kw,
	}
}

func records(ids ...string) []*models.CustomerRecord {
	out := make([]*models.CustomerRecord, len(ids))
	for i, id := range ids {
		out[i] = &models.CustomerRecord{
			CustomerID:         id,
			InteractionHistory: models.History{"visited store " + id},
			PurchaseHistory:    models.History{"gift card"},
		}
	}
	return out
}

func TestIngester_Success(t *testing.T) {
	f := newFixture(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()

	report, err := f.ingester.Ingest(ctx, records("C1", "C2", "C1"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Status != models.IngestSucceeded || report.RecordCount != 3 || report.BatchID == "" {
		t.Errorf("report = %+v", report)
	}
	if len(report.DuplicateIDs) != 1 || report.DuplicateIDs[0] != "C1" {
		t.Errorf("DuplicateIDs = %v, want [C1]", report.DuplicateIDs)
	}
	if f.index.Size() != 3 {
		t.Errorf("index size = %d, want 3", f.index.Size())
	}

	stored, err := f.ingester.Batch(ctx, report.BatchID)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if stored.Status != models.IngestSucceeded || stored.RecordCount != 3 {
		t.Errorf("stored report = %+v", stored)
	}

	n, err := f.keywords.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("keyword DocCount = %d, want 2", n)
	}
	hits, err := f.keywords.Search(ctx, "C2", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].ID != "C2" {
		t.Errorf("keyword lookup = %v, want C2", hits)
	}
}

func TestIngester_FailureIsRecorded(t *testing.T) {
	f := newFixture(t, failingEmbedder{embedding.NewMockEmbedder(8)})
	ctx := context.Background()

	report, err := f.ingester.Ingest(ctx, records("C1", "C2", "C3", "C4", "C5"))
	if !errors.Is(err, models.ErrEmbedding) {
		t.Fatalf("error = %v, want ErrEmbedding", err)
	}
	if report == nil || report.Status != models.IngestFailed || report.Error == "" {
		t.Fatalf("report = %+v", report)
	}
	if f.index.Size() != 0 {
		t.Errorf("index size = %d, want 0", f.index.Size())
	}
	stored, err := f.ingester.Batch(ctx, report.BatchID)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if stored.Status != models.IngestFailed || stored.Error != report.Error {
		t.Errorf("stored report = %+v", stored)
	}
	if n, _ := f.keywords.DocCount(); n != 0 {
		t.Errorf("keyword DocCount = %d, want 0", n)
	}
}

func TestIngester_InvalidRecord(t *testing.T) {
	f := newFixture(t, embedding.NewMockEmbedder(8))
	batch := append(records("C1"), &models.CustomerRecord{CustomerID: ""})
	report, err := f.ingester.Ingest(context.Background(), batch)
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("error = %v, want ErrInvalidArgument", err)
	}
	if report.Status != models.IngestFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}
	if f.index.Size() != 0 {
		t.Errorf("index size = %d, want 0", f.index.Size())
	}
}

func TestIngester_Batches(t *testing.T) {
	f := newFixture(t, embedding.NewMockEmbedder(8))
	ctx := context.Background()
	for _, batch := range [][]*models.CustomerRecord{records("A"), records("B", "C"), {}} {
		if _, err := f.ingester.Ingest(ctx, batch); err != nil {
			t.Fatal(err)
		}
	}
	list, total, err := f.ingester.Batches(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(list) != 2 {
		t.Errorf("total=%d len=%d, want 3 and 2", total, len(list))
	}
	if _, _, err := f.ingester.Batches(ctx, -1, 2); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("negative offset: got %v, want ErrInvalidArgument", err)
	}
	if _, err := f.ingester.Batch(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Batch(missing) = %v, want ErrNotFound", err)
	}
}

func TestIngester_WithoutLog(t *testing.T) {
	ix, err := search.NewIndex(embedding.NewMockEmbedder(4))
	if err != nil {
		t.Fatal(err)
	}
	in := NewIngester(ix, nil)
	if _, err := in.Ingest(context.Background(), records("A")); err != nil {
		t.Fatal(err)
	}
	list, total, err := in.Batches(context.Background(), 0, 10)
	if err != nil || total != 0 || len(list) != 0 {
		t.Errorf("Batches = %v, %d, %v", list, total, err)
	}
}
