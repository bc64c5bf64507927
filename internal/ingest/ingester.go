// Package ingest ingests customer batches into the similarity index and records every batch
// in the ingestion log.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/custsim/internal/keyword"
	"github.com/hyperjump/custsim/internal/models"
	"github.com/hyperjump/custsim/internal/search"
	"github.com/hyperjump/custsim/internal/storage"
)

// Ingester adds customer batches to the similarity index, the ingestion log and the keyword index.
type Ingester struct {
	index        *search.Index
	log          storage.IngestLog
	keywordIndex keyword.KeywordIndex
	logger       *zap.Logger
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithLogger sets a logger for batch outcomes.
func WithLogger(l *zap.Logger) IngesterOption {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithKeywordIndex also indexes committed records for keyword lookup.
func WithKeywordIndex(kw keyword.KeywordIndex) IngesterOption {
	return func(in *Ingester) { in.keywordIndex = kw }
}

// NewIngester creates an ingester. log may be nil, in which case batches are not recorded.
func NewIngester(index *search.Index, log storage.IngestLog, opts ...IngesterOption) *Ingester {
	in := &Ingester{
		index:  index,
		log:    log,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest adds records as one atomic batch. The returned report is non-nil even when err is not:
// it carries the batch ID and the failure reason that was written to the ingestion log.
func (in *Ingester) Ingest(ctx context.Context, records []*models.CustomerRecord) (*models.IngestReport, error) {
	start := time.Now()
	report := &models.IngestReport{
		BatchID:     uuid.New().String(),
		RecordCount: len(records),
		ReceivedAt:  start.UTC(),
	}
	logger := in.logger.With(zap.String("batch_id", report.BatchID), zap.Int("records", len(records)))

	res, err := in.index.AddBatch(ctx, records)
	report.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		report.Status = models.IngestFailed
		report.Error = err.Error()
		logger.Warn("ingestion batch rejected", zap.Error(err))
		in.record(ctx, report, logger)
		return report, err
	}

	report.Status = models.IngestSucceeded
	report.DuplicateIDs = res.DuplicateIDs
	if in.keywordIndex != nil && res.Added > 0 {
		if err := in.keywordIndex.IndexBatch(ctx, records); err != nil {
			logger.Warn("keyword indexing failed", zap.Error(err))
		}
	}
	in.record(ctx, report, logger)
	logger.Info("ingestion batch committed",
		zap.Int("index_size", in.index.Size()),
		zap.Int("duplicates", len(res.DuplicateIDs)),
		zap.Int64("duration_ms", report.DurationMs))
	return report, nil
}

// record writes report to the ingestion log even if ctx was cancelled mid-batch.
func (in *Ingester) record(ctx context.Context, report *models.IngestReport, logger *zap.Logger) {
	if in.log == nil {
		return
	}
	if err := in.log.CreateBatch(context.WithoutCancel(ctx), report); err != nil {
		logger.Error("failed to record ingestion batch", zap.Error(err))
	}
}

// Batch returns the report of one ingestion batch.
func (in *Ingester) Batch(ctx context.Context, id string) (*models.IngestReport, error) {
	if in.log == nil {
		return nil, fmt.Errorf("%w: ingestion batch %s", models.ErrNotFound, id)
	}
	return in.log.GetBatch(ctx, id)
}

// Batches lists ingestion batches newest first and returns the total count.
func (in *Ingester) Batches(ctx context.Context, offset, limit int) ([]*models.IngestReport, int64, error) {
	if in.log == nil {
		return []*models.IngestReport{}, 0, nil
	}
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("%w: offset and limit must not be negative", models.ErrInvalidArgument)
	}
	reports, err := in.log.ListBatches(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := in.log.CountBatches(ctx)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}
