// Package storage persists the ingestion log: one row per ingestion batch.
package storage

import (
	"context"

	"github.com/hyperjump/custsim/internal/models"
)

// IngestLog records ingestion batch reports.
type IngestLog interface {
	CreateBatch(ctx context.Context, report *models.IngestReport) error
	GetBatch(ctx context.Context, id string) (*models.IngestReport, error)
	// ListBatches returns reports newest first.
	ListBatches(ctx context.Context, offset, limit int) ([]*models.IngestReport, error)
	CountBatches(ctx context.Context) (int64, error)

	Close() error
}
