// Package ingest runs documents through chunking, embedding and upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

const (
	// DefaultUpsertBatchSize is the number of records per index write.
	DefaultUpsertBatchSize = 100
	// DefaultUpsertConcurrency is the number of index writes in flight per document.
	DefaultUpsertConcurrency = 4
)

// CoordinatorConfig configures batched upserts.
type CoordinatorConfig struct {
	IndexName   string
	BatchSize   int
	Concurrency int
}

// Coordinator turns aligned chunks and vectors into index records and writes
// them in batches. Batches touch disjoint record ids and run independently.
type Coordinator struct {
	index  IndexWriter
	cfg    CoordinatorConfig
	logger *zap.Logger
}

// NewCoordinator creates a Coordinator. Zero sizes take the defaults.
func NewCoordinator(index IndexWriter, cfg CoordinatorConfig, logger *zap.Logger) (*Coordinator, error) {
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required: %w", domain.ErrInvalidConfiguration)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultUpsertBatchSize
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultUpsertConcurrency
	}
	if cfg.BatchSize < 0 || cfg.Concurrency < 0 {
		return nil, fmt.Errorf("upsert batch size and concurrency must be positive: %w", domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{index: index, cfg: cfg, logger: logger}, nil
}

// Upsert writes one record per chunk with id "{path}-{chunk index}".
//
// Every batch runs to completion even when a sibling fails. Failed batches are
// reported as *domain.UpsertError values joined with errors.Join; batches that
// succeeded stay written.
func (c *Coordinator) Upsert(ctx context.Context, path string, chunks []domain.Chunk, vectors []domain.Vector) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%d chunks but %d vectors for %s: %w",
			len(chunks), len(vectors), path, domain.ErrInvalidConfiguration)
	}
	if len(chunks) == 0 {
		return nil
	}

	records := BuildRecords(path, chunks, vectors)

	nBatches := (len(records) + c.cfg.BatchSize - 1) / c.cfg.BatchSize
	errs := make([]error, nBatches)

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for b := range nBatches {
		start := b * c.cfg.BatchSize
		end := min(start+c.cfg.BatchSize, len(records))
		batch := records[start:end]
		g.Go(func() error {
			errs[b] = c.writeBatch(ctx, path, b, batch)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}

	c.logger.Debug("Upserted document records",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Int("batches", nBatches),
	)
	return nil
}

func (c *Coordinator) writeBatch(ctx context.Context, path string, b int, batch []domain.IndexRecord) error {
	start := time.Now()
	err := c.index.Upsert(ctx, c.cfg.IndexName, batch)
	metrics.UpsertBatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpsertBatchesTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Upsert batch failed",
			zap.String("path", path),
			zap.Int("batch", b),
			zap.String("first_id", batch[0].ID),
			zap.String("last_id", batch[len(batch)-1].ID),
			zap.Error(err),
		)
		return &domain.UpsertError{
			Path:    path,
			Batch:   b,
			FirstID: batch[0].ID,
			LastID:  batch[len(batch)-1].ID,
			Err:     err,
		}
	}
	metrics.UpsertBatchesTotal.WithLabelValues("ok").Inc()
	return nil
}

// BuildRecords pairs chunks with vectors. Ids are namespaced by path so
// documents never overwrite each other, and stable so re-ingestion overwrites.
func BuildRecords(path string, chunks []domain.Chunk, vectors []domain.Vector) []domain.IndexRecord {
	records := make([]domain.IndexRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = domain.IndexRecord{
			ID:     domain.RecordID(path, ch.Index),
			Vector: vectors[i],
			Metadata: domain.RecordMetadata{
				Source:     path,
				Text:       ch.Text,
				ChunkIndex: ch.Index,
				Span:       ch.Span,
			},
		}
	}
	return records
}
