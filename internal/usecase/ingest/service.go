package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// Report is the outcome of ingesting one document.
type Report struct {
	Path            string
	Chunks          int
	EmbeddingTokens int
	Duration        time.Duration
	// Err is nil on success, otherwise a *domain.StageError.
	Err error
}

// Service runs chunk, embed and upsert for documents.
type Service struct {
	splitter Splitter
	embedder ChunkEmbedder
	upserter ChunkUpserter
	docLimit int
	locks    *pathLocks
	logger   *zap.Logger
}

// New creates an ingestion service. Documents are processed one at a time
// unless WithDocumentConcurrency says otherwise.
func New(splitter Splitter, embedder ChunkEmbedder, upserter ChunkUpserter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		splitter: splitter,
		embedder: embedder,
		upserter: upserter,
		docLimit: 1,
		locks:    newPathLocks(),
		logger:   logger,
	}
}

// WithDocumentConcurrency sets how many documents IngestAll processes at once.
func (s *Service) WithDocumentConcurrency(n int) *Service {
	if n > 0 {
		s.docLimit = n
	}
	return s
}

// IngestDocument chunks, embeds and upserts one document. A failing stage stops
// the remaining stages and is reported as a *domain.StageError. Calls for the
// same path are serialized.
func (s *Service) IngestDocument(ctx context.Context, doc domain.Document) (Report, error) {
	unlock := s.locks.lock(doc.Path)
	defer unlock()

	start := time.Now()
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("path", doc.Path))

	ctx, usage := domain.NewContextWithUsage(ctx)
	rep := Report{Path: doc.Path}
	finish := func(stage domain.Stage, err error) (Report, error) {
		rep.Duration = time.Since(start)
		rep.EmbeddingTokens, _ = usage.Snapshot()
		if err != nil {
			rep.Err = &domain.StageError{Path: doc.Path, Stage: stage, Err: err}
			metrics.DocumentsIngestedTotal.WithLabelValues(string(stage)).Inc()
			log.Error("Document ingestion failed", zap.String("stage", string(stage)), zap.Error(err))
			return rep, rep.Err
		}
		metrics.DocumentsIngestedTotal.WithLabelValues("ok").Inc()
		log.Info("Document ingested",
			zap.Int("chunks", rep.Chunks),
			zap.Int("embedding_tokens", rep.EmbeddingTokens),
			zap.Duration("duration", rep.Duration),
		)
		return rep, nil
	}

	chunks := s.splitter.Split(doc)
	rep.Chunks = len(chunks)
	metrics.ChunksTotal.Add(float64(len(chunks)))
	if len(chunks) == 0 {
		log.Info("Document is empty, nothing to ingest")
		return finish(domain.StageChunk, nil)
	}

	vectors, err := s.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return finish(domain.StageEmbed, err)
	}
	if len(vectors) != len(chunks) {
		return finish(domain.StageEmbed, fmt.Errorf("got %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingProviderError))
	}

	if err := s.upserter.Upsert(ctx, doc.Path, chunks, vectors); err != nil {
		return finish(domain.StageUpsert, err)
	}
	return finish(domain.StageUpsert, nil)
}

// IngestAll ingests documents independently and returns one report per
// document in input order. A failure affects only its own document.
func (s *Service) IngestAll(ctx context.Context, docs []domain.Document) []Report {
	reports := make([]Report, len(docs))

	var g errgroup.Group
	g.SetLimit(s.docLimit)
	for i, doc := range docs {
		g.Go(func() error {
			reports[i], _ = s.IngestDocument(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// Failed returns the errors of failed reports joined together, or nil.
func Failed(reports []Report) error {
	var errs []error
	for _, r := range reports {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
