package setup

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/usecase/ingest"
)

// DocumentLoader reads the corpus.
type DocumentLoader interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// IndexEnsurer makes the target index ready for writes.
type IndexEnsurer interface {
	Name() string
	Ensure(ctx context.Context) error
}

// DocumentIngester chunks, embeds and upserts documents.
type DocumentIngester interface {
	IngestAll(ctx context.Context, docs []domain.Document) []ingest.Report
}
