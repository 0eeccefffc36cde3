package ingest

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// IndexWriter writes records into a vector index.
type IndexWriter interface {
	Upsert(ctx context.Context, index string, records []domain.IndexRecord) error
}

// Splitter cuts a document into ordered chunks.
type Splitter interface {
	Split(doc domain.Document) []domain.Chunk
}

// ChunkEmbedder returns one vector per chunk, in chunk order.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Vector, error)
}

// ChunkUpserter persists the chunks of one document with their vectors.
type ChunkUpserter interface {
	Upsert(ctx context.Context, path string, chunks []domain.Chunk, vectors []domain.Vector) error
}
