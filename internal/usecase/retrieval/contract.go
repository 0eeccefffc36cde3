package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) (domain.Vector, error)
}

// IndexQuerier runs top-K similarity queries.
type IndexQuerier interface {
	Query(ctx context.Context, index string, q domain.IndexQuery) ([]domain.Match, error)
}

// Completer is a language model taking one prompt and returning its answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
