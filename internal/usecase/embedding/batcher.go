package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/logger"
)

const (
	// DefaultBatchSize is the number of texts sent per provider call.
	DefaultBatchSize = 128
	// DefaultConcurrency is the number of provider calls in flight per EmbedTexts.
	DefaultConcurrency = 4
)

// BatcherConfig holds the fan-out settings. Zero values take the defaults.
type BatcherConfig struct {
	BatchSize   int
	Concurrency int
	// Dimension, when positive, is enforced on every returned vector.
	Dimension int
}

// Batcher embeds ordered lists of texts in fixed-size sub-batches dispatched concurrently.
// The i-th output vector always belongs to the i-th input, whatever the completion order.
type Batcher struct {
	single domain.Embedder
	batch  func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
	cfg    BatcherConfig
	logger *zap.Logger
}

// NewBatcher creates a Batcher over provider. Providers without a native batch call
// are embedded one text at a time inside each sub-batch.
func NewBatcher(provider domain.Embedder, cfg BatcherConfig, log *zap.Logger) (*Batcher, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BatchSize < 0 || cfg.Concurrency < 0 || cfg.Dimension < 0 {
		return nil, fmt.Errorf("batch size, concurrency and dimension must not be negative: %w",
			domain.ErrInvalidConfiguration)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Batcher{
		single: provider,
		batch:  domain.BatchOf(provider),
		cfg:    cfg,
		logger: log,
	}, nil
}

// EmbedChunks embeds chunk texts in chunk order.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Vector, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return b.EmbedTexts(ctx, texts)
}

// EmbedTexts returns one vector per text. Any failing sub-batch fails the whole call
// with a *domain.EmbeddingError for its range; no partial result is returned.
// When ctx itself is done, ctx.Err() is returned instead.
func (b *Batcher) EmbedTexts(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([]domain.Vector, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)

	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(texts))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return b.embedRange(gctx, texts, out, start, end)
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr //nolint:wrapcheck // caller's own cancellation
		}
		logger.FromContextOr(ctx, b.logger).Warn("Embedding failed",
			zap.Int("texts", len(texts)),
			zap.Error(err),
		)
		return nil, err //nolint:wrapcheck // already a domain.EmbeddingError
	}

	b.logger.Debug("Embedded texts",
		zap.Int("texts", len(texts)),
		zap.Int("batches", (len(texts)+b.cfg.BatchSize-1)/b.cfg.BatchSize),
	)
	return out, nil
}

// embedRange fills out[start:end]. Each call owns a disjoint slot range.
func (b *Batcher) embedRange(ctx context.Context, texts []string, out []domain.Vector, start, end int) error {
	batch := make([]string, end-start)
	for i := range batch {
		batch[i] = normalize(texts[start+i])
	}

	res, err := b.batch(ctx, batch)
	if err != nil {
		return &domain.EmbeddingError{Start: start, End: end, Err: err}
	}
	if len(res.Embeddings) != len(batch) {
		return &domain.EmbeddingError{Start: start, End: end,
			Err: fmt.Errorf("provider returned %d vectors for %d texts", len(res.Embeddings), len(batch))}
	}
	for i, v := range res.Embeddings {
		if err := b.checkDim(v); err != nil {
			return &domain.EmbeddingError{Start: start, End: end, Err: fmt.Errorf("item %d: %w", start+i, err)}
		}
		out[start+i] = v
	}
	return nil
}

// EmbedQuery embeds a single question. The text is sent as is.
// Cancellation of ctx is returned as ctx.Err().
func (b *Batcher) EmbedQuery(ctx context.Context, text string) (domain.Vector, error) {
	res, err := b.single.Embed(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr //nolint:wrapcheck // caller's own cancellation
		}
		return nil, &domain.EmbeddingError{Start: 0, End: 1, Err: err}
	}
	if err := b.checkDim(res.Embedding); err != nil {
		return nil, &domain.EmbeddingError{Start: 0, End: 1, Err: err}
	}
	return res.Embedding, nil
}

func (b *Batcher) checkDim(v domain.Vector) error {
	if b.cfg.Dimension > 0 && len(v) != b.cfg.Dimension {
		return fmt.Errorf("got %d dimensions, want %d: %w", len(v), b.cfg.Dimension, domain.ErrVectorDimMismatch)
	}
	return nil
}

// normalize strips line breaks before embedding; chunk text itself stays verbatim.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "")
	return strings.ReplaceAll(text, "\n", "")
}
