// Package retrieval answers questions from the indexed corpus.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/logger"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 10

const promptTemplate = `Use the following pieces of context to answer the question at the end. ` +
	`Answer only from the context. If the context does not contain the answer, ` +
	`say "I don't know" and do not make up an answer.

%s

Question: %s
Helpful Answer:`

// Config configures retrieval.
type Config struct {
	IndexName string
	TopK      int
}

// Service embeds a question, retrieves the nearest chunks and asks the model.
type Service struct {
	embedder QueryEmbedder
	index    IndexQuerier
	llm      Completer
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval service. Zero TopK takes DefaultTopK.
func New(embedder QueryEmbedder, index IndexQuerier, llm Completer, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required: %w", domain.ErrInvalidConfiguration)
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("top k must be positive, got %d: %w", cfg.TopK, domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, index: index, llm: llm, cfg: cfg, logger: logger}, nil
}

// Ask answers question from retrieved context.
//
// Matches are used in the order the index returns them. With no matches the
// model is not called and the answer has NoContext set. Embedding, query and
// model failures wrap ErrEmbeddingProviderError, ErrQuery and
// ErrLLMProviderError respectively. A done ctx yields ctx.Err().
func (s *Service) Ask(ctx context.Context, question string) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, domain.ErrEmptyQuestion)
	}

	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()

	vec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues("error").Inc()
		return domain.Answer{}, fmt.Errorf("embed question: %w", ensureKind(ctx, err, domain.ErrEmbeddingProviderError))
	}

	matches, err := s.index.Query(ctx, s.cfg.IndexName, domain.IndexQuery{
		Vector:        vec,
		TopK:          s.cfg.TopK,
		IncludeVector: true,
	})
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues("error").Inc()
		return domain.Answer{}, fmt.Errorf("query index %s: %w", s.cfg.IndexName, ensureKind(ctx, err, domain.ErrQuery))
	}

	if len(matches) == 0 {
		metrics.RetrievalTotal.WithLabelValues("no_context").Inc()
		log.Info("No matches found, skipping model call")
		return domain.Answer{Question: question, NoContext: true}, nil
	}

	prompt := BuildPrompt(matches, question)
	text, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues("error").Inc()
		return domain.Answer{}, fmt.Errorf("complete: %w", ensureKind(ctx, err, domain.ErrLLMProviderError))
	}

	metrics.RetrievalTotal.WithLabelValues("answered").Inc()
	log.Info("Question answered",
		zap.Int("matches", len(matches)),
		zap.Float64("top_score", matches[0].Score),
		zap.Duration("duration", time.Since(start)),
	)
	return domain.Answer{Question: question, Text: text, Sources: matches}, nil
}

// BuildContext joins match texts with a single space, in index order.
func BuildContext(matches []domain.Match) string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Metadata.Text
	}
	return strings.Join(texts, " ")
}

// BuildPrompt renders the fixed question-answering prompt.
func BuildPrompt(matches []domain.Match, question string) string {
	return fmt.Sprintf(promptTemplate, BuildContext(matches), question)
}

// ensureKind tags err with kind unless the caller's ctx is done, in which case
// the cancellation is reported as is.
func ensureKind(ctx context.Context, err, kind error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
