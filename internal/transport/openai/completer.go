package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/metrics"
)

// Completer answers prompts with a chat completion model.
type Completer struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion client.
func NewCompleter(cfg *Config) *Completer {
	return &Completer{
		client:  cfg.newClient(),
		model:   cfg.Model,
		limiter: cfg.newLimiter(),
		logger:  cfg.logger(),
	}
}

// WithTemperature sets the sampling temperature.
func (c *Completer) WithTemperature(t float32) *Completer {
	c.temperature = t
	return c
}

// WithMaxTokens caps the completion length; 0 leaves it to the provider.
func (c *Completer) WithMaxTokens(n int) *Completer {
	c.maxTokens = n
	return c
}

// Complete sends prompt as a single user message and returns the first choice verbatim.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", parseAPIError(err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(c.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	c.logger.Debug("Completion finished",
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
