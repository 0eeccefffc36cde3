package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfiguration signals a bad parameter or mismatched inputs.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexCreationTimeout signals that index creation did not finish in time.
	ErrIndexCreationTimeout = errors.New("index creation timeout")
	// ErrUpsert signals that the index rejected an upsert batch.
	ErrUpsert = errors.New("upsert failed")
	// ErrQuery signals that the index query failed.
	ErrQuery = errors.New("index query failed")
	// ErrLLMProviderError signals a language model provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmptyQuestion signals a blank question.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrIndexNotFound signals that the named index does not exist.
	ErrIndexNotFound = errors.New("index not found")
)

// EmbeddingError reports the failing sub-batch as a half-open range [Start, End)
// of the input positions.
type EmbeddingError struct {
	Start int
	End   int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed items [%d, %d): %v", e.Start, e.End, e.Err)
}

// Unwrap exposes both the cause and ErrEmbeddingProviderError.
func (e *EmbeddingError) Unwrap() []error {
	return []error{ErrEmbeddingProviderError, e.Err}
}

// UpsertError reports a single failed upsert batch.
type UpsertError struct {
	Path    string
	Batch   int
	FirstID string
	LastID  string
	Err     error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert %s batch %d (%s..%s): %v", e.Path, e.Batch, e.FirstID, e.LastID, e.Err)
}

// Unwrap exposes both the cause and ErrUpsert.
func (e *UpsertError) Unwrap() []error {
	return []error{ErrUpsert, e.Err}
}

// IndexCreationTimeoutError wraps ErrIndexCreationTimeout with the index and the bound that elapsed.
type IndexCreationTimeoutError struct {
	Index   string
	Timeout time.Duration
}

func (e *IndexCreationTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s not ready after %s", ErrIndexCreationTimeout.Error(), e.Index, e.Timeout)
}

func (e *IndexCreationTimeoutError) Unwrap() error { return ErrIndexCreationTimeout }

// Stage names a step of document ingestion.
type Stage string

// Ingestion stages in execution order.
const (
	StageChunk  Stage = "chunk"
	StageEmbed  Stage = "embed"
	StageUpsert Stage = "upsert"
)

// StageError records which ingestion stage failed for a document.
type StageError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
