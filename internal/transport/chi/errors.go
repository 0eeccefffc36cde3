package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeEmptyQuestion          ErrorCode = "empty_question"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeIndexNotFound          ErrorCode = "index_not_found"
	CodeIndexCreationTimeout   ErrorCode = "index_creation_timeout"
	CodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeLLMProviderError       ErrorCode = "llm_provider_error"
	CodeQueryFailed            ErrorCode = "query_failed"
	CodeUpsertFailed           ErrorCode = "upsert_failed"
	CodeInvalidConfiguration   ErrorCode = "invalid_configuration"
	CodeInternalError          ErrorCode = "internal_error"
	CodeRequestCanceled        ErrorCode = "request_canceled"
	CodeTimeout                ErrorCode = "timeout"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorMapping binds a sentinel to its HTTP status and code. Order matters:
// the first match wins, so narrower sentinels come first.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

var errorMappings = []errorMapping{
	{domain.ErrEmptyQuestion, http.StatusBadRequest, CodeEmptyQuestion},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrIndexNotFound, http.StatusNotFound, CodeIndexNotFound},
	{domain.ErrIndexCreationTimeout, http.StatusGatewayTimeout, CodeIndexCreationTimeout},
	{domain.ErrVectorDimMismatch, http.StatusConflict, CodeVectorDimMismatch},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError},
	{domain.ErrLLMProviderError, http.StatusBadGateway, CodeLLMProviderError},
	{domain.ErrQuery, http.StatusBadGateway, CodeQueryFailed},
	{domain.ErrUpsert, http.StatusBadGateway, CodeUpsertFailed},
	{domain.ErrInvalidConfiguration, http.StatusInternalServerError, CodeInvalidConfiguration},
	// Bare caller cancellation only; provider errors above may carry these too.
	{context.Canceled, statusClientClosedRequest, CodeRequestCanceled},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees only the sentinel text, never the wrapped internals.
func sentinelHandler(m errorMapping) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, m.sentinel) {
			return false
		}
		writeError(w, m.status, m.code, m.sentinel.Error())
		return true
	}
}

func defaultErrorHandlers() []errorHandler {
	hs := make([]errorHandler, len(errorMappings))
	for i, m := range errorMappings {
		hs[i] = sentinelHandler(m)
	}
	return hs
}

// errorCode classifies err without writing a response.
func errorCode(err error) ErrorCode {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.code
		}
	}
	return CodeInternalError
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
