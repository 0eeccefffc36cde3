package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// parseAPIError turns a go-openai failure into a domain error wrapping sentinel.
// HTTP 429 additionally matches domain.ErrRateLimited.
func parseAPIError(err error, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return wrapStatus(reqErr.HTTPStatusCode, detail, sentinel)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrapStatus(apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}

	return fmt.Errorf("request failed: %v: %w", err, sentinel)
}

func wrapStatus(code int, detail string, sentinel error) error {
	if code == http.StatusTooManyRequests {
		return fmt.Errorf("API error %d: %s: %w", code, detail, errors.Join(sentinel, domain.ErrRateLimited))
	}
	return fmt.Errorf("API error %d: %s: %w", code, detail, sentinel)
}

// extractDetail reads the "detail" field some OpenAI-compatible providers return.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
