package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

func chatServer(t *testing.T, status int, body string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if gotPrompt != nil && len(req.Messages) == 1 {
			*gotPrompt = req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestCompleter_Complete(t *testing.T) {
	var prompt string
	server := chatServer(t, http.StatusOK, `{
		"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
		"choices":[{"index":0,"message":{"role":"assistant","content":"  Paris.\n"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":12,"completion_tokens":2,"total_tokens":14}
	}`, &prompt)
	defer server.Close()

	c := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Model: "gpt-4o-mini"}).WithTemperature(0)

	got, err := c.Complete(context.Background(), "Where is the Eiffel tower?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "  Paris.\n" {
		t.Errorf("answer must be returned verbatim, got %q", got)
	}
	if prompt != "Where is the Eiffel tower?" {
		t.Errorf("unexpected prompt sent: %q", prompt)
	}
}

func TestCompleter_NoChoices(t *testing.T) {
	server := chatServer(t, http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`, nil)
	defer server.Close()

	_, err := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Model: "m"}).Complete(context.Background(), "q")
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected ErrLLMProviderError, got %v", err)
	}
}

func TestCompleter_APIError(t *testing.T) {
	server := chatServer(t, http.StatusUnauthorized,
		`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`, nil)
	defer server.Close()

	_, err := NewCompleter(&Config{APIKey: "k", BaseURL: server.URL, Model: "m"}).Complete(context.Background(), "q")
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected ErrLLMProviderError, got %v", err)
	}
	if errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Error("llm failure must not look like an embedding failure")
	}
}
