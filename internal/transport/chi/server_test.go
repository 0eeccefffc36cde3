package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	"github.com/kailas-cloud/ragpipe/internal/usecase/ingest"
	setupuc "github.com/kailas-cloud/ragpipe/internal/usecase/setup"
)

// --- Mocks ---

type mockAsker struct {
	askFn func(ctx context.Context, q string) (domain.Answer, error)
	got   string
}

func (m *mockAsker) Ask(ctx context.Context, q string) (domain.Answer, error) {
	m.got = q
	return m.askFn(ctx, q)
}

type mockSetup struct {
	runFn func(ctx context.Context) (setupuc.Result, error)
}

func (m *mockSetup) Run(ctx context.Context) (setupuc.Result, error) { return m.runFn(ctx) }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func answerWith(text string) func(context.Context, string) (domain.Answer, error) {
	return func(_ context.Context, q string) (domain.Answer, error) {
		return domain.Answer{
			Question: q,
			Text:     text,
			Sources: []domain.Match{{
				ID:    "a.txt-0",
				Score: 0.9,
				Metadata: domain.RecordMetadata{
					Source: "a.txt", Text: "ctx", Span: domain.Span{LineFrom: 1, LineTo: 3},
				},
			}},
		}, nil
	}
}

func newTestRouter(asker *mockAsker, setup *mockSetup, health *mockHealth, keys ...string) http.Handler {
	if asker == nil {
		asker = &mockAsker{askFn: answerWith("")}
	}
	if setup == nil {
		setup = &mockSetup{runFn: func(context.Context) (setupuc.Result, error) { return setupuc.Result{}, nil }}
	}
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	return NewRouter(NewServer(asker, setup, health, nil), keys)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestRead_BodyForms(t *testing.T) {
	for _, body := range []string{`"What is Go?"`, `{"question":"What is Go?"}`} {
		asker := &mockAsker{askFn: answerWith("A language.")}
		rr := do(newTestRouter(asker, nil, nil), http.MethodPost, "/api/read", body)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", body, rr.Code, rr.Body)
		}
		if asker.got != "What is Go?" {
			t.Errorf("%s: question = %q", body, asker.got)
		}
		var resp ReadResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data == nil || *resp.Data != "A language." {
			t.Errorf("data = %v", resp.Data)
		}
		if len(resp.Sources) != 1 || resp.Sources[0].Source != "a.txt" || resp.Sources[0].LineTo != 3 {
			t.Errorf("sources = %+v", resp.Sources)
		}
	}
}

func TestRead_NoContextIsNullData(t *testing.T) {
	asker := &mockAsker{askFn: func(_ context.Context, q string) (domain.Answer, error) {
		return domain.Answer{Question: q, NoContext: true}, nil
	}}
	rr := do(newTestRouter(asker, nil, nil), http.MethodPost, "/api/read", `"q"`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"data":null`) {
		t.Errorf("body = %s", rr.Body)
	}
}

func TestRead_InvalidBody(t *testing.T) {
	for _, body := range []string{"", "{", "42x"} {
		rr := do(newTestRouter(nil, nil, nil), http.MethodPost, "/api/read", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%q: status %d", body, rr.Code)
		}
	}
}

func TestRead_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{domain.ErrEmptyQuestion, http.StatusBadRequest, CodeEmptyQuestion},
		{fmt.Errorf("%w: %w", domain.ErrQuery, domain.ErrIndexNotFound), http.StatusNotFound, CodeIndexNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrQuery), http.StatusBadGateway, CodeQueryFailed},
		{fmt.Errorf("%w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, CodeEmbeddingProviderError},
		{errors.Join(domain.ErrLLMProviderError, domain.ErrRateLimited), http.StatusTooManyRequests, CodeRateLimited},
		{domain.ErrLLMProviderError, http.StatusBadGateway, CodeLLMProviderError},
		{errors.New("secret internals"), http.StatusInternalServerError, CodeInternalError},
		{fmt.Errorf("embed question: %w", context.Canceled), 499, CodeRequestCanceled},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{&domain.EmbeddingError{Start: 0, End: 1, Err: context.DeadlineExceeded}, http.StatusBadGateway, CodeEmbeddingProviderError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			asker := &mockAsker{askFn: func(context.Context, string) (domain.Answer, error) {
				return domain.Answer{}, tt.err
			}}
			rr := do(newTestRouter(asker, nil, nil), http.MethodPost, "/api/read", `"q"`)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.code {
				t.Errorf("code = %s, want %s", resp.Code, tt.code)
			}
			if strings.Contains(resp.Message, "secret") {
				t.Error("internal error details leaked to the client")
			}
		})
	}
}

func TestRead_EmbeddingTokensHeader(t *testing.T) {
	asker := &mockAsker{askFn: func(ctx context.Context, q string) (domain.Answer, error) {
		domain.UsageFromContext(ctx).AddTokens(7)
		return domain.Answer{Question: q, NoContext: true}, nil
	}}
	rr := do(newTestRouter(asker, nil, nil), http.MethodPost, "/api/read", `"q"`)

	if got := rr.Header().Get("X-Embedding-Tokens"); got != "7" {
		t.Errorf("X-Embedding-Tokens = %q", got)
	}
}

func TestSetup_Reports(t *testing.T) {
	setup := &mockSetup{runFn: func(context.Context) (setupuc.Result, error) {
		return setupuc.Result{
			Index:     "docs",
			Documents: 2,
			Chunks:    5,
			Failed:    1,
			Duration:  1500 * time.Millisecond,
			Reports: []ingest.Report{
				{Path: "a.txt", Chunks: 5},
				{Path: "b.md", Err: &domain.StageError{
					Path: "b.md", Stage: domain.StageEmbed, Err: domain.ErrEmbeddingProviderError,
				}},
			},
		}, nil
	}}
	rr := do(newTestRouter(nil, setup, nil), http.MethodPost, "/api/setup", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body)
	}
	var resp SetupResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Index != "docs" || resp.Failed != 1 || resp.DurationMs != 1500 || len(resp.Reports) != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if r := resp.Reports[1]; r.Stage != "embed" || r.Code != CodeEmbeddingProviderError {
		t.Errorf("failed report = %+v", r)
	}
	if r := resp.Reports[0]; r.Stage != "" || r.Code != "" {
		t.Errorf("successful report carries error fields: %+v", r)
	}
}

func TestSetup_IndexTimeout(t *testing.T) {
	setup := &mockSetup{runFn: func(context.Context) (setupuc.Result, error) {
		return setupuc.Result{}, &domain.IndexCreationTimeoutError{Index: "docs", Timeout: time.Second}
	}}
	rr := do(newTestRouter(nil, setup, nil), http.MethodPost, "/api/setup", "")

	if rr.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		health := &mockHealth{report: healthuc.Report{
			Status: tt.status,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentVectorStore: healthuc.CheckOK},
		}}
		rr := do(newTestRouter(nil, nil, health), http.MethodGet, "/health", "")
		if rr.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.status, rr.Code, tt.want)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Status != string(tt.status) || resp.Checks["vector_store"] != "ok" {
			t.Errorf("resp = %+v", resp)
		}
	}
}

func TestRouter_AuthAndRouting(t *testing.T) {
	h := newTestRouter(nil, nil, nil, "secret")

	if rr := do(h, http.MethodPost, "/api/read", `"q"`); rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated read: %d", rr.Code)
	}
	if rr := do(h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health must bypass auth: %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/read", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/read: %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	asker := &mockAsker{askFn: func(context.Context, string) (domain.Answer, error) {
		panic("boom")
	}}
	rr := do(newTestRouter(asker, nil, nil), http.MethodPost, "/api/read", `"q"`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), string(CodeInternalError)) {
		t.Errorf("body = %s", rr.Body)
	}
}
