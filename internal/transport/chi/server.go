// Package chi is the HTTP surface: setup, question answering, health and metrics.
package chi

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	healthuc "github.com/kailas-cloud/ragpipe/internal/usecase/health"
	setupuc "github.com/kailas-cloud/ragpipe/internal/usecase/setup"
	"github.com/kailas-cloud/ragpipe/internal/version"
)

const maxReadBodyBytes = 64 << 10

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
}

// SetupRunner ingests the corpus.
type SetupRunner interface {
	Run(ctx context.Context) (setupuc.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	asker         Asker
	setup         SetupRunner
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(asker Asker, setup SetupRunner, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		asker:         asker,
		setup:         setup,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Setup handles POST /api/setup.
func (s *Server) Setup(w http.ResponseWriter, r *http.Request) {
	ctx, usage := domain.NewContextWithUsage(r.Context())

	res, err := s.setup.Run(ctx)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, setupToResponse(res))
}

// Read handles POST /api/read.
func (s *Server) Read(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReadBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	question, err := decodeQuestion(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.asker.Ask(ctx, question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, answerToResponse(answer))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.String(),
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, used := usage.Snapshot(); used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}
