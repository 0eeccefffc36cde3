package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/usecase/ingest"
	"github.com/kailas-cloud/ragpipe/internal/usecase/setup"
)

// ReadRequest is the object form of the /api/read body.
type ReadRequest struct {
	Question string `json:"question"`
}

// decodeQuestion accepts either a bare JSON string or a ReadRequest object.
func decodeQuestion(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", errors.New("empty body")
	}
	if body[0] == '"' {
		var q string
		if err := json.Unmarshal(body, &q); err != nil {
			return "", fmt.Errorf("decode question: %w", err)
		}
		return q, nil
	}
	var req ReadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", fmt.Errorf("decode request: %w", err)
	}
	return req.Question, nil
}

// SourceResponse is one retrieved chunk backing an answer.
type SourceResponse struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	LineFrom   int     `json:"line_from,omitempty"`
	LineTo     int     `json:"line_to,omitempty"`
	Text       string  `json:"text"`
}

// ReadResponse carries the answer text, or null when no context was found.
type ReadResponse struct {
	Data    *string          `json:"data"`
	Sources []SourceResponse `json:"sources"`
}

func answerToResponse(a domain.Answer) ReadResponse {
	resp := ReadResponse{Sources: make([]SourceResponse, len(a.Sources))}
	if !a.NoContext {
		text := a.Text
		resp.Data = &text
	}
	for i, m := range a.Sources {
		resp.Sources[i] = SourceResponse{
			ID:         m.ID,
			Score:      m.Score,
			Source:     m.Metadata.Source,
			ChunkIndex: m.Metadata.ChunkIndex,
			LineFrom:   m.Metadata.Span.LineFrom,
			LineTo:     m.Metadata.Span.LineTo,
			Text:       m.Metadata.Text,
		}
	}
	return resp
}

// DocumentReport is the per-document outcome of a setup run.
type DocumentReport struct {
	Path            string    `json:"path"`
	Chunks          int       `json:"chunks"`
	EmbeddingTokens int       `json:"embedding_tokens"`
	DurationMs      int64     `json:"duration_ms"`
	Stage           string    `json:"stage,omitempty"`
	Code            ErrorCode `json:"code,omitempty"`
}

// SetupResponse summarizes a setup run.
type SetupResponse struct {
	Index      string           `json:"index"`
	Documents  int              `json:"documents"`
	Chunks     int              `json:"chunks"`
	Failed     int              `json:"failed"`
	DurationMs int64            `json:"duration_ms"`
	Reports    []DocumentReport `json:"reports"`
}

func setupToResponse(res setup.Result) SetupResponse {
	resp := SetupResponse{
		Index:      res.Index,
		Documents:  res.Documents,
		Chunks:     res.Chunks,
		Failed:     res.Failed,
		DurationMs: res.Duration.Milliseconds(),
		Reports:    make([]DocumentReport, len(res.Reports)),
	}
	for i, r := range res.Reports {
		resp.Reports[i] = reportToResponse(r)
	}
	return resp
}

func reportToResponse(r ingest.Report) DocumentReport {
	out := DocumentReport{
		Path:            r.Path,
		Chunks:          r.Chunks,
		EmbeddingTokens: r.EmbeddingTokens,
		DurationMs:      r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Code = errorCode(r.Err)
		var se *domain.StageError
		if errors.As(r.Err, &se) {
			out.Stage = string(se.Stage)
		}
	}
	return out
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}
