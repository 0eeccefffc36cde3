package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// memIndex is an in-memory IndexWriter keyed by record id.
type memIndex struct {
	mu      sync.Mutex
	records map[string]domain.IndexRecord
	calls   int
	// failBatch reports whether a batch (by its first id) should fail.
	failBatch func(first string) bool
}

func newMemIndex() *memIndex {
	return &memIndex{records: make(map[string]domain.IndexRecord)}
}

func (m *memIndex) Upsert(_ context.Context, _ string, records []domain.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failBatch != nil && m.failBatch(records[0].ID) {
		return errors.New("index unavailable")
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *memIndex) get(id string) (domain.IndexRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

// lineSplitter emits one chunk per line so tests control chunk counts.
type lineSplitter struct{}

func (lineSplitter) Split(doc domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	offset := 0
	for _, line := range strings.SplitAfter(doc.Content, "\n") {
		if line == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Path:  doc.Path,
			Index: len(chunks),
			Text:  line,
			Span:  domain.Span{Start: offset, End: offset + len(line), LineFrom: len(chunks) + 1, LineTo: len(chunks) + 1},
		})
		offset += len(line)
	}
	return chunks
}

// fakeEmbedder returns vectors derived from text length.
type fakeEmbedder struct {
	err      error
	delay    time.Duration
	inFlight map[string]*int32
	mu       sync.Mutex
	overlap  atomic.Bool
	short    bool
}

func (f *fakeEmbedder) EmbedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Vector, error) {
	if f.inFlight != nil && len(chunks) > 0 {
		f.mu.Lock()
		c, ok := f.inFlight[chunks[0].Path]
		if !ok {
			c = new(int32)
			f.inFlight[chunks[0].Path] = c
		}
		f.mu.Unlock()
		if atomic.AddInt32(c, 1) > 1 {
			f.overlap.Store(true)
		}
		defer atomic.AddInt32(c, -1)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	domain.UsageFromContext(ctx).AddTokens(len(chunks))
	n := len(chunks)
	if f.short {
		n--
	}
	out := make([]domain.Vector, n)
	for i := range out {
		out[i] = domain.Vector{float32(len(chunks[i].Text))}
	}
	return out, nil
}

func makeChunks(path string, n int) ([]domain.Chunk, []domain.Vector) {
	chunks := make([]domain.Chunk, n)
	vectors := make([]domain.Vector, n)
	for i := range n {
		chunks[i] = domain.Chunk{Path: path, Index: i, Text: "t"}
		vectors[i] = domain.Vector{float32(i)}
	}
	return chunks, vectors
}
