package embedding

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// fakeProvider encodes each text as {len(text), first rune} and can stall,
// fail on a marker, or return short vectors.
type fakeProvider struct {
	mu          sync.Mutex
	calls       [][]string
	jitter      time.Duration
	failOn      string
	dims        int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	tokens      int
}

func (f *fakeProvider) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := f.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0], TotalTokens: res.TotalTokens}, nil
}

func (f *fakeProvider) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.mu.Unlock()

	if f.jitter > 0 {
		select {
		case <-time.After(time.Duration(rand.Int64N(int64(f.jitter)))):
		case <-ctx.Done():
			return domain.BatchEmbeddingResult{}, ctx.Err()
		}
	}

	for _, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return domain.BatchEmbeddingResult{}, errors.New("provider exploded")
		}
	}

	dims := f.dims
	if dims == 0 {
		dims = 2
	}
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		v := make(domain.Vector, dims)
		v[0] = float32(len(t))
		if len(t) > 0 && dims > 1 {
			v[1] = float32(t[0])
		}
		out[i] = v
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: f.tokens * len(texts)}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
