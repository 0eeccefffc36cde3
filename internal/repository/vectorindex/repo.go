// Package vectorindex implements domain.IndexService on Redis FT indexes.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragpipe/internal/db"
	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// DefaultKeyPrefix namespaces index names and record keys.
const DefaultKeyPrefix = "ragpipe:"

// store is the consumer interface for the Redis index (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	ListIndexes(ctx context.Context) ([]string, error)
	IndexVectorDim(ctx context.Context, name string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters. Zero keeps the server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements domain.IndexService.
// Logical index "docs" maps to FT index "ragpipe:docs:idx" over keys "ragpipe:docs:{record id}".
type Repo struct {
	store  store
	prefix string
	hnsw   HNSWConfig
}

var _ domain.IndexService = (*Repo)(nil)

// New creates a Redis-backed vector index repository.
func New(s store) *Repo {
	return &Repo{store: s, prefix: DefaultKeyPrefix}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// WithKeyPrefix overrides the key namespace.
func (r *Repo) WithKeyPrefix(prefix string) *Repo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// Ping checks Redis connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// ListIndexes returns logical names of the indexes in this namespace.
func (r *Repo) ListIndexes(ctx context.Context) ([]string, error) {
	raw, err := r.store.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		if name, ok := r.logicalName(n); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// DescribeIndex reports the vector dimension of an existing index.
func (r *Repo) DescribeIndex(ctx context.Context, name string) (domain.IndexInfo, error) {
	dim, err := r.store.IndexVectorDim(ctx, r.indexName(name))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return domain.IndexInfo{}, domain.ErrIndexNotFound
		}
		return domain.IndexInfo{}, fmt.Errorf("describe index %s: %w", name, err)
	}
	return domain.IndexInfo{Name: name, Dimension: dim, Metric: domain.MetricCosine}, nil
}

// CreateIndex runs FT.CREATE with the chunk schema and a COSINE HNSW vector field.
func (r *Repo) CreateIndex(ctx context.Context, info domain.IndexInfo) error {
	if !domain.ValidIndexName(info.Name) {
		return fmt.Errorf("index name %q: %w", info.Name, domain.ErrInvalidConfiguration)
	}
	if info.Metric != "" && info.Metric != domain.MetricCosine {
		return fmt.Errorf("metric %q: %w", info.Metric, domain.ErrInvalidConfiguration)
	}
	def, err := buildIndex(r.indexName(info.Name), r.keyPrefix(info.Name), info.Dimension, r.hnsw)
	if err != nil {
		return fmt.Errorf("build index: %w: %w", domain.ErrInvalidConfiguration, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", info.Name, err)
	}
	return nil
}

// DeleteIndex drops the index together with its records.
func (r *Repo) DeleteIndex(ctx context.Context, name string) error {
	if err := r.store.DropIndex(ctx, r.indexName(name), true); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return domain.ErrIndexNotFound
		}
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return nil
}

// Upsert writes records as hashes in one pipelined round-trip; HSET overwrites by id.
func (r *Repo) Upsert(ctx context.Context, index string, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(records))
	for i := range records {
		fields, err := recordToHash(&records[i])
		if err != nil {
			return fmt.Errorf("encode record %s: %w", records[i].ID, err)
		}
		items[i] = db.HashSetItem{Key: r.recordKey(index, records[i].ID), Fields: fields}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset %d records: %w", len(items), err)
	}
	return nil
}

// Query runs KNN and returns matches in the server's order, most similar first.
func (r *Repo) Query(ctx context.Context, index string, q domain.IndexQuery) ([]domain.Match, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:     r.indexName(index),
		VectorField:   fieldVector,
		Vector:        q.Vector,
		K:             q.TopK,
		ReturnFields:  returnFields,
		IncludeVector: q.IncludeVector,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("knn search %s: %w", index, err)
	}

	matches := make([]domain.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		m, err := matchFromHash(e, r.keyPrefix(index))
		if err != nil {
			return nil, fmt.Errorf("decode match %s: %w", e.Key, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (r *Repo) indexName(name string) string {
	return fmt.Sprintf("%s%s:idx", r.prefix, name)
}

func (r *Repo) keyPrefix(name string) string {
	return fmt.Sprintf("%s%s:", r.prefix, name)
}

func (r *Repo) recordKey(index, id string) string {
	return r.keyPrefix(index) + id
}

func (r *Repo) logicalName(ftName string) (string, bool) {
	if !strings.HasPrefix(ftName, r.prefix) || !strings.HasSuffix(ftName, ":idx") {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(ftName, r.prefix), ":idx")
	return name, name != ""
}

func buildIndex(name, prefix string, dim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		Tag(fieldSource).
		Numeric(fieldChunkIndex).
		Text(fieldText).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}
