// Package qdrant implements domain.IndexService on Qdrant collections over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// client is the subset of *qdrant.Client the repository uses (ISP).
type client interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	ListCollections(ctx context.Context) ([]string, error)
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// Config holds Qdrant connection parameters.
type Config struct {
	Host   string
	Port   int
	UseTLS bool
	APIKey string
}

// NewClient dials Qdrant over gRPC.
func NewClient(cfg Config) (*qdrant.Client, error) {
	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	c, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return c, nil
}

// Repo implements domain.IndexService; each logical index is one collection.
type Repo struct {
	client client
	logger *zap.Logger
}

var _ domain.IndexService = (*Repo)(nil)

// New creates a Qdrant-backed vector index repository.
func New(c client, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{client: c, logger: logger}
}

// Ping runs the Qdrant health check.
func (r *Repo) Ping(ctx context.Context) error {
	if _, err := r.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// ListIndexes returns all collection names.
func (r *Repo) ListIndexes(ctx context.Context) ([]string, error) {
	names, err := r.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// DescribeIndex reads the vector size and distance of a collection.
func (r *Repo) DescribeIndex(ctx context.Context, name string) (domain.IndexInfo, error) {
	info, err := r.client.GetCollectionInfo(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return domain.IndexInfo{}, domain.ErrIndexNotFound
		}
		return domain.IndexInfo{}, fmt.Errorf("get collection %s: %w", name, err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return domain.IndexInfo{}, fmt.Errorf("collection %s has no single unnamed vector", name)
	}
	return domain.IndexInfo{
		Name:      name,
		Dimension: int(params.GetSize()),
		Metric:    metricFromDistance(params.GetDistance()),
	}, nil
}

// CreateIndex creates a cosine collection with the given vector size.
func (r *Repo) CreateIndex(ctx context.Context, info domain.IndexInfo) error {
	if info.Dimension <= 0 {
		return fmt.Errorf("dimension %d: %w", info.Dimension, domain.ErrInvalidConfiguration)
	}
	if info.Metric != "" && info.Metric != domain.MetricCosine {
		return fmt.Errorf("metric %q: %w", info.Metric, domain.ErrInvalidConfiguration)
	}
	err := r.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: info.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(info.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("create collection %s: %w", info.Name, err)
	}
	return nil
}

// DeleteIndex drops a collection and its points.
func (r *Repo) DeleteIndex(ctx context.Context, name string) error {
	if err := r.client.DeleteCollection(ctx, name); err != nil {
		if isNotFound(err) {
			return domain.ErrIndexNotFound
		}
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes points and waits for the write to be applied.
func (r *Repo) Upsert(ctx context.Context, index string, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(records))
	for i := range records {
		points[i] = toPoint(&records[i])
	}
	res, err := r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: index,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrIndexNotFound
		}
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	r.logger.Debug("Qdrant upsert applied",
		zap.String("collection", index),
		zap.Int("points", len(points)),
		zap.String("status", res.GetStatus().String()),
	)
	return nil
}

// Query returns the top-K points by cosine similarity, most similar first.
func (r *Repo) Query(ctx context.Context, index string, q domain.IndexQuery) ([]domain.Match, error) {
	if q.TopK <= 0 {
		return nil, errors.New("top k must be positive")
	}
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: index,
		Query:          qdrant.NewQuery(q.Vector...),
		Limit:          qdrant.PtrOf(uint64(q.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(q.IncludeVector),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrIndexNotFound
		}
		return nil, fmt.Errorf("query collection %s: %w", index, err)
	}

	matches := make([]domain.Match, len(points))
	for i, p := range points {
		matches[i] = fromScoredPoint(p)
	}
	return matches, nil
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

func metricFromDistance(d qdrant.Distance) domain.DistanceMetric {
	if d == qdrant.Distance_Cosine {
		return domain.MetricCosine
	}
	return domain.DistanceMetric(d.String())
}
