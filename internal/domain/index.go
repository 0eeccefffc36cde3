package domain

import "context"

// DistanceMetric is the similarity function an index is built with.
type DistanceMetric string

const (
	// MetricCosine ranks by cosine similarity. Only metric used by the pipeline.
	MetricCosine DistanceMetric = "cosine"
)

// IndexInfo describes an index owned by the external vector service.
type IndexInfo struct {
	Name      string
	Dimension int
	Metric    DistanceMetric
}

// RecordMetadata is stored alongside every vector.
type RecordMetadata struct {
	Source     string
	Text       string
	ChunkIndex int
	Span       Span
	Extra      map[string]string
}

// IndexRecord is one upsertable vector. ID is RecordID(Source, ChunkIndex).
type IndexRecord struct {
	ID       string
	Vector   Vector
	Metadata RecordMetadata
}

// IndexQuery is a top-K similarity request.
type IndexQuery struct {
	Vector        Vector
	TopK          int
	IncludeVector bool
}

// Match is a single retrieved record. Higher Score means more similar.
type Match struct {
	ID       string
	Score    float64
	Metadata RecordMetadata
	Vector   Vector
}

// IndexService is the contract every vector index backend implements.
type IndexService interface {
	ListIndexes(ctx context.Context) ([]string, error)
	// DescribeIndex returns ErrIndexNotFound when the index does not exist.
	DescribeIndex(ctx context.Context, name string) (IndexInfo, error)
	CreateIndex(ctx context.Context, info IndexInfo) error
	DeleteIndex(ctx context.Context, name string) error
	Upsert(ctx context.Context, index string, records []IndexRecord) error
	Query(ctx context.Context, index string, q IndexQuery) ([]Match, error)
	Ping(ctx context.Context) error
}

// Answer is the outcome of a retrieval-augmented question.
// NoContext is set when the index returned nothing and the model was not asked.
type Answer struct {
	Question  string
	Text      string
	NoContext bool
	Sources   []Match
}

// ValidIndexName reports whether name consists only of ASCII letters, digits,
// '_' and '-'. Backends namespace record keys with ':', so it is not allowed.
func ValidIndexName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return false
		}
	}
	return true
}
