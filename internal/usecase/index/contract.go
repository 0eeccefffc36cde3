package index

import (
	"context"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// Admin is the index lifecycle subset of domain.IndexService.
type Admin interface {
	ListIndexes(ctx context.Context) ([]string, error)
	DescribeIndex(ctx context.Context, name string) (domain.IndexInfo, error)
	CreateIndex(ctx context.Context, info domain.IndexInfo) error
	DeleteIndex(ctx context.Context, name string) error
}
