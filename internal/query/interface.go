package query

import (
	"context"
	"log/slog"
	"os"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// QueryEngine looks products up in the Open Food Facts dataset
type QueryEngine interface {
	// FindProduct returns the best product match for a food name, or nil when
	// nothing matches
	FindProduct(ctx context.Context, name string) (*types.Product, error)
	SearchProducts(ctx context.Context, name string, limit int) ([]types.Product, error)
	TestConnection(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// NewQueryEngine creates a DuckDB engine over parquetPath, or a mock engine
// when QUERY_ENGINE_MOCK=true
func NewQueryEngine(parquetPath string, logger *slog.Logger) (QueryEngine, error) {
	if os.Getenv("QUERY_ENGINE_MOCK") == "true" {
		return NewMockEngine(logger), nil
	}
	return NewEngine(parquetPath, logger)
}
