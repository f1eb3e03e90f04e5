package nutrition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/query"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// OpenFoodFactsProvider resolves nutrition from the local Open Food Facts
// parquet dataset through DuckDB
type OpenFoodFactsProvider struct {
	engine query.QueryEngine
	log    *slog.Logger
}

var _ Provider = (*OpenFoodFactsProvider)(nil)

// NewOpenFoodFactsProvider wraps a query engine as a nutrition Provider
func NewOpenFoodFactsProvider(engine query.QueryEngine, logger *slog.Logger) *OpenFoodFactsProvider {
	return &OpenFoodFactsProvider{engine: engine, log: logger}
}

// Name implements Provider
func (p *OpenFoodFactsProvider) Name() string {
	return "openfoodfacts"
}

// Lookup implements Provider. Query failures are reported as ErrTransport so
// the resolver retries them like network errors.
func (p *OpenFoodFactsProvider) Lookup(ctx context.Context, name string) (*types.NutritionRecord, error) {
	start := time.Now()

	product, err := p.engine.FindProduct(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if product == nil || len(product.Nutriments) == 0 {
		return nil, fmt.Errorf("%w: no product for %q", ErrNoMatch, name)
	}

	foodName := product.ProductName
	if foodName == "" {
		foodName = name
	}
	rec := product.ToNutritionRecord(foodName)
	if ingredients := product.IngredientNames(); len(ingredients) > 0 {
		rec.Ingredients = ingredients
	}

	p.log.Debug("Open Food Facts lookup completed",
		"food", name,
		"match", foodName,
		"code", product.Code,
		"duration", time.Since(start))
	return &rec, nil
}

// HealthCheck probes the underlying engine
func (p *OpenFoodFactsProvider) HealthCheck(ctx context.Context) error {
	return p.engine.HealthCheck(ctx)
}
