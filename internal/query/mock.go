package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// MockEngine is an in-memory QueryEngine for tests and QUERY_ENGINE_MOCK mode
type MockEngine struct {
	mu       sync.RWMutex
	products []types.Product
	err      error
	calls    int
	log      *slog.Logger
}

var _ QueryEngine = (*MockEngine)(nil)

// NewMockEngine creates a mock engine seeded with a couple of products
func NewMockEngine(logger *slog.Logger) *MockEngine {
	return &MockEngine{
		log: logger,
		products: []types.Product{
			{
				Code:        "3017620422003",
				ProductName: "Nutella",
				Brands:      "Ferrero",
				Nutriments: []types.Nutriment{
					{Name: "energy-kcal", Per100g: types.Float(539)},
					{Name: "fat", Per100g: types.Float(30.9)},
					{Name: "carbohydrates", Per100g: types.Float(57.5)},
					{Name: "sugars", Per100g: types.Float(56.3)},
					{Name: "proteins", Per100g: types.Float(6.3)},
					{Name: "sodium", Per100g: types.Float(0.0428)},
				},
				Ingredients: []types.Ingredient{
					{ID: "en:sugar", Text: "sugar"},
					{ID: "en:hazelnut", Text: "hazelnuts"},
					{ID: "en:skimmed-milk-powder", Text: "skimmed milk powder"},
				},
			},
			{
				Code:        "0000000000017",
				ProductName: "Banana",
				Nutriments: []types.Nutriment{
					{Name: "energy-kcal", Per100g: types.Float(89)},
					{Name: "carbohydrates", Per100g: types.Float(22.8)},
					{Name: "proteins", Per100g: types.Float(1.1)},
					{Name: "fat", Per100g: types.Float(0.3)},
				},
			},
		},
	}
}

// FindProduct returns the first product whose name contains name
func (m *MockEngine) FindProduct(ctx context.Context, name string) (*types.Product, error) {
	products, err := m.SearchProducts(ctx, name, 1)
	if err != nil || len(products) == 0 {
		return nil, err
	}
	return &products[0], nil
}

// SearchProducts returns products whose name contains name (case-insensitive)
func (m *MockEngine) SearchProducts(ctx context.Context, name string, limit int) ([]types.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	var results []types.Product
	for _, product := range m.products {
		if !strings.Contains(strings.ToLower(product.ProductName), strings.ToLower(name)) {
			continue
		}
		results = append(results, product)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// TestConnection returns the configured error
func (m *MockEngine) TestConnection(ctx context.Context) error {
	return m.HealthCheck(ctx)
}

// HealthCheck returns the configured error
func (m *MockEngine) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Close is a no-op
func (m *MockEngine) Close() error {
	return nil
}

// SetError sets an error to be returned by every call
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetProducts replaces the mock's products
func (m *MockEngine) SetProducts(products []types.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = products
}

// Calls returns how many searches have been made
func (m *MockEngine) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
