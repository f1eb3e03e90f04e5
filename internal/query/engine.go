package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// productQuery flattens the multilingual product_name list to its first text
// and serializes the nested nutriments/ingredients lists to JSON so they can
// be decoded into types.Product. Exact name matches sort first, then shorter
// names (generic foods before branded composites).
const productQuery = `
	WITH products AS (
		SELECT
			code,
			list_transform(product_name, x -> x.text)[1] AS name,
			brands,
			CAST(to_json(nutriments) AS VARCHAR) AS nutriments_json,
			CAST(to_json(ingredients) AS VARCHAR) AS ingredients_json,
			serving_size
		FROM read_parquet(?)
	)
	SELECT code, name, brands, nutriments_json, ingredients_json, serving_size
	FROM products
	WHERE name ILIKE ? ESCAPE '\' AND nutriments_json IS NOT NULL
	ORDER BY lower(name) = lower(?) DESC, length(name) ASC
	LIMIT ?`

// Engine handles DuckDB queries against the parquet dataset
type Engine struct {
	db          *sql.DB
	parquetPath string
	log         *slog.Logger
}

var _ QueryEngine = (*Engine)(nil)

// NewEngine opens an in-memory DuckDB that reads parquetPath on demand
func NewEngine(parquetPath string, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &Engine{
		db:          db,
		parquetPath: parquetPath,
		log:         logger,
	}, nil
}

// Close closes the database connection
func (e *Engine) Close() error {
	return e.db.Close()
}

// FindProduct returns the closest product for name, or nil when none match
func (e *Engine) FindProduct(ctx context.Context, name string) (*types.Product, error) {
	products, err := e.SearchProducts(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// SearchProducts returns up to limit products whose name contains name
func (e *Engine) SearchProducts(ctx context.Context, name string, limit int) ([]types.Product, error) {
	start := time.Now()
	e.log.Debug("SearchProducts starting", "name", name, "limit", limit)

	rows, err := e.db.QueryContext(ctx, productQuery, e.parquetPath, "%"+escapeLike(name)+"%", name, limit)
	if err != nil {
		e.log.Error("DuckDB query failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []types.Product
	for rows.Next() {
		p, err := e.scanProduct(rows)
		if err != nil {
			e.log.Error("Row scan failed", "error", err)
			continue
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	e.log.Debug("SearchProducts completed", "name", name, "count", len(results), "duration", time.Since(start))
	return results, nil
}

// likeEscaper makes LIKE wildcards in user input match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (e *Engine) scanProduct(rows *sql.Rows) (types.Product, error) {
	var (
		p                               types.Product
		code, name, brands, serving     sql.NullString
		nutrimentsJSON, ingredientsJSON sql.NullString
	)
	if err := rows.Scan(&code, &name, &brands, &nutrimentsJSON, &ingredientsJSON, &serving); err != nil {
		return p, err
	}

	p.Code = code.String
	p.ProductName = name.String
	p.Brands = brands.String
	p.ServingSize = serving.String

	if nutrimentsJSON.Valid && nutrimentsJSON.String != "" {
		if err := json.Unmarshal([]byte(nutrimentsJSON.String), &p.Nutriments); err != nil {
			e.log.Debug("Failed to parse nutriments JSON", "error", err, "code", p.Code)
		}
	}
	if ingredientsJSON.Valid && ingredientsJSON.String != "" {
		if err := json.Unmarshal([]byte(ingredientsJSON.String), &p.Ingredients); err != nil {
			e.log.Debug("Failed to parse ingredients JSON", "error", err, "code", p.Code)
		}
	}
	return p, nil
}

// TestConnection checks the parquet file can be read
func (e *Engine) TestConnection(ctx context.Context) error {
	start := time.Now()

	var count int64
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM read_parquet(?)`, e.parquetPath).Scan(&count); err != nil {
		e.log.Error("Connection test failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("connection test failed: %w", err)
	}

	e.log.Info("Connection test successful", "total_records", count, "duration", time.Since(start))
	return nil
}

// HealthCheck is a cheap liveness probe of the database connection
func (e *Engine) HealthCheck(ctx context.Context) error {
	var one int
	if err := e.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("duckdb health check failed: %w", err)
	}
	return nil
}
