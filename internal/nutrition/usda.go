package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// Provider is a remote nutrition source queried by food name. Implementations
// classify failures with ErrTransport, ErrRateLimited, ErrNoMatch,
// ErrMalformedResponse or *StatusError.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, name string) (*types.NutritionRecord, error)
}

// USDA FoodData Central nutrient ids
const (
	nutrientCalories    = 1008
	nutrientProtein     = 1003
	nutrientCarbs       = 1005
	nutrientFat         = 1004
	nutrientFiber       = 1079
	nutrientSugar       = 2000
	nutrientSodium      = 1093
	nutrientCholesterol = 1253
	nutrientPotassium   = 1092
	nutrientCalcium     = 1087
	nutrientIron        = 1089
	nutrientVitaminA    = 1106
	nutrientVitaminC    = 1162
)

type usdaSearchResponse struct {
	Foods     []usdaFood `json:"foods"`
	TotalHits int        `json:"totalHits"`
}

type usdaFood struct {
	FdcID           int            `json:"fdcId"`
	Description     string         `json:"description"`
	FoodNutrients   []usdaNutrient `json:"foodNutrients"`
	ServingSize     *float64       `json:"servingSize"`
	ServingSizeUnit *string        `json:"servingSizeUnit"`
}

type usdaNutrient struct {
	NutrientID   int     `json:"nutrientId"`
	NutrientName string  `json:"nutrientName"`
	Value        float64 `json:"value"`
	UnitName     string  `json:"unitName"`
}

// USDAClient looks foods up in the USDA FoodData Central search API
type USDAClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

var _ Provider = (*USDAClient)(nil)

// NewUSDAClient creates a client for the FoodData Central API rooted at baseURL
func NewUSDAClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *USDAClient {
	return &USDAClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger,
	}
}

// Name implements Provider
func (c *USDAClient) Name() string {
	return "usda"
}

// Lookup searches for name and parses the best match
func (c *USDAClient) Lookup(ctx context.Context, name string) (*types.NutritionRecord, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", name)
	params.Set("dataType", "Foundation,SR Legacy")
	params.Set("pageSize", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/foods/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build USDA request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("USDA request failed", "food", name, "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.log.Debug("USDA rate limited", "food", name, "duration", time.Since(start))
		return nil, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Provider: c.Name(), Code: resp.StatusCode}
	}

	var body usdaSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(body.Foods) == 0 {
		return nil, fmt.Errorf("%w: no USDA foods for %q", ErrNoMatch, name)
	}

	rec := parseUSDAFood(body.Foods[0])
	c.log.Debug("USDA lookup completed",
		"food", name,
		"match", rec.FoodName,
		"fdc_id", body.Foods[0].FdcID,
		"duration", time.Since(start))
	return &rec, nil
}

func parseUSDAFood(food usdaFood) types.NutritionRecord {
	values := make(map[int]float64, len(food.FoodNutrients))
	for _, n := range food.FoodNutrients {
		values[n.NutrientID] = n.Value
	}
	optional := func(id int) *float64 {
		if v, ok := values[id]; ok {
			return types.Float(v)
		}
		return nil
	}

	rec := types.NutritionRecord{
		FoodName:    food.Description,
		Calories:    int(math.Round(values[nutrientCalories])),
		Protein:     values[nutrientProtein],
		Carbs:       values[nutrientCarbs],
		Fat:         values[nutrientFat],
		Fiber:       optional(nutrientFiber),
		Sugar:       optional(nutrientSugar),
		Sodium:      optional(nutrientSodium),
		Cholesterol: optional(nutrientCholesterol),
		Potassium:   optional(nutrientPotassium),
		Calcium:     optional(nutrientCalcium),
		Iron:        optional(nutrientIron),
		VitaminA:    optional(nutrientVitaminA),
		VitaminC:    optional(nutrientVitaminC),
		ServingSize: types.Float(100),
		ServingUnit: types.String("g"),
		Source:      types.SourceRemote,
		ResolvedAt:  time.Now().UTC(),
	}
	if food.ServingSize != nil {
		rec.ServingSize = types.Float(*food.ServingSize)
	}
	if food.ServingSizeUnit != nil && *food.ServingSizeUnit != "" {
		rec.ServingUnit = types.String(*food.ServingSizeUnit)
	}
	return rec
}
