package types

import (
	"strings"
	"time"
)

// Product is a row of the Open Food Facts product dataset, trimmed to the
// columns used for nutrition lookups
type Product struct {
	Code        string       `json:"code"`
	ProductName string       `json:"product_name"`
	Brands      string       `json:"brands"`
	Nutriments  []Nutriment  `json:"nutriments"`
	Ingredients []Ingredient `json:"ingredients"`
	ServingSize string       `json:"serving_size,omitempty"`
}

// Nutriment is one entry of the product's nutriments list
type Nutriment struct {
	Name    string   `json:"name"`
	Per100g *float64 `json:"100g"`
	Serving *float64 `json:"serving"`
	Unit    *string  `json:"unit"`
	Value   *float64 `json:"value"`
}

// Ingredient is one entry of the product's parsed ingredient list
type Ingredient struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	PercentEstimate *float64 `json:"percent_estimate"`
}

// nutrimentPer100g returns the per-100g value of the named nutriment
func (p *Product) nutrimentPer100g(name string) (float64, bool) {
	for _, n := range p.Nutriments {
		if n.Name != name {
			continue
		}
		if n.Per100g != nil {
			return *n.Per100g, true
		}
		if n.Value != nil {
			return *n.Value, true
		}
	}
	return 0, false
}

// ToNutritionRecord maps the per-100g nutriments into a NutritionRecord.
// Open Food Facts reports minerals in grams; they are converted to mg.
func (p *Product) ToNutritionRecord(foodName string) NutritionRecord {
	rec := NutritionRecord{
		FoodName:    foodName,
		ServingSize: Float(100),
		ServingUnit: String("g"),
		Source:      SourceRemote,
		ResolvedAt:  time.Now().UTC(),
	}

	if kcal, ok := p.nutrimentPer100g("energy-kcal"); ok {
		rec.Calories = int(kcal + 0.5)
	} else if kj, ok := p.nutrimentPer100g("energy-kj"); ok {
		rec.Calories = int(kj/4.184 + 0.5)
	}
	rec.Protein, _ = p.nutrimentPer100g("proteins")
	rec.Carbs, _ = p.nutrimentPer100g("carbohydrates")
	rec.Fat, _ = p.nutrimentPer100g("fat")

	optional := []struct {
		name  string
		dst   **float64
		scale float64
	}{
		{"fiber", &rec.Fiber, 1},
		{"sugars", &rec.Sugar, 1},
		{"sodium", &rec.Sodium, 1000},
		{"cholesterol", &rec.Cholesterol, 1000},
		{"potassium", &rec.Potassium, 1000},
		{"calcium", &rec.Calcium, 1000},
		{"iron", &rec.Iron, 1000},
		{"vitamin-c", &rec.VitaminC, 1000},
	}
	for _, o := range optional {
		if v, ok := p.nutrimentPer100g(o.name); ok {
			*o.dst = Float(v * o.scale)
		}
	}

	return rec
}

// IngredientNames returns the lowercased ingredient texts, skipping blanks
func (p *Product) IngredientNames() []string {
	names := make([]string, 0, len(p.Ingredients))
	for _, ing := range p.Ingredients {
		text := strings.ToLower(strings.TrimSpace(ing.Text))
		if text == "" {
			continue
		}
		names = append(names, text)
	}
	return names
}
