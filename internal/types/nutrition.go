package types

import "time"

// Source records where a NutritionRecord came from
type Source string

const (
	SourceRemote       Source = "remote"
	SourceCache        Source = "cache"
	SourceFallback     Source = "fallback"
	SourceUserProvided Source = "user_provided"
)

// Rank orders sources by trust. A cached record may only be replaced by one
// of equal or higher rank.
func (s Source) Rank() int {
	switch s {
	case SourceUserProvided:
		return 3
	case SourceRemote:
		return 2
	case SourceCache:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the known sources
func (s Source) Valid() bool {
	switch s {
	case SourceRemote, SourceCache, SourceFallback, SourceUserProvided:
		return true
	}
	return false
}

// NutritionRecord is the nutrition profile of one food, per serving
type NutritionRecord struct {
	FoodName string  `json:"food_name"`
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`

	Fiber       *float64 `json:"fiber,omitempty"`
	Sugar       *float64 `json:"sugar,omitempty"`
	Sodium      *float64 `json:"sodium,omitempty"`
	Cholesterol *float64 `json:"cholesterol,omitempty"`
	Potassium   *float64 `json:"potassium,omitempty"`
	Calcium     *float64 `json:"calcium,omitempty"`
	Iron        *float64 `json:"iron,omitempty"`
	VitaminA    *float64 `json:"vitamin_a,omitempty"`
	VitaminC    *float64 `json:"vitamin_c,omitempty"`
	ServingSize *float64 `json:"serving_size,omitempty"`
	ServingUnit *string  `json:"serving_unit,omitempty"`

	// Ingredients are lowercased ingredient texts when the provider knows them
	Ingredients []string `json:"ingredients,omitempty"`

	Source      Source    `json:"source"`
	ResolvedAt  time.Time `json:"resolved_at"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// WithSource returns a copy of the record tagged with s
func (r NutritionRecord) WithSource(s Source) NutritionRecord {
	r.Source = s
	return r
}

// Sanitize clamps negative calories and macronutrients to zero
func (r NutritionRecord) Sanitize() NutritionRecord {
	if r.Calories < 0 {
		r.Calories = 0
	}
	r.Protein = clamp(r.Protein)
	r.Carbs = clamp(r.Carbs)
	r.Fat = clamp(r.Fat)
	for _, p := range []**float64{&r.Fiber, &r.Sugar, &r.Sodium, &r.Cholesterol, &r.Potassium, &r.Calcium, &r.Iron, &r.VitaminA, &r.VitaminC} {
		if *p != nil && **p < 0 {
			*p = Float(0)
		}
	}
	return r
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// Float returns a pointer to v. Handy for the optional nutrient fields.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s
func String(s string) *string {
	return &s
}
