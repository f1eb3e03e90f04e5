package nutrition

import (
	"sort"
	"strings"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// Placeholder nutrition values used when nothing else matches a name
const (
	PlaceholderCalories = 100
	PlaceholderProtein  = 5.0
	PlaceholderCarbs    = 15.0
	PlaceholderFat      = 3.0
)

type fallbackEntry struct {
	name     string
	calories int
	protein  float64
	carbs    float64
	fat      float64
	fiber    *float64
}

// approximate values per 100 g
var defaultFallbackEntries = map[string]fallbackEntry{
	// fruits
	"apple":      {"Apple", 52, 0.3, 14, 0.2, types.Float(2.4)},
	"banana":     {"Banana", 89, 1.1, 23, 0.3, types.Float(2.6)},
	"orange":     {"Orange", 47, 0.9, 12, 0.1, types.Float(2.4)},
	"strawberry": {"Strawberry", 32, 0.7, 7.7, 0.3, types.Float(2.0)},
	"blueberry":  {"Blueberry", 57, 0.7, 14.5, 0.3, types.Float(2.4)},

	// vegetables
	"carrot":   {"Carrot", 41, 0.9, 10, 0.2, types.Float(2.8)},
	"broccoli": {"Broccoli", 34, 2.8, 7, 0.4, types.Float(2.6)},
	"spinach":  {"Spinach", 23, 2.9, 3.6, 0.4, types.Float(2.2)},
	"potato":   {"Potato", 77, 2.0, 17, 0.1, types.Float(2.2)},
	"tomato":   {"Tomato", 18, 0.9, 3.9, 0.2, types.Float(1.2)},

	// proteins
	"chicken": {"Chicken Breast", 165, 31, 0, 3.6, nil},
	"beef":    {"Beef", 250, 26, 0, 17, nil},
	"salmon":  {"Salmon", 206, 22, 0, 13, nil},
	"egg":     {"Egg", 155, 13, 1.1, 11, nil},
	"tofu":    {"Tofu", 76, 8, 2, 4.2, nil},

	// grains
	"rice":   {"White Rice", 130, 2.7, 28, 0.3, types.Float(0.4)},
	"bread":  {"White Bread", 265, 9, 49, 3.2, types.Float(2.7)},
	"pasta":  {"Pasta", 158, 5.8, 31, 0.9, types.Float(1.8)},
	"oats":   {"Oats", 389, 16.9, 66, 6.9, types.Float(10.6)},
	"quinoa": {"Quinoa", 120, 4.4, 21.3, 1.9, types.Float(2.8)},

	// dairy
	"milk": {"Milk", 42, 3.4, 5, 1, nil},
}

// FallbackTable is a read-only table of approximate nutrition for common foods
type FallbackTable struct {
	entries map[string]fallbackEntry
	// keys sorted longest first, then alphabetically, for deterministic
	// substring matching
	keys []string
	now  func() time.Time
}

// NewFallbackTable returns the built-in fallback table
func NewFallbackTable() *FallbackTable {
	return newFallbackTable(defaultFallbackEntries)
}

func newFallbackTable(entries map[string]fallbackEntry) *FallbackTable {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	return &FallbackTable{entries: entries, keys: keys, now: time.Now}
}

// Lookup finds an approximate record for name. An exact normalized match wins;
// otherwise the longest key that contains, or is contained in, the name.
func (f *FallbackTable) Lookup(name string) (types.NutritionRecord, bool) {
	key := Normalize(name)
	if key == "" {
		return types.NutritionRecord{}, false
	}

	if e, ok := f.entries[key]; ok {
		return f.record(e), true
	}

	for _, k := range f.keys {
		if strings.Contains(key, k) || strings.Contains(k, key) {
			return f.record(f.entries[k]), true
		}
	}
	return types.NutritionRecord{}, false
}

// Placeholder synthesizes the nominal record returned when no source knows
// the food
func (f *FallbackTable) Placeholder(name string) types.NutritionRecord {
	return types.NutritionRecord{
		FoodName:    name,
		Calories:    PlaceholderCalories,
		Protein:     PlaceholderProtein,
		Carbs:       PlaceholderCarbs,
		Fat:         PlaceholderFat,
		ServingSize: types.Float(100),
		ServingUnit: types.String("g"),
		Source:      types.SourceFallback,
		ResolvedAt:  f.now().UTC(),
		Placeholder: true,
	}
}

// Len returns the number of table entries
func (f *FallbackTable) Len() int {
	return len(f.entries)
}

func (f *FallbackTable) record(e fallbackEntry) types.NutritionRecord {
	rec := types.NutritionRecord{
		FoodName:    e.name,
		Calories:    e.calories,
		Protein:     e.protein,
		Carbs:       e.carbs,
		Fat:         e.fat,
		ServingSize: types.Float(100),
		ServingUnit: types.String("g"),
		Source:      types.SourceFallback,
		ResolvedAt:  f.now().UTC(),
	}
	if e.fiber != nil {
		rec.Fiber = types.Float(*e.fiber)
	}
	return rec
}
