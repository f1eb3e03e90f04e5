package health

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// generallyNutritious marks a food as recommended regardless of profile
var generallyNutritious = []string{
	"vegetable", "fruit", "lean protein", "fish", "whole grain", "legume", "bean",
	"lentil", "quinoa", "oat", "berry", "nut", "seed", "olive oil", "avocado",
}

var benefits = map[string]string{
	"salmon":         "Rich in omega-3 fatty acids, high-quality protein, and vitamin D",
	"chicken":        "Excellent source of lean protein, low in fat, contains B vitamins",
	"chicken breast": "Excellent source of lean protein, low in fat, contains B vitamins",
	"eggs":           "Complete protein with all essential amino acids, vitamin D, and choline",
	"oats":           "High in soluble fiber, helps lower cholesterol, provides steady energy",
	"oatmeal":        "High in soluble fiber, helps lower cholesterol, provides steady energy",
	"berries":        "High in antioxidants, fiber, and vitamin C, low in calories",
	"blueberry":      "High in antioxidants, fiber, and vitamin C, low in calories",
	"strawberry":     "High in antioxidants, fiber, and vitamin C, low in calories",
	"leafy greens":   "Rich in vitamins A, C, K, folate, iron, and calcium",
	"spinach":        "Rich in vitamins A, C, K, folate, iron, and calcium",
	"kale":           "Rich in vitamins A, C, K, folate, iron, and calcium",
	"nuts":           "Good source of healthy fats, protein, fiber, and various minerals",
	"almonds":        "Good source of healthy fats, protein, fiber, and various minerals",
	"walnuts":        "Good source of healthy fats, protein, fiber, and various minerals",
	"yogurt":         "High in protein, calcium, probiotics for gut health",
	"greek yogurt":   "High in protein, calcium, probiotics for gut health",
	"olive oil":      "Rich in monounsaturated fats and antioxidants",
	"avocado":        "Contains healthy fats, fiber, potassium, and various nutrients",
	"quinoa":         "Complete protein, rich in fiber, magnesium, and various nutrients",
	"sweet potato":   "High in vitamin A, fiber, and potassium",
	"lean protein":   "Essential for muscle maintenance and repair, helps with satiety",
	"whole grains":   "Provides fiber, B vitamins, and sustained energy",
	"fruits":         "Rich in vitamins, minerals, antioxidants, and fiber",
	"vegetables":     "Low in calories, high in fiber, vitamins, and minerals",
}

const defaultBenefit = "Provides essential nutrients as part of a balanced diet"

// Engine evaluates foods against a health profile. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	log *slog.Logger
}

// NewEngine creates an advisory engine
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{log: logger}
}

// Evaluate returns the warnings foodName (and optionally its ingredients)
// raises for conditions. At most one warning is produced per condition and
// the result is never nil.
func (e *Engine) Evaluate(foodName string, ingredients []string, conds []types.ConditionID) []types.Warning {
	warnings := make([]types.Warning, 0)
	name := strings.ToLower(foodName)
	seen := make(map[types.ConditionID]bool, len(conds))

	for _, id := range conds {
		if seen[id] {
			continue
		}
		seen[id] = true

		cond, ok := conditions[id]
		if !ok {
			e.log.Debug("Skipping unknown health condition", "condition", id)
			continue
		}
		if id == types.ConditionNone {
			continue
		}

		if firstMatch(name, cond.Restricted) != "" {
			warnings = append(warnings, nameWarning(foodName, cond))
			continue
		}

		for _, ingredient := range ingredients {
			if firstMatch(strings.ToLower(ingredient), cond.Restricted) == "" {
				continue
			}
			warnings = append(warnings, ingredientWarning(foodName, ingredient, cond))
			break
		}
	}

	if len(warnings) > 0 {
		e.log.Debug("Health warnings raised", "food", foodName, "count", len(warnings))
	}
	return warnings
}

// Recommend reports whether foodName suits the profile and why. Goal foods are
// checked first, then foods beneficial for the profile's conditions, then a
// list of generally nutritious foods.
func (e *Engine) Recommend(foodName string, profile types.HealthProfile) (bool, *string) {
	name := strings.ToLower(foodName)

	if goal, ok := goals[profile.Goal]; ok {
		if firstMatch(name, goal.Recommended) != "" {
			return true, types.String(fmt.Sprintf("Supports your %s goal", goal.DisplayName))
		}
	}

	for _, id := range profile.Conditions {
		cond, ok := conditions[id]
		if !ok || id == types.ConditionNone {
			continue
		}
		if firstMatch(name, cond.Beneficial) != "" {
			return true, types.String(fmt.Sprintf("Beneficial for %s", cond.DisplayName))
		}
	}

	if firstMatch(name, generallyNutritious) != "" {
		return true, types.String(Benefits(foodName))
	}
	return false, nil
}

// Benefits describes the nutritional value of a known food
func Benefits(foodName string) string {
	if b, ok := benefits[strings.ToLower(strings.TrimSpace(foodName))]; ok {
		return b
	}
	return defaultBenefit
}

func nameWarning(foodName string, cond Condition) types.Warning {
	w := types.Warning{
		FoodName:  foodName,
		Condition: cond.ID,
		Severity:  cond.Severity,
		Message:   fmt.Sprintf("%s may not be suitable for your dietary needs.", foodName),
	}
	if tmpl, ok := nameTemplates[cond.ID]; ok {
		w.Message = fmt.Sprintf(tmpl.message, foodName)
		w.SuggestedAlternative = types.String(tmpl.alternative)
	}
	return w
}

func ingredientWarning(foodName, ingredient string, cond Condition) types.Warning {
	alt := fmt.Sprintf("Consider alternatives without %s.", ingredient)
	if cond.Severity == types.SeveritySevere {
		alt = "This food should be avoided completely."
	}
	return types.Warning{
		FoodName:             foodName,
		Condition:            cond.ID,
		Severity:             cond.Severity,
		Message:              fmt.Sprintf("%s contains %s, which may not be suitable for your %s condition.", foodName, ingredient, cond.DisplayName),
		SuggestedAlternative: types.String(alt),
	}
}

// firstMatch returns the first term contained in s
func firstMatch(s string, terms []string) string {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return t
		}
	}
	return ""
}
