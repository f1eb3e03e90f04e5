package health

import (
	"fmt"
	"strings"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// Condition is one entry of the static condition catalog
type Condition struct {
	ID          types.ConditionID
	DisplayName string
	Description string
	Severity    types.Severity
	// Restricted holds lowercase substrings that trigger a warning
	Restricted []string
	// Beneficial holds foods recommended for people with the condition
	Beneficial []string
}

// template is the fixed message/alternative pair used for name matches
type template struct {
	message     string
	alternative string
}

var conditionOrder = []types.ConditionID{
	types.ConditionDiabetes,
	types.ConditionHeartDisease,
	types.ConditionHighBloodPressure,
	types.ConditionHighCholesterol,
	types.ConditionCeliacDisease,
	types.ConditionLactoseIntolerance,
	types.ConditionNutAllergy,
	types.ConditionShellfishAllergy,
	types.ConditionGlutenSensitivity,
	types.ConditionNone,
}

var (
	heartFoods  = []string{"salmon", "oats", "berries", "nuts", "olive oil", "avocado", "leafy greens"}
	glutenFoods = []string{"rice", "quinoa", "corn", "potatoes", "gluten-free oats"}
)

var conditions = map[types.ConditionID]Condition{
	types.ConditionDiabetes: {
		ID:          types.ConditionDiabetes,
		DisplayName: "Diabetes",
		Description: "Monitor carbohydrate intake and sugar levels",
		Severity:    types.SeverityMild,
		Restricted:  []string{"sugar", "corn syrup", "honey", "agave", "maple syrup", "molasses"},
		Beneficial:  []string{"non-starchy vegetables", "whole grains", "lean protein", "nuts", "berries"},
	},
	types.ConditionHeartDisease: {
		ID:          types.ConditionHeartDisease,
		DisplayName: "Heart Disease",
		Description: "Limit saturated fats, trans fats, and sodium",
		Severity:    types.SeverityMild,
		Restricted:  []string{"saturated fat", "trans fat", "sodium", "salt", "cholesterol"},
		Beneficial:  heartFoods,
	},
	types.ConditionHighBloodPressure: {
		ID:          types.ConditionHighBloodPressure,
		DisplayName: "High Blood Pressure",
		Description: "Reduce sodium intake and maintain healthy weight",
		Severity:    types.SeverityMild,
		Restricted:  []string{"sodium", "salt", "msg", "monosodium glutamate"},
		Beneficial:  []string{"bananas", "leafy greens", "berries", "beets", "yogurt", "oats"},
	},
	types.ConditionHighCholesterol: {
		ID:          types.ConditionHighCholesterol,
		DisplayName: "High Cholesterol",
		Description: "Limit saturated fats and increase fiber intake",
		Severity:    types.SeverityMild,
		Restricted:  []string{"saturated fat", "trans fat", "cholesterol"},
		Beneficial:  heartFoods,
	},
	types.ConditionCeliacDisease: {
		ID:          types.ConditionCeliacDisease,
		DisplayName: "Celiac Disease",
		Description: "Avoid all foods containing gluten",
		Severity:    types.SeverityModerate,
		Restricted:  []string{"wheat", "barley", "rye", "malt", "brewer's yeast", "gluten"},
		Beneficial:  glutenFoods,
	},
	types.ConditionLactoseIntolerance: {
		ID:          types.ConditionLactoseIntolerance,
		DisplayName: "Lactose Intolerance",
		Description: "Avoid or limit dairy products",
		Severity:    types.SeverityModerate,
		Restricted:  []string{"milk", "cheese", "yogurt", "cream", "butter", "whey", "lactose"},
		Beneficial:  []string{"almond milk", "coconut yogurt", "tofu", "leafy greens"},
	},
	types.ConditionNutAllergy: {
		ID:          types.ConditionNutAllergy,
		DisplayName: "Nut Allergy",
		Description: "Avoid all nut products and check for cross-contamination",
		Severity:    types.SeveritySevere,
		Restricted:  []string{"peanut", "almond", "hazelnut", "walnut", "cashew", "pistachio", "pecan", "nut"},
		Beneficial:  []string{"seeds", "legumes", "lean meats", "fish", "fruits", "vegetables"},
	},
	types.ConditionShellfishAllergy: {
		ID:          types.ConditionShellfishAllergy,
		DisplayName: "Shellfish Allergy",
		Description: "Avoid all shellfish and check for cross-contamination",
		Severity:    types.SeveritySevere,
		Restricted:  []string{"shrimp", "crab", "lobster", "clam", "mussel", "oyster", "scallop", "shellfish"},
		Beneficial:  []string{"chicken", "beef", "tofu", "legumes", "eggs"},
	},
	types.ConditionGlutenSensitivity: {
		ID:          types.ConditionGlutenSensitivity,
		DisplayName: "Gluten Sensitivity",
		Description: "Limit or avoid foods containing gluten",
		Severity:    types.SeverityModerate,
		Restricted:  []string{"wheat", "barley", "rye", "malt", "gluten"},
		Beneficial:  glutenFoods,
	},
	types.ConditionNone: {
		ID:          types.ConditionNone,
		DisplayName: "None",
		Description: "No specific dietary restrictions",
		Severity:    types.SeverityNone,
	},
}

// nameTemplates are keyed by condition; %s is the food name
var nameTemplates = map[types.ConditionID]template{
	types.ConditionDiabetes: {
		"%s may contain high sugar content, which can affect blood sugar levels.",
		"Consider sugar-free alternatives or foods with lower glycemic index.",
	},
	types.ConditionHeartDisease: {
		"%s may contain saturated fats or cholesterol, which can affect heart health.",
		"Consider lean protein sources or plant-based alternatives.",
	},
	types.ConditionHighCholesterol: {
		"%s may contain saturated fats or cholesterol, which can affect heart health.",
		"Consider lean protein sources or plant-based alternatives.",
	},
	types.ConditionHighBloodPressure: {
		"%s may contain high sodium, which can raise blood pressure.",
		"Look for low-sodium or sodium-free alternatives.",
	},
	types.ConditionCeliacDisease: {
		"%s may contain gluten, which can trigger digestive issues.",
		"Consider gluten-free alternatives.",
	},
	types.ConditionGlutenSensitivity: {
		"%s may contain gluten, which can trigger digestive issues.",
		"Consider gluten-free alternatives.",
	},
	types.ConditionLactoseIntolerance: {
		"%s may contain lactose, which can cause digestive discomfort.",
		"Consider lactose-free or plant-based alternatives.",
	},
	types.ConditionNutAllergy: {
		"%s may contain nuts or nut traces, which can cause allergic reactions.",
		"Avoid this food and check for cross-contamination.",
	},
	types.ConditionShellfishAllergy: {
		"%s may contain shellfish, which can cause allergic reactions.",
		"Avoid this food and check for cross-contamination.",
	},
}

// Goal is one entry of the dietary goal catalog
type Goal struct {
	ID          types.DietaryGoal
	DisplayName string
	Description string
	Recommended []string
}

var goalOrder = []types.DietaryGoal{
	types.GoalWeightLoss,
	types.GoalWeightGain,
	types.GoalMaintenance,
	types.GoalMuscleGain,
	types.GoalHeartHealth,
	types.GoalDiabetesManagement,
	types.GoalLowCarb,
	types.GoalLowFat,
	types.GoalHighProtein,
}

var goals = map[types.DietaryGoal]Goal{
	types.GoalWeightLoss: {
		types.GoalWeightLoss, "Weight Loss", "Focus on calorie deficit with balanced nutrition",
		[]string{"vegetables", "lean protein", "fruits", "whole grains", "water"},
	},
	types.GoalWeightGain: {
		types.GoalWeightGain, "Weight Gain", "Focus on calorie surplus with nutritious foods",
		[]string{"nuts", "avocado", "olive oil", "whole milk", "protein"},
	},
	types.GoalMaintenance: {
		types.GoalMaintenance, "Maintenance", "Maintain current weight with balanced diet",
		[]string{"balanced meals", "variety", "whole foods"},
	},
	types.GoalMuscleGain: {
		types.GoalMuscleGain, "Muscle Gain", "Increase protein intake and strength training",
		[]string{"chicken breast", "eggs", "greek yogurt", "salmon", "quinoa"},
	},
	types.GoalHeartHealth: {
		types.GoalHeartHealth, "Heart Health", "Reduce sodium and saturated fats",
		[]string{"salmon", "oats", "berries", "nuts", "olive oil"},
	},
	types.GoalDiabetesManagement: {
		types.GoalDiabetesManagement, "Diabetes Management", "Monitor carbs and maintain steady blood sugar",
		[]string{"non-starchy vegetables", "whole grains", "lean protein", "healthy fats"},
	},
	types.GoalLowCarb: {
		types.GoalLowCarb, "Low Carb", "Limit carbohydrate intake",
		[]string{"eggs", "meat", "fish", "cheese", "nuts", "vegetables"},
	},
	types.GoalLowFat: {
		types.GoalLowFat, "Low Fat", "Reduce overall fat consumption",
		[]string{"fruits", "vegetables", "whole grains", "lean protein"},
	},
	types.GoalHighProtein: {
		types.GoalHighProtein, "High Protein", "Increase protein sources in diet",
		[]string{"chicken", "turkey", "fish", "eggs", "greek yogurt", "tofu"},
	},
}

// LookupCondition returns the catalog entry for id
func LookupCondition(id types.ConditionID) (Condition, bool) {
	c, ok := conditions[id]
	return c, ok
}

// Conditions lists the catalog in a stable order
func Conditions() []Condition {
	out := make([]Condition, 0, len(conditionOrder))
	for _, id := range conditionOrder {
		out = append(out, conditions[id])
	}
	return out
}

// LookupGoal returns the catalog entry for id
func LookupGoal(id types.DietaryGoal) (Goal, bool) {
	g, ok := goals[id]
	return g, ok
}

// Goals lists the goal catalog in a stable order
func Goals() []Goal {
	out := make([]Goal, 0, len(goalOrder))
	for _, id := range goalOrder {
		out = append(out, goals[id])
	}
	return out
}

// ParseCondition accepts either an ID ("nutAllergy") or a display name
// ("Nut Allergy"), case-insensitively
func ParseCondition(s string) (types.ConditionID, error) {
	key := fold(s)
	for _, id := range conditionOrder {
		if fold(string(id)) == key || fold(conditions[id].DisplayName) == key {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown health condition %q", s)
}

// ParseConditions parses every entry, skipping blanks and duplicates
func ParseConditions(values []string) ([]types.ConditionID, error) {
	out := make([]types.ConditionID, 0, len(values))
	seen := make(map[types.ConditionID]bool, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		id, err := ParseCondition(v)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// ParseGoal accepts either an ID or a display name. An empty string yields
// an empty goal.
func ParseGoal(s string) (types.DietaryGoal, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	key := fold(s)
	for _, id := range goalOrder {
		if fold(string(id)) == key || fold(goals[id].DisplayName) == key {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown dietary goal %q", s)
}

// fold drops case, spaces, dashes and underscores so "nut-allergy",
// "Nut Allergy" and "nutAllergy" compare equal
func fold(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case ' ', '-', '_', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
