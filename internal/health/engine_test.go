package health

import (
	"io"
	"sync"
	"testing"

	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	return NewEngine(config.NewTestLogger(io.Discard, "debug"))
}

func TestEvaluate_AlmondCroissantNutAllergy(t *testing.T) {
	warnings := testEngine().Evaluate("Almond Croissant", nil, []types.ConditionID{types.ConditionNutAllergy})

	require.Len(t, warnings, 1)
	w := warnings[0]
	assert.Equal(t, types.ConditionNutAllergy, w.Condition)
	assert.Equal(t, types.SeveritySevere, w.Severity)
	assert.Equal(t, "Almond Croissant", w.FoodName)
	assert.Equal(t, "Almond Croissant may contain nuts or nut traces, which can cause allergic reactions.", w.Message)
	require.NotNil(t, w.SuggestedAlternative)
	assert.Equal(t, "Avoid this food and check for cross-contamination.", *w.SuggestedAlternative)
}

func TestEvaluate_NameAndIngredientMatchYieldOneWarning(t *testing.T) {
	warnings := testEngine().Evaluate(
		"Hazelnut Spread",
		[]string{"sugar", "hazelnuts", "peanut oil"},
		[]types.ConditionID{types.ConditionNutAllergy},
	)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "may contain nuts")
}

func TestEvaluate_IngredientOnlyMatch(t *testing.T) {
	tests := []struct {
		name        string
		condition   types.ConditionID
		ingredients []string
		message     string
		alternative string
	}{
		{
			name:        "severe condition avoids completely",
			condition:   types.ConditionNutAllergy,
			ingredients: []string{"cocoa", "Hazelnuts"},
			message:     "Chocolate Spread contains Hazelnuts, which may not be suitable for your Nut Allergy condition.",
			alternative: "This food should be avoided completely.",
		},
		{
			name:        "moderate condition suggests alternative",
			condition:   types.ConditionLactoseIntolerance,
			ingredients: []string{"cocoa", "skimmed milk powder"},
			message:     "Chocolate Spread contains skimmed milk powder, which may not be suitable for your Lactose Intolerance condition.",
			alternative: "Consider alternatives without skimmed milk powder.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := testEngine().Evaluate("Chocolate Spread", tt.ingredients, []types.ConditionID{tt.condition})
			require.Len(t, warnings, 1)
			assert.Equal(t, tt.message, warnings[0].Message)
			require.NotNil(t, warnings[0].SuggestedAlternative)
			assert.Equal(t, tt.alternative, *warnings[0].SuggestedAlternative)
		})
	}
}

func TestEvaluate_Conditions(t *testing.T) {
	tests := []struct {
		name       string
		food       string
		conditions []types.ConditionID
		expected   []types.ConditionID
	}{
		{"no conditions", "Sugar Cookie", nil, []types.ConditionID{}},
		{"none is skipped", "Sugar Cookie", []types.ConditionID{types.ConditionNone}, []types.ConditionID{}},
		{"no match", "Apple", []types.ConditionID{types.ConditionDiabetes, types.ConditionNutAllergy}, []types.ConditionID{}},
		{"one per condition", "Salted Peanut Butter", []types.ConditionID{types.ConditionNutAllergy, types.ConditionHighBloodPressure, types.ConditionLactoseIntolerance}, []types.ConditionID{types.ConditionNutAllergy, types.ConditionHighBloodPressure, types.ConditionLactoseIntolerance}},
		{"duplicate condition", "Shrimp Cocktail", []types.ConditionID{types.ConditionShellfishAllergy, types.ConditionShellfishAllergy}, []types.ConditionID{types.ConditionShellfishAllergy}},
		{"unknown condition ignored", "Wheat Bread", []types.ConditionID{"vampirism", types.ConditionCeliacDisease}, []types.ConditionID{types.ConditionCeliacDisease}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := testEngine().Evaluate(tt.food, nil, tt.conditions)
			require.NotNil(t, warnings)

			got := make([]types.ConditionID, 0, len(warnings))
			for _, w := range warnings {
				got = append(got, w.Condition)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluate_SeverityFollowsCatalog(t *testing.T) {
	engine := testEngine()
	for _, cond := range Conditions() {
		if cond.ID == types.ConditionNone {
			assert.Empty(t, cond.Restricted)
			continue
		}
		warnings := engine.Evaluate(cond.Restricted[0], nil, []types.ConditionID{cond.ID})
		require.Len(t, warnings, 1, cond.ID)
		assert.Equal(t, cond.Severity, warnings[0].Severity, cond.ID)
	}
}

func TestEvaluate_ConcurrentUse(t *testing.T) {
	engine := testEngine()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			warnings := engine.Evaluate("Peanut Butter", []string{"peanuts", "salt"}, []types.ConditionID{types.ConditionNutAllergy, types.ConditionHeartDisease})
			assert.Len(t, warnings, 2)
		}()
	}
	wg.Wait()
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name        string
		food        string
		profile     types.HealthProfile
		recommended bool
		reason      string
	}{
		{
			name:        "goal food",
			food:        "Grilled Salmon",
			profile:     types.HealthProfile{Goal: types.GoalHeartHealth},
			recommended: true,
			reason:      "Supports your Heart Health goal",
		},
		{
			name:        "condition food",
			food:        "Brown Rice",
			profile:     types.HealthProfile{Goal: types.GoalMaintenance, Conditions: []types.ConditionID{types.ConditionCeliacDisease}},
			recommended: true,
			reason:      "Beneficial for Celiac Disease",
		},
		{
			name:        "generally nutritious with known benefit",
			food:        "Avocado",
			profile:     types.HealthProfile{},
			recommended: true,
			reason:      "Contains healthy fats, fiber, potassium, and various nutrients",
		},
		{
			name:        "generally nutritious with default benefit",
			food:        "Lentil Soup",
			profile:     types.HealthProfile{},
			recommended: true,
			reason:      defaultBenefit,
		},
		{
			name:        "not recommended",
			food:        "Cheeseburger",
			profile:     types.HealthProfile{Goal: types.GoalWeightLoss},
			recommended: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := testEngine().Recommend(tt.food, tt.profile)
			assert.Equal(t, tt.recommended, ok)
			if !tt.recommended {
				assert.Nil(t, reason)
				return
			}
			require.NotNil(t, reason)
			assert.Equal(t, tt.reason, *reason)
		})
	}
}

func TestParseConditions(t *testing.T) {
	ids, err := ParseConditions([]string{"nutAllergy", "Celiac Disease", "", "nut-allergy", "HIGH_BLOOD_PRESSURE"})
	require.NoError(t, err)
	assert.Equal(t, []types.ConditionID{types.ConditionNutAllergy, types.ConditionCeliacDisease, types.ConditionHighBloodPressure}, ids)

	_, err = ParseConditions([]string{"lycanthropy"})
	assert.Error(t, err)
}

func TestParseGoal(t *testing.T) {
	tests := []struct {
		input    string
		expected types.DietaryGoal
		wantErr  bool
	}{
		{"", "", false},
		{"weightLoss", types.GoalWeightLoss, false},
		{"High Protein", types.GoalHighProtein, false},
		{"low-carb", types.GoalLowCarb, false},
		{"bulking", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseGoal(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCatalogs(t *testing.T) {
	assert.Len(t, Conditions(), 10)
	assert.Len(t, Goals(), 9)

	c, ok := LookupCondition(types.ConditionShellfishAllergy)
	require.True(t, ok)
	assert.Equal(t, "Shellfish Allergy", c.DisplayName)

	g, ok := LookupGoal(types.GoalMuscleGain)
	require.True(t, ok)
	assert.Contains(t, g.Recommended, "greek yogurt")
}
