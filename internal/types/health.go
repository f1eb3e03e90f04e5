package types

// Severity is the tier a health condition is reported at
type Severity string

const (
	SeveritySevere   Severity = "severe"
	SeverityModerate Severity = "moderate"
	SeverityMild     Severity = "mild"
	SeverityNone     Severity = "none"
)

// ConditionID identifies a health condition in the advisory catalog
type ConditionID string

const (
	ConditionDiabetes           ConditionID = "diabetes"
	ConditionHeartDisease       ConditionID = "heartDisease"
	ConditionHighBloodPressure  ConditionID = "highBloodPressure"
	ConditionHighCholesterol    ConditionID = "highCholesterol"
	ConditionCeliacDisease      ConditionID = "celiacDisease"
	ConditionLactoseIntolerance ConditionID = "lactoseIntolerance"
	ConditionNutAllergy         ConditionID = "nutAllergy"
	ConditionShellfishAllergy   ConditionID = "shellfishAllergy"
	ConditionGlutenSensitivity  ConditionID = "glutenSensitivity"
	ConditionNone               ConditionID = "none"
)

// DietaryGoal is the user's stated nutrition goal
type DietaryGoal string

const (
	GoalWeightLoss         DietaryGoal = "weightLoss"
	GoalWeightGain         DietaryGoal = "weightGain"
	GoalMaintenance        DietaryGoal = "maintenance"
	GoalMuscleGain         DietaryGoal = "muscleGain"
	GoalHeartHealth        DietaryGoal = "heartHealth"
	GoalDiabetesManagement DietaryGoal = "diabetesManagement"
	GoalLowCarb            DietaryGoal = "lowCarb"
	GoalLowFat             DietaryGoal = "lowFat"
	GoalHighProtein        DietaryGoal = "highProtein"
)

// Warning is a health advisory raised for one food and one condition
type Warning struct {
	FoodName             string      `json:"food_name"`
	Condition            ConditionID `json:"condition"`
	Severity             Severity    `json:"severity"`
	Message              string      `json:"message"`
	SuggestedAlternative *string     `json:"suggested_alternative,omitempty"`
}

// HealthProfile is the per-request view of the user's health data
type HealthProfile struct {
	Conditions []ConditionID `json:"conditions"`
	Goal       DietaryGoal   `json:"goal,omitempty"`
}
