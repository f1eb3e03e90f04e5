package types

// Candidate is one label/confidence pair produced by a classifier
type Candidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// RecognizedFood is the final, enriched result for one candidate
type RecognizedFood struct {
	Name                 string          `json:"name"`
	Confidence           float64         `json:"confidence"`
	Nutrition            NutritionRecord `json:"nutrition"`
	Warnings             []Warning       `json:"warnings"`
	IsRecommended        bool            `json:"is_recommended"`
	RecommendationReason *string         `json:"recommendation_reason,omitempty"`
	// OriginalLabel is the classifier label before cleanup and correction
	OriginalLabel string `json:"original_label,omitempty"`
}

// Verdict is the user's judgement of a recognition result
type Verdict string

const (
	VerdictCorrect          Verdict = "correct"
	VerdictIncorrect        Verdict = "incorrect"
	VerdictPartiallyCorrect Verdict = "partially_correct"
)

// Valid reports whether v is a known verdict
func (v Verdict) Valid() bool {
	switch v {
	case VerdictCorrect, VerdictIncorrect, VerdictPartiallyCorrect:
		return true
	}
	return false
}
