package types

import "time"

// FeedbackEntry is a single user judgement about a recognition result.
// Entries are append-only.
type FeedbackEntry struct {
	ID                  string    `json:"id"`
	OriginalLabel       string    `json:"original_label"`
	CorrectedLabel      *string   `json:"corrected_label,omitempty"`
	ConfidenceAtCapture float64   `json:"confidence_at_capture"`
	Verdict             Verdict   `json:"verdict"`
	Notes               *string   `json:"notes,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}
