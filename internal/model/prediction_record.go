package model

import "time"

// Outcome values stored in the prediction journal.
const (
	OutcomeCompleted     = "completed"
	OutcomeStreamAborted = "stream_aborted"
)

// PredictionRecord is a journal entry describing how a request ended.
type PredictionRecord struct {
	ID         int64             `json:"id"`
	Filename   string            `json:"filename"`
	Model      string            `json:"model"`
	Outcome    string            `json:"outcome"`
	Detections []DetectionResult `json:"detections"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
}

// PredictionStats aggregates journal entries.
type PredictionStats struct {
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"by_outcome"`
	ByModel   map[string]int `json:"by_model"`
	ByLabel   map[string]int `json:"by_label"`
}
