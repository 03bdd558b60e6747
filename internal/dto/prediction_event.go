package dto

import (
	"encoding/json"
	"time"

	"detectserver/internal/model"
)

// PredictionEvent is pushed to live viewers after a prediction completes.
type PredictionEvent struct {
	Filename   string                  `json:"filename"`
	Model      string                  `json:"model"`
	Width      int                     `json:"width"`
	Height     int                     `json:"height"`
	Detections []model.DetectionResult `json:"detections"`
	Duration   time.Duration           `json:"-"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// MarshalJSON reports the duration in milliseconds and the timestamp in RFC 3339.
func (e PredictionEvent) MarshalJSON() ([]byte, error) {
	type Alias PredictionEvent
	return json.Marshal(&struct {
		DurationMS int64  `json:"durationMs"`
		CreatedAt  string `json:"createdAt"`
		Alias
	}{
		DurationMS: e.Duration.Milliseconds(),
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		Alias:      (Alias)(e),
	})
}
