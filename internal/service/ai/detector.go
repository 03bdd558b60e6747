// Package ai holds the object-detection backends.
package ai

import (
	"detectserver/internal/config"
	"detectserver/internal/model"
	"detectserver/internal/service/ai/yolo"
)

// Thresholds used when filtering raw network output.
type Thresholds struct {
	Confidence float32
	NMS        float32
}

// ThresholdsFromConfig reads the thresholds configured for the process.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		Confidence: float32(cfg.ConfidenceThreshold),
		NMS:        float32(cfg.NMSThreshold),
	}
}

// toDetections maps NMS survivors to labelled detections.
func toDetections(candidates []yolo.Candidate, labels yolo.Labels) []model.Detection {
	detections := make([]model.Detection, 0, len(candidates))
	for _, c := range candidates {
		detections = append(detections, model.Detection{
			Box:        c.Box,
			Label:      labels.Name(c.ClassID),
			Confidence: float64(c.Score),
		})
	}
	return detections
}
