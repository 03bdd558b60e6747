package model

import (
	"encoding/json"
	"time"
)

// LastUpdatedLayout renders LastUpdated without a zone suffix.
const LastUpdatedLayout = "2006-01-02T15:04:05"

// ModelMetadata describes the deployed detection model.
type ModelMetadata struct {
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	Trainable   bool      `json:"trainable"`
	LastUpdated time.Time `json:"last_updated"`
	Tags        []string  `json:"tags"`
}

// MarshalJSON writes last_updated as a naive local timestamp.
func (m ModelMetadata) MarshalJSON() ([]byte, error) {
	type Alias ModelMetadata
	return json.Marshal(&struct {
		Alias
		LastUpdated string `json:"last_updated"`
	}{
		Alias:       Alias(m),
		LastUpdated: m.LastUpdated.Format(LastUpdatedLayout),
	})
}

// Copy returns a value that shares no memory with m.
func (m ModelMetadata) Copy() ModelMetadata {
	tags := make([]string, len(m.Tags))
	copy(tags, m.Tags)
	m.Tags = tags
	return m
}
