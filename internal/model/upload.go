package model

import (
	"io"
	"time"
)

// Upload is a file received from a client, consumed at most once.
type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// Prediction is an annotated artifact ready to be streamed back.
type Prediction struct {
	Filename   string
	Path       string
	Model      ModelSelector
	Width      int
	Height     int
	Detections []Detection
	Body       io.ReadCloser
	StartedAt  time.Time
}
