package model

import (
	"errors"
	"fmt"
	"image"
)

// Detection is one object reported by a detection backend.
// Box.Min is the left/top corner and Box.Max the exclusive right/bottom corner.
type Detection struct {
	Box        image.Rectangle `json:"-"`
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
}

// Validate checks the detection against the buffer it was produced for.
func (d Detection) Validate(bounds image.Rectangle) error {
	if d.Label == "" {
		return errors.New("detection label is empty")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("detection %q confidence %v outside [0,1]", d.Label, d.Confidence)
	}
	if d.Box.Min.X >= d.Box.Max.X || d.Box.Min.Y >= d.Box.Max.Y {
		return fmt.Errorf("detection %q has degenerate box %v", d.Label, d.Box)
	}
	if !d.Box.In(bounds) {
		return fmt.Errorf("detection %q box %v outside image %v", d.Label, d.Box, bounds)
	}
	return nil
}

// DetectionResult is the wire form of a Detection.
type DetectionResult struct {
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Right      int     `json:"right"`
	Bottom     int     `json:"bottom"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result converts the detection to its wire form.
func (d Detection) Result() DetectionResult {
	return DetectionResult{
		Left:       d.Box.Min.X,
		Top:        d.Box.Min.Y,
		Right:      d.Box.Max.X,
		Bottom:     d.Box.Max.Y,
		Label:      d.Label,
		Confidence: d.Confidence,
	}
}

// Detection converts the wire form back to a Detection. The corners are
// kept as given, so an inverted box still fails Validate.
func (r DetectionResult) Detection() Detection {
	return Detection{
		Box:        image.Rectangle{Min: image.Pt(r.Left, r.Top), Max: image.Pt(r.Right, r.Bottom)},
		Label:      r.Label,
		Confidence: r.Confidence,
	}
}
