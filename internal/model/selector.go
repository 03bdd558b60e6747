package model

import (
	"errors"
	"fmt"
)

// ErrInvalidModelSelector is returned for a model value outside the supported set.
var ErrInvalidModelSelector = errors.New("invalid model selector")

// ModelSelector identifies which detection network serves a request.
type ModelSelector string

const (
	// ModelYOLOv3Tiny is the fast, reduced network.
	ModelYOLOv3Tiny ModelSelector = "yolov3-tiny"
	// ModelYOLOv3 is the full network.
	ModelYOLOv3 ModelSelector = "yolov3"
)

// ModelSelectors lists every accepted selector.
var ModelSelectors = []ModelSelector{ModelYOLOv3Tiny, ModelYOLOv3}

// ParseModelSelector accepts exactly one of ModelSelectors.
func ParseModelSelector(value string) (ModelSelector, error) {
	for _, s := range ModelSelectors {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q (expected one of %v)", ErrInvalidModelSelector, value, ModelSelectors)
}
