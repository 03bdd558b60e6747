package service

import (
	"context"
	"fmt"

	"detectserver/internal/model"
)

// Detector is the external detection capability.
type Detector interface {
	Detect(ctx context.Context, buf *model.PixelBuffer, selector model.ModelSelector) ([]model.Detection, error)
}

// Invoker makes exactly one Detector call per request and checks its result.
type Invoker struct {
	detector Detector
}

func NewInvoker(detector Detector) *Invoker {
	return &Invoker{detector: detector}
}

// Invoke returns the detections in backend order. Backend errors and
// detections that break the Detection invariants wrap ErrModelInvocation.
func (i *Invoker) Invoke(ctx context.Context, buf *model.PixelBuffer, selector model.ModelSelector) ([]model.Detection, error) {
	detections, err := i.detector.Detect(ctx, buf, selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelInvocation, selector, err)
	}

	bounds := buf.Bounds()
	for n, det := range detections {
		if err := det.Validate(bounds); err != nil {
			return nil, fmt.Errorf("%w: %s returned invalid detection %d: %v", ErrModelInvocation, selector, n, err)
		}
	}
	if detections == nil {
		detections = []model.Detection{}
	}
	return detections, nil
}
