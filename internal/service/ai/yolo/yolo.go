// Package yolo turns raw YOLO output rows into detections.
//
// A row is [cx, cy, w, h, objectness, class scores...]. Darknet nets emit
// coordinates relative to the image (0..1); ONNX exports usually emit them
// in input-tensor pixels. Scale handles both.
package yolo

import (
	"image"
	"math"
	"sort"
)

// Candidate is a scored box before non-maximum suppression.
type Candidate struct {
	Box     image.Rectangle
	ClassID int
	Score   float32
}

// Scale converts row coordinates to image pixels.
type Scale struct {
	X, Y float32
}

// Options controls ParseRows.
type Options struct {
	Scale     Scale
	Bounds    image.Rectangle
	Threshold float32
	// WeightByObjectness multiplies class scores by the objectness column.
	// OpenCV's Darknet importer already folds objectness into the class
	// scores; raw ONNX exports do not.
	WeightByObjectness bool
}

// ParseRows reads rows of the given stride from a flat slice, keeping those
// whose best class score reaches the threshold. Boxes are clamped to the
// bounds; boxes that collapse after clamping are discarded.
func ParseRows(data []float32, stride int, opts Options) []Candidate {
	if stride <= 5 {
		return nil
	}

	var candidates []Candidate
	for off := 0; off+stride <= len(data); off += stride {
		row := data[off : off+stride]

		classID, score := argmax(row[5:])
		if opts.WeightByObjectness {
			score *= row[4]
		}
		if score <= 0 || score < opts.Threshold {
			continue
		}

		cx, cy := row[0]*opts.Scale.X, row[1]*opts.Scale.Y
		w, h := row[2]*opts.Scale.X, row[3]*opts.Scale.Y
		box := image.Rect(
			int(math.Round(float64(cx-w/2))),
			int(math.Round(float64(cy-h/2))),
			int(math.Round(float64(cx+w/2))),
			int(math.Round(float64(cy+h/2))),
		).Intersect(opts.Bounds)
		if box.Empty() {
			continue
		}

		if score > 1 {
			score = 1
		}
		candidates = append(candidates, Candidate{Box: box, ClassID: classID, Score: score})
	}
	return candidates
}

func argmax(scores []float32) (int, float32) {
	idx, best := 0, float32(0)
	for i, s := range scores {
		if s > best {
			idx, best = i, s
		}
	}
	return idx, best
}

// NMS performs class-agnostic non-maximum suppression and returns the kept
// candidates ordered by descending score.
func NMS(candidates []Candidate, iouThreshold float32) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]Candidate, 0, len(sorted))
	for _, c := range sorted {
		suppressed := false
		for _, k := range kept {
			if IoU(c.Box, k.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

// IoU is the intersection-over-union of two rectangles.
func IoU(a, b image.Rectangle) float32 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float32(inter.Dx() * inter.Dy())
	union := float32(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}
