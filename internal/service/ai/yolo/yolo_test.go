package yolo

import (
	"image"
	"os"
	"path/filepath"
	"testing"
)

func row(cx, cy, w, h, obj float32, scores ...float32) []float32 {
	return append([]float32{cx, cy, w, h, obj}, scores...)
}

func TestParseRows_ThresholdAndScale(t *testing.T) {
	var data []float32
	data = append(data, row(0.5, 0.5, 0.2, 0.4, 0.9, 0.1, 0.8, 0.0)...)
	data = append(data, row(0.1, 0.1, 0.1, 0.1, 0.9, 0.3, 0.2, 0.1)...)

	got := ParseRows(data, 8, Options{
		Scale:     Scale{X: 640, Y: 480},
		Bounds:    image.Rect(0, 0, 640, 480),
		Threshold: 0.5,
	})

	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.ClassID != 1 {
		t.Errorf("Expected class 1, got %d", c.ClassID)
	}
	want := image.Rect(256, 144, 384, 336)
	if c.Box != want {
		t.Errorf("Expected box %v, got %v", want, c.Box)
	}
	if c.Score != 0.8 {
		t.Errorf("Expected score 0.8, got %v", c.Score)
	}
}

func TestParseRows_WeightByObjectness(t *testing.T) {
	data := row(50, 50, 20, 20, 0.5, 0.9)

	opts := Options{Scale: Scale{X: 1, Y: 1}, Bounds: image.Rect(0, 0, 100, 100), Threshold: 0.5}
	if got := ParseRows(data, 6, opts); len(got) != 1 {
		t.Fatalf("Expected candidate without weighting, got %d", len(got))
	}

	opts.WeightByObjectness = true
	if got := ParseRows(data, 6, opts); len(got) != 0 {
		t.Errorf("Expected 0.45 to fall below threshold, got %v", got)
	}
}

func TestParseRows_ClampsToBounds(t *testing.T) {
	data := row(0, 0, 40, 40, 1, 1)
	got := ParseRows(data, 6, Options{Scale: Scale{X: 1, Y: 1}, Bounds: image.Rect(0, 0, 100, 100), Threshold: 0.5})

	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Box != image.Rect(0, 0, 20, 20) {
		t.Errorf("Expected clamped box, got %v", got[0].Box)
	}
}

func TestParseRows_DropsBoxesOutsideImage(t *testing.T) {
	data := row(-50, -50, 10, 10, 1, 1)
	got := ParseRows(data, 6, Options{Scale: Scale{X: 1, Y: 1}, Bounds: image.Rect(0, 0, 100, 100), Threshold: 0.5})
	if len(got) != 0 {
		t.Errorf("Expected no candidates, got %v", got)
	}
}

func TestParseRows_InvalidStride(t *testing.T) {
	if got := ParseRows([]float32{1, 2, 3, 4, 5}, 5, Options{}); got != nil {
		t.Errorf("Expected nil for stride without class scores, got %v", got)
	}
}

func TestNMS(t *testing.T) {
	candidates := []Candidate{
		{Box: image.Rect(0, 0, 100, 100), ClassID: 0, Score: 0.6},
		{Box: image.Rect(5, 5, 105, 105), ClassID: 2, Score: 0.9},
		{Box: image.Rect(300, 300, 400, 400), ClassID: 0, Score: 0.7},
	}

	kept := NMS(candidates, 0.3)

	if len(kept) != 2 {
		t.Fatalf("Expected 2 boxes after NMS, got %d", len(kept))
	}
	if kept[0].Score != 0.9 || kept[1].Score != 0.7 {
		t.Errorf("Expected descending scores 0.9, 0.7; got %v, %v", kept[0].Score, kept[1].Score)
	}
	if candidates[0].Score != 0.6 {
		t.Error("NMS must not reorder its input")
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float32
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1},
		{"disjoint", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0},
		{"half overlap", image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10), float32(50) / 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(tt.a, tt.b); got != tt.want {
				t.Errorf("IoU = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLabels(t *testing.T) {
	coco, err := LoadLabels("")
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if len(coco) != 80 || coco.Name(0) != "person" || coco.Name(16) != "dog" {
		t.Errorf("Unexpected COCO labels: %d entries", len(coco))
	}
	if coco.Name(999) != "class999" {
		t.Errorf("Unexpected placeholder %q", coco.Name(999))
	}

	path := filepath.Join(t.TempDir(), "custom.names")
	if err := os.WriteFile(path, []byte("helmet\n\nvest\n"), 0644); err != nil {
		t.Fatalf("Failed to write labels: %v", err)
	}
	custom, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if len(custom) != 2 || custom.Name(1) != "vest" {
		t.Errorf("Unexpected custom labels %v", custom)
	}

	empty := filepath.Join(t.TempDir(), "empty.names")
	os.WriteFile(empty, nil, 0644)
	if _, err := LoadLabels(empty); err == nil {
		t.Error("Expected error for empty labels file")
	}
}
