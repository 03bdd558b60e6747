package ai

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/model"
)

func TestOpenCVDetector_MissingModelFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Models:              config.DefaultCatalog(dir),
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.3,
	}
	detector := NewOpenCVDetector(cfg, logger.NewDiscard())
	defer detector.Close()

	buf, err := model.NewPixelBuffer(8, 8)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}

	_, err = detector.Detect(context.Background(), buf, model.ModelYOLOv3Tiny)
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Expected missing config error, got %v", err)
	}

	files, _ := cfg.Models.Lookup(model.ModelYOLOv3Tiny)
	if err := os.WriteFile(files.DarknetConfig, []byte("[net]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = detector.Detect(context.Background(), buf, model.ModelYOLOv3Tiny)
	if err == nil || !strings.Contains(err.Error(), "weights file not found") {
		t.Errorf("Expected missing weights error, got %v", err)
	}
}

// TestOpenCVDetector_LoadsDarknet needs the real yolov3-tiny files; point
// DETECTSERVER_MODEL_DIR at a directory holding yolov3-tiny.cfg and
// yolov3-tiny.weights to run it.
func TestOpenCVDetector_LoadsDarknet(t *testing.T) {
	dir := os.Getenv("DETECTSERVER_MODEL_DIR")
	if dir == "" {
		t.Skip("DETECTSERVER_MODEL_DIR not set")
	}
	if _, err := os.Stat(filepath.Join(dir, "yolov3-tiny.weights")); err != nil {
		t.Skipf("yolov3-tiny weights not available: %v", err)
	}

	cfg := &config.Config{
		Models:              config.DefaultCatalog(dir),
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.3,
	}
	detector := NewOpenCVDetector(cfg, logger.NewDiscard())
	defer detector.Close()

	n, err := detector.getNet(model.ModelYOLOv3Tiny)
	if err != nil {
		t.Fatalf("getNet failed: %v", err)
	}
	if len(n.outputs) == 0 {
		t.Error("Expected unconnected output layers")
	}

	buf, err := model.NewPixelBuffer(64, 48)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	detections, err := detector.Detect(context.Background(), buf, model.ModelYOLOv3Tiny)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, det := range detections {
		if err := det.Validate(buf.Bounds()); err != nil {
			t.Errorf("Invalid detection %+v: %v", det, err)
		}
	}
}
