package remote

import (
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"detectserver/internal/model"
)

func testBuffer(t *testing.T) *model.PixelBuffer {
	t.Helper()
	buf, err := model.NewPixelBuffer(32, 24)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	return buf
}

func TestClient_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.FormValue("model"); got != "yolov3-tiny" {
			t.Errorf("Expected model field yolov3-tiny, got %q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file part: %v", err)
			return
		}
		defer file.Close()
		img, err := jpeg.Decode(file)
		if err != nil {
			t.Errorf("File part is not a JPEG: %v", err)
			return
		}
		if img.Bounds() != image.Rect(0, 0, 32, 24) {
			t.Errorf("Unexpected uploaded size %v", img.Bounds())
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"detections": []model.DetectionResult{
				{Left: 1, Top: 2, Right: 10, Bottom: 12, Label: "cat", Confidence: 0.9},
				{Left: 5, Top: 5, Right: 20, Bottom: 20, Label: "dog", Confidence: 0.6},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	detections, err := client.Detect(context.Background(), testBuffer(t), model.ModelYOLOv3Tiny)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(detections) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(detections))
	}
	if detections[0].Label != "cat" || detections[0].Box != image.Rect(1, 2, 10, 12) {
		t.Errorf("Unexpected first detection %+v", detections[0])
	}
	if detections[1].Label != "dog" {
		t.Errorf("Order not preserved: %+v", detections[1])
	}
}

func TestClient_DetectBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.Detect(context.Background(), testBuffer(t), model.ModelYOLOv3)
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestClient_DetectMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	if _, err := client.Detect(context.Background(), testBuffer(t), model.ModelYOLOv3); err == nil {
		t.Error("Expected decode error")
	}
}

func TestClient_DetectCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":[]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, server.Client())
	if _, err := client.Detect(ctx, testBuffer(t), model.ModelYOLOv3); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestClient_CheckHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	if err := client.CheckHealth(context.Background()); err != nil {
		t.Errorf("Expected healthy service, got %v", err)
	}

	healthy = false
	if err := client.CheckHealth(context.Background()); err == nil {
		t.Error("Expected unhealthy error")
	}
}
