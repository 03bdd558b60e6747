package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/service/storage"
)

// ========================================
// Fakes
// ========================================

type fakeDetector struct {
	mu         sync.Mutex
	calls      int
	selectors  []model.ModelSelector
	detections []model.Detection
	err        error
}

func (d *fakeDetector) Detect(ctx context.Context, buf *model.PixelBuffer, selector model.ModelSelector) ([]model.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.selectors = append(d.selectors, selector)
	return d.detections, d.err
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// countingReader records how many bytes were pulled from it.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

type memoryJournal struct {
	mu      sync.Mutex
	records []model.PredictionRecord
}

func (j *memoryJournal) Insert(rec *model.PredictionRecord) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec.ID = int64(len(j.records) + 1)
	j.records = append(j.records, *rec)
	return rec.ID, nil
}

func (j *memoryJournal) GetByID(id int64) (*model.PredictionRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if id < 1 || int(id) > len(j.records) {
		return nil, nil
	}
	rec := j.records[id-1]
	return &rec, nil
}

func (j *memoryJournal) GetRecent(limit int) ([]model.PredictionRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []model.PredictionRecord
	for i := len(j.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.records[i])
	}
	return out, nil
}

func (j *memoryJournal) GetStats() (*model.PredictionStats, error) {
	return &model.PredictionStats{}, nil
}

func (j *memoryJournal) DeleteAll() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = nil
	return nil
}

func (j *memoryJournal) outcomes() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, rec := range j.records {
		out = append(out, rec.Outcome)
	}
	return out
}

type recordingViewers struct {
	mu       sync.Mutex
	messages [][]byte
}

func (v *recordingViewers) Broadcast(message []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, message)
}

type countingRecorder struct {
	mu          sync.Mutex
	predictions map[string]int
	stages      map[string]int
	labels      map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		predictions: make(map[string]int),
		stages:      make(map[string]int),
		labels:      make(map[string]int),
	}
}

func (r *countingRecorder) ObservePrediction(model, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.predictions[model+"/"+outcome]++
}

func (r *countingRecorder) ObserveStage(stage string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage]++
}

func (r *countingRecorder) ObserveDetection(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[label]++
}

// ========================================
// Fixtures
// ========================================

type fixture struct {
	manager  *Manager
	detector *fakeDetector
	journal  *memoryJournal
	viewers  *recordingViewers
	recorder *countingRecorder
	dir      string
}

func newFixture(t *testing.T, detector *fakeDetector) *fixture {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "images_uploaded")
	return newFixtureWithDir(t, detector, dir)
}

func newFixtureWithDir(t *testing.T, detector *fakeDetector, dir string) *fixture {
	t.Helper()
	if detector == nil {
		detector = &fakeDetector{}
	}
	f := &fixture{
		detector: detector,
		journal:  &memoryJournal{},
		viewers:  &recordingViewers{},
		recorder: newCountingRecorder(),
		dir:      dir,
	}
	store := storage.NewArtifactStore(&config.Config{ArtifactDirectory: dir}, logger.NewDiscard())
	f.manager = NewManager(detector, store, logger.NewDiscard(),
		WithJournal(f.journal),
		WithViewers(f.viewers),
		WithRecorder(f.recorder),
	)
	return f
}

func flat(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("Failed to encode JPEG: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func upload(name string, content []byte) model.Upload {
	return model.Upload{Filename: name, Content: bytes.NewReader(content)}
}

func readAll(t *testing.T, p *model.Prediction) []byte {
	t.Helper()
	data, err := io.ReadAll(p.Body)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	return data
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
