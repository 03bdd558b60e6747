package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/service/ai/yolo"
)

// darknet is one loaded network. gocv.Net is not safe for concurrent use.
type darknet struct {
	mu      sync.Mutex
	net     gocv.Net
	outputs []string
	size    int
	labels  yolo.Labels
}

// OpenCVDetector runs Darknet YOLO networks through OpenCV's DNN module.
type OpenCVDetector struct {
	catalog    config.Catalog
	thresholds Thresholds
	logger     *logger.Logger

	netsMutex sync.Mutex
	nets      map[model.ModelSelector]*darknet
}

// NewOpenCVDetector creates a detector; networks are loaded on first use.
func NewOpenCVDetector(cfg *config.Config, logger *logger.Logger) *OpenCVDetector {
	return &OpenCVDetector{
		catalog:    cfg.Models,
		thresholds: ThresholdsFromConfig(cfg),
		logger:     logger,
		nets:       make(map[model.ModelSelector]*darknet),
	}
}

// getNet returns the network for selector, loading it when absent.
func (d *OpenCVDetector) getNet(selector model.ModelSelector) (*darknet, error) {
	d.netsMutex.Lock()
	defer d.netsMutex.Unlock()

	if n, ok := d.nets[selector]; ok {
		return n, nil
	}

	files, err := d.catalog.Lookup(selector)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(files.DarknetConfig); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", files.DarknetConfig)
	}
	if _, err := os.Stat(files.DarknetWeights); os.IsNotExist(err) {
		return nil, fmt.Errorf("weights file not found: %s", files.DarknetWeights)
	}
	labels, err := yolo.LoadLabels(files.NamesFile)
	if err != nil {
		return nil, err
	}

	// ReadNet picks the Darknet importer from the .weights and .cfg extensions.
	net := gocv.ReadNet(files.DarknetWeights, files.DarknetConfig)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", selector)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	var outputs []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		outputs = append(outputs, layer.GetName())
		layer.Close()
	}

	n := &darknet{net: net, outputs: outputs, size: files.InputSize, labels: labels}
	d.nets[selector] = n
	d.logger.Info("Detection network %s initialized (outputs: %v)", selector, outputs)
	return n, nil
}

// Detect runs the selected network over buf.
func (d *OpenCVDetector) Detect(ctx context.Context, buf *model.PixelBuffer, selector model.ModelSelector) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := d.getNet(selector)
	if err != nil {
		return nil, err
	}

	mat, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, buf.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap pixel buffer: %w", err)
	}
	defer mat.Close()

	// The buffer is already RGB, so no channel swap.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(n.size, n.size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	n.mu.Lock()
	n.net.SetInput(blob, "")
	outs := n.net.ForwardLayers(n.outputs)
	n.mu.Unlock()

	var candidates []yolo.Candidate
	opts := yolo.Options{
		Scale:     yolo.Scale{X: float32(buf.Width), Y: float32(buf.Height)},
		Bounds:    buf.Bounds(),
		Threshold: d.thresholds.Confidence,
	}
	for i := range outs {
		data, err := outs[i].DataPtrFloat32()
		if err == nil {
			candidates = append(candidates, yolo.ParseRows(data, outs[i].Cols(), opts)...)
		}
		outs[i].Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read network output: %w", err)
		}
	}

	return toDetections(yolo.NMS(candidates, d.thresholds.NMS), n.labels), nil
}

// Close releases every loaded network.
func (d *OpenCVDetector) Close() error {
	d.netsMutex.Lock()
	defer d.netsMutex.Unlock()

	for selector, n := range d.nets {
		n.net.Close()
		delete(d.nets, selector)
	}
	return nil
}
