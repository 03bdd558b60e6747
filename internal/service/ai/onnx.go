package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/service/ai/yolo"
)

// onnxSession binds a session to its input and output tensors.
type onnxSession struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	size         int
	stride       int
	labels       yolo.Labels
}

// ONNXDetector runs YOLO exports through ONNX Runtime.
type ONNXDetector struct {
	catalog    config.Catalog
	thresholds Thresholds
	logger     *logger.Logger

	sessionsMutex sync.Mutex
	sessions      map[model.ModelSelector]*onnxSession
}

// NewONNXDetector initializes the ONNX Runtime environment. Sessions are
// created on first use.
func NewONNXDetector(cfg *config.Config, logger *logger.Logger) (*ONNXDetector, error) {
	if cfg.ONNXLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.ONNXLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	return &ONNXDetector{
		catalog:    cfg.Models,
		thresholds: ThresholdsFromConfig(cfg),
		logger:     logger,
		sessions:   make(map[model.ModelSelector]*onnxSession),
	}, nil
}

func (d *ONNXDetector) getSession(selector model.ModelSelector) (*onnxSession, error) {
	d.sessionsMutex.Lock()
	defer d.sessionsMutex.Unlock()

	if s, ok := d.sessions[selector]; ok {
		return s, nil
	}

	files, err := d.catalog.Lookup(selector)
	if err != nil {
		return nil, err
	}
	if len(files.OutputShape) < 2 {
		return nil, fmt.Errorf("output shape for %s must have at least 2 dimensions", selector)
	}
	labels, err := yolo.LoadLabels(files.NamesFile)
	if err != nil {
		return nil, err
	}

	size := int64(files.InputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(files.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(files.ONNXModel,
		[]string{files.InputName}, []string{files.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	s := &onnxSession{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		size:         files.InputSize,
		stride:       int(files.OutputShape[len(files.OutputShape)-1]),
		labels:       labels,
	}
	d.sessions[selector] = s
	d.logger.Info("ONNX session %s initialized from %s", selector, files.ONNXModel)
	return s, nil
}

// Detect resizes buf to the network input, runs the session and
// post-processes the output rows.
func (d *ONNXDetector) Detect(ctx context.Context, buf *model.PixelBuffer, selector model.ModelSelector) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := d.getSession(selector)
	if err != nil {
		return nil, err
	}

	input := preprocess(buf, s.size)

	s.mu.Lock()
	copy(s.inputTensor.GetData(), input)
	if err := s.session.Run(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	output := make([]float32, len(s.outputTensor.GetData()))
	copy(output, s.outputTensor.GetData())
	s.mu.Unlock()

	candidates := yolo.ParseRows(output, s.stride, yolo.Options{
		Scale: yolo.Scale{
			X: float32(buf.Width) / float32(s.size),
			Y: float32(buf.Height) / float32(s.size),
		},
		Bounds:             buf.Bounds(),
		Threshold:          d.thresholds.Confidence,
		WeightByObjectness: true,
	})

	return toDetections(yolo.NMS(candidates, d.thresholds.NMS), s.labels), nil
}

// preprocess converts buf to a planar, normalized 1x3xNxN tensor.
func preprocess(buf *model.PixelBuffer, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), buf, resize.Bilinear)
	bounds := resized.Bounds()

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*size + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(b) / 65535.0
		}
	}
	return data
}

// Close destroys every session and the ONNX environment.
func (d *ONNXDetector) Close() error {
	d.sessionsMutex.Lock()
	defer d.sessionsMutex.Unlock()

	for selector, s := range d.sessions {
		s.session.Destroy()
		s.inputTensor.Destroy()
		s.outputTensor.Destroy()
		delete(d.sessions, selector)
	}
	return ort.DestroyEnvironment()
}
