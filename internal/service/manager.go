package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"detectserver/internal/dto"
	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/repository"
	"detectserver/internal/service/imaging"
	"detectserver/internal/service/storage"
	"detectserver/internal/telemetry"
)

// Broadcaster delivers events to live viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObservePrediction(model, outcome string)
	ObserveStage(stage string, d time.Duration)
	ObserveDetection(label string)
}

// Option configures the optional side channels of a Manager.
type Option func(*Manager)

// WithJournal records every outcome in repo.
func WithJournal(repo repository.PredictionRepository) Option {
	return func(m *Manager) { m.journal = repo }
}

// WithViewers broadcasts completed predictions to b.
func WithViewers(b Broadcaster) Option {
	return func(m *Manager) { m.viewers = b }
}

// WithRecorder reports stage timings and outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithMaxPixels rejects uploads whose declared size exceeds n pixels as
// decode failures. n <= 0 disables the limit.
func WithMaxPixels(n int) Option {
	return func(m *Manager) { m.maxPixels = n }
}

// Manager runs the prediction pipeline:
// validate, decode, detect, render, persist, then hand the reopened
// artifact to the caller for streaming.
type Manager struct {
	invoker   *Invoker
	store     *storage.ArtifactStore
	journal   repository.PredictionRepository
	viewers   Broadcaster
	recorder  Recorder
	maxPixels int
	tracer    trace.Tracer
	logger    *logger.Logger
}

func NewManager(detector Detector, store *storage.ArtifactStore, logger *logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		invoker:   NewInvoker(detector),
		store:     store,
		recorder:  nopRecorder{},
		maxPixels: imaging.DefaultMaxPixels,
		tracer:    telemetry.Tracer(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Predict runs every stage up to Persisted and returns the prediction with
// its artifact open for reading. The caller streams Body and must then call
// Complete. On failure the returned error is an *Error and the outcome has
// already been recorded.
func (m *Manager) Predict(ctx context.Context, upload model.Upload, selector model.ModelSelector) (*model.Prediction, error) {
	started := time.Now()
	ctx, span := m.tracer.Start(ctx, "predict", trace.WithAttributes(
		attribute.String("upload.filename", upload.Filename),
		attribute.String("model.selector", string(selector)),
	))
	defer span.End()

	prediction, err := m.run(ctx, upload, selector, started)
	if err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			pe = failure(KindUnknown, StageReceived, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, pe.Kind.String())
		m.fail(upload.Filename, selector, pe, started)
		return nil, pe
	}

	span.SetAttributes(attribute.Int("detections", len(prediction.Detections)))
	return prediction, nil
}

func (m *Manager) run(ctx context.Context, upload model.Upload, selector model.ModelSelector, started time.Time) (*model.Prediction, error) {
	if _, err := model.ParseModelSelector(string(selector)); err != nil {
		return nil, failure(KindInvalidModelSelector, StageReceived, err)
	}

	err := m.stage(ctx, StageValidated, func(context.Context) error {
		return ValidateFilename(upload.Filename)
	})
	if err != nil {
		return nil, failure(KindUnsupportedMediaType, StageReceived, err)
	}

	var buf *model.PixelBuffer
	err = m.stage(ctx, StageDecoded, func(context.Context) error {
		var decodeErr error
		if buf, decodeErr = imaging.DecodeWithLimit(upload.Content, m.maxPixels); decodeErr != nil {
			return fmt.Errorf("%w: %w", ErrDecodeFailure, decodeErr)
		}
		return nil
	})
	if err != nil {
		return nil, failure(KindDecodeFailure, StageValidated, err)
	}

	var detections []model.Detection
	err = m.stage(ctx, StageDetected, func(ctx context.Context) error {
		var invokeErr error
		detections, invokeErr = m.invoker.Invoke(ctx, buf, selector)
		return invokeErr
	})
	if err != nil {
		return nil, failure(KindModelInvocation, StageDecoded, err)
	}

	var annotated *model.PixelBuffer
	m.stage(ctx, StageRendered, func(context.Context) error {
		annotated = imaging.Render(buf, detections)
		return nil
	})

	var path string
	err = m.stage(ctx, StagePersisted, func(context.Context) error {
		var saveErr error
		if path, saveErr = m.store.Save(upload.Filename, annotated); saveErr != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, saveErr)
		}
		return nil
	})
	if err != nil {
		return nil, failure(KindPersistence, StageRendered, err)
	}

	body, err := m.store.Open(path)
	if err != nil {
		return nil, failure(KindPersistence, StagePersisted, fmt.Errorf("%w: %v", ErrPersistence, err))
	}

	return &model.Prediction{
		Filename:   upload.Filename,
		Path:       path,
		Model:      selector,
		Width:      annotated.Width,
		Height:     annotated.Height,
		Detections: detections,
		Body:       body,
		StartedAt:  started,
	}, nil
}

// stage runs fn inside a span named after the stage it leads to and
// records its duration.
func (m *Manager) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := m.tracer.Start(ctx, string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	m.recorder.ObserveStage(string(stage), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Complete closes the streamed artifact and records the outcome. streamErr
// is the error, if any, returned while copying Body to the client.
func (m *Manager) Complete(p *model.Prediction, streamErr error) {
	if err := p.Body.Close(); err != nil {
		m.logger.Warning("Error closing artifact %s: %v", p.Path, err)
	}

	duration := time.Since(p.StartedAt)
	outcome := model.OutcomeCompleted
	if streamErr != nil {
		outcome = model.OutcomeStreamAborted
		m.logger.Warning("Streaming %s aborted after %v: %v", p.Path, duration, streamErr)
	} else {
		m.logger.Info("✅ %s [%s]: %d object(s) in %v", p.Filename, p.Model, len(p.Detections), duration)
	}

	m.recorder.ObservePrediction(string(p.Model), outcome)
	results := make([]model.DetectionResult, 0, len(p.Detections))
	for _, det := range p.Detections {
		m.recorder.ObserveDetection(det.Label)
		results = append(results, det.Result())
	}

	now := time.Now().UTC()
	m.record(&model.PredictionRecord{
		Filename:   p.Filename,
		Model:      string(p.Model),
		Outcome:    outcome,
		Detections: results,
		DurationMS: duration.Milliseconds(),
		CreatedAt:  now,
	})

	if streamErr == nil {
		m.broadcast(dto.PredictionEvent{
			Filename:   p.Filename,
			Model:      string(p.Model),
			Width:      p.Width,
			Height:     p.Height,
			Detections: results,
			Duration:   duration,
			CreatedAt:  now,
		})
	}
}

func (m *Manager) fail(filename string, selector model.ModelSelector, pe *Error, started time.Time) {
	duration := time.Since(started)
	switch pe.Kind {
	case KindModelInvocation, KindPersistence, KindUnknown:
		m.logger.Error("❌ %s [%s] failed after %s: %v", filename, selector, pe.Stage, pe.Err)
	default:
		m.logger.Warning("⚠️  %s [%s] rejected after %s: %v", filename, selector, pe.Stage, pe.Err)
	}

	m.recorder.ObservePrediction(string(selector), pe.Kind.String())
	m.record(&model.PredictionRecord{
		Filename:   filename,
		Model:      string(selector),
		Outcome:    pe.Kind.String(),
		DurationMS: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	})
}

func (m *Manager) record(rec *model.PredictionRecord) {
	if m.journal == nil {
		return
	}
	if _, err := m.journal.Insert(rec); err != nil {
		m.logger.Error("Error writing prediction journal: %v", err)
	}
}

func (m *Manager) broadcast(event dto.PredictionEvent) {
	if m.viewers == nil {
		return
	}
	msg, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Error encoding prediction event: %v", err)
		return
	}
	m.viewers.Broadcast(msg)
}

// Journal returns the prediction journal, or nil when none is configured.
func (m *Manager) Journal() repository.PredictionRepository {
	return m.journal
}

type nopRecorder struct{}

func (nopRecorder) ObservePrediction(string, string)   {}
func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) ObserveDetection(string)            {}
