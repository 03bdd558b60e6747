package service

import (
	"errors"

	"detectserver/internal/model"
)

// Pipeline failure sentinels. Every error returned by Manager.Predict wraps
// exactly one of them.
var (
	ErrUnsupportedMediaType = errors.New("unsupported file provided")
	ErrDecodeFailure        = errors.New("image could not be decoded")
	ErrInvalidModelSelector = model.ErrInvalidModelSelector
	ErrModelInvocation      = errors.New("model invocation failed")
	ErrPersistence          = errors.New("artifact could not be persisted")
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedMediaType
	KindDecodeFailure
	KindInvalidModelSelector
	KindModelInvocation
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedMediaType:
		return "unsupported_media_type"
	case KindDecodeFailure:
		return "decode_failure"
	case KindInvalidModelSelector:
		return "invalid_model_selector"
	case KindModelInvocation:
		return "model_invocation_failure"
	case KindPersistence:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

// Stage is a state of a prediction request.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageDecoded   Stage = "decoded"
	StageDetected  Stage = "detected"
	StageRendered  Stage = "rendered"
	StagePersisted Stage = "persisted"
	StageStreaming Stage = "streaming"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Error is a failed prediction. Stage is the last state the request
// reached before failing.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the failure kind carried by err.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrUnsupportedMediaType):
		return KindUnsupportedMediaType
	case errors.Is(err, ErrDecodeFailure):
		return KindDecodeFailure
	case errors.Is(err, ErrInvalidModelSelector):
		return KindInvalidModelSelector
	case errors.Is(err, ErrModelInvocation):
		return KindModelInvocation
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindUnknown
	}
}

func failure(kind Kind, stage Stage, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}
