package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by Process matches exactly one of
// these with errors.Is.
var (
	ErrInvalidEvent  = errors.New("invalid upload event")
	ErrStorageFetch  = errors.New("storage fetch failed")
	ErrGeneration    = errors.New("generation service failed")
	ErrPersistence   = errors.New("persistence failed")
	ErrTimeout       = errors.New("pipeline deadline exceeded")
	ErrConfiguration = errors.New("pipeline misconfigured")
)

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the error kind as well as anything in the cause chain.
func (e *StageError) Is(target error) bool { return target == e.Kind }

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// stageKind maps a stage to the kind reported when it fails.
func stageKind(s Stage) error {
	switch s {
	case StageIngress:
		return ErrInvalidEvent
	case StageFetch:
		return ErrStorageFetch
	case StageExtraction, StageTranslation, StageExplanation:
		return ErrGeneration
	case StagePersist:
		return ErrPersistence
	default:
		return ErrConfiguration
	}
}
