package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the step of the removal pipeline that failed.
type Stage string

const (
	StageDecode    Stage = "decode"
	StageRemove    Stage = "remove"
	StageComposite Stage = "composite"
	StageEncode    Stage = "encode"
)

var (
	ErrEmptyInput     = errors.New("empty image payload")
	ErrNilResult      = errors.New("remover returned no image")
	ErrSizeMismatch   = errors.New("remover changed image dimensions")
	ErrNoAlphaChannel = errors.New("result image has no alpha channel to use as mask")
)

// StageError is the single error kind produced by Processor.Process. The
// HTTP layer reports all of them the same way; the stage is kept for logs
// and metrics.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the failing stage of err, or "" if err did not come out
// of the pipeline.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
