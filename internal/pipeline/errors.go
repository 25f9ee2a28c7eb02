package pipeline

import (
	"errors"
	"fmt"
)

// Stage names.
const (
	StagePrepare = "prepare"
	StageDock    = "dock"
	StageReport  = "report"
)

// StageError reports which stage aborted the pipeline.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage that caused err, or "" if err did not come
// from a stage.
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
