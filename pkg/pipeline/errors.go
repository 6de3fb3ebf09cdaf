package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNoGenerator           = errors.New("pipeline: generator is required")
	ErrInvalidCandidateCount = errors.New("pipeline: candidate count must be at least 1")
)

// FatalStageError aborts a run. It is returned when a generator branch or a
// post-selection stage fails; no partial State accompanies it.
type FatalStageError struct {
	RunID  string
	Stage  Stage
	Branch int // generator branch index, -1 for the other stages
	Err    error
}

func (e *FatalStageError) Error() string {
	if e.Stage == StageGenerate {
		return fmt.Sprintf("%s stage failed on branch %d: %v", e.Stage, e.Branch, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *FatalStageError) Unwrap() error {
	return e.Err
}

// SelectionError records a selector failure. The engine recovers from it by
// choosing index 0 and keeps it on State.SelectionErr for the caller to inspect.
type SelectionError struct {
	Index int // the index the selector returned, if any
	Err   error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selection failed, defaulted to index 0: %v", e.Err)
}

func (e *SelectionError) Unwrap() error {
	return e.Err
}
