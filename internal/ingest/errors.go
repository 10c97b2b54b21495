package ingest

import (
	"errors"
	"fmt"
)

// Class tags an error as retryable infrastructure trouble or a permanent
// input/logic fault that retrying cannot fix.
type Class string

const (
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
)

// Stage names the pipeline state in which a failure occurred.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageParse     Stage = "parse"
	StageEmbed     Stage = "embed"
	StageStore     Stage = "store"
	StageAggregate Stage = "aggregate"
)

// ValidationError marks bad input: unsupported file type, empty URL, empty
// document content. Never retried.
type ValidationError struct {
	Msg string
}

func NewValidationError(msg string) *ValidationError { return &ValidationError{Msg: msg} }

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// LogicError marks an internal contract violation, such as the embedder
// returning a different number of vectors than chunks. Never retried.
type LogicError struct {
	Msg string
}

func NewLogicError(msg string) *LogicError { return &LogicError{Msg: msg} }

func (e *LogicError) Error() string { return "logic: " + e.Msg }

// InfrastructureError reports a transient fault that survived every allowed
// attempt. Terminal for the run, but distinct from bad input.
type InfrastructureError struct {
	Stage    Stage
	Attempts int
	Err      error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// RunError is the structured terminal failure surfaced to the caller. It
// always names the job, the failing stage, and the classification.
type RunError struct {
	FileID string
	Stage  Stage
	Class  Class
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("ingest %s: %s stage failed (%s): %v", e.FileID, e.Stage, e.Class, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Classify decides whether an error is worth retrying. It is deterministic:
// validation and logic faults are Permanent, everything else (timeouts,
// connection errors, backend 5xx) is assumed to be transient infrastructure
// trouble. Caller cancellation is handled by the retry loop itself, not
// classified here.
func Classify(err error) Class {
	var ve *ValidationError
	var le *LogicError
	if errors.As(err, &ve) || errors.As(err, &le) {
		return ClassPermanent
	}
	return ClassTransient
}
