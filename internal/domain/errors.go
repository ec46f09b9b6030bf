package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies terminal job failures.
type ErrorKind string

const (
	// ErrKindTransport covers network or HTTP failures at any of the three
	// remote calls, including malformed envelopes.
	ErrKindTransport ErrorKind = "transport"
	// ErrKindRemoteFailed is a terminal failed status with the
	// remote-supplied message.
	ErrKindRemoteFailed ErrorKind = "remote_failed"
	// ErrKindCancelled means the batch was stopped before this item reached
	// a terminal state.
	ErrKindCancelled ErrorKind = "cancelled"
	// ErrKindValidation is a malformed JobRequest caught before submission.
	ErrKindValidation ErrorKind = "validation"
	// ErrKindTimeout means the job did not reach a terminal status within
	// the configured maximum poll window.
	ErrKindTimeout ErrorKind = "timeout"
)

// JobError is the single failure type surfaced for a job. The Kind drives
// programmatic handling; Message carries the original error text for display.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *JobError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewJobError builds a JobError with a preformatted message.
func NewJobError(kind ErrorKind, message string) *JobError {
	return &JobError{Kind: kind, Message: message}
}

// WrapJobError converts err into a JobError of the given kind, preserving an
// existing JobError's kind and message if err already is one.
func WrapJobError(kind ErrorKind, err error) *JobError {
	if err == nil {
		return nil
	}
	var je *JobError
	if errors.As(err, &je) {
		return je
	}
	return &JobError{Kind: kind, Message: err.Error()}
}

// KindOf returns the error kind of err, or empty when err is not a JobError.
func KindOf(err error) ErrorKind {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return ""
}
