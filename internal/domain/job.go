package domain

import (
	"encoding/json"
	"strings"
)

// JobStatus enumerates the remote task lifecycle states reported by the
// GenVR status endpoint.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transition can occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobHandle is the remote-assigned task identifier returned by submission.
// It is owned exclusively by the worker that submitted the job.
type JobHandle string

// JobRequest describes one generation task: a model selector plus the
// parameter mapping the model's schema expects. Parameters are treated as
// opaque values validated upstream; file references arrive already encoded
// as data URIs. A JobRequest is never mutated after batch start.
type JobRequest struct {
	Category    string         `json:"category"`
	Subcategory string         `json:"subcategory"`
	Parameters  map[string]any `json:"parameters"`
}

// Validate checks the minimal shape required before submission.
func (r JobRequest) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return NewJobError(ErrKindValidation, "category is required")
	}
	if strings.TrimSpace(r.Subcategory) == "" {
		return NewJobError(ErrKindValidation, "subcategory is required")
	}
	return nil
}

// JobResult is the terminal outcome of one job: either the structured output
// returned by the response endpoint, or a JobError. Immutable once created.
type JobResult struct {
	Output json.RawMessage `json:"output,omitempty"`
	Err    *JobError       `json:"error,omitempty"`
}

// Succeeded reports whether the job reached completed and its output was
// fetched.
func (r JobResult) Succeeded() bool {
	return r.Err == nil
}

// SuccessResult wraps a fetched output payload.
func SuccessResult(output json.RawMessage) JobResult {
	return JobResult{Output: output}
}

// FailureResult wraps a terminal error.
func FailureResult(err *JobError) JobResult {
	return JobResult{Err: err}
}

// BatchSummary carries the final counters of one batch run.
type BatchSummary struct {
	Total     int  `json:"total"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}

// Completed returns the number of items that reached a terminal result.
func (s BatchSummary) Completed() int {
	return s.Succeeded + s.Failed
}
