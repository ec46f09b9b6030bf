package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"genvrbatch/internal/domain"
)

type countingRunner struct {
	calls int
}

func (r *countingRunner) RunJob(ctx context.Context, req domain.JobRequest, cancel <-chan struct{}) domain.JobResult {
	r.calls++
	return domain.SuccessResult(json.RawMessage(`{"url":"x"}`))
}

func TestValidatingRunnerRejectsBeforeDispatch(t *testing.T) {
	inner := &countingRunner{}
	runner := NewValidatingRunner(testCatalog(t), inner)

	result := runner.RunJob(context.Background(), domain.JobRequest{
		Category:    "imgedit",
		Subcategory: "background_change",
		Parameters:  map[string]any{"prompt": "sunset"},
	}, nil)

	if result.Succeeded() {
		t.Fatalf("request missing image_url should fail")
	}
	if result.Err.Kind != domain.ErrKindValidation {
		t.Fatalf("kind = %s, want %s", result.Err.Kind, domain.ErrKindValidation)
	}
	if inner.calls != 0 {
		t.Fatalf("invalid request must not reach the runner, got %d calls", inner.calls)
	}
}

func TestValidatingRunnerPassesValidRequests(t *testing.T) {
	inner := &countingRunner{}
	runner := NewValidatingRunner(testCatalog(t), inner)

	result := runner.RunJob(context.Background(), domain.JobRequest{
		Category:    "imgedit",
		Subcategory: "background_change",
		Parameters: map[string]any{
			"prompt":    "sunset",
			"image_url": "https://example.com/a.jpg",
		},
	}, nil)

	if !result.Succeeded() {
		t.Fatalf("valid request failed: %v", result.Err)
	}
	if inner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", inner.calls)
	}
}

func TestValidatingRunnerUnknownModelPassesThrough(t *testing.T) {
	inner := &countingRunner{}
	runner := NewValidatingRunner(testCatalog(t), inner)

	result := runner.RunJob(context.Background(), domain.JobRequest{
		Category:    "audio",
		Subcategory: "text_to_speech",
		Parameters:  map[string]any{"text": "hello"},
	}, nil)

	if !result.Succeeded() || inner.calls != 1 {
		t.Fatalf("unknown model should defer to the remote, result = %+v calls = %d", result, inner.calls)
	}
}
