package genvr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"genvrbatch/internal/domain"
)

// scriptedTransport serves queued responses per path and records every
// request body so payloads can be asserted.
type scriptedTransport struct {
	mu        sync.Mutex
	responses map[string][]responseStub
	bodies    map[string][][]byte
}

type responseStub struct {
	status int
	body   []byte
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		responses: make(map[string][]responseStub),
		bodies:    make(map[string][][]byte),
	}
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		s.bodies[req.URL.Path] = append(s.bodies[req.URL.Path], body)
	}

	queue := s.responses[req.URL.Path]
	if len(queue) == 0 {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("not found")),
		}, nil
	}
	stub := queue[0]
	if len(queue) > 1 {
		s.responses[req.URL.Path] = queue[1:]
	}
	return &http.Response{
		StatusCode: stub.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(stub.body)),
	}, nil
}

// queue appends a JSON response for path; the last stub for a path repeats.
func (s *scriptedTransport) queue(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = append(s.responses[path], responseStub{status: status, body: body})
}

func (s *scriptedTransport) calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies[path])
}

func (s *scriptedTransport) lastBody(t *testing.T, path string) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	bodies := s.bodies[path]
	if len(bodies) == 0 {
		t.Fatalf("no request recorded for %s", path)
	}
	var decoded map[string]any
	if err := json.Unmarshal(bodies[len(bodies)-1], &decoded); err != nil {
		t.Fatalf("decode body for %s: %v", path, err)
	}
	return decoded
}

func ok(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}

func testClient(t *testing.T, transport *scriptedTransport, opts Options) *Client {
	t.Helper()
	opts.APIKey = "test-key"
	opts.UID = "user-1"
	opts.HTTPClient = &http.Client{Transport: transport}
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	client, err := NewClient(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func testRequest() domain.JobRequest {
	return domain.JobRequest{
		Category:    "imgedit",
		Subcategory: "background_change",
		Parameters: map[string]any{
			"prompt":    "a beautiful sunset beach",
			"image_url": "https://example.com/your-image.jpg",
		},
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Options{UID: "u"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	if _, err := NewClient(Options{APIKey: "k"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestSubmitSpreadsParametersAtTopLevel(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, ok(map[string]any{"id": "task-1"}))
	client := testClient(t, transport, Options{})

	handle, err := client.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if handle != "task-1" {
		t.Fatalf("handle = %q, want task-1", handle)
	}

	body := transport.lastBody(t, "/v2/generate")
	if body["uid"] != "user-1" {
		t.Fatalf("uid = %v", body["uid"])
	}
	if body["category"] != "imgedit" || body["subcategory"] != "background_change" {
		t.Fatalf("model selector missing from body: %v", body)
	}
	if body["prompt"] != "a beautiful sunset beach" {
		t.Fatalf("parameters must be spread at the top level, got %v", body)
	}
	if _, nested := body["parameters"]; nested {
		t.Fatalf("parameters must not be nested")
	}
}

func TestRunJobCompletedAfterPolling(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, ok(map[string]any{"id": "task-1"}))
	transport.queue("/v2/status", http.StatusOK, ok(map[string]any{"status": "pending"}))
	transport.queue("/v2/status", http.StatusOK, ok(map[string]any{"status": "processing"}))
	transport.queue("/v2/status", http.StatusOK, ok(map[string]any{"status": "completed"}))
	transport.queue("/v2/response", http.StatusOK, ok(map[string]any{"output": map[string]any{"url": "x"}}))
	client := testClient(t, transport, Options{})

	result := client.RunJob(context.Background(), testRequest(), nil)
	if !result.Succeeded() {
		t.Fatalf("run job failed: %v", result.Err)
	}
	var output map[string]any
	if err := json.Unmarshal(result.Output, &output); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if output["url"] != "x" {
		t.Fatalf("output = %v", output)
	}
	if got := transport.calls("/v2/status"); got != 3 {
		t.Fatalf("status calls = %d, want 3", got)
	}

	statusBody := transport.lastBody(t, "/v2/status")
	if statusBody["id"] != "task-1" || statusBody["uid"] != "user-1" {
		t.Fatalf("status body = %v", statusBody)
	}
}

func TestRunJobRemoteFailed(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, ok(map[string]any{"id": "task-1"}))
	transport.queue("/v2/status", http.StatusOK, ok(map[string]any{"status": "failed", "error": "quota exceeded"}))
	client := testClient(t, transport, Options{})

	result := client.RunJob(context.Background(), testRequest(), nil)
	if result.Succeeded() {
		t.Fatalf("expected failure")
	}
	if result.Err.Kind != domain.ErrKindRemoteFailed {
		t.Fatalf("kind = %s, want %s", result.Err.Kind, domain.ErrKindRemoteFailed)
	}
	if result.Err.Message != "quota exceeded" {
		t.Fatalf("message = %q", result.Err.Message)
	}
	if transport.calls("/v2/response") != 0 {
		t.Fatalf("response endpoint must not be called for a failed task")
	}
}

func TestRunJobSubmitTransportError(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusInternalServerError, map[string]any{"success": false})
	client := testClient(t, transport, Options{})

	result := client.RunJob(context.Background(), testRequest(), nil)
	if result.Succeeded() || result.Err.Kind != domain.ErrKindTransport {
		t.Fatalf("result = %+v, want transport failure", result)
	}
}

func TestRunJobEnvelopeRejection(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, map[string]any{"success": false, "message": "invalid api key"})
	client := testClient(t, transport, Options{})

	result := client.RunJob(context.Background(), testRequest(), nil)
	if result.Succeeded() || result.Err.Kind != domain.ErrKindTransport {
		t.Fatalf("result = %+v, want transport failure", result)
	}
	if !strings.Contains(result.Err.Message, "invalid api key") {
		t.Fatalf("message should carry the remote text, got %q", result.Err.Message)
	}
}

func TestRunJobCancelledDuringPolling(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, ok(map[string]any{"id": "task-1"}))
	transport.queue("/v2/status", http.StatusOK, ok(map[string]any{"status": "processing"}))
	client := testClient(t, transport, Options{PollInterval: 50 * time.Millisecond})

	cancel := make(chan struct{})
	go func() {
		// Fire mid-wait so the interruptible interval is exercised.
		time.Sleep(10 * time.Millisecond)
		close(cancel)
	}()

	start := time.Now()
	result := client.RunJob(context.Background(), testRequest(), cancel)
	if result.Succeeded() || result.Err.Kind != domain.ErrKindCancelled {
		t.Fatalf("result = %+v, want cancelled failure", result)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Fatalf("cancellation latency %s exceeds one poll interval", elapsed)
	}
	if transport.calls("/v2/response") != 0 {
		t.Fatalf("response endpoint must not be called after cancellation")
	}
}

func TestRunJobCancelledBeforePolling(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, ok(map[string]any{"id": "task-1"}))
	client := testClient(t, transport, Options{})

	cancel := make(chan struct{})
	close(cancel)

	result := client.RunJob(context.Background(), testRequest(), cancel)
	if result.Succeeded() || result.Err.Kind != domain.ErrKindCancelled {
		t.Fatalf("result = %+v, want cancelled failure", result)
	}
	if transport.calls("/v2/status") != 0 {
		t.Fatalf("status endpoint must not be polled after cancellation")
	}
}

func TestRunJobTimesOut(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, ok(map[string]any{"id": "task-1"}))
	transport.queue("/v2/status", http.StatusOK, ok(map[string]any{"status": "processing"}))
	client := testClient(t, transport, Options{
		PollInterval: time.Millisecond,
		MaxPollTime:  5 * time.Millisecond,
	})

	result := client.RunJob(context.Background(), testRequest(), nil)
	if result.Succeeded() || result.Err.Kind != domain.ErrKindTimeout {
		t.Fatalf("result = %+v, want timeout failure", result)
	}
}

func TestRunJobValidatesBeforeSubmit(t *testing.T) {
	transport := newScriptedTransport()
	client := testClient(t, transport, Options{})

	result := client.RunJob(context.Background(), domain.JobRequest{Subcategory: "x"}, nil)
	if result.Succeeded() || result.Err.Kind != domain.ErrKindValidation {
		t.Fatalf("result = %+v, want validation failure", result)
	}
	if transport.calls("/v2/generate") != 0 {
		t.Fatalf("invalid request must not be submitted")
	}
}

func TestRunJobFetchFailureMapsToTransport(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/v2/generate", http.StatusOK, ok(map[string]any{"id": "task-1"}))
	transport.queue("/v2/status", http.StatusOK, ok(map[string]any{"status": "completed"}))
	transport.queue("/v2/response", http.StatusBadGateway, map[string]any{"success": false})
	client := testClient(t, transport, Options{})

	result := client.RunJob(context.Background(), testRequest(), nil)
	if result.Succeeded() || result.Err.Kind != domain.ErrKindTransport {
		t.Fatalf("result = %+v, want transport failure", result)
	}
}

func TestModelsAndSchemaDecode(t *testing.T) {
	transport := newScriptedTransport()
	transport.queue("/api/models", http.StatusOK, ok([]map[string]any{
		{"category": "imgedit", "subcategory": "background_change", "name": "Background Change"},
		{"category": "video", "subcategory": "text_to_video", "name": "Text to Video"},
	}))
	transport.queue("/api/schema/imgedit/background_change", http.StatusOK, ok(map[string]any{
		"category":    "imgedit",
		"subcategory": "background_change",
		"parameters": map[string]any{
			"required": []map[string]any{{"name": "prompt", "type": "string"}},
			"optional": []map[string]any{{"name": "output_format", "type": "enum", "allowedValues": []string{"jpeg", "png"}}},
		},
	}))
	client := testClient(t, transport, Options{})

	models, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(models) != 2 || models[0].Subcategory != "background_change" {
		t.Fatalf("models = %+v", models)
	}

	schema, err := client.Schema(context.Background(), "imgedit", "background_change")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(schema.Parameters.Required) != 1 || schema.Parameters.Required[0].Name != "prompt" {
		t.Fatalf("schema = %+v", schema)
	}
	if len(schema.Parameters.Optional[0].AllowedValues) != 2 {
		t.Fatalf("allowed values = %+v", schema.Parameters.Optional[0].AllowedValues)
	}
}
