package genvr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genvrbatch/internal/domain"
	"genvrbatch/internal/infra"
)

// ErrMissingCredentials indicates that the client was configured without an
// API key or user id. Every remote call carries both.
var ErrMissingCredentials = errors.New("genvr: api key and uid are required")

const (
	defaultBaseURL      = "https://api.genvrresearch.com"
	defaultPollInterval = time.Second
	defaultMaxPollTime  = 5 * time.Minute
)

// Options configures the GenVR API client.
type Options struct {
	APIKey         string
	UID            string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	PollInterval   time.Duration
	MaxPollTime    time.Duration
	RequestTimeout time.Duration
}

// Client drives the three-call GenVR workflow: submit a task, poll its status
// until terminal, fetch the output once completed.
type Client struct {
	apiKey       string
	uid          string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	maxPollTime  time.Duration
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type submitData struct {
	ID string `json:"id"`
}

type statusData struct {
	Status domain.JobStatus `json:"status"`
	Error  string           `json:"error"`
}

type resultData struct {
	Output json.RawMessage `json:"output"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	uid := strings.TrimSpace(opts.UID)
	if apiKey == "" || uid == "" {
		return nil, ErrMissingCredentials
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxPollTime := opts.MaxPollTime
	if maxPollTime <= 0 {
		maxPollTime = defaultMaxPollTime
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       apiKey,
		uid:          uid,
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
		maxPollTime:  maxPollTime,
	}, nil
}

// Submit posts the task to /v2/generate and returns the remote task id.
// Parameters are spread at the top level of the body next to uid, category
// and subcategory, matching the wire contract.
func (c *Client) Submit(ctx context.Context, req domain.JobRequest) (domain.JobHandle, error) {
	payload := make(map[string]any, len(req.Parameters)+3)
	for k, v := range req.Parameters {
		payload[k] = v
	}
	payload["uid"] = c.uid
	payload["category"] = req.Category
	payload["subcategory"] = req.Subcategory

	data, err := c.post(ctx, "/v2/generate", payload)
	if err != nil {
		return "", err
	}
	var decoded submitData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("genvr: decode generate data: %w", err)
	}
	if decoded.ID == "" {
		return "", errors.New("genvr: generate response missing task id")
	}
	c.logger.Debug().
		Str("task_id", decoded.ID).
		Str("category", req.Category).
		Str("subcategory", req.Subcategory).
		Msg("genvr: task submitted")
	return domain.JobHandle(decoded.ID), nil
}

// Status queries /v2/status once. For a failed task the remote-supplied
// error message is returned alongside the status.
func (c *Client) Status(ctx context.Context, handle domain.JobHandle, req domain.JobRequest) (domain.JobStatus, string, error) {
	data, err := c.post(ctx, "/v2/status", c.taskPayload(handle, req))
	if err != nil {
		return "", "", err
	}
	var decoded statusData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", "", fmt.Errorf("genvr: decode status data: %w", err)
	}
	if decoded.Status == "" {
		return "", "", errors.New("genvr: status response missing status")
	}
	message := decoded.Error
	if decoded.Status == domain.JobStatusFailed && message == "" {
		message = "unknown error"
	}
	return decoded.Status, message, nil
}

// FetchResult retrieves the structured output from /v2/response. Call it only
// after Status reported completed.
func (c *Client) FetchResult(ctx context.Context, handle domain.JobHandle, req domain.JobRequest) (json.RawMessage, error) {
	data, err := c.post(ctx, "/v2/response", c.taskPayload(handle, req))
	if err != nil {
		return nil, err
	}
	var decoded resultData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("genvr: decode response data: %w", err)
	}
	if len(decoded.Output) == 0 {
		return nil, errors.New("genvr: response missing output")
	}
	return decoded.Output, nil
}

// PollUntilTerminal repeatedly queries the task status at the configured
// interval until the remote reports a terminal state, the cancel channel is
// closed, or the maximum poll window elapses. Cancellation is observed both
// before each query and during the interval wait, so its latency is bounded
// by one poll tick.
func (c *Client) PollUntilTerminal(ctx context.Context, handle domain.JobHandle, req domain.JobRequest, cancel <-chan struct{}) (domain.JobStatus, string, error) {
	deadline := time.Now().Add(c.maxPollTime)
	timer := time.NewTimer(0)
	defer timer.Stop()
	// Drain the immediate first tick so the loop below owns the timer.
	<-timer.C

	for {
		select {
		case <-cancel:
			return "", "", domain.NewJobError(domain.ErrKindCancelled, "batch cancelled")
		case <-ctx.Done():
			return "", "", domain.NewJobError(domain.ErrKindCancelled, ctx.Err().Error())
		default:
		}

		status, message, err := c.Status(ctx, handle, req)
		if err != nil {
			return "", "", err
		}
		if status.Terminal() {
			return status, message, nil
		}

		if time.Now().After(deadline) {
			return "", "", domain.NewJobError(domain.ErrKindTimeout,
				fmt.Sprintf("task did not complete within %s", c.maxPollTime))
		}

		timer.Reset(c.pollInterval)
		select {
		case <-timer.C:
		case <-cancel:
			return "", "", domain.NewJobError(domain.ErrKindCancelled, "batch cancelled")
		case <-ctx.Done():
			return "", "", domain.NewJobError(domain.ErrKindCancelled, ctx.Err().Error())
		}
	}
}

// RunJob composes submit, poll and fetch into one blocking call and maps
// every outcome onto the JobResult taxonomy. Failed remote jobs are terminal;
// there is no automatic retry.
func (c *Client) RunJob(ctx context.Context, req domain.JobRequest, cancel <-chan struct{}) domain.JobResult {
	if err := req.Validate(); err != nil {
		return domain.FailureResult(domain.WrapJobError(domain.ErrKindValidation, err))
	}

	handle, err := c.Submit(ctx, req)
	if err != nil {
		return domain.FailureResult(domain.WrapJobError(domain.ErrKindTransport, err))
	}

	status, message, err := c.PollUntilTerminal(ctx, handle, req, cancel)
	if err != nil {
		return domain.FailureResult(domain.WrapJobError(domain.ErrKindTransport, err))
	}
	if status == domain.JobStatusFailed {
		c.logger.Debug().Str("task_id", string(handle)).Str("error", message).Msg("genvr: task failed")
		return domain.FailureResult(domain.NewJobError(domain.ErrKindRemoteFailed, message))
	}

	output, err := c.FetchResult(ctx, handle, req)
	if err != nil {
		return domain.FailureResult(domain.WrapJobError(domain.ErrKindTransport, err))
	}
	c.logger.Debug().Str("task_id", string(handle)).Msg("genvr: task completed")
	return domain.SuccessResult(output)
}

func (c *Client) taskPayload(handle domain.JobHandle, req domain.JobRequest) map[string]any {
	return map[string]any{
		"id":          string(handle),
		"uid":         c.uid,
		"category":    req.Category,
		"subcategory": req.Subcategory,
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("genvr: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("genvr: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(httpReq, path)
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("genvr: build request: %w", err)
	}
	return c.do(httpReq, path)
}

func (c *Client) do(httpReq *http.Request, path string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("genvr: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("genvr: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("genvr: %s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded envelope
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("genvr: decode envelope: %w", err)
	}
	if !decoded.Success {
		message := decoded.Message
		if message == "" {
			message = "unknown error"
		}
		return nil, fmt.Errorf("genvr: %s failed: %s", path, message)
	}
	return decoded.Data, nil
}
