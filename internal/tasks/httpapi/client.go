package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"topearner/internal/core"
	"topearner/internal/log"
)

const (
	fetchPath  = "/get-task"
	submitPath = "/submit-task"

	maxBodyBytes     = 10 << 20
	maxErrorBodySize = 512

	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// StatusError is returned for non-2xx responses from the task API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to the task API over HTTP. It implements tasks.TaskSource and
// tasks.ResultSink.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
	logger     *log.Logger
}

// New creates a client for the API rooted at baseURL. Each attempt is bounded
// by timeout; transient failures are retried up to maxRetries times. A nil
// logger discards output.
func New(baseURL string, timeout time.Duration, maxRetries int, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse task API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("task API URL scheme '%s': must be 'http' or 'https'", u.Scheme)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
		maxRetries: maxRetries,
		backoff:    exponentialBackoff,
		logger:     logger.WithComponent(log.ComponentTasks),
	}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// FetchTask retrieves the next task. A payload whose transactions field is
// not an array fails with core.ErrInvalidInput.
func (c *Client) FetchTask(ctx context.Context) (core.Task, error) {
	body, err := c.do(ctx, http.MethodGet, fetchPath, nil)
	if err != nil {
		return core.Task{}, err
	}
	task, err := core.ParseTask(body)
	if err != nil {
		return core.Task{}, fmt.Errorf("decode task: %w", err)
	}
	c.logger.DebugContext(ctx, "Fetched task",
		log.FieldOperation, log.OpFetch,
		log.FieldTaskID, task.ID,
		log.FieldTransactions, len(task.Transactions))
	return task, nil
}

// SubmitResult posts the submission and returns the response body.
func (c *Client) SubmitResult(ctx context.Context, s core.Submission) (string, error) {
	if s.ID == "" {
		return "", core.ErrEmptyTaskID
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, submitPath, payload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := c.doOnce(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil || attempt >= c.maxRetries || !isRetryable(err) {
			return nil, err
		}

		wait := c.backoff(attempt)
		c.logger.WarnContext(ctx, "Task API request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"backoff", wait,
			log.FieldError, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBodySize {
			snippet = snippet[:maxErrorBodySize]
		}
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       snippet,
		}
	}
	return body, nil
}

// isRetryable reports whether a failed attempt may succeed if repeated.
// Transport errors, 429 and 5xx are transient; other statuses are final.
func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := baseBackoff << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
