package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/tildaslashalef/tasknest/internal/loggy"
)

// APIError represents an error response from the sync server
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	ErrorCode  string `json:"error"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.ErrorCode, e.Message)
}

// RemoteConfig configures the HTTP remote store adapter.
type RemoteConfig struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
}

// RemoteStore talks to the network-backed source-of-truth store over HTTP
// JSON. Each request gets a bounded timeout so a hung server cannot block
// an engine operation indefinitely; transient failures are retried with
// exponential backoff, and a rate limiter keeps reconciliation fan-outs
// from hammering the server.
type RemoteStore[A any] struct {
	baseURL    string
	resource   string
	token      string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *loggy.Logger
}

// NewRemoteStore creates a remote adapter for one REST resource
// (e.g. "tasks" maps to {base}/api/tasks).
func NewRemoteStore[A any](cfg RemoteConfig, resource string, logger *loggy.Logger) *RemoteStore[A] {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RemoteStore[A]{
		baseURL:    cfg.BaseURL,
		resource:   resource,
		token:      cfg.Token,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Transport: transport},
		limiter:    newLimiter(cfg.RequestsPerMinute),
		logger:     logger,
	}
}

// SetToken updates the authentication token
func (r *RemoteStore[A]) SetToken(token string) {
	r.token = token
}

// GetAll fetches every record of the resource from the server.
func (r *RemoteStore[A]) GetAll(ctx context.Context) ([]A, error) {
	var records []A
	url := fmt.Sprintf("%s/api/%s", r.baseURL, r.resource)
	if err := r.doJSON(ctx, http.MethodGet, url, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetByID fetches a single record; a server 404 maps to ErrNotFound.
func (r *RemoteStore[A]) GetByID(ctx context.Context, id string) (A, error) {
	var record A
	url := fmt.Sprintf("%s/api/%s/%s", r.baseURL, r.resource, id)
	if err := r.doJSON(ctx, http.MethodGet, url, nil, &record); err != nil {
		return record, err
	}
	return record, nil
}

// Create inserts a record server-side; the response carries the
// server-assigned authoritative id.
func (r *RemoteStore[A]) Create(ctx context.Context, record A) (A, error) {
	var created A
	url := fmt.Sprintf("%s/api/%s", r.baseURL, r.resource)
	if err := r.doJSON(ctx, http.MethodPost, url, record, &created); err != nil {
		return created, err
	}
	return created, nil
}

// Update replaces the record stored under id with the full next state.
func (r *RemoteStore[A]) Update(ctx context.Context, id string, record A) (A, error) {
	var updated A
	url := fmt.Sprintf("%s/api/%s/%s", r.baseURL, r.resource, id)
	if err := r.doJSON(ctx, http.MethodPut, url, record, &updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete removes the record server-side. The engine does not use this for
// domain deletes (those are soft and travel through Update), but the
// adapter contract is uniform.
func (r *RemoteStore[A]) Delete(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/api/%s/%s", r.baseURL, r.resource, id)
	return r.doJSON(ctx, http.MethodDelete, url, nil, nil)
}

// doJSON sends one JSON request with per-attempt timeout and retries
// transient failures. Client errors (4xx) are never retried.
func (r *RemoteStore[A]) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	operation := func() error {
		return r.attempt(ctx, method, url, bodyBytes, out)
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(r.maxRetries)), ctx))
	if err != nil {
		r.logger.Debug("Remote request failed", "method", method, "url", url, "error", err)
	}
	return err
}

func (r *RemoteStore[A]) attempt(ctx context.Context, method, url string, bodyBytes []byte, out interface{}) error {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, url, bodyReader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", r.token))
	req.Header.Add("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Network failures are transient; retry.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// classifyStatus maps HTTP failure statuses onto the store's sentinel
// errors so the engine can branch on errors.Is. Server errors stay
// retryable; everything in the 4xx range is permanent.
func classifyStatus(resp *http.Response) error {
	var apiErr APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		apiErr = APIError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	apiErr.StatusCode = resp.StatusCode

	switch resp.StatusCode {
	case http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message))
	case http.StatusConflict:
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrAlreadyExists, apiErr.Message))
	case http.StatusUnauthorized, http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrPermissionDenied, apiErr.Message))
	}

	if resp.StatusCode >= 500 {
		return apiErr
	}
	return backoff.Permanent(apiErr)
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
}
