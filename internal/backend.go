package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultBackendURL is used when no backend URL is configured
const DefaultBackendURL = "http://127.0.0.1:5000"

// maxResponseBytes caps how much of a backend response body is read
const maxResponseBytes = 1 << 20

var (
	// ErrImageNotFound means the backend answered successfully but named no image
	ErrImageNotFound = errors.New("output image not found in backend response")
	// ErrTransport means the request never produced a backend response
	ErrTransport = errors.New("backend request failed")
)

// BackendError is a non-2xx answer from the backend
type BackendError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// Executor runs code on the backend and resolves the produced chart
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// BackendClient talks to the code execution backend over HTTP
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *Metrics
	logger     logrus.FieldLogger
}

// NewBackendClient builds a client for the backend at baseURL
func NewBackendClient(baseURL string, httpClient *http.Client, metrics *Metrics, logger logrus.FieldLogger) *BackendClient {
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BackendClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger.WithField("component", "backend"),
	}
}

// BaseURL returns the configured backend base URL
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

// ImageURL turns an image path returned by the backend into an absolute URL.
// The path is appended as-is, query string included.
func (c *BackendClient) ImageURL(path string) string {
	return c.baseURL + path
}

// Execute posts the code to {baseURL}/execute and classifies the answer
func (c *BackendClient) Execute(ctx context.Context, execReq ExecuteRequest) (ExecuteResult, error) {
	endpoint := c.baseURL + "/execute"
	logger := c.logger.WithFields(logrus.Fields{
		"backend_url": c.baseURL,
		"language":    execReq.Language,
	})

	reqBody, err := json.Marshal(execReq)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logger.Debug("Sending execute request to backend")
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveBackend(execReq.Language, time.Since(start))
	if err != nil {
		logger.WithError(err).Error("Execute request failed")
		return ExecuteResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.WithError(err).Error("Failed to read backend response")
		return ExecuteResult{}, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	var execResp ExecuteResponse
	decodeErr := json.Unmarshal(body, &execResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		backendErr := &BackendError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			backendErr.Message = execResp.Error
			backendErr.Details = execResp.Details
		}
		logger.WithFields(logrus.Fields{
			"status":  resp.StatusCode,
			"details": backendErr.Details,
		}).WithError(backendErr).Warn("Backend reported an error")
		return ExecuteResult{}, backendErr
	}

	logger.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"body":   string(body),
	}).Debug("Backend response received")

	if decodeErr != nil || execResp.Image == "" {
		logger.Warn("Backend response does not have an image path")
		return ExecuteResult{}, ErrImageNotFound
	}

	result := ExecuteResult{
		ImagePath: execResp.Image,
		ImageURL:  c.ImageURL(execResp.Image),
	}
	logger.WithField("image_url", result.ImageURL).Debug("Constructed image URL")
	return result, nil
}

// UserMessage converts a submission error into the text shown on the form
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrImageNotFound) {
		return MessageImageNotFound
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) && backendErr.Message != "" {
		return backendErr.Message
	}
	return MessageSomethingWrong
}

// outcomeOf names the metrics outcome for a submission error
func outcomeOf(err error) string {
	var backendErr *BackendError
	switch {
	case err == nil:
		return OutcomeChart
	case errors.Is(err, ErrImageNotFound):
		return OutcomeImageNotFound
	case errors.As(err, &backendErr):
		return OutcomeBackendError
	default:
		return OutcomeTransport
	}
}
