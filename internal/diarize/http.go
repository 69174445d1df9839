package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alnah/go-scribe/internal/apierr"
)

// defaultHTTPTimeout bounds one diarization request. Diarization of long
// recordings is slow; five minutes matches the transcription client.
const defaultHTTPTimeout = 5 * time.Minute

// maxResponseSize limits response reads to prevent OOM from malformed responses.
const maxResponseSize = 10 << 20

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Compile-time interface compliance check.
var _ Engine = (*HTTPEngine)(nil)

// HTTPEngine calls a hosted diarization model over HTTP: the audio file is
// uploaded as multipart form data and the model returns ordered
// speaker-change intervals as JSON.
type HTTPEngine struct {
	endpoint   string
	apiKey     string
	device     string
	httpClient httpDoer
}

// HTTPOption configures an HTTPEngine.
type HTTPOption func(*HTTPEngine)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c httpDoer) HTTPOption {
	return func(e *HTTPEngine) {
		e.httpClient = c
	}
}

// WithDevice selects the compute device the model runs on (e.g. "cuda",
// "cpu"). Forwarded to the service; empty means service default.
func WithDevice(device string) HTTPOption {
	return func(e *HTTPEngine) {
		e.device = device
	}
}

// NewHTTPEngine creates an HTTPEngine for the given endpoint.
func NewHTTPEngine(endpoint, apiKey string, opts ...HTTPOption) *HTTPEngine {
	e := &HTTPEngine{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFactory returns a Factory resolving to an HTTPEngine when an endpoint
// is configured, and to ErrUnavailable otherwise.
func NewFactory(endpoint, apiKey string, opts ...HTTPOption) Factory {
	if endpoint == "" {
		return Unavailable
	}
	return func() (Engine, error) {
		return NewHTTPEngine(endpoint, apiKey, opts...), nil
	}
}

// intervalResponse is the wire shape of the diarization model's response.
type intervalResponse struct {
	Intervals []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"intervals"`
}

// Diarize uploads audioPath and returns the model's speaker intervals.
func (e *HTTPEngine) Diarize(ctx context.Context, audioPath string) ([]Interval, error) {
	file, err := os.Open(audioPath) // #nosec G304 -- audioPath is from internal pipeline state
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file to form: %w", err)
	}
	if e.device != "" {
		if err := writer.WriteField("device", e.device); err != nil {
			return nil, fmt.Errorf("failed to write device field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode, respBody)
	}

	var parsed intervalResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	intervals := make([]Interval, len(parsed.Intervals))
	for i, iv := range parsed.Intervals {
		intervals[i] = Interval{Start: iv.Start, End: iv.End, Speaker: iv.Speaker}
	}
	return intervals, nil
}

// classifyHTTPError maps diarization service errors to apierr sentinels.
func classifyHTTPError(statusCode int, body []byte) error {
	msg := string(body)
	switch statusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", msg, apierr.ErrRateLimit)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, apierr.ErrAuthFailed)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w", msg, apierr.ErrTimeout)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%s: %w", msg, apierr.ErrTimeout) // retryable server error
	default:
		return fmt.Errorf("HTTP %d: %s: %w", statusCode, msg, apierr.ErrBadRequest)
	}
}
