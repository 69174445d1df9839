// Package transcribe adapts the remote speech-to-text engine for one audio
// file. It requests a segment-level response, normalizes the provider shape
// into format.Response, and renders a timestamped transcript.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/alnah/go-scribe/internal/apierr"
	"github.com/alnah/go-scribe/internal/format"
)

// DefaultModel is the transcription model requested from the engine.
const DefaultModel = openai.Whisper1

// previewLimit bounds the raw-content preview in empty-result diagnostics.
const previewLimit = 200

// Transcriber transcribes a single audio file to formatted text.
type Transcriber interface {
	// Transcribe converts an audio file to a timestamped transcript.
	// An empty string is a valid result (e.g. silent audio), not an error.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// engineClient is the slice of the OpenAI client this adapter needs.
// *openai.Client implements it implicitly; tests inject mocks.
type engineClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber  = (*OpenAITranscriber)(nil)
	_ engineClient = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio using OpenAI's transcription API.
// It performs no retries: retry policy belongs to the layer wrapping the
// whole pipeline call, so a failure on one chunk never silently re-runs
// earlier chunks.
type OpenAITranscriber struct {
	client         engineClient
	model          string
	withTimestamps bool
	logger         *zap.Logger
}

// Option configures an OpenAITranscriber.
type Option func(*OpenAITranscriber)

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(t *OpenAITranscriber) {
		t.model = model
	}
}

// WithoutTimestamps renders bare text lines instead of timestamped ones.
func WithoutTimestamps() Option {
	return func(t *OpenAITranscriber) {
		t.withTimestamps = false
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *OpenAITranscriber) {
		t.logger = logger
	}
}

// NewOpenAITranscriber creates a transcriber around the given client.
func NewOpenAITranscriber(client engineClient, opts ...Option) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client:         client,
		model:          DefaultModel,
		withTimestamps: true,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcribe sends audioPath to the engine and renders the response.
//
// The file is opened in binary mode and streamed to the API with a
// structured (verbose JSON) response format so segment timestamps are
// available. An empty or whitespace-only result is returned as-is after
// logging a diagnostic: silent audio legitimately produces zero segments,
// and the caller must receive that as a transcript, not an exception.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath) // #nosec G304 -- audioPath comes from internal chunking
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = file.Close() }()

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   file,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return "", classifyError(err)
	}

	normalized := Normalize(resp)
	lines := format.Lines(normalized, t.withTimestamps)
	transcript := strings.Join(lines, "\n")

	if strings.TrimSpace(transcript) == "" {
		t.logEmptyResult(audioPath, resp, normalized)
	}

	return transcript, nil
}

// Normalize converts a provider response into the tagged union the
// formatter operates on: segments when present, the top-level text field
// as a fallback, plain text otherwise.
func Normalize(resp openai.AudioResponse) format.Response {
	if len(resp.Segments) > 0 {
		segs := make([]format.Segment, len(resp.Segments))
		for i, s := range resp.Segments {
			segs[i] = format.Segment{Start: s.Start, End: s.End, Text: s.Text}
		}
		return format.Segments(segs)
	}
	return format.RawText(resp.Text)
}

// logEmptyResult records enough context to distinguish legitimately silent
// audio from a changed engine response shape during triage.
func (t *OpenAITranscriber) logEmptyResult(audioPath string, resp openai.AudioResponse, normalized format.Response) {
	preview := resp.Text
	if len(preview) > previewLimit {
		preview = preview[:previewLimit]
	}
	t.logger.Warn("transcription result is empty",
		zap.String("audio_path", audioPath),
		zap.Int("response_kind", int(normalized.Kind)),
		zap.Int("segment_count", len(resp.Segments)),
		zap.Float64("reported_duration", float64(resp.Duration)),
		zap.String("raw_text_preview", preview),
	)
}

// classifyError maps OpenAI API errors to apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// Quota exhaustion is a billing issue requiring user action;
			// it must not look like a retryable rate limit.
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout) // retryable server error
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrBadRequest)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}
