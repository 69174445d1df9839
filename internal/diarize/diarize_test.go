package diarize_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/alnah/go-scribe/internal/apierr"
	"github.com/alnah/go-scribe/internal/diarize"
)

// mockHTTPClient implements the HTTP doer for engine tests.
type mockHTTPClient struct {
	mu         sync.Mutex
	requests   []*http.Request
	bodies     [][]byte
	statusCode int
	response   string
	err        error
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		m.bodies = append(m.bodies, body)
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(strings.NewReader(m.response)),
		Header:     make(http.Header),
	}, nil
}

func createTempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.mp3")
	if err := os.WriteFile(path, []byte("fake audio content"), 0o644); err != nil {
		t.Fatalf("failed to create temp audio file: %v", err)
	}
	return path
}

// ---------------------------------------------------------------------------
// TestOverlay - Speaker labeling
// ---------------------------------------------------------------------------

func TestOverlay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		intervals  []diarize.Interval
		want       string
	}{
		{
			name:       "labels line whose midpoint falls in an interval",
			transcript: "[00:00 - 00:05] Hello",
			intervals:  []diarize.Interval{{Start: 0, End: 10, Speaker: "SPEAKER_00"}},
			want:       "[00:00 - 00:05] SPEAKER_00: Hello",
		},
		{
			name:       "line outside every interval passes through",
			transcript: "[00:20 - 00:25] Hello",
			intervals:  []diarize.Interval{{Start: 0, End: 10, Speaker: "SPEAKER_00"}},
			want:       "[00:20 - 00:25] Hello",
		},
		{
			name:       "zero intervals leave transcript unchanged",
			transcript: "[00:00 - 00:05] Hello",
			intervals:  nil,
			want:       "[00:00 - 00:05] Hello",
		},
		{
			name:       "non-timestamped lines pass through",
			transcript: "just plain text",
			intervals:  []diarize.Interval{{Start: 0, End: 10, Speaker: "SPEAKER_00"}},
			want:       "just plain text",
		},
		{
			name: "alternating speakers across lines",
			transcript: "[00:00:00 - 00:00:04] Hi there\n" +
				"[00:00:04 - 00:00:08] Hi yourself\n" +
				"plain line",
			intervals: []diarize.Interval{
				{Start: 0, End: 4, Speaker: "SPEAKER_00"},
				{Start: 4, End: 8, Speaker: "SPEAKER_01"},
			},
			want: "[00:00:00 - 00:00:04] SPEAKER_00: Hi there\n" +
				"[00:00:04 - 00:00:08] SPEAKER_01: Hi yourself\n" +
				"plain line",
		},
		{
			name:       "midpoint decides the speaker",
			transcript: "[00:00:00 - 00:00:10] bridging line",
			intervals: []diarize.Interval{
				{Start: 0, End: 3, Speaker: "SPEAKER_00"},
				{Start: 3, End: 10, Speaker: "SPEAKER_01"},
			},
			// Midpoint is 5s, inside the second interval.
			want: "[00:00:00 - 00:00:10] SPEAKER_01: bridging line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := diarize.Overlay(tt.transcript, tt.intervals); got != tt.want {
				t.Errorf("Overlay() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestFactory - Optional capability resolution
// ---------------------------------------------------------------------------

func TestFactory(t *testing.T) {
	t.Parallel()

	t.Run("unavailable factory returns sentinel", func(t *testing.T) {
		t.Parallel()
		_, err := diarize.Unavailable()
		if !errors.Is(err, diarize.ErrUnavailable) {
			t.Errorf("Unavailable() error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("empty endpoint resolves to unavailable", func(t *testing.T) {
		t.Parallel()
		factory := diarize.NewFactory("", "key")
		_, err := factory()
		if !errors.Is(err, diarize.ErrUnavailable) {
			t.Errorf("factory() error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("configured endpoint resolves to an engine", func(t *testing.T) {
		t.Parallel()
		factory := diarize.NewFactory("http://localhost:9999/diarize", "key")
		engine, err := factory()
		if err != nil {
			t.Fatalf("factory() unexpected error: %v", err)
		}
		if engine == nil {
			t.Error("factory() engine = nil")
		}
	})
}

// ---------------------------------------------------------------------------
// TestHTTPEngine - Wire behavior
// ---------------------------------------------------------------------------

func TestHTTPEngine(t *testing.T) {
	t.Parallel()

	t.Run("parses intervals from response", func(t *testing.T) {
		t.Parallel()
		audioPath := createTempAudioFile(t)
		mock := &mockHTTPClient{
			statusCode: http.StatusOK,
			response:   `{"intervals": [{"start": 0, "end": 4.5, "speaker": "SPEAKER_00"}, {"start": 4.5, "end": 9, "speaker": "SPEAKER_01"}]}`,
		}
		engine := diarize.NewHTTPEngine("http://example.test/diarize", "key",
			diarize.WithHTTPClient(mock))

		got, err := engine.Diarize(context.Background(), audioPath)
		if err != nil {
			t.Fatalf("Diarize() unexpected error: %v", err)
		}
		want := []diarize.Interval{
			{Start: 0, End: 4.5, Speaker: "SPEAKER_00"},
			{Start: 4.5, End: 9, Speaker: "SPEAKER_01"},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Diarize() = %v, want %v", got, want)
		}
	})

	t.Run("sends bearer token and audio file", func(t *testing.T) {
		t.Parallel()
		audioPath := createTempAudioFile(t)
		mock := &mockHTTPClient{statusCode: http.StatusOK, response: `{"intervals": []}`}
		engine := diarize.NewHTTPEngine("http://example.test/diarize", "secret-key",
			diarize.WithHTTPClient(mock))

		if _, err := engine.Diarize(context.Background(), audioPath); err != nil {
			t.Fatalf("Diarize() unexpected error: %v", err)
		}
		req := mock.requests[0]
		if got := req.Header.Get("Authorization"); got != "Bearer secret-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if !bytes.Contains(mock.bodies[0], []byte("fake audio content")) {
			t.Error("request body does not carry the audio content")
		}
	})

	t.Run("forwards the device field when configured", func(t *testing.T) {
		t.Parallel()
		audioPath := createTempAudioFile(t)
		mock := &mockHTTPClient{statusCode: http.StatusOK, response: `{"intervals": []}`}
		engine := diarize.NewHTTPEngine("http://example.test/diarize", "key",
			diarize.WithHTTPClient(mock), diarize.WithDevice("cuda"))

		if _, err := engine.Diarize(context.Background(), audioPath); err != nil {
			t.Fatalf("Diarize() unexpected error: %v", err)
		}
		body := mock.bodies[0]
		if !bytes.Contains(body, []byte(`name="device"`)) || !bytes.Contains(body, []byte("cuda")) {
			t.Error("request body does not carry the device field")
		}
	})

	t.Run("maps 429 to rate limit", func(t *testing.T) {
		t.Parallel()
		audioPath := createTempAudioFile(t)
		mock := &mockHTTPClient{statusCode: http.StatusTooManyRequests, response: "slow down"}
		engine := diarize.NewHTTPEngine("http://example.test/diarize", "key",
			diarize.WithHTTPClient(mock))

		_, err := engine.Diarize(context.Background(), audioPath)
		if !errors.Is(err, apierr.ErrRateLimit) {
			t.Errorf("Diarize() error = %v, want ErrRateLimit", err)
		}
	})

	t.Run("maps 401 to auth failure", func(t *testing.T) {
		t.Parallel()
		audioPath := createTempAudioFile(t)
		mock := &mockHTTPClient{statusCode: http.StatusUnauthorized, response: "nope"}
		engine := diarize.NewHTTPEngine("http://example.test/diarize", "key",
			diarize.WithHTTPClient(mock))

		_, err := engine.Diarize(context.Background(), audioPath)
		if !errors.Is(err, apierr.ErrAuthFailed) {
			t.Errorf("Diarize() error = %v, want ErrAuthFailed", err)
		}
	})

	t.Run("missing audio file fails before any request", func(t *testing.T) {
		t.Parallel()
		mock := &mockHTTPClient{statusCode: http.StatusOK, response: `{"intervals": []}`}
		engine := diarize.NewHTTPEngine("http://example.test/diarize", "key",
			diarize.WithHTTPClient(mock))

		if _, err := engine.Diarize(context.Background(), "/nonexistent.mp3"); err == nil {
			t.Error("Diarize() expected error for missing file")
		}
		if len(mock.requests) != 0 {
			t.Errorf("requests = %d, want 0", len(mock.requests))
		}
	})
}
