// Package diarize attributes spans of audio to speaker labels and overlays
// them onto timestamped transcript lines.
package diarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alnah/go-scribe/internal/format"
)

// ErrUnavailable indicates no diarization engine is configured.
// Diarization is an optional capability resolved once at startup, not a
// dependency loaded lazily on first use.
var ErrUnavailable = errors.New("diarization engine unavailable")

// Interval is one speaker-attributed time span. Intervals are ordered and
// non-overlapping by construction of the upstream model; this package does
// not validate that.
type Interval struct {
	Start   float64 // seconds
	End     float64 // seconds
	Speaker string
}

// Engine computes speaker-change intervals for an audio file.
type Engine interface {
	Diarize(ctx context.Context, audioPath string) ([]Interval, error)
}

// Factory resolves the optional diarization capability. A factory returning
// ErrUnavailable means the engine is not configured for this deployment.
type Factory func() (Engine, error)

// Unavailable is the Factory for deployments without a diarization engine.
func Unavailable() (Engine, error) {
	return nil, ErrUnavailable
}

// Overlay labels every timestamped transcript line with the speaker whose
// interval contains the line's midpoint. Lines without a matching interval,
// non-timestamped lines, and transcripts with zero intervals pass through
// unchanged.
func Overlay(transcript string, intervals []Interval) string {
	if len(intervals) == 0 {
		return transcript
	}

	lines := strings.Split(transcript, "\n")
	for i, line := range lines {
		start, end, text, ok := format.TimedBounds(line)
		if !ok {
			continue
		}

		mid := (start + end) / 2
		speaker, ok := speakerAt(intervals, mid)
		if !ok {
			continue
		}

		// Splice the label in after the "] " separator so the original
		// clock text is preserved byte for byte.
		prefix := strings.TrimSuffix(line, text)
		lines[i] = fmt.Sprintf("%s%s: %s", prefix, speaker, text)
	}
	return strings.Join(lines, "\n")
}

// speakerAt finds the interval containing the given instant.
func speakerAt(intervals []Interval, at float64) (string, bool) {
	for _, iv := range intervals {
		if iv.Start <= at && at <= iv.End {
			return iv.Speaker, true
		}
	}
	return "", false
}
