// Package format renders engine transcription responses as timestamped text
// lines and shifts timestamps between chunk-local and absolute timelines.
package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one timed line of a transcription result.
type Segment struct {
	Start float64 // seconds
	End   float64 // seconds
	Text  string
}

// Kind discriminates the Response variants.
type Kind int

const (
	// KindPlainText is a scalar string response, returned as a single line unchanged.
	KindPlainText Kind = iota

	// KindSegments is a structured response carrying timed segments.
	KindSegments

	// KindRawText is a structured response with only a top-level text field
	// (fallback when the engine returned no segments).
	KindRawText
)

// Response is the normalized form of an engine transcription result.
// Adapters at the API boundary produce exactly one of the three variants so
// the rendering logic never inspects provider-specific shapes.
type Response struct {
	Kind     Kind
	Text     string
	Segments []Segment
}

// PlainText wraps a scalar string response.
func PlainText(s string) Response {
	return Response{Kind: KindPlainText, Text: s}
}

// Segments wraps a structured segment response.
func Segments(segs []Segment) Response {
	return Response{Kind: KindSegments, Segments: segs}
}

// RawText wraps a structured response that carried only a text field.
func RawText(s string) Response {
	return Response{Kind: KindRawText, Text: s}
}

// Timestamp formats seconds as HH:MM:SS with integer truncation.
// NaN, Inf and negative values format as "00:00:00"; bad segment times from
// the remote engine must not abort an otherwise recoverable transcription.
func Timestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00:00"
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// timedLine matches "[HH:MM:SS - HH:MM:SS] text" lines. The MM:SS short form
// is accepted too since some engines omit the hour field.
var timedLine = regexp.MustCompile(`^\[(\d{1,2}(?::\d{2}){1,2}) - (\d{1,2}(?::\d{2}){1,2})\] ?(.*)$`)

// ParseTimestamp parses a HH:MM:SS or MM:SS clock into seconds.
func ParseTimestamp(clock string) (float64, error) {
	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", clock)
	}
	seconds := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", clock, err)
		}
		seconds = seconds*60 + n
	}
	return float64(seconds), nil
}

// Lines renders a Response as ordered text lines.
//
// PlainText responses come back as a one-element list unchanged. Segment
// responses drop segments whose trimmed text is empty and strip the rest;
// when withTimestamps is true each line carries a "[start - end]" prefix.
// RawText responses yield a single trimmed line, or nothing when empty.
func Lines(r Response, withTimestamps bool) []string {
	switch r.Kind {
	case KindPlainText:
		return []string{r.Text}

	case KindSegments:
		lines := make([]string, 0, len(r.Segments))
		for _, seg := range r.Segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			if withTimestamps {
				lines = append(lines, fmt.Sprintf("[%s - %s] %s",
					Timestamp(seg.Start), Timestamp(seg.End), text))
			} else {
				lines = append(lines, text)
			}
		}
		return lines

	case KindRawText:
		text := strings.TrimSpace(r.Text)
		if text == "" {
			return nil
		}
		return []string{text}
	}

	return nil
}

// ShiftTimestamps adds offsetSeconds to both timestamps of every line
// matching the "[HH:MM:SS - HH:MM:SS] text" pattern and rebuilds the line.
// Non-matching lines pass through unchanged.
//
// The offset is absolute, not a running delta: shifting the same source
// lines twice with the same offset produces the same output, so repeated
// application cannot accumulate drift.
func ShiftTimestamps(lines []string, offsetSeconds float64) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		m := timedLine.FindStringSubmatch(line)
		if m == nil {
			out[i] = line
			continue
		}
		start, err1 := ParseTimestamp(m[1])
		end, err2 := ParseTimestamp(m[2])
		if err1 != nil || err2 != nil {
			out[i] = line
			continue
		}
		out[i] = fmt.Sprintf("[%s - %s] %s",
			Timestamp(start+offsetSeconds), Timestamp(end+offsetSeconds), m[3])
	}
	return out
}

// TimedBounds extracts the start and end seconds from a timestamped line.
// Returns ok=false for lines that do not match the timed pattern.
func TimedBounds(line string) (start, end float64, text string, ok bool) {
	m := timedLine.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, "", false
	}
	start, err1 := ParseTimestamp(m[1])
	end, err2 := ParseTimestamp(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, "", false
	}
	return start, end, m[3], true
}
