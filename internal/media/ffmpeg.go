// Package media wraps ffmpeg for duration probing and time-bounded audio
// extraction. It is the only package that touches the ffmpeg binary.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// FFmpeg runs ffmpeg commands for probing and extraction.
type FFmpeg struct {
	path string
	cmd  commandRunner
}

// Option configures an FFmpeg adapter.
type Option func(*FFmpeg)

// WithCommandRunner sets the command runner (for testing).
func WithCommandRunner(r commandRunner) Option {
	return func(f *FFmpeg) {
		f.cmd = r
	}
}

// New creates an FFmpeg adapter. An empty path resolves ffmpeg from PATH.
func New(path string, opts ...Option) (*FFmpeg, error) {
	if path == "" {
		resolved, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
		}
		path = resolved
	}

	f := &FFmpeg{
		path: path,
		cmd:  osCommandRunner{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Duration returns the duration of a media file in seconds.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	// The -i flag with a null output shows file info including duration.
	// ffprobe may not be installed alongside ffmpeg.
	args := []string{
		"-i", path,
		"-f", "null", "-",
	}
	output, err := f.cmd.CombinedOutput(ctx, f.path, args)
	if err != nil {
		// FFmpeg returns non-zero even when it successfully reads file info,
		// so we try to parse the output anyway.
		if len(output) == 0 {
			return 0, err
		}
	}

	return parseDurationOutput(string(output))
}

// ExtractChunk materializes [start, end) seconds of src into dst.
// Re-encoding (rather than stream copy) guarantees valid output even from
// corrupted or truncated sources.
func (f *FFmpeg) ExtractChunk(ctx context.Context, src, dst string, start, end float64) error {
	args := []string{
		"-y",
		"-i", src,
		"-ss", clockTime(start),
		"-to", clockTime(end),
		"-acodec", "libmp3lame",
		"-ar", "16000",
		"-ac", "1",
		"-q:a", "2",
		dst,
	}

	output, err := f.cmd.CombinedOutput(ctx, f.path, args)
	if err != nil {
		return fmt.Errorf("%w: chunk %s: %v\nOutput: %s",
			ErrExtractFailed, dst, err, string(output))
	}
	return nil
}

// ExtractAudio extracts the audio track of a video container into audioPath.
// A no-op when the target already exists and force is false.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, audioPath string, force bool) error {
	if !force {
		if _, err := os.Stat(audioPath); err == nil {
			return nil
		}
	}

	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}

	output, err := f.cmd.CombinedOutput(ctx, f.path, args)
	if err != nil {
		return fmt.Errorf("%w: audio track of %s: %v\nOutput: %s",
			ErrExtractFailed, videoPath, err, string(output))
	}
	return nil
}

// durationRe matches "Duration: HH:MM:SS.cc" in ffmpeg stderr.
var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// timeRe matches "time=HH:MM:SS.cc" progress lines (fallback).
var timeRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)

// parseDurationOutput extracts a duration in seconds from ffmpeg stderr.
func parseDurationOutput(output string) (float64, error) {
	if m := durationRe.FindStringSubmatch(output); m != nil {
		return timeComponents(m[1], m[2], m[3], m[4]), nil
	}

	// Use the last progress time (final position) as a fallback.
	all := timeRe.FindAllStringSubmatch(output, -1)
	if len(all) > 0 {
		m := all[len(all)-1]
		return timeComponents(m[1], m[2], m[3], m[4]), nil
	}

	return 0, ErrDurationUnknown
}

// timeComponents converts HH, MM, SS and a fractional part to seconds.
func timeComponents(hours, minutes, seconds, fractional string) float64 {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	frac, _ := strconv.Atoi(fractional)
	scale := 1.0
	for range len(fractional) {
		scale *= 10
	}

	return float64(h*3600+m*60+s) + float64(frac)/scale
}

// clockTime formats seconds for ffmpeg -ss/-to arguments.
func clockTime(seconds float64) string {
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
