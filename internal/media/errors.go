package media

import "errors"

// ErrFFmpegNotFound indicates the ffmpeg binary could not be located.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// ErrExtractFailed indicates an ffmpeg extraction run failed.
var ErrExtractFailed = errors.New("extraction failed")

// ErrDurationUnknown indicates the media duration could not be parsed
// from ffmpeg output.
var ErrDurationUnknown = errors.New("could not determine media duration")
