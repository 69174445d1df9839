package pipeline

import "errors"

// Input validation sentinels. These are raised before any remote I/O and
// are never retried.
var (
	// ErrFileNotFound indicates the source media file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates the source extension is not in the
	// audio or video allow-list.
	ErrUnsupportedFormat = errors.New("unsupported media format")

	// ErrAudioOutputExt indicates an explicit audio output path carries a
	// foreign extension. The override is rejected, not silently coerced.
	ErrAudioOutputExt = errors.New("audio output must use the .mp3 extension")

	// ErrAudioOutputUnexpected indicates an audio output path was supplied
	// for an input that is already audio.
	ErrAudioOutputUnexpected = errors.New("audio output path is only valid for video input")

	// ErrNotAChunk indicates a path given to the sibling-scan mode does not
	// follow the <stem>_chunk<N><ext> convention.
	ErrNotAChunk = errors.New("path is not a chunk file")

	// ErrNoTranslator indicates translation was requested but no translator
	// is configured.
	ErrNoTranslator = errors.New("no translator configured")
)
