package cli

import "errors"

// CLI-specific sentinel errors. Validation and usage errors that don't
// belong to domain packages.

var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY is not set.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrOutputExists indicates the transcript output file already exists.
	ErrOutputExists = errors.New("output file already exists")
)
