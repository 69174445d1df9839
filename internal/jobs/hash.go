package jobs

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// HashFile returns the hex blake3-256 digest of a file's content.
// Identical source files hash identically regardless of path, which lets
// the service return a finished prior job instead of re-transcribing.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path was validated by the caller
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
