// Package store manages the on-disk chunk files belonging to one source
// audio track. Chunks are sibling files named <stem>_chunk<N><ext> with a
// zero-based, unpadded index; discovery works purely by filename pattern so
// a fresh process can resume from whatever a prior run left behind.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Extractor materializes a time range of an audio file into a new file.
// Implemented by the media package; injected for testing.
type Extractor interface {
	ExtractChunk(ctx context.Context, src, dst string, start, end float64) error
}

// Store locates, creates and deletes chunk files for audio tracks.
type Store struct {
	extractor Extractor
}

// New creates a Store backed by the given extractor.
func New(extractor Extractor) *Store {
	return &Store{extractor: extractor}
}

// ChunkPath returns the canonical path of chunk index for an audio track.
// The index is not zero-padded; the convention must stay bit-exact for
// interop with chunks written by prior runs.
func ChunkPath(audioPath string, index int) string {
	ext := filepath.Ext(audioPath)
	stem := strings.TrimSuffix(audioPath, ext)
	return fmt.Sprintf("%s_chunk%d%s", stem, index, ext)
}

// chunkIndexRe extracts the numeric index from a chunk filename stem.
var chunkIndexRe = regexp.MustCompile(`_chunk(\d+)$`)

// FindChunks returns the chunk files discoverable for audioPath, ordered by
// their numeric index (chunk2 sorts before chunk10). A missing parent
// directory yields an empty result, never an error: discovery must be safe
// to call from a fresh process against any state.
func (s *Store) FindChunks(audioPath string) []string {
	dir := filepath.Dir(audioPath)
	ext := filepath.Ext(audioPath)
	stem := strings.TrimSuffix(filepath.Base(audioPath), ext)
	prefix := stem + "_chunk"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	type chunk struct {
		path  string
		index int
	}
	var chunks []chunk

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || !strings.HasPrefix(name, prefix) {
			continue
		}
		base := strings.TrimSuffix(name, ext)
		m := chunkIndexRe.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk{path: filepath.Join(dir, name), index: index})
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })

	paths := make([]string, len(chunks))
	for i, c := range chunks {
		paths[i] = c.path
	}
	return paths
}

// ExtractChunk materializes [start, end) of audioPath into the chunk file
// for index. The chunk path is returned even when extraction fails so the
// caller can identify the partial file; extraction errors propagate
// unmodified from the extractor.
func (s *Store) ExtractChunk(ctx context.Context, audioPath string, start, end float64, index int) (string, error) {
	chunkPath := ChunkPath(audioPath, index)
	if err := s.extractor.ExtractChunk(ctx, audioPath, chunkPath, start, end); err != nil {
		return chunkPath, err
	}
	return chunkPath, nil
}

// CleanupFiles deletes the main audio file and every discoverable chunk.
// Missing files are tolerated: a prior run or concurrent cleanup may
// already have removed them.
func (s *Store) CleanupFiles(audioPath string) {
	_ = os.Remove(audioPath)
	s.CleanupChunksOnly(audioPath)
}

// CleanupChunksOnly deletes only the chunk files, leaving the main audio
// file untouched. Used when the caller keeps the intermediate audio but
// discards the transient chunks.
func (s *Store) CleanupChunksOnly(audioPath string) {
	for _, chunk := range s.FindChunks(audioPath) {
		_ = os.Remove(chunk)
	}
}
