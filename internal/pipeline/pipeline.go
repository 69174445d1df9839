// Package pipeline orchestrates the transcription of a source media file:
// validation, audio extraction, chunk planning, per-chunk transcription with
// timestamp shifting, retention, and the optional diarization and
// translation stages.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/alnah/go-scribe/internal/diarize"
	"github.com/alnah/go-scribe/internal/format"
	"github.com/alnah/go-scribe/internal/plan"
	"github.com/alnah/go-scribe/internal/store"
	"github.com/alnah/go-scribe/internal/transcribe"
	"github.com/alnah/go-scribe/internal/translate"
)

// audioExt is the one canonical audio format for extracted tracks.
const audioExt = ".mp3"

// audioExts lists source extensions treated as audio containers.
var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

// videoExts lists source extensions treated as video containers.
var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
}

// Media is the extraction collaborator contract consumed by the pipeline.
// The store carries its own extraction handle; the pipeline only probes
// durations and materializes audio tracks from video containers.
type Media interface {
	Duration(ctx context.Context, path string) (float64, error)
	ExtractAudio(ctx context.Context, videoPath, audioPath string, force bool) error
}

// ProgressFunc reports chunk completion: done of total.
type ProgressFunc func(done, total int)

// Options controls one pipeline run.
type Options struct {
	// AudioOutput overrides the derived path for the extracted audio track.
	// Only valid for video input, and only with the canonical extension.
	AudioOutput string

	// Force re-extracts the audio track even when the target exists.
	Force bool

	// KeepAudio retains the extracted audio track after the run.
	KeepAudio bool

	// KeepChunks retains chunk files instead of deleting each one right
	// after its transcription.
	KeepChunks bool

	// Diarize overlays speaker labels onto the transcript.
	Diarize bool

	// TargetLang translates the transcript when non-empty.
	TargetLang string
}

// Pipeline wires the collaborators for chunked transcription. One Pipeline
// may serve many runs, but concurrent runs over the same source file race
// on chunk file names and are not supported: the discover-or-create step
// assumes single-writer access to a source's chunk set.
type Pipeline struct {
	media       Media
	store       *store.Store
	transcriber transcribe.Transcriber
	planner     plan.Params
	diarize     diarize.Factory
	translator  translate.Translator
	logger      *zap.Logger
	progress    ProgressFunc
	parallel    int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPlanner sets the chunk planning parameters.
func WithPlanner(p plan.Params) Option {
	return func(pl *Pipeline) {
		pl.planner = p
	}
}

// WithDiarizeFactory sets the optional diarization capability.
func WithDiarizeFactory(f diarize.Factory) Option {
	return func(pl *Pipeline) {
		pl.diarize = f
	}
}

// WithTranslator sets the translator.
func WithTranslator(t translate.Translator) Option {
	return func(pl *Pipeline) {
		pl.translator = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(pl *Pipeline) {
		pl.logger = logger
	}
}

// WithProgress sets the chunk progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(pl *Pipeline) {
		pl.progress = fn
	}
}

// WithParallel enables bounded parallel chunk transcription. Values <= 1
// keep the sequential default. Results are concatenated in index order
// regardless of completion order.
func WithParallel(n int) Option {
	return func(pl *Pipeline) {
		pl.parallel = n
	}
}

// New creates a Pipeline around the required collaborators.
func New(media Media, st *store.Store, transcriber transcribe.Transcriber, opts ...Option) *Pipeline {
	p := &Pipeline{
		media:       media,
		store:       st,
		transcriber: transcriber,
		planner:     plan.Default(),
		diarize:     diarize.Unavailable,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the whole pipeline for one source media file and returns the
// final transcript.
func (p *Pipeline) Run(ctx context.Context, inputPath string, opts Options) (string, error) {
	audioPath, extracted, err := p.prepareAudio(ctx, inputPath, opts)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("cannot access audio track: %w", err)
	}
	sizeMB := float64(info.Size()) / (1 << 20)

	var transcript string
	if sizeMB <= p.planner.SizeCeilingMB {
		// Small enough for a single engine call.
		transcript, err = p.transcriber.Transcribe(ctx, audioPath)
		if err != nil {
			return "", err
		}
		p.reportProgress(1, 1)
	} else {
		duration, err := p.media.Duration(ctx, audioPath)
		if err != nil {
			return "", err
		}
		pl := p.planner.Calculate(sizeMB, duration)
		p.logger.Info("chunking oversized audio",
			zap.String("audio_path", audioPath),
			zap.Float64("size_mb", sizeMB),
			zap.Float64("duration_seconds", duration),
			zap.Int("num_chunks", pl.NumChunks),
			zap.Float64("chunk_seconds", pl.ChunkSeconds),
		)
		transcript, err = p.TranscribeChunked(ctx, audioPath, duration, pl.NumChunks, pl.ChunkSeconds, opts.KeepChunks)
		if err != nil {
			return "", err
		}
	}

	// Diarization needs the audio track on disk, so it runs before retention.
	if opts.Diarize {
		transcript, err = p.overlaySpeakers(ctx, audioPath, transcript)
		if err != nil {
			return "", err
		}
	}

	if opts.TargetLang != "" {
		if p.translator == nil {
			return "", ErrNoTranslator
		}
		transcript, err = p.translator.Translate(ctx, transcript, opts.TargetLang)
		if err != nil {
			return "", err
		}
	}

	if extracted && !opts.KeepAudio {
		if opts.KeepChunks {
			_ = os.Remove(audioPath)
		} else {
			p.store.CleanupFiles(audioPath)
		}
	}

	return transcript, nil
}

// prepareAudio validates the input and materializes the audio track,
// returning its path and whether this run created it.
//
// All input errors surface here, before any remote I/O.
func (p *Pipeline) prepareAudio(ctx context.Context, inputPath string, opts Options) (string, bool, error) {
	if _, err := os.Stat(inputPath); err != nil {
		if os.IsNotExist(err) {
			return "", false, fmt.Errorf("%w: %s", ErrFileNotFound, inputPath)
		}
		return "", false, fmt.Errorf("cannot access input file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	switch {
	case audioExts[ext]:
		if opts.AudioOutput != "" {
			return "", false, fmt.Errorf("%w: input %s is already audio", ErrAudioOutputUnexpected, inputPath)
		}
		return inputPath, false, nil

	case videoExts[ext]:
		audioPath := opts.AudioOutput
		if audioPath == "" {
			audioPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + audioExt
		} else if strings.ToLower(filepath.Ext(audioPath)) != audioExt {
			return "", false, fmt.Errorf("%w: got %q", ErrAudioOutputExt, filepath.Ext(audioPath))
		}
		if err := p.media.ExtractAudio(ctx, inputPath, audioPath, opts.Force); err != nil {
			return "", false, err
		}
		return audioPath, true, nil

	default:
		return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// TranscribeChunked transcribes an oversized audio track chunk by chunk and
// reassembles the parts into one transcript.
//
// Discover-or-create: when exactly numChunks chunk files already exist on
// disk they are reused as-is, so a second run over a previously interrupted
// job picks up existing work. Any other count (none, or a stale set from a
// different chunk-duration run) triggers full re-extraction over the planned
// ranges.
//
// Offsets are the planned i*chunkSeconds, not measured durations: the
// orchestrator knows its own chunk lengths exactly because it created them.
//
// With keepChunks false each chunk is deleted immediately after its own
// transcription, bounding peak disk usage to roughly one chunk of slack.
// Deletion failures are suppressed; a failed transcription aborts the whole
// call with no partial result.
func (p *Pipeline) TranscribeChunked(ctx context.Context, audioPath string, totalDuration float64, numChunks int, chunkSeconds float64, keepChunks bool) (string, error) {
	chunks := p.store.FindChunks(audioPath)
	if len(chunks) == numChunks {
		p.logger.Info("reusing existing chunks",
			zap.String("audio_path", audioPath),
			zap.Int("num_chunks", numChunks),
		)
	} else {
		chunks = chunks[:0]
		for i := range numChunks {
			start := float64(i) * chunkSeconds
			end := min(start+chunkSeconds, totalDuration)
			chunkPath, err := p.store.ExtractChunk(ctx, audioPath, start, end, i)
			if err != nil {
				return "", fmt.Errorf("extract chunk %d: %w", i, err)
			}
			chunks = append(chunks, chunkPath)
		}
	}

	if p.parallel > 1 {
		return p.transcribeChunksParallel(ctx, chunks, chunkSeconds, keepChunks)
	}

	parts := make([]string, 0, len(chunks))
	for i, chunkPath := range chunks {
		// Cancellation is honored only at chunk boundaries: an in-flight
		// engine call cannot be aborted without risking inconsistent
		// retention state.
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := p.transcribeChunk(ctx, chunkPath, i, float64(i)*chunkSeconds, keepChunks)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
		p.reportProgress(i+1, len(chunks))
	}

	return strings.Join(parts, " "), nil
}

// transcribeChunk transcribes one chunk, shifts its timestamps to the
// absolute timeline, and applies the retention policy for that chunk.
func (p *Pipeline) transcribeChunk(ctx context.Context, chunkPath string, index int, offset float64, keepChunks bool) (string, error) {
	text, err := p.transcriber.Transcribe(ctx, chunkPath)
	if err != nil {
		return "", fmt.Errorf("chunk %d (%s): %w", index, filepath.Base(chunkPath), err)
	}

	if strings.TrimSpace(text) != "" && offset > 0 {
		text = shiftText(text, offset)
	}

	if !keepChunks {
		_ = os.Remove(chunkPath)
	}
	return text, nil
}

// TranscribeFromChunk resumes transcription from a raw chunk file on disk
// with no parent orchestration record: it discovers all sibling chunks of
// the base stem and transcribes them in filename order.
//
// Unlike TranscribeChunked, offsets here are a running sum of each prior
// chunk's measured duration; siblings may have been produced by an external
// process with variable lengths, so the nominal planned duration cannot be
// assumed. Parts are joined with a blank line since chunk boundaries in
// this mode may cross manual edit points.
func (p *Pipeline) TranscribeFromChunk(ctx context.Context, chunkPath string) (string, error) {
	basePath, ok := baseFromChunk(chunkPath)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotAChunk, chunkPath)
	}

	siblings := p.store.FindChunks(basePath)
	if len(siblings) == 0 {
		siblings = []string{chunkPath}
	}

	parts := make([]string, 0, len(siblings))
	offset := 0.0
	for i, sibling := range siblings {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := p.transcriber.Transcribe(ctx, sibling)
		if err != nil {
			return "", fmt.Errorf("chunk %d (%s): %w", i, filepath.Base(sibling), err)
		}
		if strings.TrimSpace(text) != "" && offset > 0 {
			text = shiftText(text, offset)
		}
		parts = append(parts, text)
		p.reportProgress(i+1, len(siblings))

		// The next sibling's offset needs this chunk's real length.
		if i < len(siblings)-1 {
			duration, err := p.media.Duration(ctx, sibling)
			if err != nil {
				return "", fmt.Errorf("probe chunk %d (%s): %w", i, filepath.Base(sibling), err)
			}
			offset += duration
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// overlaySpeakers resolves the diarization capability and labels the
// transcript's timestamped lines.
func (p *Pipeline) overlaySpeakers(ctx context.Context, audioPath, transcript string) (string, error) {
	engine, err := p.diarize()
	if err != nil {
		return "", err
	}
	intervals, err := engine.Diarize(ctx, audioPath)
	if err != nil {
		return "", err
	}
	return diarize.Overlay(transcript, intervals), nil
}

// chunkStemRe splits a chunk path into base stem and extension.
var chunkStemRe = regexp.MustCompile(`^(.+)_chunk\d+(\.[^.]+)$`)

// baseFromChunk recovers the audio track path a chunk file belongs to.
func baseFromChunk(chunkPath string) (string, bool) {
	m := chunkStemRe.FindStringSubmatch(chunkPath)
	if m == nil {
		return "", false
	}
	return m[1] + m[2], true
}

// shiftText shifts every timestamped line of a chunk transcript by the
// chunk's absolute offset.
func shiftText(text string, offset float64) string {
	lines := strings.Split(text, "\n")
	return strings.Join(format.ShiftTimestamps(lines, offset), "\n")
}

// reportProgress invokes the progress callback when one is configured.
func (p *Pipeline) reportProgress(done, total int) {
	if p.progress != nil {
		p.progress(done, total)
	}
}
