package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alnah/go-scribe/internal/apierr"
	"github.com/alnah/go-scribe/internal/config"
	"github.com/alnah/go-scribe/internal/pipeline"
)

// retryConfig governs retries around the whole pipeline run. The
// discover-or-create chunk step makes a full re-run cheap: chunks already
// extracted and transcript work already on disk are picked up again.
var retryConfig = apierr.RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
}

// transcribeFlags holds the transcribe command's flag values.
type transcribeFlags struct {
	audioOutput    string
	saveTranscript string
	force          bool
	keepAudio      bool
	keepChunks     bool
	diarize        bool
	device         string
	translate      string
	parallel       int
}

// TranscribeCmd creates the transcribe command.
// The env parameter provides injectable dependencies for testing.
func TranscribeCmd(env *Env) *cobra.Command {
	var flags transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <media-file>",
		Short: "Transcribe an audio or video file",
		Long: `Transcribe an audio or video file using OpenAI's transcription API.

Video input has its audio track extracted first. Audio larger than the API
size ceiling is split into whole-minute chunks, transcribed chunk by chunk,
and reassembled with timestamps shifted to the absolute timeline.

Supported audio formats: flac, m4a, mp3, ogg, wav
Supported video formats: avi, mkv, mov, mp4, webm`,
		Example: `  scribe transcribe lecture.mp3
  scribe transcribe meeting.mp4 -o meeting-audio.mp3 --keep-audio
  scribe transcribe interview.wav --diarize --device cuda
  scribe transcribe talk.mkv --translate fr --save-transcript talk.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, env, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.audioOutput, "audio-output", "o", "", "Path for the extracted audio track (video input only, .mp3)")
	cmd.Flags().StringVarP(&flags.saveTranscript, "save-transcript", "s", "", "Write the transcript to a file instead of stdout")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Re-extract the audio track even if it already exists")
	cmd.Flags().BoolVar(&flags.keepAudio, "keep-audio", false, "Keep the extracted audio track after the run")
	cmd.Flags().BoolVar(&flags.keepChunks, "keep-chunks", false, "Keep chunk files instead of deleting them as they finish")
	cmd.Flags().BoolVar(&flags.diarize, "diarize", false, "Overlay speaker labels onto the transcript")
	cmd.Flags().StringVar(&flags.device, "device", "", "Compute device for diarization (e.g. cuda, cpu)")
	cmd.Flags().StringVar(&flags.translate, "translate", "", "Translate the transcript to a target language (ISO 639-1 code)")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "p", 1, "Max concurrent chunk transcriptions")

	return cmd
}

// runTranscribe executes the transcription pipeline for one input file.
func runTranscribe(cmd *cobra.Command, env *Env, inputPath string, flags transcribeFlags) error {
	ctx := cmd.Context()

	cfg := config.Load(env.Getenv)
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, config.EnvOpenAIAPIKey)
	}

	// The pipeline re-validates, but checking here surfaces input mistakes
	// before ffmpeg resolution.
	if _, err := os.Stat(inputPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", pipeline.ErrFileNotFound, inputPath)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}

	if flags.saveTranscript != "" {
		if _, err := os.Stat(flags.saveTranscript); err == nil {
			return fmt.Errorf("%w: %s", ErrOutputExists, flags.saveTranscript)
		}
	}

	p, err := env.PipelineBuilder.Build(cfg, flags.device, env.Logger,
		pipeline.WithProgress(func(done, total int) {
			fmt.Fprintf(env.Stderr, "Transcribed chunk %d/%d\n", done, total)
		}),
		pipeline.WithParallel(flags.parallel),
	)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		AudioOutput: flags.audioOutput,
		Force:       flags.force,
		KeepAudio:   flags.keepAudio,
		KeepChunks:  flags.keepChunks,
		Diarize:     flags.diarize,
		TargetLang:  flags.translate,
	}

	// Retry wraps the whole run, never individual chunks: reuse of existing
	// chunk files makes a repeated run resume where the last one stopped.
	transcript, err := apierr.RetryWithBackoff(ctx, retryConfig, func() (string, error) {
		return p.Run(ctx, inputPath, opts)
	}, apierr.IsRetryable)
	if err != nil {
		return err
	}

	return writeTranscript(env, flags.saveTranscript, transcript)
}

// ResumeCmd creates the resume command, which picks transcription back up
// from a chunk file on disk with no orchestration record.
func ResumeCmd(env *Env) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "resume <chunk-file>",
		Short: "Resume transcription from an existing chunk file",
		Long: `Resume transcription from a chunk file left on disk.

All sibling chunks of the same audio track are discovered by filename and
transcribed in order. Offsets are measured from each chunk's real duration,
so chunks produced by an external tool with uneven lengths line up correctly.`,
		Example: `  scribe resume lecture_chunk3.mp3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, env, args[0], device)
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Compute device for diarization (e.g. cuda, cpu)")

	return cmd
}

// runResume transcribes a chunk file and its siblings.
func runResume(cmd *cobra.Command, env *Env, chunkPath, device string) error {
	ctx := cmd.Context()

	cfg := config.Load(env.Getenv)
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, config.EnvOpenAIAPIKey)
	}

	if _, err := os.Stat(chunkPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", pipeline.ErrFileNotFound, chunkPath)
		}
		return fmt.Errorf("cannot access chunk file: %w", err)
	}

	p, err := env.PipelineBuilder.Build(cfg, device, env.Logger,
		pipeline.WithProgress(func(done, total int) {
			fmt.Fprintf(env.Stderr, "Transcribed chunk %d/%d\n", done, total)
		}),
	)
	if err != nil {
		return err
	}

	transcript, err := apierr.RetryWithBackoff(ctx, retryConfig, func() (string, error) {
		return p.TranscribeFromChunk(ctx, chunkPath)
	}, apierr.IsRetryable)
	if err != nil {
		return err
	}

	return writeTranscript(env, "", transcript)
}

// writeTranscript prints the transcript to stdout, or writes it to path when
// one is given. O_EXCL closes the race between the earlier existence check
// and file creation.
func writeTranscript(env *Env, path, transcript string) error {
	if path == "" {
		fmt.Fprintln(env.Stdout, transcript)
		return nil
	}

	// #nosec G304 -- user-specified output path with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(transcript + "\n"); err != nil {
			return fmt.Errorf("failed to write transcript: %w", err)
		}
		return nil
	}()
	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	fmt.Fprintf(env.Stderr, "Done: %s\n", path)
	return nil
}
