package cli_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alnah/go-scribe/internal/cli"
	"github.com/alnah/go-scribe/internal/config"
	"github.com/alnah/go-scribe/internal/pipeline"
	"github.com/alnah/go-scribe/internal/store"
)

// fixedTranscriber returns the same text for any input.
type fixedTranscriber struct{ text string }

func (f *fixedTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f.text, nil
}

// nullMedia satisfies the media contract for direct-path runs.
type nullMedia struct{}

func (nullMedia) Duration(ctx context.Context, path string) (float64, error) { return 0, nil }
func (nullMedia) ExtractAudio(ctx context.Context, videoPath, audioPath string, force bool) error {
	return nil
}

// nullExtractor is never reached in these tests.
type nullExtractor struct{}

func (nullExtractor) ExtractChunk(ctx context.Context, src, dst string, start, end float64) error {
	return nil
}

// stubBuilder wires a pipeline over fakes, keeping the command-level options.
type stubBuilder struct{ text string }

func (s stubBuilder) Build(cfg config.Config, device string, logger *zap.Logger, extra ...pipeline.Option) (*pipeline.Pipeline, error) {
	return pipeline.New(nullMedia{}, store.New(nullExtractor{}), &fixedTranscriber{text: s.text}, extra...), nil
}

// testEnv builds an Env with captured output and a stub pipeline.
func testEnv(transcript string, vars map[string]string) (*cli.Env, *bytes.Buffer) {
	var stdout bytes.Buffer
	env := cli.NewEnv(
		cli.WithStdout(&stdout),
		cli.WithStderr(io.Discard),
		cli.WithLogger(zap.NewNop()),
		cli.WithGetenv(func(key string) string { return vars[key] }),
		cli.WithPipelineBuilder(stubBuilder{text: transcript}),
	)
	return env, &stdout
}

// run executes a command with args and returns its error.
func run(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func createAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to create audio file: %v", err)
	}
	return path
}

var apiKeyEnv = map[string]string{config.EnvOpenAIAPIKey: "sk-test"}

// ---------------------------------------------------------------------------
// TestTranscribeCmd
// ---------------------------------------------------------------------------

func TestTranscribeCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints the transcript to stdout", func(t *testing.T) {
		t.Parallel()
		env, stdout := testEnv("the transcript", apiKeyEnv)
		audioPath := createAudioFile(t)

		if err := run(cli.TranscribeCmd(env), audioPath); err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		if got := stdout.String(); got != "the transcript\n" {
			t.Errorf("stdout = %q", got)
		}
	})

	t.Run("missing API key fails fast", func(t *testing.T) {
		t.Parallel()
		env, _ := testEnv("x", nil)
		audioPath := createAudioFile(t)

		err := run(cli.TranscribeCmd(env), audioPath)
		if !errors.Is(err, cli.ErrAPIKeyMissing) {
			t.Errorf("Execute() error = %v, want ErrAPIKeyMissing", err)
		}
	})

	t.Run("missing input file fails fast", func(t *testing.T) {
		t.Parallel()
		env, _ := testEnv("x", apiKeyEnv)

		err := run(cli.TranscribeCmd(env), "/nonexistent.mp3")
		if !errors.Is(err, pipeline.ErrFileNotFound) {
			t.Errorf("Execute() error = %v, want ErrFileNotFound", err)
		}
	})

	t.Run("save-transcript writes the file", func(t *testing.T) {
		t.Parallel()
		env, stdout := testEnv("saved text", apiKeyEnv)
		audioPath := createAudioFile(t)
		outPath := filepath.Join(t.TempDir(), "out.txt")

		if err := run(cli.TranscribeCmd(env), audioPath, "--save-transcript", outPath); err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		content, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("transcript file not written: %v", err)
		}
		if string(content) != "saved text\n" {
			t.Errorf("file content = %q", content)
		}
		if stdout.Len() != 0 {
			t.Errorf("stdout = %q, want empty when saving to file", stdout.String())
		}
	})

	t.Run("existing output file is refused", func(t *testing.T) {
		t.Parallel()
		env, _ := testEnv("x", apiKeyEnv)
		audioPath := createAudioFile(t)
		outPath := filepath.Join(t.TempDir(), "out.txt")
		if err := os.WriteFile(outPath, []byte("precious"), 0o644); err != nil {
			t.Fatalf("failed to create output file: %v", err)
		}

		err := run(cli.TranscribeCmd(env), audioPath, "--save-transcript", outPath)
		if !errors.Is(err, cli.ErrOutputExists) {
			t.Errorf("Execute() error = %v, want ErrOutputExists", err)
		}
		content, _ := os.ReadFile(outPath)
		if string(content) != "precious" {
			t.Errorf("existing file was overwritten: %q", content)
		}
	})

	t.Run("wrong argument count is a usage error", func(t *testing.T) {
		t.Parallel()
		env, _ := testEnv("x", apiKeyEnv)

		err := run(cli.TranscribeCmd(env))
		if err == nil || !strings.Contains(err.Error(), "accepts") {
			t.Errorf("Execute() error = %v, want cobra arg-count error", err)
		}
	})
}

// ---------------------------------------------------------------------------
// TestResumeCmd
// ---------------------------------------------------------------------------

func TestResumeCmd(t *testing.T) {
	t.Parallel()

	t.Run("transcribes a chunk file and its siblings", func(t *testing.T) {
		t.Parallel()
		env, stdout := testEnv("resumed text", apiKeyEnv)
		dir := t.TempDir()
		chunkPath := filepath.Join(dir, "talk_chunk0.mp3")
		if err := os.WriteFile(chunkPath, []byte("chunk"), 0o644); err != nil {
			t.Fatalf("failed to create chunk: %v", err)
		}

		if err := run(cli.ResumeCmd(env), chunkPath); err != nil {
			t.Fatalf("Execute() unexpected error: %v", err)
		}
		if got := stdout.String(); got != "resumed text\n" {
			t.Errorf("stdout = %q", got)
		}
	})

	t.Run("non-chunk path is rejected", func(t *testing.T) {
		t.Parallel()
		env, _ := testEnv("x", apiKeyEnv)
		audioPath := createAudioFile(t)

		err := run(cli.ResumeCmd(env), audioPath)
		if !errors.Is(err, pipeline.ErrNotAChunk) {
			t.Errorf("Execute() error = %v, want ErrNotAChunk", err)
		}
	})
}
