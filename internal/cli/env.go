// Package cli implements the scribe command-line interface on top of the
// transcription pipeline.
package cli

import (
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/alnah/go-scribe/internal/config"
	"github.com/alnah/go-scribe/internal/diarize"
	"github.com/alnah/go-scribe/internal/media"
	"github.com/alnah/go-scribe/internal/pipeline"
	"github.com/alnah/go-scribe/internal/store"
	"github.com/alnah/go-scribe/internal/transcribe"
	"github.com/alnah/go-scribe/internal/translate"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have production defaults via DefaultEnv(). Tests override
// specific fields using the With* options or by creating a custom Env.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Logger *zap.Logger

	// PipelineBuilder assembles the pipeline from loaded configuration.
	PipelineBuilder PipelineBuilder
}

// PipelineBuilder assembles a ready-to-run pipeline. The device argument
// selects the compute device for diarization; extra options layer command
// concerns (progress reporting, parallelism) onto the production wiring.
type PipelineBuilder interface {
	Build(cfg config.Config, device string, logger *zap.Logger, extra ...pipeline.Option) (*pipeline.Pipeline, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) EnvOption {
	return func(e *Env) {
		e.Logger = logger
	}
}

// WithPipelineBuilder sets the pipeline builder.
func WithPipelineBuilder(b PipelineBuilder) EnvOption {
	return func(e *Env) {
		e.PipelineBuilder = b
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		Getenv:          os.Getenv,
		Logger:          newStderrLogger(),
		PipelineBuilder: &defaultPipelineBuilder{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// newStderrLogger builds a console logger for CLI use: warnings and errors
// only, so the transcript on stdout stays clean.
func newStderrLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// defaultPipelineBuilder wires the production collaborators.
type defaultPipelineBuilder struct{}

// Compile-time interface verification.
var _ PipelineBuilder = (*defaultPipelineBuilder)(nil)

func (defaultPipelineBuilder) Build(cfg config.Config, device string, logger *zap.Logger, extra ...pipeline.Option) (*pipeline.Pipeline, error) {
	m, err := media.New(cfg.FFmpegPath)
	if err != nil {
		return nil, err
	}

	client := openai.NewClient(cfg.OpenAIAPIKey)
	transcriber := transcribe.NewOpenAITranscriber(client, transcribe.WithLogger(logger))
	translator := translate.NewOpenAITranslator(client)
	factory := diarize.NewFactory(cfg.DiarizeURL, cfg.DiarizeAPIKey, diarize.WithDevice(device))

	opts := []pipeline.Option{
		pipeline.WithPlanner(cfg.Planner()),
		pipeline.WithTranslator(translator),
		pipeline.WithDiarizeFactory(factory),
		pipeline.WithLogger(logger),
	}
	opts = append(opts, extra...)

	return pipeline.New(m, store.New(m), transcriber, opts...), nil
}
