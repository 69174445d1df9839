package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/alnah/go-scribe/internal/config"
	"github.com/alnah/go-scribe/internal/diarize"
	"github.com/alnah/go-scribe/internal/jobs"
	"github.com/alnah/go-scribe/internal/media"
	"github.com/alnah/go-scribe/internal/pipeline"
	"github.com/alnah/go-scribe/internal/server"
	"github.com/alnah/go-scribe/internal/store"
	"github.com/alnah/go-scribe/internal/transcribe"
	"github.com/alnah/go-scribe/internal/translate"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg := config.Load(os.Getenv)
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("%s is required", config.EnvOpenAIAPIKey)
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("%s is required", config.EnvJWTSecret)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, err := newJobStore(cfg, logger)
	if err != nil {
		return err
	}

	broker := server.NewBroker()
	runner := server.NewRunner(jobStore, pipelineFactory(cfg, logger), broker, logger)
	srv := server.New(jobStore, runner, broker, server.NewAuth(cfg.JWTSecret), logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	srv.Register(e)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newJobStore picks sqlite persistence when a database path is configured,
// in-memory tracking otherwise.
func newJobStore(cfg config.Config, logger *zap.Logger) (jobs.Store, error) {
	if cfg.DBPath == "" {
		logger.Info("using in-memory job store")
		return jobs.NewMemoryStore(), nil
	}
	logger.Info("using sqlite job store", zap.String("path", cfg.DBPath))
	return jobs.OpenSQLite(cfg.DBPath)
}

// pipelineFactory builds one pipeline per job so progress callbacks never
// interleave between concurrent jobs.
func pipelineFactory(cfg config.Config, logger *zap.Logger) server.PipelineFactory {
	return func(progress pipeline.ProgressFunc) (*pipeline.Pipeline, error) {
		m, err := media.New(cfg.FFmpegPath)
		if err != nil {
			return nil, err
		}

		client := openai.NewClient(cfg.OpenAIAPIKey)
		transcriber := transcribe.NewOpenAITranscriber(client, transcribe.WithLogger(logger))

		return pipeline.New(m, store.New(m), transcriber,
			pipeline.WithPlanner(cfg.Planner()),
			pipeline.WithTranslator(translate.NewOpenAITranslator(client)),
			pipeline.WithDiarizeFactory(diarize.NewFactory(cfg.DiarizeURL, cfg.DiarizeAPIKey)),
			pipeline.WithLogger(logger),
			pipeline.WithProgress(progress),
		), nil
	}
}
