// Package server exposes the transcription pipeline as a small web API
// with job tracking and websocket progress streaming.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/alnah/go-scribe/internal/jobs"
	"github.com/alnah/go-scribe/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// writeWait bounds one websocket write to a slow peer.
const writeWait = 10 * time.Second

// Server holds the handler dependencies.
type Server struct {
	store  jobs.Store
	runner *Runner
	broker *Broker
	auth   *Auth
	logger *zap.Logger
}

// New creates a Server.
func New(store jobs.Store, runner *Runner, broker *Broker, auth *Auth, logger *zap.Logger) *Server {
	return &Server{
		store:  store,
		runner: runner,
		broker: broker,
		auth:   auth,
		logger: logger,
	}
}

// Register attaches all routes to the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.health)
	e.POST("/api/v1/auth", s.exchangeToken)

	v1 := e.Group("/api/v1", s.requireToken)
	v1.POST("/jobs", s.createJob)
	v1.GET("/jobs", s.listJobs)
	v1.GET("/jobs/:id", s.getJob)
	v1.DELETE("/jobs/:id", s.deleteJob)

	// The websocket route authenticates inside the handler so the token
	// can arrive via query parameter where headers are unavailable.
	e.GET("/ws/jobs/:id", s.streamJob)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "go-scribe",
	})
}

func (s *Server) exchangeToken(c echo.Context) error {
	var req AuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	token, err := s.auth.Exchange(req.Secret)
	if err != nil {
		s.logger.Warn("token exchange rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid shared secret",
		})
	}

	return c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// requireToken validates the bearer token on API routes.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "Bearer token is required",
			})
		}
		if _, err := s.auth.Validate(token); err != nil {
			s.logger.Warn("request rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired token",
			})
		}
		return next(c)
	}
}

// bearerToken extracts a token from the Authorization header, falling back
// to the "token" query parameter for websocket clients.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}

func (s *Server) createJob(c echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.SourcePath == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "source_path is required",
		})
	}
	if _, err := os.Stat(req.SourcePath); err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "source_not_found",
			Message: "Source file does not exist: " + req.SourcePath,
		})
	}

	hash, err := jobs.HashFile(req.SourcePath)
	if err != nil {
		s.logger.Error("failed to hash source", zap.String("path", req.SourcePath), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "hash_failed",
			Message: "Could not read source file",
		})
	}

	// Re-submitting an identical file returns the finished prior job
	// instead of paying for a second transcription.
	if prior, err := s.store.GetByHash(c.Request().Context(), hash); err == nil && prior.Status == jobs.StatusDone {
		return c.JSON(http.StatusOK, prior)
	}

	now := time.Now()
	job := jobs.Job{
		ID:         uuid.NewString(),
		SourcePath: req.SourcePath,
		SourceHash: hash,
		Status:     jobs.StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Put(c.Request().Context(), job); err != nil {
		s.logger.Error("failed to persist job", zap.String("job_id", job.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "store_failed",
			Message: "Could not persist job",
		})
	}

	// The run must outlive this request; the request context dies as soon
	// as the 202 response is written.
	s.runner.Start(context.WithoutCancel(c.Request().Context()), job, pipeline.Options{
		AudioOutput: req.AudioOutput,
		Force:       req.Force,
		KeepAudio:   req.KeepAudio,
		KeepChunks:  req.KeepChunks,
		Diarize:     req.Diarize,
		TargetLang:  req.TargetLang,
	})

	s.logger.Info("job accepted",
		zap.String("job_id", job.ID),
		zap.String("source_path", job.SourcePath),
	)
	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) listJobs(c echo.Context) error {
	all, err := s.store.List(c.Request().Context())
	if err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "store_failed",
			Message: "Could not list jobs",
		})
	}
	return c.JSON(http.StatusOK, all)
}

func (s *Server) getJob(c echo.Context) error {
	job, err := s.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "No such job",
			})
		}
		s.logger.Error("failed to load job", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "store_failed",
			Message: "Could not load job",
		})
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) deleteJob(c echo.Context) error {
	id := c.Param("id")

	// A running job gets its context canceled; the pipeline stops at the
	// next chunk boundary and records the failed state itself.
	s.runner.Cancel(id)

	if err := s.store.Delete(c.Request().Context(), id); err != nil {
		s.logger.Error("failed to delete job", zap.String("job_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "store_failed",
			Message: "Could not delete job",
		})
	}
	return c.NoContent(http.StatusNoContent)
}

// streamJob upgrades to a websocket and streams progress events until the
// job reaches a terminal state or the client disconnects.
func (s *Server) streamJob(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Token is required",
		})
	}
	if _, err := s.auth.Validate(token); err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired token",
		})
	}

	id := c.Param("id")
	job, err := s.store.Get(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No such job",
		})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	events := s.broker.Subscribe(id)
	defer s.broker.Unsubscribe(id, events)

	// Send the current state first so late subscribers see where the job
	// stands before the next progress event arrives.
	snapshot := Event{JobID: job.ID, Status: job.Status, Done: job.ChunksDone, Total: job.ChunksTotal, Error: job.Error}
	if err := s.writeEvent(conn, snapshot); err != nil {
		return nil
	}
	if terminal(job.Status) {
		return nil
	}

	for ev := range events {
		if err := s.writeEvent(conn, ev); err != nil {
			return nil
		}
		if terminal(ev.Status) {
			return nil
		}
	}
	return nil
}

// writeEvent sends one event with a write deadline.
func (s *Server) writeEvent(conn *websocket.Conn, ev Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// terminal reports whether a status ends the progress stream.
func terminal(status jobs.Status) bool {
	return status == jobs.StatusDone || status == jobs.StatusFailed
}
