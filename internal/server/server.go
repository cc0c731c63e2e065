// Package server exposes GC log upload and analysis over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/jobs"
	"github.com/xeoh/GCTool/pkg/ticket"
)

// Options configures a Server.
type Options struct {
	UploadDir        string
	MaxUploadMB      int
	UploadsPerMinute int
	Logger           *zap.Logger
}

// OptionsFromConfig maps the server section of a configuration.
func OptionsFromConfig(cfg config.ServerConfig, logger *zap.Logger) Options {
	return Options{
		UploadDir:        cfg.UploadDir,
		MaxUploadMB:      cfg.MaxUploadMB,
		UploadsPerMinute: cfg.UploadsPerMinute,
		Logger:           logger,
	}
}

// Server accepts GC log uploads, queues them for analysis and reports
// results by ticket.
type Server struct {
	app       *fiber.App
	store     ticket.Store
	runner    *jobs.Runner
	uploadDir string
	limiter   *rate.Limiter
	logger    *zap.Logger

	// jobs outlive the request that submitted them
	jobCtx    context.Context
	cancelJob context.CancelFunc
}

// New creates a Server. The upload directory is created if missing.
func New(store ticket.Store, runner *jobs.Runner, opts Options) (*Server, error) {
	if opts.UploadDir == "" {
		opts.UploadDir = config.DefaultUploadDir
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = config.DefaultMaxUploadMB
	}
	if opts.UploadsPerMinute <= 0 {
		opts.UploadsPerMinute = config.DefaultUploadsPerMinute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(opts.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:     store,
		runner:    runner,
		uploadDir: opts.UploadDir,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.UploadsPerMinute)), opts.UploadsPerMinute),
		logger:    opts.Logger,
		jobCtx:    jobCtx,
		cancelJob: cancel,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "GCTool",
		BodyLimit:             opts.MaxUploadMB * 1024 * 1024,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	s.app.Use(s.logRequests)

	api := s.app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.Post("/logs", s.rateLimit, s.handleUpload)
	api.Get("/analysis/:ticket", s.handleAnalysis)
	api.Get("/tickets/:ticket", s.handleTicket)
	api.Delete("/tickets/:ticket", s.handleDelete)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("Server listening", zap.String("addr", addr), zap.String("upload_dir", s.uploadDir))
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests, cancels queued analyses and waits for
// running ones to record their outcome.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.cancelJob()

	done := make(chan struct{})
	go func() {
		s.runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

func (s *Server) rateLimit(c *fiber.Ctx) error {
	if !s.limiter.Allow() {
		return fiber.NewError(fiber.StatusTooManyRequests, "too many uploads, try again later")
	}
	return c.Next()
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("Request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)))
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := err.Error()

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		msg = fe.Message
	case errors.Is(err, ticket.ErrNotFound):
		code = fiber.StatusNotFound
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
