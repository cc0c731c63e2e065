package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xeoh/GCTool/internal/server"
	"github.com/xeoh/GCTool/pkg/config"
	"github.com/xeoh/GCTool/pkg/jobs"
	"github.com/xeoh/GCTool/pkg/logging"
	"github.com/xeoh/GCTool/pkg/ticket"
	"github.com/xeoh/GCTool/pkg/webhook"
)

const shutdownTimeout = 30 * time.Second

// ServeOptions holds command-line options for the serve command.
type ServeOptions struct {
	ConfigPath string
	Addr       string
	DBPath     string
	UploadDir  string
	Workers    int
	Debug      bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the GC log analysis service",
		Long: `Run an HTTP service that accepts GC log uploads and analyzes them in
the background.

Endpoints:
  POST   /api/logs               upload a log (multipart "file" or raw body), returns a ticket
  GET    /api/analysis/{ticket}  ticket status and, once completed, the analysis
  GET    /api/tickets/{ticket}   ticket status and upload metadata
  DELETE /api/tickets/{ticket}   remove a ticket and its uploaded log
  GET    /api/health             liveness

Tickets are kept in a SQLite database so results survive restarts.

Example:
  gctool serve --addr :8080 --db /var/lib/gctool/tickets.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite ticket database (overrides config)")
	cmd.Flags().StringVar(&opts.UploadDir, "upload-dir", "", "Directory for uploaded logs (overrides config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent analyses (overrides config)")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	return cmd
}

func applyServeOverrides(cfg *config.Config, opts *ServeOptions) {
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.DBPath != "" {
		cfg.Server.DBPath = opts.DBPath
	}
	if opts.UploadDir != "" {
		cfg.Server.UploadDir = opts.UploadDir
	}
	if opts.Workers > 0 {
		cfg.Server.Workers = opts.Workers
	}
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadOrDefault(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeOverrides(cfg, opts)

	logger, err := logging.New(cfg.Logging, opts.Debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := ticket.OpenSQLite(ctx, cfg.Server.DBPath, ticket.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("opening ticket store: %w", err)
	}
	defer store.Close()

	runner := jobs.New(store,
		jobs.WithLogger(logger),
		jobs.WithWorkers(cfg.Server.Workers),
		jobs.WithLevels(cfg.Analysis.MeanLevels, cfg.Analysis.OutlierLevels),
		jobs.WithWebhooks(webhook.NewClient(webhook.WithLogger(logger)), cfg.Webhooks),
	)

	srv, err := server.New(store, runner, server.OptionsFromConfig(cfg.Server, logger))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
