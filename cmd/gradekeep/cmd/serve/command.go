// Package serve provides the HTTP server command for the gradekeep CLI.
package serve

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gradekeep/gradekeep/cmd/application"
	"github.com/gradekeep/gradekeep/internal/server"
)

// NewCommand creates the serve command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Start the gradebook merge HTTP server",
		Long: `Start an HTTP server that merges uploaded gradebook CSVs.

POST /api/v1/merge accepts a multipart upload of lecture section
gradebooks plus either a master gradebook or per-assignment exports.
Outputs land in a per-request workspace and stay downloadable
individually or as a zip archive until the workspace TTL expires.
A minimal upload page is served at /.`,
		Example: `  # Start on the default address
  gradekeep serve

  # Custom address and a longer workspace TTL
  gradekeep serve --addr :3000 --ttl 2h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, app)
		},
	}

	cmd.Flags().String("addr", "", "listen address (host:port)")
	cmd.Flags().Duration("ttl", 30*time.Minute, "how long merge outputs stay downloadable")
	cmd.Flags().Int64("max-upload", 64<<20, "maximum upload size in bytes")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 30*time.Second, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", 120*time.Second, "HTTP idle timeout")

	return cmd
}

// runServer starts the merge server.
func runServer(cmd *cobra.Command, app application.Application) error {
	cfg := parseConfig(cmd)
	logger := app.Logger()

	logger.Info().
		Str("addr", cfg.Addr).
		Dur("workspace_ttl", cfg.WorkspaceTTL).
		Int64("max_upload_bytes", cfg.MaxUploadBytes).
		Msg("Starting merge server")

	srv := server.New(app, cfg)
	srv.Start()

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return startWithGracefulShutdown(cmd.Context(), httpServer, srv, logger)
}

// parseConfig parses command flags into server configuration.
func parseConfig(cmd *cobra.Command) server.Config {
	cfg := server.DefaultConfig()

	if addr := mustGetString(cmd, "addr"); addr != "" {
		cfg.Addr = addr
	} else if envAddr := os.Getenv("HTTP_ADDR"); envAddr != "" {
		cfg.Addr = envAddr
	}
	cfg.WorkspaceTTL = mustGetDuration(cmd, "ttl")
	cfg.MaxUploadBytes = mustGetInt64(cmd, "max-upload")
	cfg.ReadTimeout = mustGetDuration(cmd, "read-timeout")
	cfg.WriteTimeout = mustGetDuration(cmd, "write-timeout")
	cfg.IdleTimeout = mustGetDuration(cmd, "idle-timeout")

	return cfg
}

// startWithGracefulShutdown runs the HTTP server until the context is
// canceled, then drains connections before returning.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")

		// The parent context is already canceled; use a fresh one for
		// the drain.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

// mustGetString retrieves a string flag value or panics if the flag
// doesn't exist. Only for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetDuration retrieves a duration flag value or panics if the
// flag doesn't exist. Only for flags defined in this package.
func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetInt64 retrieves an int64 flag value or panics if the flag
// doesn't exist. Only for flags defined in this package.
func mustGetInt64(cmd *cobra.Command, name string) int64 {
	val, err := cmd.Flags().GetInt64(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}
