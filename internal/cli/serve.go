package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/server"
	"github.com/pendergraft/contraverify/internal/storage"
)

func newServeCmd(a *app, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Serve the networks, deployments and address book over HTTP, and run
verifications on request.

Server settings come from CONTRAVERIFY_* environment variables. Logs go to
stdout.

EXAMPLES:
  CONTRAVERIFY_API_KEYS=cv_key_... contraverify serve
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a, version)
		},
	}
}

func runServe(ctx context.Context, a *app, version string) error {
	cfg := a.cfg

	// Server logs go to stdout, like any long-running service
	logger := setupLogger(cfg.Logging, os.Stdout)
	a.logger = logger
	logger.Info("starting contraverify server", "version", version, "project", cfg.ProjectPath)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var store storage.Store
	if cfg.Storage.Enabled {
		s, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	} else {
		logger.Info("run history disabled")
	}

	book, err := a.addressBook()
	if err != nil {
		return err
	}

	srv := server.New(cfg, store, book, logger)

	// Create HTTP server with configurable timeouts
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
