package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coursesnap/coursesnap/internal/handlers"
	"github.com/coursesnap/coursesnap/internal/storage"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		host       string
		port       string
		sessionTTL time.Duration
		flags      extractionFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local web interface",
		Long: `Starts the CourseSnap web interface on the specified port.

Upload schedule screenshots in the browser, watch extraction progress, review
the deduplicated records and download them as an .xlsx workbook. Each browser
tab gets its own in-memory session; nothing is written to disk.`,
		Example: `  # Start server on default port 8888
  coursesnap serve

  # Use a local Ollama model on a custom port
  coursesnap serve --provider ollama --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, svc, err := flags.orchestrator()
			if err != nil {
				return err
			}

			store := storage.New()
			handler := handlers.New(store, orch)

			addr := net.JoinHostPort(host, port)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := cmd.Context()
			if sessionTTL > 0 {
				go pruneSessions(ctx, store, sessionTTL)
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("CourseSnap interface available",
					"addr", addr,
					"url", "http://"+addr,
					"provider", svc.Provider(),
					"model", svc.Model())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Interface to bind")
	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", 2*time.Hour, "Drop sessions idle for longer than this (0 keeps them forever)")
	flags.register(cmd)

	return cmd
}

func pruneSessions(ctx context.Context, store *storage.SessionStore, ttl time.Duration) {
	ticker := time.NewTicker(min(ttl, 10*time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Prune(ttl); n > 0 {
				slog.Info("Pruned idle sessions", "count", n)
			}
		}
	}
}
