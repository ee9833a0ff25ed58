package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/synssins/homebox-companion/internal/capture"
	"github.com/synssins/homebox-companion/internal/catalog"
	"github.com/synssins/homebox-companion/internal/chat"
	"github.com/synssins/homebox-companion/internal/config"
	"github.com/synssins/homebox-companion/internal/enrich"
	"github.com/synssins/homebox-companion/internal/handlers"
	"github.com/synssins/homebox-companion/internal/store"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the companion web server",
		Long: `Starts the Homebox Companion server.

The server accepts photo uploads, runs vision extraction, and pushes
reviewed results into a Homebox instance. It also hosts the
conversational assistant with its approval endpoints.`,
		Example: `  # Start server on default port 8787
  homebox-companion serve

  # Start server on custom port
  homebox-companion serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}

			st, err := store.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer st.Close()

			extractor, err := buildExtractor(cfg)
			if err != nil {
				return err
			}
			chatter, err := buildChatter(cfg)
			if err != nil {
				return err
			}

			homebox := catalog.NewClient(cfg.HomeboxURL, cfg.HomeboxToken)
			pipeline := capture.New(st, extractor, enrich.NewLLMEnricher(chatter), homebox, cfg)
			if err := pipeline.Recover(cmd.Context()); err != nil {
				return err
			}

			registry := chat.NewCatalogRegistry(homebox)
			executor := chat.NewExecutor(registry, cfg.ApprovalTTL)
			orchestrator := chat.NewOrchestrator(chatter, executor, st, cfg.HistoryWindow, cfg.ApprovalTTL)

			handler := handlers.New(pipeline, orchestrator)

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/sessions", handler.HandleSessions)
			mux.HandleFunc("/api/sessions/", handler.HandleSessionDetail)
			mux.HandleFunc("/api/images/", handler.HandleImageDetail)
			mux.HandleFunc("/api/chat/", handler.HandleChat)
			mux.HandleFunc("/api/approvals/", handler.HandleApprovals)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Homebox Companion available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
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

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides PORT)")

	return cmd
}
