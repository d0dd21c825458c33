package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/checkpoint"
)

const (
	resultsDefaultPageSize = 50
	resultsMaxPageSize     = 500
)

var serveReportPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report and paginated checkpoint results over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/health", handleHealth)
		r.Get("/report", handleReport)
		r.Get("/results", handleResults)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("results server listening", zap.Int("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return eris.Wrap(err, "shutdown server")
			}
			return nil
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "results server")
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveReportPath, "report", "", "path to the report artifact to serve")
	rootCmd.AddCommand(serveCmd)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReport serves the report artifact written by analyze/aggregate.
func handleReport(w http.ResponseWriter, r *http.Request) {
	if serveReportPath == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report configured"})
		return
	}
	data, err := os.ReadFile(serveReportPath)
	if err != nil {
		zap.L().Warn("failed to read report", zap.String("path", serveReportPath), zap.Error(err))
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not available"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleResults pages through the checkpoint log so clients never need
// the full result set in one response.
func handleResults(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", resultsDefaultPageSize)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = resultsDefaultPageSize
	}
	if limit > resultsMaxPageSize {
		limit = resultsMaxPageSize
	}

	results, err := checkpoint.ReadResultsPage(cfg.Analysis.CheckpointPath, offset, limit)
	if err != nil {
		zap.L().Error("failed to read checkpoint page", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read results"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"offset":  offset,
		"limit":   limit,
		"results": results,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
