package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/llm-loadgen/llm-loadgen/internal/api"
	"github.com/llm-loadgen/llm-loadgen/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored benchmark results over HTTP",
	Long: `Start the results API server.

Exposes stored run summaries under /api/v1/runs, plus /health and
Prometheus metrics under /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := storage.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		return err
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		return err
	}

	server := api.New(storage.NewRunStore(db),
		api.WithLogger(logger),
		api.WithHost(cfg.Server.Host),
		api.WithPort(cfg.Server.Port))

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
	}()

	logger.Info("starting results server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port))

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
