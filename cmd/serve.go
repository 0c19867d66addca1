package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/api"
	"github.com/harnessai/orchestrator/internal/ratelimit"
	"github.com/harnessai/orchestrator/internal/worker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the intake API and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		pl, err := buildPipeline(st)
		if err != nil {
			return err
		}

		pool := worker.New(pl, cfg.Worker.Concurrency, cfg.Worker.QueueSize)
		limiter := ratelimit.New(st, cfg.RateLimit.MaxPerWindow, cfg.RateLimit.Window)
		server := api.New(st, limiter, pool)

		go sweepExpiredCache(ctx, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Driver),
			zap.Int("workers", cfg.Worker.Concurrency))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// In-flight submissions finish before exit.
		drainCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := pool.Close(drainCtx); err != nil {
			zap.L().Warn("worker drain incomplete", zap.Error(err))
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
