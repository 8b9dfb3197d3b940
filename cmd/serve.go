package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/api"
	"github.com/sells-group/fieldsnap/internal/leads"
	"github.com/sells-group/fieldsnap/internal/monitoring"
	"github.com/sells-group/fieldsnap/internal/queue"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ingestion API",
	Long:  "Serves POST /api/ingest and lead lookups. With queue.redis_url set, leads are enqueued for workers; otherwise they are processed in-process.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		dispatcher, closeDispatcher, err := initDispatcher(env)
		if err != nil {
			return err
		}
		defer closeDispatcher()

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring, env.Notifier),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		server := api.NewServer(api.Deps{
			Ingester:       env.Orchestrator,
			Dispatcher:     dispatcher,
			Leads:          env.Store,
			Metrics:        env.Metrics.Handler(),
			AllowedOrigins: cfg.Server.AllowedOrigins,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// initDispatcher picks the Redis enqueuer when a queue is configured and
// in-process execution otherwise. The returned func waits for inline runs
// or closes the Redis client.
func initDispatcher(env *appEnv) (leads.Dispatcher, func(), error) {
	if cfg.Queue.RedisURL == "" {
		inline := queue.NewInline(env.Orchestrator, cfg.Queue.Concurrency)
		zap.L().Info("processing leads in-process", zap.Int("concurrency", cfg.Queue.Concurrency))
		return inline, inline.Wait, nil
	}
	enq, err := queue.NewEnqueuer(cfg.Queue)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("enqueuing leads to redis")
	return enq, func() { _ = enq.Close() }, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
