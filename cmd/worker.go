package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued leads from Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		w, err := queue.NewWorker(cfg.Queue, env.Orchestrator)
		if err != nil {
			return err
		}

		zap.L().Info("starting worker", zap.Int("concurrency", cfg.Queue.Concurrency))
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
