package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/store"
)

// Runner drives a persisted lead to a terminal state.
type Runner interface {
	Run(ctx context.Context, leadID string) (*model.Lead, error)
}

// Worker consumes lead tasks from Redis.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner Runner
}

// NewWorker creates a worker bound to the configured Redis URL.
func NewWorker(cfg config.QueueConfig, runner Runner) (*Worker, error) {
	opt, err := RedisOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 5
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{DefaultQueue: 1},
		Logger:      zap.S().Named("asynq"),
		LogLevel:    asynq.WarnLevel,
	})
	return newWorker(server, runner), nil
}

func newWorker(server *asynq.Server, runner Runner) *Worker {
	w := &Worker{server: server, mux: asynq.NewServeMux(), runner: runner}
	w.mux.HandleFunc(TaskProcessLead, w.handleProcessLead)
	return w
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()
	if err := w.server.Run(w.mux); err != nil {
		return eris.Wrap(err, "queue: worker stopped")
	}
	return nil
}

// handleProcessLead returns an error only for failures worth retrying.
// Stage failures are recorded on the lead by the runner; unknown leads
// are dropped.
func (w *Worker) handleProcessLead(ctx context.Context, task *asynq.Task) error {
	p, err := ParseProcessLeadPayload(task)
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("lead_id", p.LeadID))

	lead, err := w.runner.Run(ctx, p.LeadID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("queue: lead not found, dropping task")
		return fmt.Errorf("queue: lead %s: %v: %w", p.LeadID, err, asynq.SkipRetry)
	}
	if err != nil {
		log.Error("queue: lead processing error", zap.Error(err))
		return err
	}
	log.Info("queue: lead processed", zap.String("status", string(lead.ProcessingStatus)))
	return nil
}
