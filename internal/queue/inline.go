package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InlineDispatcher runs leads on goroutines in the current process. It is
// used when no Redis URL is configured.
type InlineDispatcher struct {
	runner Runner
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewInline creates an InlineDispatcher running at most concurrency leads
// at once.
func NewInline(runner Runner, concurrency int) *InlineDispatcher {
	if concurrency < 1 {
		concurrency = 5
	}
	return &InlineDispatcher{runner: runner, sem: make(chan struct{}, concurrency)}
}

// Dispatch starts processing in the background and returns immediately.
// The run is detached from ctx so it outlives the ingesting request.
func (d *InlineDispatcher) Dispatch(ctx context.Context, leadID string) (string, error) {
	processingID := uuid.NewString()
	runCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		if _, err := d.runner.Run(runCtx, leadID); err != nil {
			zap.L().Error("queue: inline processing failed",
				zap.String("lead_id", leadID),
				zap.String("processing_id", processingID),
				zap.Error(err),
			)
		}
	}()
	return processingID, nil
}

// Wait blocks until every dispatched lead has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
