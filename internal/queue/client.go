package queue

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
)

const defaultMaxRetry = 3

// Enqueuer publishes lead tasks to Redis. It implements leads.Dispatcher.
type Enqueuer struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// NewEnqueuer connects to the configured Redis URL.
func NewEnqueuer(cfg config.QueueConfig) (*Enqueuer, error) {
	opt, err := RedisOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return &Enqueuer{client: asynq.NewClient(opt), queue: DefaultQueue, maxRetry: maxRetry(cfg)}, nil
}

// NewEnqueuerFromRedis wraps an existing Redis client. The caller keeps
// ownership of rdb.
func NewEnqueuerFromRedis(rdb redis.UniversalClient, cfg config.QueueConfig) *Enqueuer {
	return &Enqueuer{client: asynq.NewClientFromRedisClient(rdb), queue: DefaultQueue, maxRetry: maxRetry(cfg)}
}

// Dispatch enqueues the lead. The lead ID doubles as the task ID, so a
// lead already waiting on the queue is not enqueued twice.
func (e *Enqueuer) Dispatch(ctx context.Context, leadID string) (string, error) {
	task, err := NewProcessLeadTask(leadID)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.MaxRetry(e.maxRetry),
		asynq.TaskID(leadID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		zap.L().Debug("queue: lead already enqueued", zap.String("lead_id", leadID))
		return leadID, nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "queue: enqueue lead %s", leadID)
	}
	zap.L().Info("queue: lead enqueued",
		zap.String("lead_id", leadID),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info.ID, nil
}

// Close releases the Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// RedisOpt converts a redis:// URL to asynq connection options.
func RedisOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, eris.New("queue: redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, eris.Wrap(err, "queue: parse redis url")
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

func maxRetry(cfg config.QueueConfig) int {
	if cfg.MaxRetry > 0 {
		return cfg.MaxRetry
	}
	return defaultMaxRetry
}
