package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/laikahq/sync-engine/redis/config"
)

// Client enqueues sync tasks. It is shared by the scheduler and the web
// layer, both of which only ever push work.
type Client struct {
	client *asynq.Client
	cfg    *config.RedisConfig
	mu     sync.RWMutex
}

func NewClient(cfg *config.RedisConfig) (*Client, error) {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Client{client: client, cfg: cfg}, nil
}

// EnqueueTask pushes a task onto the queue. Callers pick the queue and
// retry behaviour through asynq options, e.g. asynq.Queue("critical") or
// asynq.Unique(ttl).
func (c *Client) EnqueueTask(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := c.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
