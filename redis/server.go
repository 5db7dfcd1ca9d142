// Package redis wraps asynq with the queue layout and retry policy the
// sync workers run under.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/redis/config"
)

// Server runs the asynq worker pool that executes sync tasks.
type Server struct {
	server *asynq.Server
	cfg    *config.RedisConfig
	logger *zap.Logger
	mu     sync.RWMutex
}

func NewServer(cfg *config.RedisConfig, logger *zap.Logger) (*Server, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:    cfg.Workers,
			RetryDelayFunc: retryDelay(cfg, logger),
			Queues:         cfg.QueuePriorities,
			StrictPriority: true,
		},
	)

	return &Server{server: srv, cfg: cfg, logger: logger}, nil
}

// retryDelay backs off exponentially, capped at the configured retry
// interval. A negative delay tells asynq to archive the task.
func retryDelay(cfg *config.RedisConfig, logger *zap.Logger) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		if n >= cfg.MaxRetries {
			logger.Error("task exhausted retries",
				zap.String("type", task.Type()),
				zap.Error(err))
			return -1 * time.Second
		}

		delay := time.Duration(1<<uint(n)) * time.Second
		if delay > cfg.RetryInterval {
			delay = cfg.RetryInterval
		}
		logger.Warn("task failed, retry scheduled",
			zap.String("type", task.Type()),
			zap.Int("attempt", n),
			zap.Duration("delay", delay),
			zap.Error(err))
		return delay
	}
}

// Start begins processing tasks with the provided mux.
func (s *Server) Start(ctx context.Context, mux *asynq.ServeMux) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}

	go s.watch(ctx)

	return nil
}

// Shutdown drains in-flight tasks and stops the worker pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server.Shutdown()
	return nil
}

func (s *Server) watch(ctx context.Context) {
	<-ctx.Done()
	s.logger.Info("task server stopping")
	_ = s.Shutdown(context.Background())
}
