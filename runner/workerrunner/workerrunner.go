// Package workerrunner runs the asynq worker pool that executes sync
// tasks.
package workerrunner

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/redis"
	redisconfig "github.com/laikahq/sync-engine/redis/config"
	"github.com/laikahq/sync-engine/redis/tasks"
	"github.com/laikahq/sync-engine/runner"
)

type Runner struct {
	engine *runner.Engine
	server *redis.Server
	mux    *asynq.ServeMux
}

func New(engine *runner.Engine) (*Runner, error) {
	redisCfg, err := redisconfig.NewRedisConfig()
	if err != nil {
		return nil, err
	}

	server, err := redis.NewServer(redisCfg, engine.Logger)
	if err != nil {
		return nil, err
	}

	handler := tasks.NewHandler(engine.Registry, engine.Lifecycle, engine.Logger)

	return &Runner{
		engine: engine,
		server: server,
		mux:    tasks.NewMux(handler),
	}, nil
}

func (r *Runner) Run(ctx context.Context) error {
	r.engine.Logger.Info("worker starting",
		zap.Strings("vendors", r.engine.Registry.Vendors()))

	if err := r.server.Start(ctx, r.mux); err != nil {
		return err
	}

	<-ctx.Done()
	return r.server.Shutdown(context.Background())
}

func (r *Runner) Close(_ context.Context) error {
	return r.engine.Close()
}
