// Package schedulerrunner runs the periodic eligibility scan that feeds
// the sync queue.
package schedulerrunner

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/laikahq/sync-engine/redis"
	redisconfig "github.com/laikahq/sync-engine/redis/config"
	"github.com/laikahq/sync-engine/runner"
	"github.com/laikahq/sync-engine/scheduler"
)

const leaderLockTTL = 4 * time.Minute

type Runner struct {
	engine *runner.Engine
	client *redis.Client
	locker *redis.Locker
	sched  *scheduler.Scheduler
}

func New(engine *runner.Engine) (*Runner, error) {
	redisCfg, err := redisconfig.NewRedisConfig()
	if err != nil {
		return nil, err
	}

	client, err := redis.NewClient(redisCfg)
	if err != nil {
		return nil, err
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     redisCfg.GetRedisAddr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	locker, err := redis.NewLocker(redisCfg, "scheduler:leader", leaderLockTTL)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(engine.Stores.Accounts(), client, engine.Telemetry, engine.Logger).
		WithInspector(inspector).
		WithLeaderLock(locker)

	return &Runner{engine: engine, client: client, locker: locker, sched: sched}, nil
}

func (r *Runner) Run(ctx context.Context) error {
	r.engine.Logger.Info("scheduler starting")
	return r.sched.Run(ctx)
}

func (r *Runner) Close(_ context.Context) error {
	if err := r.locker.Close(); err != nil {
		return err
	}
	if err := r.client.Close(); err != nil {
		return err
	}
	return r.engine.Close()
}
