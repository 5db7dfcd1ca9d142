// Package webrunner serves the connection wizard HTTP surface.
package webrunner

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/redis"
	redisconfig "github.com/laikahq/sync-engine/redis/config"
	"github.com/laikahq/sync-engine/runner"
	"github.com/laikahq/sync-engine/web"
)

type Runner struct {
	engine *runner.Engine
	client *redis.Client
	srv    *http.Server
}

func New(engine *runner.Engine, addr string) (*Runner, error) {
	redisCfg, err := redisconfig.NewRedisConfig()
	if err != nil {
		return nil, err
	}

	client, err := redis.NewClient(redisCfg)
	if err != nil {
		return nil, err
	}

	if addr == "" {
		addr = engine.Config.ListenAddr
	}

	handler := web.NewServer(engine.Registry, engine.Stores.Accounts(), engine.Catalogue, client, engine.Logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Runner{engine: engine, client: client, srv: srv}, nil
}

func (r *Runner) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = r.srv.Shutdown(shutdownCtx)
	}()

	r.engine.Logger.Info("web server starting", zap.String("addr", r.srv.Addr))

	if err := r.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Runner) Close(_ context.Context) error {
	if err := r.client.Close(); err != nil {
		return err
	}
	return r.engine.Close()
}
