// Package scheduler scans connection accounts on a beat and enqueues
// sync tasks for the ones whose frequency window has elapsed.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/redis/tasks"
	"github.com/laikahq/sync-engine/tlmt"
)

const (
	defaultInterval = 5 * time.Minute
	dispatchWorkers = 8

	dailyWindow  = 24 * time.Hour
	weeklyWindow = 7 * 24 * time.Hour
)

// Enqueuer pushes tasks onto the queue. Satisfied by redis.Client.
type Enqueuer interface {
	EnqueueTask(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error
}

// WorkerInspector reports on the running worker fleet. Satisfied by
// asynq.Inspector.
type WorkerInspector interface {
	Servers() ([]*asynq.ServerInfo, error)
}

// LeaderLock elects one scheduler instance per beat. Satisfied by
// redis.Locker.
type LeaderLock interface {
	Acquire(ctx context.Context) (bool, error)
}

type Scheduler struct {
	accounts  models.ConnectionAccountRepository
	queue     Enqueuer
	inspector WorkerInspector
	lock      LeaderLock
	telemetry tlmt.Telemetry
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time
}

func New(accounts models.ConnectionAccountRepository, queue Enqueuer, telemetry tlmt.Telemetry, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		accounts:  accounts,
		queue:     queue,
		telemetry: telemetry,
		logger:    logger,
		interval:  defaultInterval,
		now:       time.Now,
	}
}

// WithInspector enables the worker-shortage metric.
func (s *Scheduler) WithInspector(inspector WorkerInspector) *Scheduler {
	s.inspector = inspector
	return s
}

// WithLeaderLock makes ticks mutually exclusive across scheduler
// replicas; a tick that loses the election is a no-op.
func (s *Scheduler) WithLeaderLock(lock LeaderLock) *Scheduler {
	s.lock = lock
	return s
}

// WithInterval overrides the beat interval.
func (s *Scheduler) WithInterval(d time.Duration) *Scheduler {
	s.interval = d
	return s
}

// WithClock overrides the clock in tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run beats until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", zap.Error(err))
			} else if n > 0 {
				s.logger.Info("scheduled syncs", zap.Int("count", n))
			}
		}
	}
}

// Tick performs one eligibility scan and returns how many syncs were
// enqueued.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	if s.lock != nil {
		held, err := s.lock.Acquire(ctx)
		if err != nil {
			return 0, fmt.Errorf("acquire scheduler lock: %w", err)
		}
		if !held {
			s.logger.Debug("another scheduler holds the lock, skipping tick")
			return 0, nil
		}
	}

	accounts, err := s.accounts.ListSchedulable(ctx)
	if err != nil {
		return 0, fmt.Errorf("list schedulable accounts: %w", err)
	}

	now := s.now()

	var due []models.ConnectionAccount
	for _, account := range accounts {
		if s.eligible(&account, now) {
			due = append(due, account)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dispatchWorkers)

	for _, account := range due {
		g.Go(func() error {
			task, err := tasks.CreateIntegrationSyncTask(account.ID, account.Vendor)
			if err != nil {
				return err
			}
			return s.queue.EnqueueTask(gctx, task,
				asynq.Queue(tasks.QueueDefault),
				asynq.Unique(time.Hour),
			)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("enqueue syncs: %w", err)
	}

	s.reportShortage(ctx)

	return len(due), nil
}

// eligible keys the window off updated_at: any write to the account,
// including a manual sync finishing, pushes the next scheduled run out.
func (s *Scheduler) eligible(account *models.ConnectionAccount, now time.Time) bool {
	if account.Status == models.StatusSync {
		return false
	}

	var window time.Duration
	switch account.Configuration.Frequency {
	case models.FrequencyWeekly:
		window = weeklyWindow
	case models.FrequencyDaily, "":
		window = dailyWindow
	default:
		s.logger.Warn("unknown sync frequency",
			zap.String("connection_account_id", account.ID.String()),
			zap.String("frequency", account.Configuration.Frequency))
		return false
	}

	return !account.UpdatedAt.After(now.Add(-window))
}

// reportShortage emits busy - idle + 1 when the fleet is saturated: a
// positive value is how many extra workers the backlog needs right now.
func (s *Scheduler) reportShortage(ctx context.Context) {
	if s.inspector == nil {
		return
	}

	servers, err := s.inspector.Servers()
	if err != nil {
		s.logger.Debug("worker inspection failed", zap.Error(err))
		return
	}

	var busy, capacity int
	for _, srv := range servers {
		busy += len(srv.ActiveWorkers)
		capacity += srv.Concurrency
	}

	shortage := busy - (capacity - busy) + 1
	if shortage <= 0 {
		return
	}

	s.logger.Warn("worker shortage", zap.Int("shortage", shortage), zap.Int("busy", busy), zap.Int("capacity", capacity))

	ev := tlmt.NewEvent("scheduler", "worker_shortage", map[string]any{
		"shortage": shortage,
		"busy":     busy,
		"capacity": capacity,
	})
	if err := s.telemetry.Send(ctx, ev); err != nil {
		s.logger.Debug("telemetry send failed", zap.Error(err))
	}
}
