// Package tasks executes queued sync work: it resolves the adapter for a
// task's vendor and drives one lifecycle attempt under a wall-clock cap.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
)

// defaultSyncTimeout caps a single sync run. Hitting it surfaces to the
// account as a connection timeout rather than a hung worker.
const defaultSyncTimeout = 50 * time.Minute

type Handler struct {
	registry    *integration.Registry
	lifecycle   *integration.Lifecycle
	syncTimeout time.Duration
	logger      *zap.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSyncTimeout overrides the per-run wall-clock cap.
func WithSyncTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.syncTimeout = d
	}
}

func NewHandler(registry *integration.Registry, lifecycle *integration.Lifecycle, logger *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry:    registry,
		lifecycle:   lifecycle,
		syncTimeout: defaultSyncTimeout,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// NewMux returns a ServeMux with all task types routed to the handler.
func NewMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeIntegrationSync, h.ProcessIntegrationSyncTask)
	mux.HandleFunc(TypeHealthCheck, func(context.Context, *asynq.Task) error { return nil })
	return mux
}

// ProcessIntegrationSyncTask runs one sync attempt. A returned error
// means infrastructure trouble and asks asynq to retry; adapter failures
// are translated and persisted by the lifecycle, so they complete the
// task.
func (h *Handler) ProcessIntegrationSyncTask(ctx context.Context, task *asynq.Task) error {
	var payload IntegrationSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal sync payload: %v: %w", err, asynq.SkipRetry)
	}

	adapter, err := h.registry.Get(payload.Vendor)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	ctx, cancel := context.WithTimeout(ctx, h.syncTimeout)
	defer cancel()

	report, err := h.lifecycle.Attempt(ctx, adapter, payload.ConnectionAccountID)
	switch {
	case errors.Is(err, models.ErrAccountSyncing):
		// Another worker holds the sync lock; its run covers this task.
		h.logger.Info("account already syncing, dropping task",
			zap.String("connection_account_id", payload.ConnectionAccountID.String()))
		return nil
	case errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		return err
	}

	h.logger.Info("sync task finished",
		zap.String("vendor", payload.Vendor),
		zap.String("connection_account_id", payload.ConnectionAccountID.String()),
		zap.String("status", report.Status),
		zap.String("error_code", report.ErrorCode))

	return nil
}
