package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/objectstore"
	"github.com/laikahq/sync-engine/tlmt"
)

// Lifecycle wraps adapter runs with the status machine: the atomic entry
// into sync, catalogue translation of failures and the terminal write of
// status, error code and run metrics.
type Lifecycle struct {
	accounts  models.ConnectionAccountRepository
	objects   models.LaikaObjectRepository
	store     *objectstore.Store
	resolver  *objectspec.Resolver
	catalogue *alerts.Catalogue
	telemetry tlmt.Telemetry
	logger    *zap.Logger
}

func NewLifecycle(
	accounts models.ConnectionAccountRepository,
	objects models.LaikaObjectRepository,
	store *objectstore.Store,
	resolver *objectspec.Resolver,
	catalogue *alerts.Catalogue,
	telemetry tlmt.Telemetry,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		accounts:  accounts,
		objects:   objects,
		store:     store,
		resolver:  resolver,
		catalogue: catalogue,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Report is the outcome of one attempt after catalogue translation.
type Report struct {
	Status    string
	ErrorCode string
	Entry     alerts.Entry
}

// Attempt runs one sync for the account. The returned error covers
// infrastructure failures only (load, lock, persist); adapter failures
// are translated through the catalogue and land in the report, already
// persisted on the account. Losing the sync lock surfaces as
// models.ErrAccountSyncing.
func (l *Lifecycle) Attempt(ctx context.Context, adapter Adapter, accountID uuid.UUID) (*Report, error) {
	account, err := l.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	if err := l.accounts.BeginSync(ctx, account.ID); err != nil {
		return nil, err
	}
	account.Status = models.StatusSync

	stats := NewStats()
	rc := &RunContext{
		Account:  account,
		Run:      l.store.NewRun(account, adapter.Metadata()),
		Resolver: l.resolver,
		Stats:    stats,
		Logger:   l.logger.With(
			zap.String("vendor", adapter.Vendor()),
			zap.String("connection_account_id", account.ID.String()),
		),
	}

	runErr := l.refresh(ctx, adapter, account)
	if runErr == nil {
		runErr = l.run(ctx, adapter, rc)
	}

	if counts, err := l.objects.CountByAccount(ctx, account.ID); err == nil {
		for typeName, n := range counts {
			stats.SetRecordCount(typeName, n)
		}
	} else {
		l.logger.Warn("object count refresh failed",
			zap.String("connection_account_id", account.ID.String()),
			zap.Error(err))
	}

	report := l.conclude(account, adapter.Vendor(), runErr)
	account.Result = stats.Result()

	if err := l.accounts.FinishSync(ctx, account); err != nil {
		return nil, fmt.Errorf("finish sync: %w", err)
	}

	l.emit(ctx, account, report)

	return report, nil
}

// refresh renews the account's OAuth token when the adapter supports it.
// A failed exchange fails the run through the same translation path as
// any other adapter error.
func (l *Lifecycle) refresh(ctx context.Context, adapter Adapter, account *models.ConnectionAccount) error {
	refresher, ok := adapter.(TokenRefresher)
	if !ok {
		return nil
	}
	return refresher.RefreshToken(ctx, account)
}

// run shields the status machine from adapter panics; a panicking mapper
// must still release the sync lock.
func (l *Lifecycle) run(ctx context.Context, adapter Adapter, rc *RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter %s panicked: %v", adapter.Vendor(), r)
		}
	}()

	return adapter.Run(ctx, rc)
}

func (l *Lifecycle) conclude(account *models.ConnectionAccount, vendor string, runErr error) *Report {
	if runErr == nil {
		account.Status = models.StatusSuccess
		account.ErrorCode = ""
		account.Configuration.LastSuccessfulRun = time.Now().Unix()
		return &Report{Status: account.Status}
	}

	entry := l.translate(vendor, runErr)

	if entry.Severity == alerts.SeverityWarning {
		account.Status = models.StatusSuccess
		account.ErrorCode = ""
		account.Configuration.LastSuccessfulRun = time.Now().Unix()
		l.logger.Warn("sync finished with warning",
			zap.String("vendor", vendor),
			zap.String("code", entry.Code),
			zap.Error(runErr))
		return &Report{Status: account.Status, Entry: entry}
	}

	account.Status = models.StatusError
	account.ErrorCode = entry.Code
	l.logger.Error("sync failed",
		zap.String("vendor", vendor),
		zap.String("code", entry.Code),
		zap.Error(runErr))

	return &Report{Status: account.Status, ErrorCode: entry.Code, Entry: entry}
}

func (l *Lifecycle) translate(vendor string, runErr error) alerts.Entry {
	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		return l.catalogue.Entry(alerts.CodeConnectionTimeout)
	case errors.Is(runErr, mapper.ErrBadMapping):
		return l.catalogue.Entry(alerts.CodeBadMapping)
	}
	return l.catalogue.Translate(vendor, runErr)
}

func (l *Lifecycle) emit(ctx context.Context, account *models.ConnectionAccount, report *Report) {
	ev := tlmt.NewEvent(account.OrganizationID.String(), "integration_sync", map[string]any{
		"vendor":     account.Vendor,
		"status":     report.Status,
		"error_code": report.ErrorCode,
	})

	if err := l.telemetry.Send(ctx, ev); err != nil {
		l.logger.Debug("telemetry send failed", zap.Error(err))
	}
}
