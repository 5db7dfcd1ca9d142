package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/memstore"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/objectstore"
	"github.com/laikahq/sync-engine/redis/tasks"
	"github.com/laikahq/sync-engine/tlmt/gonoop"
)

type fakeAdapter struct {
	vendor string
	run    func(ctx context.Context, rc *integration.RunContext) error
}

func (f *fakeAdapter) Vendor() string            { return f.vendor }
func (f *fakeAdapter) Metadata() models.Metadata { return models.Metadata{} }

func (f *fakeAdapter) Run(ctx context.Context, rc *integration.RunContext) error {
	if f.run == nil {
		return nil
	}
	return f.run(ctx, rc)
}

type fixture struct {
	stores  *memstore.Stores
	account *models.ConnectionAccount
	handler *tasks.Handler
}

func newFixture(t *testing.T, adapter *fakeAdapter, opts ...tasks.HandlerOption) *fixture {
	t.Helper()

	stores := memstore.New()
	logger := zap.NewNop()

	lifecycle := integration.NewLifecycle(
		stores.Accounts(),
		stores.Objects(),
		objectstore.New(stores.Objects(), logger),
		objectspec.NewResolver(stores.ObjectTypes(), logger),
		alerts.DefaultCatalogue(),
		gonoop.New(),
		logger,
	)

	registry := integration.NewRegistry()
	registry.Register(adapter)

	account := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Vendor:         adapter.vendor,
		Alias:          "production okta",
		Status:         models.StatusPending,
	}
	require.NoError(t, stores.Accounts().Create(context.Background(), account))

	return &fixture{
		stores:  stores,
		account: account,
		handler: tasks.NewHandler(registry, lifecycle, logger, opts...),
	}
}

func syncTask(t *testing.T, accountID uuid.UUID, vendor string) *asynq.Task {
	t.Helper()

	task, err := tasks.CreateIntegrationSyncTask(accountID, vendor)
	require.NoError(t, err)
	return task
}

func TestCreateIntegrationSyncTask_Payload(t *testing.T) {
	accountID := uuid.New()

	task, err := tasks.CreateIntegrationSyncTask(accountID, alerts.VendorOkta)
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeIntegrationSync, task.Type())

	var payload tasks.IntegrationSyncPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, accountID, payload.ConnectionAccountID)
	assert.Equal(t, alerts.VendorOkta, payload.Vendor)
}

func TestProcessIntegrationSyncTask_Success(t *testing.T) {
	adapter := &fakeAdapter{vendor: alerts.VendorOkta}
	f := newFixture(t, adapter)
	ctx := context.Background()

	err := f.handler.ProcessIntegrationSyncTask(ctx, syncTask(t, f.account.ID, adapter.vendor))
	require.NoError(t, err)

	account, err := f.stores.Accounts().Get(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, account.Status)
}

func TestProcessIntegrationSyncTask_AdapterFailureCompletesTask(t *testing.T) {
	adapter := &fakeAdapter{
		vendor: alerts.VendorOkta,
		run: func(context.Context, *integration.RunContext) error {
			return integration.NewCodedError(alerts.CodeBadCredentials, "token revoked")
		},
	}
	f := newFixture(t, adapter)
	ctx := context.Background()

	err := f.handler.ProcessIntegrationSyncTask(ctx, syncTask(t, f.account.ID, adapter.vendor))
	require.NoError(t, err)

	account, err := f.stores.Accounts().Get(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, account.Status)
	assert.Equal(t, alerts.CodeBadCredentials, account.ErrorCode)
}

func TestProcessIntegrationSyncTask_Timeout(t *testing.T) {
	adapter := &fakeAdapter{
		vendor: alerts.VendorOkta,
		run: func(ctx context.Context, _ *integration.RunContext) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	f := newFixture(t, adapter, tasks.WithSyncTimeout(10*time.Millisecond))
	ctx := context.Background()

	err := f.handler.ProcessIntegrationSyncTask(ctx, syncTask(t, f.account.ID, adapter.vendor))
	require.NoError(t, err)

	account, err := f.stores.Accounts().Get(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, account.Status)
	assert.Equal(t, alerts.CodeConnectionTimeout, account.ErrorCode)
}

func TestProcessIntegrationSyncTask_UnknownVendor(t *testing.T) {
	f := newFixture(t, &fakeAdapter{vendor: alerts.VendorOkta})

	err := f.handler.ProcessIntegrationSyncTask(context.Background(), syncTask(t, f.account.ID, "nonesuch"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessIntegrationSyncTask_UnknownAccount(t *testing.T) {
	adapter := &fakeAdapter{vendor: alerts.VendorOkta}
	f := newFixture(t, adapter)

	err := f.handler.ProcessIntegrationSyncTask(context.Background(), syncTask(t, uuid.New(), adapter.vendor))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessIntegrationSyncTask_AlreadySyncingDropsTask(t *testing.T) {
	adapter := &fakeAdapter{vendor: alerts.VendorOkta}
	f := newFixture(t, adapter)
	ctx := context.Background()

	require.NoError(t, f.stores.Accounts().BeginSync(ctx, f.account.ID))

	err := f.handler.ProcessIntegrationSyncTask(ctx, syncTask(t, f.account.ID, adapter.vendor))
	assert.NoError(t, err)
}

func TestProcessIntegrationSyncTask_BadPayload(t *testing.T) {
	f := newFixture(t, &fakeAdapter{vendor: alerts.VendorOkta})

	task := asynq.NewTask(tasks.TypeIntegrationSync, []byte("{not json"))
	err := f.handler.ProcessIntegrationSyncTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}
