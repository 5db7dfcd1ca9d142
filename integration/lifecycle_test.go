package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/memstore"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/objectstore"
	"github.com/laikahq/sync-engine/tlmt/gonoop"
)

type fakeAdapter struct {
	vendor string
	meta   models.Metadata
	run    func(ctx context.Context, rc *integration.RunContext) error
}

func (f *fakeAdapter) Vendor() string            { return f.vendor }
func (f *fakeAdapter) Metadata() models.Metadata { return f.meta }

func (f *fakeAdapter) Run(ctx context.Context, rc *integration.RunContext) error {
	if f.run == nil {
		return nil
	}
	return f.run(ctx, rc)
}

type lifecycleFixture struct {
	stores    *memstore.Stores
	catalogue *alerts.Catalogue
	lifecycle *integration.Lifecycle
	account   *models.ConnectionAccount
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	stores := memstore.New()
	logger := zap.NewNop()
	catalogue := alerts.DefaultCatalogue()

	lifecycle := integration.NewLifecycle(
		stores.Accounts(),
		stores.Objects(),
		objectstore.New(stores.Objects(), logger),
		objectspec.NewResolver(stores.ObjectTypes(), logger),
		catalogue,
		gonoop.New(),
		logger,
	)

	account := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Vendor:         alerts.VendorGitHub,
		Alias:          "production github",
		Status:         models.StatusPending,
	}
	require.NoError(t, stores.Accounts().Create(context.Background(), account))

	return &lifecycleFixture{
		stores:    stores,
		catalogue: catalogue,
		lifecycle: lifecycle,
		account:   account,
	}
}

func userMapper() mapper.Mapper {
	return mapper.New(&objectspec.User, []string{objectspec.AttrID}, func(raw map[string]any, alias string) (map[string]any, error) {
		return map[string]any{
			objectspec.AttrID:           raw["id"],
			"First Name":                raw["first_name"],
			"Last Name":                 raw["last_name"],
			"Email":                     raw["email"],
			"Is Admin":                  false,
			"Title":                     "",
			"Organization Name":         "",
			"Roles":                     nil,
			"Groups":                    nil,
			"Mfa Enabled":               false,
			"Mfa Enforced":              false,
			objectspec.AttrSourceSystem: "GitHub",
			objectspec.AttrConnection:   alias,
		}, nil
	})
}

func TestLifecycle_Attempt_Success(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &fakeAdapter{
		vendor: alerts.VendorGitHub,
		run: func(ctx context.Context, rc *integration.RunContext) error {
			objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.User)
			if err != nil {
				return err
			}

			records := []map[string]any{
				{"id": "u1", "first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com"},
				{"id": "u2", "first_name": "Alan", "last_name": "Turing", "email": "alan@example.com"},
			}

			seen, err := rc.Run.Upsert(ctx, objectType, userMapper(), records)
			if err != nil {
				return err
			}
			if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
				return err
			}

			rc.Stats.SetRecordCount(objectspec.User.TypeName, len(seen))

			return integration.WriteAccountSummary(ctx, rc)
		},
	}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Empty(t, report.ErrorCode)

	stored, err := f.stores.Accounts().Get(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, stored.Status)
	assert.Empty(t, stored.ErrorCode)
	assert.NotZero(t, stored.Configuration.LastSuccessfulRun)

	records, ok := stored.Result["records"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, records[objectspec.User.TypeName])

	accountType, err := f.stores.ObjectTypes().GetByTypeName(ctx, f.account.OrganizationID, objectspec.Account.TypeName)
	require.NoError(t, err)

	summary, err := f.stores.Objects().FindByData(ctx, accountType.ID, f.account.ID, map[string]any{
		objectspec.AttrConnection: f.account.Alias,
	})
	require.NoError(t, err)
	assert.Contains(t, summary.Data["Number of Records"], "user: 2")
}

func TestLifecycle_Attempt_CodedError(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &fakeAdapter{
		vendor: alerts.VendorGitHub,
		run: func(context.Context, *integration.RunContext) error {
			return integration.NewCodedError(alerts.CodeBadCredentials, "token rejected")
		},
	}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, report.Status)
	assert.Equal(t, alerts.CodeBadCredentials, report.ErrorCode)

	stored, err := f.stores.Accounts().Get(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, stored.Status)
	assert.Equal(t, alerts.CodeBadCredentials, stored.ErrorCode)
	assert.Zero(t, stored.Configuration.LastSuccessfulRun)
}

func TestLifecycle_Attempt_WarningKeepsSuccess(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &fakeAdapter{
		vendor: alerts.VendorGitHub,
		run: func(context.Context, *integration.RunContext) error {
			return integration.NewCodedError(alerts.CodeProviderServerError, "vendor 5xx after retries")
		},
	}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Empty(t, report.ErrorCode)

	stored, err := f.stores.Accounts().Get(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, stored.Status)
	assert.NotZero(t, stored.Configuration.LastSuccessfulRun)
}

func TestLifecycle_Attempt_Timeout(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &fakeAdapter{
		vendor: alerts.VendorGitHub,
		run: func(ctx context.Context, _ *integration.RunContext) error {
			timeoutCtx, cancel := context.WithTimeout(ctx, time.Nanosecond)
			defer cancel()
			<-timeoutCtx.Done()
			return timeoutCtx.Err()
		},
	}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, report.Status)
	assert.Equal(t, alerts.CodeConnectionTimeout, report.ErrorCode)
}

func TestLifecycle_Attempt_PanicReleasesLock(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &fakeAdapter{
		vendor: alerts.VendorGitHub,
		run: func(context.Context, *integration.RunContext) error {
			panic("mapper blew up")
		},
	}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, report.Status)

	// The lock is released; a second attempt may start.
	require.NoError(t, f.stores.Accounts().BeginSync(ctx, f.account.ID))
}

func TestLifecycle_Attempt_AlreadySyncing(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, f.stores.Accounts().BeginSync(ctx, f.account.ID))

	_, err := f.lifecycle.Attempt(ctx, adapterNoop(), f.account.ID)
	assert.ErrorIs(t, err, models.ErrAccountSyncing)
}

func adapterNoop() integration.Adapter {
	return &fakeAdapter{vendor: alerts.VendorGitHub}
}

func TestLifecycle_Attempt_UnknownAccount(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.lifecycle.Attempt(context.Background(), adapterNoop(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRaiseIfDuplicate(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	identity := func(a *models.ConnectionAccount) string {
		s, _ := a.Configuration.Settings["subdomain"].(string)
		return s
	}

	f.account.Configuration.Settings = map[string]any{"subdomain": "acme"}
	require.NoError(t, f.stores.Accounts().Update(ctx, f.account))

	sibling := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: f.account.OrganizationID,
		Vendor:         f.account.Vendor,
		Alias:          "second github",
		Status:         models.StatusPending,
		Configuration: models.ConfigurationState{
			Settings: map[string]any{"subdomain": "acme"},
		},
	}
	require.NoError(t, f.stores.Accounts().Create(ctx, sibling))

	err := integration.RaiseIfDuplicate(ctx, f.stores.Accounts(), f.account, identity)
	assert.ErrorIs(t, err, integration.ErrConnectionAlreadyExists)

	sibling.Configuration.Settings["subdomain"] = "other"
	require.NoError(t, f.stores.Accounts().Update(ctx, sibling))

	assert.NoError(t, integration.RaiseIfDuplicate(ctx, f.stores.Accounts(), f.account, identity))

	// An empty identity never collides, even with itself.
	f.account.Configuration.Settings = map[string]any{}
	assert.NoError(t, integration.RaiseIfDuplicate(ctx, f.stores.Accounts(), f.account, identity))
}

func TestRegistry(t *testing.T) {
	r := integration.NewRegistry()
	r.Register(&fakeAdapter{vendor: alerts.VendorGitHub})
	r.Register(&fakeAdapter{vendor: alerts.VendorOkta})

	got, err := r.Get(alerts.VendorGitHub)
	require.NoError(t, err)
	assert.Equal(t, alerts.VendorGitHub, got.Vendor())

	_, err = r.Get("gitlab")
	assert.Error(t, err)

	assert.Equal(t, []string{alerts.VendorGitHub, alerts.VendorOkta}, r.Vendors())

	assert.Panics(t, func() {
		r.Register(&fakeAdapter{vendor: alerts.VendorGitHub})
	})
}

func TestReadWindowStart(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	start := integration.ReadWindowStart(models.Metadata{}, now)
	assert.Equal(t, time.Date(2023, 12, 15, 12, 0, 0, 0, time.UTC), start)

	start = integration.ReadWindowStart(models.Metadata{ReadHistoryMonths: 3}, now)
	assert.Equal(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC), start)
}

func TestStats_Result(t *testing.T) {
	s := integration.NewStats()
	s.IncrNetworkCalls(3)
	s.IncrNetworkCalls(1)
	s.IncrRetries(2)
	s.AddNetworkWait(1500 * time.Millisecond)
	s.SetRecordCount("user", 10)

	result := s.Result()
	assert.Equal(t, 4, result["network_calls"])
	assert.Equal(t, 2, result["retries"])
	assert.Equal(t, 1.5, result["network_wait_seconds"])

	records, ok := result["records"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 10, records["user"])
}

func TestTranslate_WrappedCodedError(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &fakeAdapter{
		vendor: alerts.VendorGitHub,
		run: func(context.Context, *integration.RunContext) error {
			return errors.Join(errors.New("fetching users"), integration.ErrDenialOfConsent)
		},
	}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, alerts.CodeDenialOfConsent, report.ErrorCode)
}

type refreshingAdapter struct {
	fakeAdapter
	refreshErr error
	calls      []string
}

func (a *refreshingAdapter) RefreshToken(_ context.Context, _ *models.ConnectionAccount) error {
	a.calls = append(a.calls, "refresh")
	return a.refreshErr
}

func (a *refreshingAdapter) Run(ctx context.Context, rc *integration.RunContext) error {
	a.calls = append(a.calls, "run")
	return a.fakeAdapter.Run(ctx, rc)
}

func TestLifecycle_Attempt_RefreshesTokenBeforeRun(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &refreshingAdapter{fakeAdapter: fakeAdapter{vendor: alerts.VendorGitHub}}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"refresh", "run"}, adapter.calls)
}

func TestLifecycle_Attempt_RefreshFailureFailsRun(t *testing.T) {
	f := newLifecycleFixture(t)
	ctx := context.Background()

	adapter := &refreshingAdapter{
		fakeAdapter: fakeAdapter{vendor: alerts.VendorGitHub},
		refreshErr:  integration.NewCodedError(alerts.CodeBadCredentials, "refresh token revoked"),
	}

	report, err := f.lifecycle.Attempt(ctx, adapter, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, report.Status)
	assert.Equal(t, alerts.CodeBadCredentials, report.ErrorCode)
	assert.Equal(t, []string{"refresh"}, adapter.calls)

	stored, err := f.stores.Accounts().Get(ctx, f.account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, stored.Status)
}

func TestRegistry_VendorLookupIsCaseInsensitive(t *testing.T) {
	registry := integration.NewRegistry()
	registry.Register(&fakeAdapter{vendor: alerts.VendorGitHub})

	for _, spelling := range []string{"github", "GitHub", "GITHUB"} {
		adapter, err := registry.Get(spelling)
		require.NoError(t, err, spelling)
		assert.Equal(t, alerts.VendorGitHub, adapter.Vendor())
	}

	_, err := registry.Get("nonesuch")
	assert.Error(t, err)
}
