package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/postgres"
)

// Tests run only against a throwaway database:
//
//	LAIKA_TEST_DATABASE_URL=postgres://... go test ./postgres/...
func testDB(t *testing.T) *postgres.Stores {
	t.Helper()

	dsn := os.Getenv("LAIKA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LAIKA_TEST_DATABASE_URL not set")
	}

	runner := postgres.NewMigrationRunner(dsn, zap.NewNop())
	require.NoError(t, runner.SetMigrationsDir("../scripts/migrations"))
	require.NoError(t, runner.RunMigrations())

	db, err := postgres.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return postgres.New(db)
}

func createOrg(t *testing.T, stores *postgres.Stores) *models.Organization {
	t.Helper()

	org := &models.Organization{ID: uuid.New(), Name: "org-" + uuid.NewString()[:8], State: models.OrgStateActive}
	require.NoError(t, stores.Organizations().Create(context.Background(), org))
	return org
}

func createAccount(t *testing.T, stores *postgres.Stores, orgID uuid.UUID) *models.ConnectionAccount {
	t.Helper()

	account := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Vendor:         "GitHub",
		Alias:          "github-" + uuid.NewString()[:8],
		Status:         models.StatusPending,
		Authentication: map[string]any{"access_token": "tok"},
		Configuration: models.ConfigurationState{
			Settings:  map[string]any{"organizations": []any{"acme"}},
			Frequency: models.FrequencyDaily,
		},
	}
	require.NoError(t, stores.Accounts().Create(context.Background(), account))
	return account
}

func createObjectType(t *testing.T, stores *postgres.Stores, orgID uuid.UUID) *models.ObjectType {
	t.Helper()

	objectType := &models.ObjectType{
		ID:             uuid.New(),
		OrganizationID: orgID,
		TypeName:       "user",
		DisplayName:    "Users",
		Attributes: []models.ObjectAttribute{
			{Name: "Id", Type: models.AttributeText, Required: true},
			{Name: "Email", Type: models.AttributeText},
			{Name: "Epoch", Type: models.AttributeNumber},
		},
	}
	require.NoError(t, stores.ObjectTypes().Create(context.Background(), objectType))
	return objectType
}

func TestAccountRepo_RoundTrip(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)

	stored, err := stores.Accounts().Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.Alias, stored.Alias)
	assert.Equal(t, "tok", stored.Authentication["access_token"])
	assert.Equal(t, models.FrequencyDaily, stored.Configuration.Frequency)

	stored.Status = models.StatusSuccess
	stored.Result = map[string]any{"records": map[string]any{"user": float64(2)}}
	require.NoError(t, stores.Accounts().Update(ctx, stored))

	again, err := stores.Accounts().Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, again.Status)
	assert.NotNil(t, again.Result["records"])
}

func TestAccountRepo_Get_NotFound(t *testing.T) {
	stores := testDB(t)

	_, err := stores.Accounts().Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAccountRepo_BeginSync_CAS(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)

	require.NoError(t, stores.Accounts().BeginSync(ctx, account.ID))

	err := stores.Accounts().BeginSync(ctx, account.ID)
	assert.ErrorIs(t, err, models.ErrAccountSyncing)

	err = stores.Accounts().Delete(ctx, account.ID)
	assert.ErrorIs(t, err, models.ErrAccountSyncing)

	locked, err := stores.Accounts().Get(ctx, account.ID)
	require.NoError(t, err)
	locked.Status = models.StatusSuccess
	require.NoError(t, stores.Accounts().FinishSync(ctx, locked))

	require.NoError(t, stores.Accounts().BeginSync(ctx, account.ID))
}

func TestAccountRepo_Siblings(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)
	other := createAccount(t, stores, org.ID)

	siblings, err := stores.Accounts().Siblings(ctx, account)
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, other.ID, siblings[0].ID)
}

func TestAccountRepo_Create_Invalid(t *testing.T) {
	stores := testDB(t)

	err := stores.Accounts().Create(context.Background(), &models.ConnectionAccount{ID: uuid.New()})
	assert.Error(t, err)
}

func TestObjectRepo_FindAndSoftDelete(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)
	objectType := createObjectType(t, stores, org.ID)

	keep := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "u1", "Email": "ada@example.com", "Epoch": 100},
	}
	gone := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "u2", "Email": "alan@example.com", "Epoch": 200},
	}
	require.NoError(t, stores.Objects().Create(ctx, keep))
	require.NoError(t, stores.Objects().Create(ctx, gone))

	found, err := stores.Objects().FindByData(ctx, objectType.ID, account.ID, map[string]any{"Id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, keep.ID, found.ID)

	deleted, err := stores.Objects().SoftDeleteExcept(ctx, objectType.ID, account.ID, []uuid.UUID{keep.ID}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, err = stores.Objects().FindByData(ctx, objectType.ID, account.ID, map[string]any{"Id": "u2"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	counts, err := stores.Objects().CountByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"user": 1}, counts)
}

func TestObjectRepo_LookupsIncludeSoftDeleted(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)
	objectType := createObjectType(t, stores, org.ID)

	object := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "u1", "Email": "ada@example.com", "Epoch": 100},
	}
	require.NoError(t, stores.Objects().Create(ctx, object))

	deleted, err := stores.Objects().SoftDeleteExcept(ctx, objectType.ID, account.ID, nil, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	found, err := stores.Objects().FindByData(ctx, objectType.ID, account.ID, map[string]any{"Id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, object.ID, found.ID)
	assert.NotNil(t, found.DeletedAt)

	index, err := stores.Objects().LoadIDIndex(ctx, objectType.ID, account.ID, "Id")
	require.NoError(t, err)
	assert.Equal(t, map[string]uuid.UUID{"u1": object.ID}, index)

	live := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "u1", "Email": "ada@example.com", "Epoch": 200},
	}
	require.NoError(t, stores.Objects().Create(ctx, live))

	found, err = stores.Objects().FindByData(ctx, objectType.ID, account.ID, map[string]any{"Id": "u1"})
	require.NoError(t, err)
	assert.Equal(t, live.ID, found.ID)
	assert.Nil(t, found.DeletedAt)

	index, err = stores.Objects().LoadIDIndex(ctx, objectType.ID, account.ID, "Id")
	require.NoError(t, err)
	assert.Equal(t, map[string]uuid.UUID{"u1": live.ID}, index)
}

func TestObjectRepo_SoftDeleteExcept_Lookup(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)
	objectType := createObjectType(t, stores, org.ID)

	old := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "e1", "Epoch": 100},
	}
	recent := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "e2", "Epoch": 500},
	}
	require.NoError(t, stores.Objects().Create(ctx, old))
	require.NoError(t, stores.Objects().Create(ctx, recent))

	lookup := &models.DataLookup{Key: "Epoch", Op: "gte", Value: 300}
	deleted, err := stores.Objects().SoftDeleteExcept(ctx, objectType.ID, account.ID, nil, lookup)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	survivor, err := stores.Objects().FindByData(ctx, objectType.ID, account.ID, map[string]any{"Id": "e1"})
	require.NoError(t, err)
	assert.Equal(t, old.ID, survivor.ID)
}

func TestObjectRepo_LoadIDIndex(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)
	objectType := createObjectType(t, stores, org.ID)

	object := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "u1", "Email": "ada@example.com"},
	}
	require.NoError(t, stores.Objects().Create(ctx, object))

	index, err := stores.Objects().LoadIDIndex(ctx, objectType.ID, account.ID, "Id")
	require.NoError(t, err)
	assert.Equal(t, map[string]uuid.UUID{"u1": object.ID}, index)
}

func TestObjectRepo_RewriteData(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)
	objectType := createObjectType(t, stores, org.ID)

	object := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: account.ID,
		Data:                map[string]any{"Id": "u1", "Mail": "ada@example.com"},
	}
	require.NoError(t, stores.Objects().Create(ctx, object))

	err := stores.Objects().RewriteData(ctx, objectType.ID, func(data map[string]any) map[string]any {
		if v, ok := data["Mail"]; ok {
			data["Email"] = v
			delete(data, "Mail")
		}
		return data
	})
	require.NoError(t, err)

	stored, err := stores.Objects().Get(ctx, object.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Data["Email"])
	assert.NotContains(t, stored.Data, "Mail")
}

func TestObjectTypeRepo_ReplaceAttributes(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	objectType := createObjectType(t, stores, org.ID)

	attrs := append(objectType.Attributes, models.ObjectAttribute{Name: "Title", Type: models.AttributeText})
	require.NoError(t, stores.ObjectTypes().ReplaceAttributes(ctx, objectType.ID, attrs))

	stored, err := stores.ObjectTypes().GetByTypeName(ctx, org.ID, objectType.TypeName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Email", "Epoch", "Title"}, stored.AttributeNames())
}

func TestPersonRepo_UpsertAndManager(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)

	grace := &models.Person{
		OrganizationID:      org.ID,
		ConnectionAccountID: account.ID,
		ExternalID:          "emp-1",
		Email:               "grace@example.com",
		FirstName:           "Grace",
	}
	require.NoError(t, stores.People().Upsert(ctx, grace))
	assert.Equal(t, models.DiscoveryStateNew, grace.DiscoveryState)

	jean := &models.Person{
		OrganizationID:      org.ID,
		ConnectionAccountID: account.ID,
		ExternalID:          "emp-2",
		Email:               "jean@example.com",
		ManagerExternalID:   "emp-1",
	}
	require.NoError(t, stores.People().Upsert(ctx, jean))
	require.NoError(t, stores.People().SetManager(ctx, jean.ID, grace.ID))

	stored, err := stores.People().GetByExternalID(ctx, account.ID, "emp-2")
	require.NoError(t, err)
	require.NotNil(t, stored.ManagerID)
	assert.Equal(t, grace.ID, *stored.ManagerID)

	// A re-sync upsert keeps the resolved manager link.
	again := &models.Person{
		OrganizationID:      org.ID,
		ConnectionAccountID: account.ID,
		ExternalID:          "emp-2",
		Email:               "jean.new@example.com",
		ManagerExternalID:   "emp-1",
	}
	require.NoError(t, stores.People().Upsert(ctx, again))
	assert.Equal(t, stored.ID, again.ID)

	final, err := stores.People().GetByExternalID(ctx, account.ID, "emp-2")
	require.NoError(t, err)
	assert.Equal(t, "jean.new@example.com", final.Email)
	require.NotNil(t, final.ManagerID)
	assert.Equal(t, grace.ID, *final.ManagerID)
}

func TestVendorCandidateRepo_StatePreserved(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)

	candidate := &models.VendorCandidate{OrganizationID: org.ID, Name: "Slack", NumberOfUsers: 3}
	require.NoError(t, stores.VendorCandidates().Upsert(ctx, candidate))
	assert.Equal(t, models.DiscoveryStateNew, candidate.State)

	// Confirm out of band, then re-discover with a new count.
	_, err := exec(t, stores, `UPDATE vendor_candidates SET state = $1 WHERE id = $2`, models.DiscoveryStateConfirmed, candidate.ID)
	require.NoError(t, err)

	again := &models.VendorCandidate{OrganizationID: org.ID, Name: "Slack", NumberOfUsers: 7}
	require.NoError(t, stores.VendorCandidates().Upsert(ctx, again))
	assert.Equal(t, candidate.ID, again.ID)
	assert.Equal(t, models.DiscoveryStateConfirmed, again.State)

	stored, err2 := stores.VendorCandidates().GetByName(ctx, org.ID, "Slack")
	require.NoError(t, err2)
	assert.Equal(t, 7, stored.NumberOfUsers)
}

func TestAccountRepo_ListSchedulable(t *testing.T) {
	stores := testDB(t)
	ctx := context.Background()
	org := createOrg(t, stores)
	account := createAccount(t, stores, org.ID)

	dormant := &models.Organization{ID: uuid.New(), Name: "dormant-" + uuid.NewString()[:8], State: models.OrgStateOnboarding}
	require.NoError(t, stores.Organizations().Create(ctx, dormant))
	hidden := createAccount(t, stores, dormant.ID)

	listed, err := stores.Accounts().ListSchedulable(ctx)
	require.NoError(t, err)

	ids := make(map[uuid.UUID]bool)
	for _, a := range listed {
		ids[a.ID] = true
		assert.False(t, a.UpdatedAt.IsZero())
	}
	assert.True(t, ids[account.ID])
	assert.False(t, ids[hidden.ID])
}

func exec(t *testing.T, stores *postgres.Stores, q string, args ...any) (sql.Result, error) {
	t.Helper()

	dsn := os.Getenv("LAIKA_TEST_DATABASE_URL")
	db, err := postgres.Open(dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.ExecContext(ctx, q, args...)
}
