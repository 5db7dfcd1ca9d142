package rippling_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/integration/rippling"
	"github.com/laikahq/sync-engine/memstore"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/objectstore"
	"github.com/laikahq/sync-engine/people"
	"github.com/laikahq/sync-engine/pkg/encryption"
)

func TestAdapter_Run(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/employees", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer rk-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "emp-1", "firstName": "Grace", "lastName": "Hopper", "workEmail": "grace@example.com", "title": "Admiral"},
			{"id": "emp-2", "firstName": "Jean", "lastName": "Bartik", "workEmail": "jean@example.com", "manager": "emp-1"},
		})
	})
	mux.HandleFunc("/background_checks", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "bgc-1", "firstName": "Jean", "lastName": "Bartik", "email": "jean@example.com",
				"checkName": "criminal", "status": "clear", "initiatedAt": "2025-01-02T00:00:00Z"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	stores := memstore.New()
	logger := zap.NewNop()

	key := make([]byte, encryption.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	vault, err := encryption.NewVault(key)
	require.NoError(t, err)

	account := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Vendor:         alerts.VendorRippling,
		Alias:          "hr rippling",
		Status:         models.StatusPending,
		Configuration: models.ConfigurationState{
			Credentials: map[string]any{"apiKey": "rk-1"},
		},
	}
	require.NoError(t, stores.Accounts().Create(context.Background(), account))

	adapter := rippling.New(
		stores.Accounts(),
		vault,
		people.NewService(stores.People(), logger),
		rippling.Config{BaseURL: srv.URL},
		logger,
	)

	rc := &integration.RunContext{
		Account:  account,
		Run:      objectstore.New(stores.Objects(), logger).NewRun(account, adapter.Metadata()),
		Resolver: objectspec.NewResolver(stores.ObjectTypes(), logger),
		Stats:    integration.NewStats(),
		Logger:   logger,
	}

	ctx := context.Background()
	require.NoError(t, adapter.Run(ctx, rc))

	assert.Equal(t, 2, account.PeopleAmount)

	jean, err := stores.People().GetByExternalID(ctx, account.ID, "emp-2")
	require.NoError(t, err)
	grace, err := stores.People().GetByExternalID(ctx, account.ID, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, jean.ManagerID)
	assert.Equal(t, grace.ID, *jean.ManagerID)

	bgcType, err := stores.ObjectTypes().GetByTypeName(ctx, account.OrganizationID, objectspec.BackgroundCheck.TypeName)
	require.NoError(t, err)
	check, err := stores.Objects().FindByData(ctx, bgcType.ID, account.ID, map[string]any{objectspec.AttrID: "bgc-1"})
	require.NoError(t, err)
	assert.Equal(t, "clear", check.Data["Status"])
}
