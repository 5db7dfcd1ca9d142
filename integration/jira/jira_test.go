package jira_test

import (
	"context"
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
	"github.com/laikahq/sync-engine/integration/jira"
	"github.com/laikahq/sync-engine/memstore"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/objectstore"
)

func newFixture(t *testing.T, apiBase string) (*memstore.Stores, *jira.Adapter, *integration.RunContext) {
	t.Helper()

	stores := memstore.New()
	logger := zap.NewNop()

	account := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Vendor:         alerts.VendorJira,
		Alias:          "eng jira",
		Status:         models.StatusPending,
		Authentication: map[string]any{"access_token": "tok", "site": "cloud-1"},
		Configuration: models.ConfigurationState{
			Settings: map[string]any{"project": []any{"ENG"}},
		},
	}
	require.NoError(t, stores.Accounts().Create(context.Background(), account))

	adapter := jira.New(stores.Accounts(), jira.Config{APIBase: apiBase}, logger)

	rc := &integration.RunContext{
		Account:  account,
		Run:      objectstore.New(stores.Objects(), logger).NewRun(account, adapter.Metadata()),
		Resolver: objectspec.NewResolver(stores.ObjectTypes(), logger),
		Stats:    integration.NewStats(),
		Logger:   logger,
	}

	return stores, adapter, rc
}

func TestAdapter_Run(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ex/jira/cloud-1/rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("jql"), `project in ("ENG")`)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"issues": []map[string]any{
				{
					"key":  "ENG-42",
					"self": "https://acme.atlassian.net/browse/ENG-42",
					"fields": map[string]any{
						"summary":   "rotate signing keys",
						"issuetype": map[string]any{"name": "Task"},
						"project":   map[string]any{"name": "Engineering"},
						"assignee":  map[string]any{"displayName": "Ada Lovelace"},
						"reporter":  map[string]any{"displayName": "Alan Turing"},
						"status":    map[string]any{"name": "Done"},
						"created":   "2025-06-01T00:00:00.000+0000",
					},
					"changelog": map[string]any{
						"histories": []any{
							map[string]any{
								"created": "2025-06-02T00:00:00.000+0000",
								"author":  map[string]any{"displayName": "Ada Lovelace"},
								"items": []any{
									map[string]any{"field": "status", "fromString": "In Progress", "toString": "Done"},
								},
							},
						},
					},
				},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	stores, adapter, rc := newFixture(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, adapter.Run(ctx, rc))

	crType, err := stores.ObjectTypes().GetByTypeName(ctx, rc.Account.OrganizationID, objectspec.ChangeRequest.TypeName)
	require.NoError(t, err)
	issue, err := stores.Objects().FindByData(ctx, crType.ID, rc.Account.ID, map[string]any{"Key": "ENG-42"})
	require.NoError(t, err)
	assert.Equal(t, "Done", issue.Data["Status"])

	history, ok := issue.Data["Transitions History"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, "Done", history[0]["to"])
}

func TestAdapter_Run_NoProjectSelected(t *testing.T) {
	_, adapter, rc := newFixture(t, "http://unused.invalid")
	rc.Account.Configuration.Settings = map[string]any{}

	err := adapter.Run(context.Background(), rc)
	require.Error(t, err)

	var coded alerts.Coded
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, alerts.CodeMissingConfiguration, coded.ErrorCode())
}

func TestAdapter_Run_DuplicateSite(t *testing.T) {
	stores, adapter, rc := newFixture(t, "http://unused.invalid")
	ctx := context.Background()

	sibling := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: rc.Account.OrganizationID,
		Vendor:         alerts.VendorJira,
		Alias:          "second jira",
		Status:         models.StatusPending,
		Authentication: map[string]any{"site": "cloud-1"},
	}
	require.NoError(t, stores.Accounts().Create(ctx, sibling))

	err := adapter.Run(ctx, rc)
	assert.ErrorIs(t, err, integration.ErrConnectionAlreadyExists)
}

func TestAdapter_FieldOptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ex/jira/cloud-1/rest/api/3/project/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"values": []map[string]any{
				{"id": "10001", "key": "ENG", "name": "Engineering"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, adapter, rc := newFixture(t, srv.URL)

	options, err := adapter.FieldOptions(context.Background(), rc.Account, "project")
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "10001", options[0].ID)
	assert.Equal(t, "ENG", options[0].Value["key"])
}

func TestAdapter_Callback_DenialOfConsent(t *testing.T) {
	_, adapter, rc := newFixture(t, "http://unused.invalid")

	err := adapter.Callback(context.Background(), rc.Account, map[string]string{"error": "access_denied"})
	assert.ErrorIs(t, err, integration.ErrDenialOfConsent)
}
