package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/memstore"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/redis/tasks"
	"github.com/laikahq/sync-engine/web"
)

type fakeAdapter struct {
	vendor      string
	connectErr  error
	connectFn   func(*models.ConnectionAccount) error
	callbackErr error
	options     []models.FieldOption
}

func (f *fakeAdapter) Vendor() string            { return f.vendor }
func (f *fakeAdapter) Metadata() models.Metadata { return models.Metadata{} }

func (f *fakeAdapter) Run(context.Context, *integration.RunContext) error { return nil }

func (f *fakeAdapter) Connect(_ context.Context, account *models.ConnectionAccount) error {
	if f.connectFn != nil {
		return f.connectFn(account)
	}
	return f.connectErr
}

func (f *fakeAdapter) Callback(_ context.Context, account *models.ConnectionAccount, params map[string]string) error {
	if f.callbackErr != nil {
		return f.callbackErr
	}
	code := params["code"]
	if code == "" {
		return integration.ErrDenialOfConsent
	}
	if account.Authentication == nil {
		account.Authentication = map[string]any{}
	}
	account.Authentication["access_token"] = "token-for-" + code
	return nil
}

func (f *fakeAdapter) FieldOptions(context.Context, *models.ConnectionAccount, string) ([]models.FieldOption, error) {
	return f.options, nil
}

type fakeQueue struct {
	tasks []*asynq.Task
}

func (f *fakeQueue) EnqueueTask(_ context.Context, task *asynq.Task, _ ...asynq.Option) error {
	f.tasks = append(f.tasks, task)
	return nil
}

type fixture struct {
	stores  *memstore.Stores
	queue   *fakeQueue
	adapter *fakeAdapter
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stores := memstore.New()
	queue := &fakeQueue{}
	adapter := &fakeAdapter{vendor: alerts.VendorGitHub}

	registry := integration.NewRegistry()
	registry.Register(adapter)

	srv := web.NewServer(registry, stores.Accounts(), alerts.DefaultCatalogue(), queue, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &fixture{stores: stores, queue: queue, adapter: adapter, server: ts}
}

func (f *fixture) addAccount(t *testing.T) *models.ConnectionAccount {
	t.Helper()

	account := &models.ConnectionAccount{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Vendor:         alerts.VendorGitHub,
		Alias:          "production github",
		Status:         models.StatusPending,
	}
	require.NoError(t, f.stores.Accounts().Create(context.Background(), account))
	return account
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestOAuthCallback_Success(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t)

	resp, err := http.Get(f.server.URL + "/oauth/callback/GitHub?code=abc&state=" + account.ID.String())
	require.NoError(t, err)
	body := decode(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "connected", body["status"])

	stored, err := f.stores.Accounts().Get(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "token-for-abc", stored.Authentication["access_token"])
}

func TestOAuthCallback_DenialOfConsent(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t)

	resp, err := http.Get(f.server.URL + "/oauth/callback/GitHub?state=" + account.ID.String())
	require.NoError(t, err)
	body := decode(t, resp)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	wizardErr := body["error"].(map[string]any)
	assert.Equal(t, alerts.CodeDenialOfConsent, wizardErr["code"])
	assert.NotEmpty(t, wizardErr["message"])
}

func TestOAuthCallback_UnknownVendor(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/oauth/callback/Nonesuch?code=abc&state=" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConnect_Success(t *testing.T) {
	f := newFixture(t)

	payload, _ := json.Marshal(map[string]any{
		"organization_id": uuid.New(),
		"alias":           "staging github",
		"credentials":     map[string]any{"apiToken": "tok"},
		"settings":        map[string]any{"organizations": []string{"acme"}},
	})

	resp, err := http.Post(f.server.URL+"/integrations/GitHub/connect", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	body := decode(t, resp)

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	accountID, err := uuid.Parse(body["account_id"].(string))
	require.NoError(t, err)

	stored, err := f.stores.Accounts().Get(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, models.FrequencyDaily, stored.Configuration.Frequency)
	assert.Equal(t, "tok", stored.Configuration.Credentials["apiToken"])
	assert.Empty(t, stored.Authentication)
}

func TestConnect_CredentialsReachAdapter(t *testing.T) {
	f := newFixture(t)
	f.adapter.connectFn = func(account *models.ConnectionAccount) error {
		token, _ := account.Configuration.Credentials["apiToken"].(string)
		if token == "" {
			return integration.NewCodedError(alerts.CodeBadCredentials, "token missing")
		}
		return nil
	}

	payload, _ := json.Marshal(map[string]any{
		"organization_id": uuid.New(),
		"alias":           "staging github",
		"credentials":     map[string]any{"apiToken": "tok"},
	})

	resp, err := http.Post(f.server.URL+"/integrations/github/connect", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestConnect_BadCredentialsNotPersisted(t *testing.T) {
	f := newFixture(t)
	f.adapter.connectErr = integration.NewCodedError(alerts.CodeBadCredentials, "token rejected")

	payload, _ := json.Marshal(map[string]any{
		"organization_id": uuid.New(),
		"alias":           "staging github",
	})

	resp, err := http.Post(f.server.URL+"/integrations/GitHub/connect", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	body := decode(t, resp)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	wizardErr := body["error"].(map[string]any)
	assert.Equal(t, alerts.CodeBadCredentials, wizardErr["code"])
}

func TestFieldOptions_Envelope(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t)
	f.adapter.options = []models.FieldOption{
		{ID: "acme", Value: map[string]any{"name": "acme"}},
	}

	resp, err := http.Get(f.server.URL + "/integrations/GitHub/fields/organizations?account_id=" + account.ID.String())
	require.NoError(t, err)
	body := decode(t, resp)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	options := body["options"].([]any)
	require.Len(t, options, 1)
	first := options[0].(map[string]any)
	assert.Equal(t, "acme", first["id"])
}

func TestManualSync_EnqueuesCritical(t *testing.T) {
	f := newFixture(t)
	account := f.addAccount(t)

	resp, err := http.Post(f.server.URL+"/integrations/accounts/"+account.ID.String()+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, tasks.TypeIntegrationSync, f.queue.tasks[0].Type())
}

func TestManualSync_UnknownAccount(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/integrations/accounts/"+uuid.NewString()+"/sync", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
