// Package datadog syncs monitors and the rolling event stream. Events
// are append-only on the vendor side, so cleanup is narrowed to the
// re-fetched window instead of the whole type.
package datadog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/pkg/encryption"
	"github.com/laikahq/sync-engine/pkg/vendorhttp"
)

const defaultBaseURL = "https://api.datadoghq.com"

type Config struct {
	BaseURL string
}

type Adapter struct {
	accounts models.ConnectionAccountRepository
	vault    *encryption.Vault
	cfg      Config
	logger   *zap.Logger
}

func New(accounts models.ConnectionAccountRepository, vault *encryption.Vault, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{accounts: accounts, vault: vault, cfg: cfg, logger: logger}
}

func (a *Adapter) Vendor() string { return alerts.VendorDatadog }

func (a *Adapter) Metadata() models.Metadata {
	return models.Metadata{
		// The event stream is large; resolve upserts against a preloaded
		// id index instead of per-record queries.
		Search:            models.SearchV2,
		ReadHistoryMonths: 1,
	}
}

func (a *Adapter) Connect(ctx context.Context, account *models.ConnectionAccount) error {
	if err := integration.RaiseIfDuplicate(ctx, a.accounts, account, a.credentialIdentity); err != nil {
		return err
	}

	headers, err := a.authHeaders(account)
	if err != nil {
		return err
	}

	client := vendorhttp.NewClient(alerts.VendorDatadog, a.logger)

	return client.DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.cfg.BaseURL + "/api/v1/validate",
		Headers: headers,
	}, nil)
}

func (a *Adapter) Run(ctx context.Context, rc *integration.RunContext) error {
	if err := integration.RaiseIfDuplicate(ctx, a.accounts, rc.Account, a.credentialIdentity); err != nil {
		return err
	}

	headers, err := a.authHeaders(rc.Account)
	if err != nil {
		return err
	}

	client := vendorhttp.NewClient(alerts.VendorDatadog, rc.Logger, vendorhttp.WithStats(rc.Stats))

	if err := a.syncMonitors(ctx, rc, client, headers); err != nil {
		return err
	}
	if err := a.syncEvents(ctx, rc, client, headers); err != nil {
		return err
	}

	return integration.WriteAccountSummary(ctx, rc)
}

func (a *Adapter) syncMonitors(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, headers map[string]string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.Monitor)
	if err != nil {
		return err
	}

	var monitors []map[string]any
	err = client.DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.cfg.BaseURL + "/api/v1/monitor",
		Headers: headers,
	}, &monitors)
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, monitorMapper(), monitors)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.Monitor.TypeName, len(seen))
	return nil
}

func (a *Adapter) syncEvents(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, headers map[string]string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.Event)
	if err != nil {
		return err
	}

	now := time.Now()
	windowStart := integration.ReadWindowStart(a.Metadata(), now)

	var out struct {
		Events []map[string]any `json:"events"`
	}
	err = client.DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.cfg.BaseURL + "/api/v1/events",
		Headers: headers,
		Query: map[string]string{
			"start": fmt.Sprintf("%d", windowStart.Unix()),
			"end":   fmt.Sprintf("%d", now.Unix()),
		},
	}, &out)
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, eventMapper(), out.Events)
	if err != nil {
		return err
	}

	// Only the re-fetched window is authoritative; events older than it
	// were neither re-seen nor deleted upstream.
	_, err = rc.Run.CleanupByLookup(ctx, objectType, seen, models.DataLookup{
		Key:   "Epoch",
		Op:    "gte",
		Value: windowStart.Unix(),
	})
	if err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.Event.TypeName, len(seen))
	return nil
}

func (a *Adapter) authHeaders(account *models.ConnectionAccount) (map[string]string, error) {
	apiKey, err := a.vault.GetOrEncrypt("apiKey", account.Configuration.Credentials)
	if err != nil {
		return nil, integration.NewCodedError(alerts.CodeInvalidDatadogKeys, err.Error())
	}

	appKey, err := a.vault.GetOrEncrypt("applicationKey", account.Configuration.Credentials)
	if err != nil {
		return nil, integration.NewCodedError(alerts.CodeInvalidDatadogKeys, err.Error())
	}

	return map[string]string{
		"DD-API-KEY":         apiKey,
		"DD-APPLICATION-KEY": appKey,
	}, nil
}

// credentialIdentity keys the duplicate guard on the key pair, comparing
// plaintexts since ciphertexts are nonce-randomized.
func (a *Adapter) credentialIdentity(account *models.ConnectionAccount) string {
	apiKey := a.plaintext(account, "apiKey")
	appKey := a.plaintext(account, "applicationKey")
	if apiKey == "" || appKey == "" {
		return ""
	}
	return apiKey + "\x1f" + appKey
}

func (a *Adapter) plaintext(account *models.ConnectionAccount, field string) string {
	v, _ := account.Configuration.Credentials[field].(string)
	if plain, err := a.vault.Decrypt(v); err == nil {
		return plain
	}
	return v
}
