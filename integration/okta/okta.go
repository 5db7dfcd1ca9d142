// Package okta syncs an Okta org: directory users and the applications
// wired into it, surfaced as service accounts.
package okta

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/pkg/encryption"
	"github.com/laikahq/sync-engine/pkg/vendorhttp"
)

const pageLimit = 200

type Config struct {
	// BaseURL overrides the per-subdomain URL, for tests.
	BaseURL string
}

type Adapter struct {
	accounts models.ConnectionAccountRepository
	vault    *encryption.Vault
	cfg      Config
	logger   *zap.Logger
}

func New(accounts models.ConnectionAccountRepository, vault *encryption.Vault, cfg Config, logger *zap.Logger) *Adapter {
	return &Adapter{accounts: accounts, vault: vault, cfg: cfg, logger: logger}
}

func (a *Adapter) Vendor() string { return alerts.VendorOkta }

func (a *Adapter) Metadata() models.Metadata {
	return models.Metadata{
		Search:              models.SearchV1,
		ConfigurationFields: []string{"subdomain"},
	}
}

// Connect validates the API token with a cheap call and arms the
// duplicate guard before the account is saved.
func (a *Adapter) Connect(ctx context.Context, account *models.ConnectionAccount) error {
	if subdomain(account) == "" {
		return integration.NewConfigError("okta connection is missing a subdomain")
	}

	if err := integration.RaiseIfDuplicate(ctx, a.accounts, account, subdomain); err != nil {
		return err
	}

	token, err := a.vault.GetOrEncrypt("apiToken", account.Configuration.Credentials)
	if err != nil {
		return integration.NewCodedError(alerts.CodeInvalidOktaAPIKey, err.Error())
	}

	client := vendorhttp.NewClient(alerts.VendorOkta, a.logger)

	return client.DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.baseURL(account) + "/api/v1/users",
		Headers: authHeader(token),
		Query:   map[string]string{"limit": "1"},
	}, nil)
}

func (a *Adapter) Run(ctx context.Context, rc *integration.RunContext) error {
	if subdomain(rc.Account) == "" {
		return integration.NewConfigError("okta connection is missing a subdomain")
	}

	if err := integration.RaiseIfDuplicate(ctx, a.accounts, rc.Account, subdomain); err != nil {
		return err
	}

	token, err := a.vault.GetOrEncrypt("apiToken", rc.Account.Configuration.Credentials)
	if err != nil {
		return integration.NewCodedError(alerts.CodeInvalidOktaAPIKey, err.Error())
	}

	client := vendorhttp.NewClient(alerts.VendorOkta, rc.Logger, vendorhttp.WithStats(rc.Stats))

	if err := a.syncUsers(ctx, rc, client, token); err != nil {
		return err
	}
	if err := a.syncServiceAccounts(ctx, rc, client, token); err != nil {
		return err
	}

	return integration.WriteAccountSummary(ctx, rc)
}

func (a *Adapter) syncUsers(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, token string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.User)
	if err != nil {
		return err
	}

	records, err := a.paginate(ctx, client, token, a.baseURL(rc.Account)+"/api/v1/users")
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, userMapper(), records)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.User.TypeName, len(seen))
	return nil
}

func (a *Adapter) syncServiceAccounts(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, token string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.ServiceAccount)
	if err != nil {
		return err
	}

	records, err := a.paginate(ctx, client, token, a.baseURL(rc.Account)+"/api/v1/apps")
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, serviceAccountMapper(), records)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.ServiceAccount.TypeName, len(seen))
	return nil
}

// paginate follows Okta's cursor pagination via the `after` parameter.
func (a *Adapter) paginate(ctx context.Context, client *vendorhttp.Client, token, url string) ([]map[string]any, error) {
	var all []map[string]any
	after := ""

	for {
		query := map[string]string{"limit": fmt.Sprintf("%d", pageLimit)}
		if after != "" {
			query["after"] = after
		}

		var batch []map[string]any
		err := client.DoJSON(ctx, vendorhttp.Request{
			Method:  "GET",
			URL:     url,
			Headers: authHeader(token),
			Query:   query,
		}, &batch)
		if err != nil {
			return nil, err
		}

		all = append(all, batch...)

		if len(batch) < pageLimit {
			return all, nil
		}

		last, _ := batch[len(batch)-1]["id"].(string)
		if last == "" {
			return all, nil
		}
		after = last
	}
}

func (a *Adapter) baseURL(account *models.ConnectionAccount) string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL
	}
	return "https://" + subdomain(account) + ".okta.com"
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "SSWS " + token}
}

func subdomain(account *models.ConnectionAccount) string {
	s, _ := account.Configuration.Settings["subdomain"].(string)
	return s
}
