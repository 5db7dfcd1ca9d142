// Package rippling syncs the HR roster: directory users as Laika objects,
// the raw people side-channel with manager links, and background checks.
package rippling

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/people"
	"github.com/laikahq/sync-engine/pkg/encryption"
	"github.com/laikahq/sync-engine/pkg/vendorhttp"
)

const defaultBaseURL = "https://api.rippling.com/platform/api"

type Config struct {
	BaseURL string
}

type Adapter struct {
	accounts models.ConnectionAccountRepository
	vault    *encryption.Vault
	people   *people.Service
	cfg      Config
	logger   *zap.Logger
}

func New(accounts models.ConnectionAccountRepository, vault *encryption.Vault, peopleSvc *people.Service, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{accounts: accounts, vault: vault, people: peopleSvc, cfg: cfg, logger: logger}
}

func (a *Adapter) Vendor() string { return alerts.VendorRippling }

func (a *Adapter) Metadata() models.Metadata {
	return models.Metadata{Search: models.SearchV1}
}

func (a *Adapter) Connect(ctx context.Context, account *models.ConnectionAccount) error {
	key, err := a.vault.GetOrEncrypt("apiKey", account.Configuration.Credentials)
	if err != nil {
		return integration.NewCodedError(alerts.CodeInvalidRipplingAPIKey, err.Error())
	}

	client := vendorhttp.NewClient(alerts.VendorRippling, a.logger)

	return client.DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.cfg.BaseURL + "/employees",
		Headers: bearer(key),
		Query:   map[string]string{"limit": "1"},
	}, nil)
}

func (a *Adapter) Run(ctx context.Context, rc *integration.RunContext) error {
	key, err := a.vault.GetOrEncrypt("apiKey", rc.Account.Configuration.Credentials)
	if err != nil {
		return integration.NewCodedError(alerts.CodeInvalidRipplingAPIKey, err.Error())
	}

	client := vendorhttp.NewClient(alerts.VendorRippling, rc.Logger, vendorhttp.WithStats(rc.Stats))

	employees, err := a.fetchAll(ctx, client, key, a.cfg.BaseURL+"/employees")
	if err != nil {
		return err
	}

	if err := a.syncUsers(ctx, rc, employees); err != nil {
		return err
	}
	if err := a.ingestPeople(ctx, rc, employees); err != nil {
		return err
	}
	if err := a.syncBackgroundChecks(ctx, rc, client, key); err != nil {
		return err
	}

	return integration.WriteAccountSummary(ctx, rc)
}

func (a *Adapter) syncUsers(ctx context.Context, rc *integration.RunContext, employees []map[string]any) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.User)
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, userMapper(), employees)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.User.TypeName, len(seen))
	return nil
}

func (a *Adapter) ingestPeople(ctx context.Context, rc *integration.RunContext, employees []map[string]any) error {
	records := make([]people.Record, 0, len(employees))
	for _, e := range employees {
		id, _ := e["id"].(string)
		records = append(records, people.Record{
			ExternalID:        id,
			Email:             str(e, "workEmail"),
			FirstName:         str(e, "firstName"),
			LastName:          str(e, "lastName"),
			Title:             str(e, "title"),
			Department:        str(e, "department"),
			ManagerExternalID: str(e, "manager"),
		})
	}

	n, err := a.people.Ingest(ctx, rc.Account, records)
	if err != nil {
		return err
	}

	rc.Account.PeopleAmount = n
	return nil
}

func (a *Adapter) syncBackgroundChecks(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, key string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.BackgroundCheck)
	if err != nil {
		return err
	}

	checks, err := a.fetchAll(ctx, client, key, a.cfg.BaseURL+"/background_checks")
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, backgroundCheckMapper(), checks)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.BackgroundCheck.TypeName, len(seen))
	return nil
}

func (a *Adapter) fetchAll(ctx context.Context, client *vendorhttp.Client, key, url string) ([]map[string]any, error) {
	const limit = 100

	var all []map[string]any
	for offset := 0; ; offset += limit {
		var batch []map[string]any
		err := client.DoJSON(ctx, vendorhttp.Request{
			Method:  "GET",
			URL:     url,
			Headers: bearer(key),
			Query: map[string]string{
				"limit":  "100",
				"offset": strconv.Itoa(offset),
			},
		}, &batch)
		if err != nil {
			return nil, err
		}

		all = append(all, batch...)

		if len(batch) < limit {
			return all, nil
		}
	}
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
