// Package github syncs GitHub organizations into users, repositories and
// pull requests. Connections authenticate either through the OAuth app or
// through a GitHub App installation token minted from the S3-held key.
package github

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/pkg/keystore"
	"github.com/laikahq/sync-engine/pkg/vendorhttp"
)

const defaultBaseURL = "https://api.github.com"

const (
	perPageSize = 100
	perPage     = "100"
)

type Config struct {
	OAuth        *oauth2.Config
	AppID        string
	AppKeyObject string
	BaseURL      string
}

type Adapter struct {
	accounts models.ConnectionAccountRepository
	keys     *keystore.Store
	cfg      Config
	logger   *zap.Logger
}

func New(accounts models.ConnectionAccountRepository, keys *keystore.Store, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{accounts: accounts, keys: keys, cfg: cfg, logger: logger}
}

func (a *Adapter) Vendor() string { return alerts.VendorGitHub }

func (a *Adapter) Metadata() models.Metadata {
	meta := models.Metadata{
		Search:              models.SearchV1,
		ConfigurationFields: []string{"organizations"},
	}
	if a.cfg.OAuth != nil {
		meta.RedirectURI = a.cfg.OAuth.RedirectURL
	}
	return meta
}

// Callback finishes the OAuth handshake and prefetches the organization
// options so the wizard can render the picker immediately.
func (a *Adapter) Callback(ctx context.Context, account *models.ConnectionAccount, params map[string]string) error {
	code := params["code"]
	if code == "" {
		return integration.ErrDenialOfConsent
	}

	token, err := a.cfg.OAuth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("github oauth exchange: %w", err)
	}

	if account.Authentication == nil {
		account.Authentication = map[string]any{}
	}
	account.Authentication["access_token"] = token.AccessToken
	if token.RefreshToken != "" {
		account.Authentication["refresh_token"] = token.RefreshToken
	}
	account.Configuration.LaunchedOauth = true

	options, err := a.FieldOptions(ctx, account, "organizations")
	if err != nil {
		return err
	}
	account.SetPrefetchedOptions("organizations", options)

	return nil
}

// FieldOptions lists the organizations the token can reach.
func (a *Adapter) FieldOptions(ctx context.Context, account *models.ConnectionAccount, field string) ([]models.FieldOption, error) {
	if field != "organizations" {
		return nil, fmt.Errorf("github: unknown configuration field %q", field)
	}

	token, err := a.token(ctx, account, a.client(nil))
	if err != nil {
		return nil, err
	}

	var orgs []struct {
		Login string `json:"login"`
	}
	err = a.client(nil).DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.cfg.BaseURL + "/user/orgs",
		Headers: authHeader(token),
		Query:   map[string]string{"per_page": perPage},
	}, &orgs)
	if err != nil {
		return nil, err
	}

	options := make([]models.FieldOption, 0, len(orgs))
	for _, org := range orgs {
		options = append(options, models.FieldOption{
			ID:    org.Login,
			Value: map[string]any{"name": org.Login},
		})
	}
	return options, nil
}

func (a *Adapter) Run(ctx context.Context, rc *integration.RunContext) error {
	orgs := selectedOrganizations(rc.Account)
	if len(orgs) == 0 {
		return integration.NewCodedError(alerts.CodeNoGitHubOrgSelected, "no github organization selected")
	}

	if err := integration.RaiseIfDuplicate(ctx, a.accounts, rc.Account, organizationIdentity); err != nil {
		return err
	}

	client := a.client(rc.Stats)

	token, err := a.token(ctx, rc.Account, client)
	if err != nil {
		return err
	}

	if err := a.syncUsers(ctx, rc, client, token, orgs); err != nil {
		return err
	}
	if err := a.syncRepositories(ctx, rc, client, token, orgs); err != nil {
		return err
	}
	if err := a.syncPullRequests(ctx, rc, client, token, orgs); err != nil {
		return err
	}

	return integration.WriteAccountSummary(ctx, rc)
}

func (a *Adapter) syncUsers(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, token string, orgs []string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.User)
	if err != nil {
		return err
	}

	var records []map[string]any
	for _, org := range orgs {
		members, err := a.paginate(ctx, client, token, a.cfg.BaseURL+"/orgs/"+org+"/members", nil)
		if err != nil {
			return err
		}
		for _, m := range members {
			m["__org"] = org
		}
		records = append(records, members...)
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

func (a *Adapter) syncRepositories(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, token string, orgs []string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.Repository)
	if err != nil {
		return err
	}

	var records []map[string]any
	for _, org := range orgs {
		repos, err := a.paginate(ctx, client, token, a.cfg.BaseURL+"/orgs/"+org+"/repos", nil)
		if err != nil {
			return err
		}
		for _, r := range repos {
			r["__org"] = org
		}
		records = append(records, repos...)
	}

	seen, err := rc.Run.Upsert(ctx, objectType, repositoryMapper(), records)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.Repository.TypeName, len(seen))
	return nil
}

func (a *Adapter) syncPullRequests(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, token string, orgs []string) error {
	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.PullRequest)
	if err != nil {
		return err
	}

	windowStart := integration.ReadWindowStart(a.Metadata(), time.Now())

	var records []map[string]any
	for _, org := range orgs {
		repos, err := a.paginate(ctx, client, token, a.cfg.BaseURL+"/orgs/"+org+"/repos", nil)
		if err != nil {
			return err
		}

		for _, repo := range repos {
			name, _ := repo["name"].(string)
			if name == "" {
				continue
			}

			pulls, err := a.paginateUntil(ctx, client, token,
				a.cfg.BaseURL+"/repos/"+org+"/"+name+"/pulls",
				map[string]string{"state": "all", "sort": "updated", "direction": "desc"},
				func(record map[string]any) bool {
					return updatedBefore(record, windowStart)
				})
			if err != nil {
				return err
			}

			for _, p := range pulls {
				p["__repo"] = org + "/" + name
			}
			records = append(records, pulls...)
		}
	}

	seen, err := rc.Run.Upsert(ctx, objectType, pullRequestMapper(), records)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}

	rc.Stats.SetRecordCount(objectspec.PullRequest.TypeName, len(seen))
	return nil
}

func (a *Adapter) client(stats vendorhttp.Stats) *vendorhttp.Client {
	opts := []vendorhttp.Option{}
	if stats != nil {
		opts = append(opts, vendorhttp.WithStats(stats))
	}
	return vendorhttp.NewClient(alerts.VendorGitHub, a.logger, opts...)
}

// RefreshToken forces a token exchange off the stored refresh token.
// Classic OAuth app tokens never expire and carry no refresh token, so
// this is a no-op for most connections.
func (a *Adapter) RefreshToken(ctx context.Context, account *models.ConnectionAccount) error {
	refresh, _ := account.Authentication["refresh_token"].(string)
	if refresh == "" || a.cfg.OAuth == nil {
		return nil
	}

	token, err := a.cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return fmt.Errorf("github token refresh: %w", err)
	}

	if token.AccessToken == "" {
		a.logger.Warn("token refresh returned an empty access token, keeping the stored one",
			zap.String("connection_account_id", account.ID.String()))
		return nil
	}

	account.Authentication["access_token"] = token.AccessToken
	if token.RefreshToken != "" {
		account.Authentication["refresh_token"] = token.RefreshToken
	}
	return nil
}

// token resolves the credential to call with: a GitHub App installation
// token when the connection is app-based, otherwise the OAuth token.
func (a *Adapter) token(ctx context.Context, account *models.ConnectionAccount, client *vendorhttp.Client) (string, error) {
	if id, ok := account.Authentication["installation_id"].(string); ok && id != "" && a.cfg.AppID != "" {
		return a.installationToken(ctx, client, id)
	}

	token, _ := account.Authentication["access_token"].(string)
	if token == "" {
		return "", integration.NewCodedError(alerts.CodeInvalidGitHubToken, "github connection has no stored token")
	}
	return token, nil
}

// paginate walks a GitHub list endpoint page by page until a short page.
func (a *Adapter) paginate(ctx context.Context, client *vendorhttp.Client, token, url string, query map[string]string) ([]map[string]any, error) {
	return a.paginateUntil(ctx, client, token, url, query, nil)
}

func (a *Adapter) paginateUntil(ctx context.Context, client *vendorhttp.Client, token, url string, query map[string]string, stop func(map[string]any) bool) ([]map[string]any, error) {
	var all []map[string]any

	for page := 1; ; page++ {
		q := map[string]string{"per_page": perPage, "page": fmt.Sprintf("%d", page)}
		for k, v := range query {
			q[k] = v
		}

		var batch []map[string]any
		err := client.DoJSON(ctx, vendorhttp.Request{
			Method:  "GET",
			URL:     url,
			Headers: authHeader(token),
			Query:   q,
		}, &batch)
		if err != nil {
			return nil, err
		}

		for _, record := range batch {
			if stop != nil && stop(record) {
				return all, nil
			}
			all = append(all, record)
		}

		if len(batch) < perPageSize {
			return all, nil
		}
	}
}

func authHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func selectedOrganizations(account *models.ConnectionAccount) []string {
	raw, _ := account.Configuration.Settings["organizations"].([]any)
	orgs := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			orgs = append(orgs, s)
		}
	}
	return orgs
}

// organizationIdentity keys the duplicate guard on the selected org list,
// order-insensitive.
func organizationIdentity(account *models.ConnectionAccount) string {
	orgs := selectedOrganizations(account)
	sort.Strings(orgs)
	return strings.Join(orgs, ",")
}

func updatedBefore(record map[string]any, cutoff time.Time) bool {
	raw, _ := record["updated_at"].(string)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}
	return t.Before(cutoff)
}
