// Package jira syncs issues from the selected projects as change
// requests. Connections are OAuth 3LO; the cloud site is discovered via
// accessible-resources after the token exchange.
package jira

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/pkg/vendorhttp"
)

const defaultAPIBase = "https://api.atlassian.com"

const searchPageSize = 100

type Config struct {
	OAuth   *oauth2.Config
	APIBase string
}

type Adapter struct {
	accounts models.ConnectionAccountRepository
	cfg      Config
	logger   *zap.Logger
}

func New(accounts models.ConnectionAccountRepository, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	return &Adapter{accounts: accounts, cfg: cfg, logger: logger}
}

func (a *Adapter) Vendor() string { return alerts.VendorJira }

func (a *Adapter) Metadata() models.Metadata {
	meta := models.Metadata{
		Search:              models.SearchV1,
		ReadHistoryMonths:   18,
		ConfigurationFields: []string{"project"},
	}
	if a.cfg.OAuth != nil {
		meta.RedirectURI = a.cfg.OAuth.RedirectURL
	}
	return meta
}

// Callback exchanges the code, discovers the cloud site and prefetches
// the project picker.
func (a *Adapter) Callback(ctx context.Context, account *models.ConnectionAccount, params map[string]string) error {
	code := params["code"]
	if code == "" {
		return integration.ErrDenialOfConsent
	}

	token, err := a.cfg.OAuth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("jira oauth exchange: %w", err)
	}

	if account.Authentication == nil {
		account.Authentication = map[string]any{}
	}
	account.Authentication["access_token"] = token.AccessToken
	if token.RefreshToken != "" {
		account.Authentication["refresh_token"] = token.RefreshToken
	}
	account.Configuration.LaunchedOauth = true

	site, err := a.discoverSite(ctx, token.AccessToken)
	if err != nil {
		return err
	}
	account.Authentication["site"] = site

	if err := integration.RaiseIfDuplicate(ctx, a.accounts, account, siteIdentity); err != nil {
		return err
	}

	options, err := a.FieldOptions(ctx, account, "project")
	if err != nil {
		return err
	}
	account.SetPrefetchedOptions("project", options)

	return nil
}

// discoverSite picks the first accessible Jira cloud resource.
func (a *Adapter) discoverSite(ctx context.Context, token string) (string, error) {
	var sites []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	client := vendorhttp.NewClient(alerts.VendorJira, a.logger)
	err := client.DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.cfg.APIBase + "/oauth/token/accessible-resources",
		Headers: bearer(token),
	}, &sites)
	if err != nil {
		return "", err
	}

	if len(sites) == 0 {
		return "", integration.NewCodedError(alerts.CodeInvalidJiraSite, "no accessible jira site for this token")
	}

	return sites[0].ID, nil
}

// FieldOptions lists the site's projects for the configuration picker.
func (a *Adapter) FieldOptions(ctx context.Context, account *models.ConnectionAccount, field string) ([]models.FieldOption, error) {
	if field != "project" {
		return nil, fmt.Errorf("jira: unknown configuration field %q", field)
	}

	token, site, err := a.auth(account)
	if err != nil {
		return nil, err
	}

	var out struct {
		Values []struct {
			ID   string `json:"id"`
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"values"`
	}

	client := vendorhttp.NewClient(alerts.VendorJira, a.logger)
	err = client.DoJSON(ctx, vendorhttp.Request{
		Method:  "GET",
		URL:     a.siteURL(site) + "/rest/api/3/project/search",
		Headers: bearer(token),
	}, &out)
	if err != nil {
		return nil, err
	}

	options := make([]models.FieldOption, 0, len(out.Values))
	for _, p := range out.Values {
		options = append(options, models.FieldOption{
			ID:    p.ID,
			Value: map[string]any{"key": p.Key, "name": p.Name},
		})
	}
	return options, nil
}

func (a *Adapter) Run(ctx context.Context, rc *integration.RunContext) error {
	if err := integration.RaiseIfDuplicate(ctx, a.accounts, rc.Account, siteIdentity); err != nil {
		return err
	}

	token, site, err := a.auth(rc.Account)
	if err != nil {
		return err
	}

	projects := selectedProjects(rc.Account)
	if len(projects) == 0 {
		return integration.NewConfigError("jira connection has no projects selected")
	}

	client := vendorhttp.NewClient(alerts.VendorJira, rc.Logger, vendorhttp.WithStats(rc.Stats))

	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.ChangeRequest)
	if err != nil {
		return err
	}

	issues, err := a.searchIssues(ctx, client, token, site, projects)
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, changeRequestMapper(), issues)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}
	rc.Stats.SetRecordCount(objectspec.ChangeRequest.TypeName, len(seen))

	return integration.WriteAccountSummary(ctx, rc)
}

func (a *Adapter) searchIssues(ctx context.Context, client *vendorhttp.Client, token, site string, projects []string) ([]map[string]any, error) {
	windowStart := integration.ReadWindowStart(a.Metadata(), time.Now())

	jql := fmt.Sprintf("project in (%s) AND updated >= %q ORDER BY updated DESC",
		joinQuoted(projects), windowStart.Format("2006-01-02"))

	var all []map[string]any
	for startAt := 0; ; startAt += searchPageSize {
		var out struct {
			Issues []map[string]any `json:"issues"`
			Total  int              `json:"total"`
		}
		err := client.DoJSON(ctx, vendorhttp.Request{
			Method:  "GET",
			URL:     a.siteURL(site) + "/rest/api/3/search",
			Headers: bearer(token),
			Query: map[string]string{
				"jql":        jql,
				"startAt":    strconv.Itoa(startAt),
				"maxResults": strconv.Itoa(searchPageSize),
				"expand":     "changelog",
			},
		}, &out)
		if err != nil {
			return nil, err
		}

		all = append(all, out.Issues...)

		if startAt+len(out.Issues) >= out.Total || len(out.Issues) == 0 {
			return all, nil
		}
	}
}

// RefreshToken forces a token exchange off the stored refresh token.
// Atlassian rotates refresh tokens, so the new one replaces the old.
func (a *Adapter) RefreshToken(ctx context.Context, account *models.ConnectionAccount) error {
	refresh, _ := account.Authentication["refresh_token"].(string)
	if refresh == "" || a.cfg.OAuth == nil {
		return nil
	}

	token, err := a.cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return fmt.Errorf("jira token refresh: %w", err)
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

func (a *Adapter) auth(account *models.ConnectionAccount) (token, site string, err error) {
	token, _ = account.Authentication["access_token"].(string)
	site, _ = account.Authentication["site"].(string)

	if token == "" {
		return "", "", integration.NewCodedError(alerts.CodeBadCredentials, "jira connection has no stored token")
	}
	if site == "" {
		return "", "", integration.NewCodedError(alerts.CodeInvalidJiraSite, "jira connection has no discovered site")
	}
	return token, site, nil
}

func (a *Adapter) siteURL(site string) string {
	return a.cfg.APIBase + "/ex/jira/" + site
}

func siteIdentity(account *models.ConnectionAccount) string {
	site, _ := account.Authentication["site"].(string)
	return site
}

func selectedProjects(account *models.ConnectionAccount) []string {
	raw, _ := account.Configuration.Settings["project"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinQuoted(values []string) string {
	s := ""
	for i, v := range values {
		if i > 0 {
			s += ", "
		}
		s += strconv.Quote(v)
	}
	return s
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
