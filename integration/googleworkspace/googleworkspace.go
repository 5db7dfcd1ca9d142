// Package googleworkspace syncs the Workspace directory and feeds vendor
// discovery from the OAuth grants users handed to third-party apps.
package googleworkspace

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/models"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/pkg/vendorhttp"
)

const defaultBaseURL = "https://admin.googleapis.com"

type Config struct {
	OAuth   *oauth2.Config
	BaseURL string
}

type Adapter struct {
	accounts  models.ConnectionAccountRepository
	discovery *alerts.Discovery
	cfg       Config
	logger    *zap.Logger
}

func New(accounts models.ConnectionAccountRepository, discovery *alerts.Discovery, cfg Config, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{accounts: accounts, discovery: discovery, cfg: cfg, logger: logger}
}

func (a *Adapter) Vendor() string { return alerts.VendorGoogleWorkspace }

func (a *Adapter) Metadata() models.Metadata {
	meta := models.Metadata{
		Search:              models.SearchV1,
		ConfigurationFields: []string{"domain"},
	}
	if a.cfg.OAuth != nil {
		meta.RedirectURI = a.cfg.OAuth.RedirectURL
	}
	return meta
}

func (a *Adapter) Callback(ctx context.Context, account *models.ConnectionAccount, params map[string]string) error {
	code := params["code"]
	if code == "" {
		return integration.ErrDenialOfConsent
	}

	token, err := a.cfg.OAuth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("google oauth exchange: %w", err)
	}

	if account.Authentication == nil {
		account.Authentication = map[string]any{}
	}
	account.Authentication["access_token"] = token.AccessToken
	if token.RefreshToken != "" {
		account.Authentication["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		account.Authentication["token_expiration"] = token.Expiry.Unix()
	}
	account.Configuration.LaunchedOauth = true

	return nil
}

func (a *Adapter) Run(ctx context.Context, rc *integration.RunContext) error {
	domain := a.domain(rc.Account)
	if domain == "" {
		return integration.NewConfigError("google workspace connection is missing a domain")
	}

	if err := integration.RaiseIfDuplicate(ctx, a.accounts, rc.Account, a.domainIdentity); err != nil {
		return err
	}

	token, err := a.token(ctx, rc.Account)
	if err != nil {
		return err
	}

	client := vendorhttp.NewClient(alerts.VendorGoogleWorkspace, rc.Logger, vendorhttp.WithStats(rc.Stats))

	users, err := a.fetchUsers(ctx, client, token, domain)
	if err != nil {
		return err
	}

	objectType, err := rc.Resolver.Resolve(ctx, rc.Account.OrganizationID, &objectspec.User)
	if err != nil {
		return err
	}

	seen, err := rc.Run.Upsert(ctx, objectType, userMapper(), users)
	if err != nil {
		return err
	}
	if _, err := rc.Run.Cleanup(ctx, objectType, seen); err != nil {
		return err
	}
	rc.Stats.SetRecordCount(objectspec.User.TypeName, len(seen))

	if err := a.discoverVendors(ctx, rc, client, token, users); err != nil {
		// Discovery is a side-channel; a failure must not fail the
		// directory sync itself.
		rc.Logger.Warn("vendor discovery failed", zap.Error(err))
	}

	return integration.WriteAccountSummary(ctx, rc)
}

func (a *Adapter) fetchUsers(ctx context.Context, client *vendorhttp.Client, token, domain string) ([]map[string]any, error) {
	var all []map[string]any
	pageToken := ""

	for {
		query := map[string]string{"domain": domain, "maxResults": "500"}
		if pageToken != "" {
			query["pageToken"] = pageToken
		}

		var out struct {
			Users         []map[string]any `json:"users"`
			NextPageToken string           `json:"nextPageToken"`
		}
		err := client.DoJSON(ctx, vendorhttp.Request{
			Method:  "GET",
			URL:     a.cfg.BaseURL + "/admin/directory/v1/users",
			Headers: bearer(token),
			Query:   query,
		}, &out)
		if err != nil {
			return nil, err
		}

		all = append(all, out.Users...)

		if out.NextPageToken == "" {
			return all, nil
		}
		pageToken = out.NextPageToken
	}
}

// discoverVendors enumerates the OAuth tokens each user granted and
// aggregates the third-party app names into vendor candidates.
func (a *Adapter) discoverVendors(ctx context.Context, rc *integration.RunContext, client *vendorhttp.Client, token string, users []map[string]any) error {
	counts := make(map[string]int)

	for _, user := range users {
		email, _ := user["primaryEmail"].(string)
		if email == "" {
			continue
		}

		var out struct {
			Items []struct {
				DisplayText string `json:"displayText"`
			} `json:"items"`
		}
		err := client.DoJSON(ctx, vendorhttp.Request{
			Method:  "GET",
			URL:     a.cfg.BaseURL + "/admin/directory/v1/users/" + email + "/tokens",
			Headers: bearer(token),
		}, &out)
		if err != nil {
			return err
		}

		for _, item := range out.Items {
			counts[item.DisplayText]++
		}
	}

	apps := make([]alerts.DiscoveredApp, 0, len(counts))
	for name, n := range counts {
		apps = append(apps, alerts.DiscoveredApp{Name: name, NumberOfUsers: n})
	}

	_, err := a.discovery.RecordCandidates(ctx, rc.Account.OrganizationID, apps)
	return err
}

// RefreshToken forces a token exchange off the stored refresh token.
func (a *Adapter) RefreshToken(ctx context.Context, account *models.ConnectionAccount) error {
	refresh, _ := account.Authentication["refresh_token"].(string)
	if refresh == "" || a.cfg.OAuth == nil {
		return nil
	}

	token, err := a.cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return fmt.Errorf("google token refresh: %w", err)
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
	if !token.Expiry.IsZero() {
		account.Authentication["token_expiration"] = token.Expiry.Unix()
	}
	return nil
}

func (a *Adapter) token(ctx context.Context, account *models.ConnectionAccount) (string, error) {
	access, _ := account.Authentication["access_token"].(string)
	refresh, _ := account.Authentication["refresh_token"].(string)

	if access == "" && refresh == "" {
		return "", integration.NewCodedError(alerts.CodeBadCredentials, "google workspace connection has no stored token")
	}

	if refresh != "" && a.cfg.OAuth != nil {
		// TokenSource refreshes only when the access token is expired.
		src := a.cfg.OAuth.TokenSource(ctx, &oauth2.Token{
			AccessToken:  access,
			RefreshToken: refresh,
			Expiry:       expiry(account),
		})

		token, err := src.Token()
		if err != nil {
			return "", fmt.Errorf("google token refresh: %w", err)
		}

		account.Authentication["access_token"] = token.AccessToken
		if !token.Expiry.IsZero() {
			account.Authentication["token_expiration"] = token.Expiry.Unix()
		}
		return token.AccessToken, nil
	}

	return access, nil
}

func (a *Adapter) domain(account *models.ConnectionAccount) string {
	d, _ := account.Configuration.Settings["domain"].(string)
	return d
}

func (a *Adapter) domainIdentity(account *models.ConnectionAccount) string {
	return a.domain(account)
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
