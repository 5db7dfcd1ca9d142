package runner

import (
	"context"
	"database/sql"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/laikahq/sync-engine/alerts"
	"github.com/laikahq/sync-engine/config"
	"github.com/laikahq/sync-engine/integration"
	"github.com/laikahq/sync-engine/integration/awsint"
	"github.com/laikahq/sync-engine/integration/datadog"
	"github.com/laikahq/sync-engine/integration/github"
	"github.com/laikahq/sync-engine/integration/googleworkspace"
	"github.com/laikahq/sync-engine/integration/jira"
	"github.com/laikahq/sync-engine/integration/okta"
	"github.com/laikahq/sync-engine/integration/rippling"
	"github.com/laikahq/sync-engine/objectspec"
	"github.com/laikahq/sync-engine/objectstore"
	"github.com/laikahq/sync-engine/people"
	"github.com/laikahq/sync-engine/pkg/encryption"
	"github.com/laikahq/sync-engine/pkg/keystore"
	"github.com/laikahq/sync-engine/postgres"
	"github.com/laikahq/sync-engine/tlmt"
)

// Engine is the wired core shared by the run modes.
type Engine struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *sql.DB
	Stores    *postgres.Stores
	Vault     *encryption.Vault
	Catalogue *alerts.Catalogue
	Registry  *integration.Registry
	Lifecycle *integration.Lifecycle
	Telemetry tlmt.Telemetry
}

// BuildEngine connects to the database and registers every adapter.
func BuildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	stores := postgres.New(db)

	vault, err := encryption.NewVault(cfg.EncryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("build credential vault: %w", err)
	}

	catalogue := alerts.DefaultCatalogue()
	resolver := objectspec.NewResolver(stores.ObjectTypes(), logger)
	store := objectstore.New(stores.Objects(), logger)
	telemetry := Telemetry(cfg)

	lifecycle := integration.NewLifecycle(
		stores.Accounts(), stores.Objects(), store, resolver, catalogue, telemetry, logger)

	peopleSvc := people.NewService(stores.People(), logger)
	discovery := alerts.NewDiscovery(stores.VendorCandidates(), logger)

	registry := integration.NewRegistry()
	accounts := stores.Accounts()

	var keys *keystore.Store
	if cfg.KeystoreBucket != "" {
		keys, err = keystore.New(cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSRegion, cfg.KeystoreBucket)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("build keystore: %w", err)
		}
	}

	registry.Register(github.New(accounts, keys, github.Config{
		OAuth:        oauthConfig(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL, githubEndpoint, nil),
		AppID:        cfg.GitHubAppID,
		AppKeyObject: cfg.GitHubAppKeyObject,
	}, logger))

	registry.Register(okta.New(accounts, vault, okta.Config{}, logger))

	registry.Register(datadog.New(accounts, vault, datadog.Config{}, logger))

	registry.Register(googleworkspace.New(accounts, discovery, googleworkspace.Config{
		OAuth: oauthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, googleEndpoint,
			[]string{"https://www.googleapis.com/auth/admin.directory.user.readonly"}),
	}, logger))

	registry.Register(rippling.New(accounts, vault, peopleSvc, rippling.Config{}, logger))

	stsClient, err := buildSTSClient(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	registry.Register(awsint.New(accounts, stsClient, cfg.AWSRegion, logger))

	registry.Register(jira.New(accounts, jira.Config{
		OAuth: oauthConfig(cfg.JiraClientID, cfg.JiraClientSecret, cfg.JiraRedirectURL, jiraEndpoint,
			[]string{"read:jira-work", "read:jira-user", "offline_access"}),
	}, logger))

	return &Engine{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Stores:    stores,
		Vault:     vault,
		Catalogue: catalogue,
		Registry:  registry,
		Lifecycle: lifecycle,
		Telemetry: telemetry,
	}, nil
}

func (e *Engine) Close() error {
	return e.DB.Close()
}

var (
	githubEndpoint = oauth2.Endpoint{
		AuthURL:  "https://github.com/login/oauth/authorize",
		TokenURL: "https://github.com/login/oauth/access_token",
	}
	googleEndpoint = oauth2.Endpoint{
		AuthURL:  "https://accounts.google.com/o/oauth2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	}
	jiraEndpoint = oauth2.Endpoint{
		AuthURL:  "https://auth.atlassian.com/authorize",
		TokenURL: "https://auth.atlassian.com/oauth/token",
	}
)

// oauthConfig returns nil when no client id is configured; the adapter
// then rejects callbacks instead of exchanging codes it cannot sign.
func oauthConfig(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint, scopes []string) *oauth2.Config {
	if clientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

func buildSTSClient(ctx context.Context, cfg *config.Config) (*sts.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sts.NewFromConfig(awsCfg), nil
}
