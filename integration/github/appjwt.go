package github

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/laikahq/sync-engine/pkg/vendorhttp"
)

// installationToken exchanges a short-lived App JWT for an installation
// access token. The signing key lives in S3 and is fetched once per
// process.
func (a *Adapter) installationToken(ctx context.Context, client *vendorhttp.Client, installationID string) (string, error) {
	pemBytes, err := a.keys.Fetch(ctx, a.cfg.AppKeyObject)
	if err != nil {
		return "", err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return "", fmt.Errorf("github app key: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer: a.cfg.AppID,
		// Backdated to tolerate clock skew against GitHub.
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign github app jwt: %w", err)
	}

	var out struct {
		Token string `json:"token"`
	}
	err = client.DoJSON(ctx, vendorhttp.Request{
		Method:  "POST",
		URL:     a.cfg.BaseURL + "/app/installations/" + installationID + "/access_tokens",
		Headers: authHeader(signed),
	}, &out)
	if err != nil {
		return "", err
	}

	return out.Token, nil
}
