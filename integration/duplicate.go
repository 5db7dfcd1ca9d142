package integration

import (
	"context"

	"github.com/laikahq/sync-engine/models"
)

// IdentityFunc extracts the vendor identity a connection is keyed by:
// the GitHub organization list, the Okta subdomain, the AWS role ARN.
// An empty identity never collides.
type IdentityFunc func(account *models.ConnectionAccount) string

// RaiseIfDuplicate fails with ErrConnectionAlreadyExists when another
// account of the same vendor in the organization resolves to the same
// identity. Adapters call it during Connect and again at the top of Run,
// so a duplicate created while another connect was in flight still
// surfaces.
func RaiseIfDuplicate(ctx context.Context, accounts models.ConnectionAccountRepository, account *models.ConnectionAccount, identity IdentityFunc) error {
	self := identity(account)
	if self == "" {
		return nil
	}

	siblings, err := accounts.Siblings(ctx, account)
	if err != nil {
		return err
	}

	for i := range siblings {
		if identity(&siblings[i]) == self {
			return ErrConnectionAlreadyExists
		}
	}

	return nil
}
