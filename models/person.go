package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Discovery states shared by people and vendor candidates.
const (
	DiscoveryStateNew       = "new"
	DiscoveryStateConfirmed = "confirmed"
	DiscoveryStateIgnored   = "ignored"
)

// Person is a vendor-discovered human emitted by HR/directory adapters.
// Manager links are stored by external id first and resolved to internal
// ids in a second pass.
type Person struct {
	ID                  uuid.UUID  `json:"id"`
	OrganizationID      uuid.UUID  `json:"organization_id"`
	ConnectionAccountID uuid.UUID  `json:"connection_account_id"`
	ExternalID          string     `json:"external_id"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Title               string     `json:"title"`
	Department          string     `json:"department"`
	ManagerExternalID   string     `json:"manager_external_id"`
	ManagerID           *uuid.UUID `json:"manager_id"`
	DiscoveryState      string     `json:"discovery_state"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type PersonRepository interface {
	GetByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*Person, error)
	Upsert(ctx context.Context, person *Person) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Person, error)
	SetManager(ctx context.Context, personID uuid.UUID, managerID uuid.UUID) error
}
