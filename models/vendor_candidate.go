package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VendorCandidate is a third-party application discovered through SSO
// token enumeration, keyed to the organization. A discovery alert is
// raised only the first time a name shows up.
type VendorCandidate struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	NumberOfUsers  int       `json:"number_of_users"`
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type VendorCandidateRepository interface {
	GetByName(ctx context.Context, orgID uuid.UUID, name string) (*VendorCandidate, error)
	Upsert(ctx context.Context, candidate *VendorCandidate) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]VendorCandidate, error)
}
