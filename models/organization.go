package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Organization states. Only ACTIVE organizations are picked up by the
// scheduler; onboarding tenants are skipped.
const (
	OrgStateOnboarding = "ONBOARDING"
	OrgStateActive     = "ACTIVE"
)

// Organization is the tenant boundary. Every object, account and resolved
// object type belongs to exactly one organization.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

type OrganizationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*Organization, error)
	Create(ctx context.Context, org *Organization) error
	ListByState(ctx context.Context, state string) ([]Organization, error)
}
