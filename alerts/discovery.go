package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/models"
)

// DiscoveredApp is one third-party application seen during SSO token
// enumeration, with the number of users holding a grant.
type DiscoveredApp struct {
	Name          string
	NumberOfUsers int
}

// DiscoveryAlert is emitted for vendor candidates new to the
// organization. Known candidates only get their user counts refreshed.
type DiscoveryAlert struct {
	OrganizationID uuid.UUID
	CandidateName  string
	NumberOfUsers  int
}

type Discovery struct {
	candidates models.VendorCandidateRepository
	logger     *zap.Logger
}

func NewDiscovery(candidates models.VendorCandidateRepository, logger *zap.Logger) *Discovery {
	return &Discovery{candidates: candidates, logger: logger}
}

// RecordCandidates upserts the discovered apps as vendor candidates and
// returns one alert per candidate that did not exist before.
func (d *Discovery) RecordCandidates(ctx context.Context, orgID uuid.UUID, apps []DiscoveredApp) ([]DiscoveryAlert, error) {
	var raised []DiscoveryAlert

	for _, app := range apps {
		if app.Name == "" {
			continue
		}

		existing, err := d.candidates.GetByName(ctx, orgID, app.Name)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return raised, fmt.Errorf("lookup vendor candidate %q: %w", app.Name, err)
		}

		candidate := &models.VendorCandidate{
			OrganizationID: orgID,
			Name:           app.Name,
			NumberOfUsers:  app.NumberOfUsers,
			State:          models.DiscoveryStateNew,
		}

		if existing != nil {
			candidate.ID = existing.ID
			candidate.State = existing.State
		}

		if err := d.candidates.Upsert(ctx, candidate); err != nil {
			return raised, fmt.Errorf("upsert vendor candidate %q: %w", app.Name, err)
		}

		if existing != nil {
			continue
		}

		d.logger.Info("new vendor candidate discovered",
			zap.String("organization_id", orgID.String()),
			zap.String("name", app.Name),
			zap.Int("number_of_users", app.NumberOfUsers))

		raised = append(raised, DiscoveryAlert{
			OrganizationID: orgID,
			CandidateName:  app.Name,
			NumberOfUsers:  app.NumberOfUsers,
		})
	}

	return raised, nil
}
