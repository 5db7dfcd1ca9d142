// Package people is the HR side-channel: directory adapters emit raw
// person records here instead of Laika objects, and manager links are
// resolved once the whole directory has been seen.
package people

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/models"
)

// Record is one person as the vendor reports them. ManagerExternalID may
// reference a person that has not been ingested yet; links are resolved
// in a second pass.
type Record struct {
	ExternalID        string
	Email             string
	FirstName         string
	LastName          string
	Title             string
	Department        string
	ManagerExternalID string
}

type Service struct {
	persons models.PersonRepository
	logger  *zap.Logger
}

func NewService(persons models.PersonRepository, logger *zap.Logger) *Service {
	return &Service{persons: persons, logger: logger}
}

// Ingest writes the full directory for an account in two passes: every
// person is created or updated by external id first, then manager
// references are resolved to internal ids. A child arriving before its
// manager still links correctly because resolution only starts after the
// last upsert.
func (s *Service) Ingest(ctx context.Context, account *models.ConnectionAccount, records []Record) (int, error) {
	if account.TestMode() {
		return 0, nil
	}

	now := time.Now().UTC()

	for _, rec := range records {
		if rec.ExternalID == "" {
			continue
		}

		person, err := s.persons.GetByExternalID(ctx, account.ID, rec.ExternalID)
		if errors.Is(err, models.ErrNotFound) {
			person = &models.Person{
				ID:                  uuid.New(),
				OrganizationID:      account.OrganizationID,
				ConnectionAccountID: account.ID,
				ExternalID:          rec.ExternalID,
				DiscoveryState:      models.DiscoveryStateNew,
				CreatedAt:           now,
			}
		} else if err != nil {
			return 0, fmt.Errorf("load person %s: %w", rec.ExternalID, err)
		}

		person.Email = rec.Email
		person.FirstName = rec.FirstName
		person.LastName = rec.LastName
		person.Title = rec.Title
		person.Department = rec.Department
		person.ManagerExternalID = rec.ManagerExternalID
		person.UpdatedAt = now

		if err := s.persons.Upsert(ctx, person); err != nil {
			return 0, fmt.Errorf("upsert person %s: %w", rec.ExternalID, err)
		}
	}

	resolved, err := s.resolveManagers(ctx, account.ID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("ingested people",
		zap.String("connection_account_id", account.ID.String()),
		zap.Int("people", len(records)),
		zap.Int("managers_resolved", resolved))

	return len(records), nil
}

func (s *Service) resolveManagers(ctx context.Context, accountID uuid.UUID) (int, error) {
	persons, err := s.persons.ListByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("list people: %w", err)
	}

	byExternal := make(map[string]uuid.UUID, len(persons))
	for i := range persons {
		byExternal[persons[i].ExternalID] = persons[i].ID
	}

	resolved := 0
	for i := range persons {
		p := &persons[i]
		if p.ManagerExternalID == "" {
			continue
		}

		managerID, ok := byExternal[p.ManagerExternalID]
		if !ok {
			// The vendor referenced someone outside the directory scope.
			s.logger.Debug("manager external id not found",
				zap.String("external_id", p.ExternalID),
				zap.String("manager_external_id", p.ManagerExternalID))
			continue
		}

		if p.ManagerID != nil && *p.ManagerID == managerID {
			continue
		}

		if err := s.persons.SetManager(ctx, p.ID, managerID); err != nil {
			return resolved, fmt.Errorf("set manager for %s: %w", p.ExternalID, err)
		}
		resolved++
	}

	return resolved, nil
}
