package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laikahq/sync-engine/models"
)

// VendorCandidateRepo implements models.VendorCandidateRepository.
type VendorCandidateRepo struct {
	db *sql.DB
}

func (r *VendorCandidateRepo) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.VendorCandidate, error) {
	const q = `SELECT id, organization_id, name, number_of_users, state, created_at, updated_at
		FROM vendor_candidates WHERE organization_id = $1 AND name = $2`

	return scanCandidate(r.db.QueryRowContext(ctx, q, orgID, name))
}

// Upsert keys on (organization_id, name). The discovery state of an
// existing row is preserved; a confirmed or ignored candidate never
// flips back to new.
func (r *VendorCandidateRepo) Upsert(ctx context.Context, candidate *models.VendorCandidate) error {
	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}
	if candidate.State == "" {
		candidate.State = models.DiscoveryStateNew
	}

	const q = `INSERT INTO vendor_candidates
		(id, organization_id, name, number_of_users, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (organization_id, name) DO UPDATE SET
			number_of_users = EXCLUDED.number_of_users,
			updated_at = NOW()
		RETURNING id, state`

	err := r.db.QueryRowContext(ctx, q,
		candidate.ID, candidate.OrganizationID, candidate.Name,
		candidate.NumberOfUsers, candidate.State).Scan(&candidate.ID, &candidate.State)
	if err != nil {
		return fmt.Errorf("upsert vendor candidate: %w", err)
	}
	return nil
}

func (r *VendorCandidateRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.VendorCandidate, error) {
	const q = `SELECT id, organization_id, name, number_of_users, state, created_at, updated_at
		FROM vendor_candidates WHERE organization_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list vendor candidates: %w", err)
	}
	defer rows.Close()

	var out []models.VendorCandidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *candidate)
	}
	return out, rows.Err()
}

func scanCandidate(row rowScanner) (*models.VendorCandidate, error) {
	var candidate models.VendorCandidate

	err := row.Scan(
		&candidate.ID, &candidate.OrganizationID, &candidate.Name,
		&candidate.NumberOfUsers, &candidate.State, &candidate.CreatedAt, &candidate.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vendor candidate: %w", err)
	}
	return &candidate, nil
}
