package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laikahq/sync-engine/models"
)

// OrganizationRepo implements models.OrganizationRepository.
type OrganizationRepo struct {
	db *sql.DB
}

func (r *OrganizationRepo) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	const q = `SELECT id, name, state, created_at FROM organizations WHERE id = $1`

	var org models.Organization
	err := r.db.QueryRowContext(ctx, q, id).Scan(&org.ID, &org.Name, &org.State, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &org, nil
}

func (r *OrganizationRepo) Create(ctx context.Context, org *models.Organization) error {
	const q = `INSERT INTO organizations (id, name, state, created_at) VALUES ($1, $2, $3, NOW())`

	if _, err := r.db.ExecContext(ctx, q, org.ID, org.Name, org.State); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (r *OrganizationRepo) ListByState(ctx context.Context, state string) ([]models.Organization, error) {
	const q = `SELECT id, name, state, created_at FROM organizations WHERE state = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, state)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.State, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, org)
	}
	return out, rows.Err()
}
