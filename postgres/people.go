package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laikahq/sync-engine/models"
)

// PersonRepo implements models.PersonRepository.
type PersonRepo struct {
	db *sql.DB
}

const personColumns = `id, organization_id, connection_account_id, external_id, email,
	first_name, last_name, title, department, manager_external_id, manager_id,
	discovery_state, created_at, updated_at`

func (r *PersonRepo) GetByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*models.Person, error) {
	const q = `SELECT ` + personColumns + ` FROM people
		WHERE connection_account_id = $1 AND external_id = $2`

	return scanPerson(r.db.QueryRowContext(ctx, q, accountID, externalID))
}

// Upsert keys on (connection_account_id, external_id); existing rows keep
// their id and manager link unless the incoming record carries one.
func (r *PersonRepo) Upsert(ctx context.Context, person *models.Person) error {
	if err := validatePerson(person); err != nil {
		return fmt.Errorf("invalid person: %w", err)
	}

	if person.ID == uuid.Nil {
		person.ID = uuid.New()
	}
	if person.DiscoveryState == "" {
		person.DiscoveryState = models.DiscoveryStateNew
	}

	const q = `INSERT INTO people
		(id, organization_id, connection_account_id, external_id, email,
		 first_name, last_name, title, department, manager_external_id, manager_id,
		 discovery_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (connection_account_id, external_id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			title = EXCLUDED.title,
			department = EXCLUDED.department,
			manager_external_id = EXCLUDED.manager_external_id,
			manager_id = COALESCE(EXCLUDED.manager_id, people.manager_id),
			updated_at = NOW()
		RETURNING id, discovery_state`

	err := r.db.QueryRowContext(ctx, q,
		person.ID, person.OrganizationID, person.ConnectionAccountID,
		person.ExternalID, person.Email, person.FirstName, person.LastName,
		person.Title, person.Department, person.ManagerExternalID, person.ManagerID,
		person.DiscoveryState).Scan(&person.ID, &person.DiscoveryState)
	if err != nil {
		return fmt.Errorf("upsert person: %w", err)
	}
	return nil
}

func (r *PersonRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Person, error) {
	const q = `SELECT ` + personColumns + ` FROM people
		WHERE connection_account_id = $1 ORDER BY external_id`

	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var out []models.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *person)
	}
	return out, rows.Err()
}

func (r *PersonRepo) SetManager(ctx context.Context, personID uuid.UUID, managerID uuid.UUID) error {
	const q = `UPDATE people SET manager_id = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q, personID, managerID)
	if err != nil {
		return fmt.Errorf("set manager: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var person models.Person

	err := row.Scan(
		&person.ID, &person.OrganizationID, &person.ConnectionAccountID,
		&person.ExternalID, &person.Email, &person.FirstName, &person.LastName,
		&person.Title, &person.Department, &person.ManagerExternalID, &person.ManagerID,
		&person.DiscoveryState, &person.CreatedAt, &person.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan person: %w", err)
	}
	return &person, nil
}
