package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laikahq/sync-engine/models"
)

// AccountRepo implements models.ConnectionAccountRepository.
type AccountRepo struct {
	db *sql.DB
}

const accountColumns = `id, organization_id, vendor, alias, status, error_code,
	authentication, configuration_state, result,
	people_amount, discovered_people_amount, created_at, updated_at`

func (r *AccountRepo) Get(ctx context.Context, id uuid.UUID) (*models.ConnectionAccount, error) {
	const q = `SELECT ` + accountColumns + ` FROM connection_accounts WHERE id = $1`

	return scanAccount(r.db.QueryRowContext(ctx, q, id))
}

func (r *AccountRepo) Create(ctx context.Context, account *models.ConnectionAccount) error {
	if err := validateAccount(account); err != nil {
		return fmt.Errorf("invalid connection account: %w", err)
	}

	auth, cfg, result, err := marshalAccountJSON(account)
	if err != nil {
		return err
	}

	const q = `INSERT INTO connection_accounts
		(id, organization_id, vendor, alias, status, error_code,
		 authentication, configuration_state, result,
		 people_amount, discovered_people_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`

	_, err = r.db.ExecContext(ctx, q,
		account.ID, account.OrganizationID, account.Vendor, account.Alias,
		account.Status, account.ErrorCode, auth, cfg, result,
		account.PeopleAmount, account.DiscoveredPeopleAmount)
	if err != nil {
		return fmt.Errorf("create connection account: %w", err)
	}
	return nil
}

func (r *AccountRepo) Update(ctx context.Context, account *models.ConnectionAccount) error {
	if err := validateAccount(account); err != nil {
		return fmt.Errorf("invalid connection account: %w", err)
	}

	auth, cfg, result, err := marshalAccountJSON(account)
	if err != nil {
		return err
	}

	const q = `UPDATE connection_accounts SET
		alias = $2, status = $3, error_code = $4,
		authentication = $5, configuration_state = $6, result = $7,
		people_amount = $8, discovered_people_amount = $9, updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q,
		account.ID, account.Alias, account.Status, account.ErrorCode,
		auth, cfg, result, account.PeopleAmount, account.DiscoveredPeopleAmount)
	if err != nil {
		return fmt.Errorf("update connection account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes the account; objects cascade through the foreign key.
// A syncing account cannot be deleted.
func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM connection_accounts WHERE id = $1 AND status <> $2`

	res, err := r.db.ExecContext(ctx, q, id, models.StatusSync)
	if err != nil {
		return fmt.Errorf("delete connection account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, id); err == nil {
			return models.ErrAccountSyncing
		}
		return models.ErrNotFound
	}
	return nil
}

// BeginSync is the atomic entry into the sync state. The WHERE clause is
// the lock: zero rows affected means another run holds it.
func (r *AccountRepo) BeginSync(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE connection_accounts
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $2`

	res, err := r.db.ExecContext(ctx, q, id, models.StatusSync)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, id); errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.ErrAccountSyncing
	}
	return nil
}

func (r *AccountRepo) FinishSync(ctx context.Context, account *models.ConnectionAccount) error {
	return r.Update(ctx, account)
}

func (r *AccountRepo) Siblings(ctx context.Context, account *models.ConnectionAccount) ([]models.ConnectionAccount, error) {
	const q = `SELECT ` + accountColumns + ` FROM connection_accounts
		WHERE organization_id = $1 AND vendor = $2 AND id <> $3
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, account.OrganizationID, account.Vendor, account.ID)
	if err != nil {
		return nil, fmt.Errorf("list siblings: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func (r *AccountRepo) ListSchedulable(ctx context.Context) ([]models.ConnectionAccount, error) {
	const q = `SELECT a.id, a.organization_id, a.vendor, a.alias, a.status, a.error_code,
			a.authentication, a.configuration_state, a.result,
			a.people_amount, a.discovered_people_amount, a.created_at, a.updated_at
		FROM connection_accounts a
		JOIN organizations o ON o.id = a.organization_id
		WHERE o.state = $1
		ORDER BY a.updated_at`

	rows, err := r.db.QueryContext(ctx, q, models.OrgStateActive)
	if err != nil {
		return nil, fmt.Errorf("list schedulable accounts: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func marshalAccountJSON(account *models.ConnectionAccount) (auth, cfg, result []byte, err error) {
	if auth, err = json.Marshal(orEmpty(account.Authentication)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal authentication: %w", err)
	}
	if cfg, err = json.Marshal(account.Configuration); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal configuration state: %w", err)
	}
	if result, err = json.Marshal(orEmpty(account.Result)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return auth, cfg, result, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.ConnectionAccount, error) {
	var account models.ConnectionAccount
	var auth, cfg, result []byte

	err := row.Scan(
		&account.ID, &account.OrganizationID, &account.Vendor, &account.Alias,
		&account.Status, &account.ErrorCode, &auth, &cfg, &result,
		&account.PeopleAmount, &account.DiscoveredPeopleAmount,
		&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan connection account: %w", err)
	}

	if err := json.Unmarshal(auth, &account.Authentication); err != nil {
		return nil, fmt.Errorf("unmarshal authentication: %w", err)
	}
	if err := json.Unmarshal(cfg, &account.Configuration); err != nil {
		return nil, fmt.Errorf("unmarshal configuration state: %w", err)
	}
	if err := json.Unmarshal(result, &account.Result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}

	return &account, nil
}

func collectAccounts(rows *sql.Rows) ([]models.ConnectionAccount, error) {
	var out []models.ConnectionAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *account)
	}
	return out, rows.Err()
}
