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

// ObjectRepo implements models.LaikaObjectRepository.
type ObjectRepo struct {
	db *sql.DB
}

const objectColumns = `id, object_type_id, connection_account_id, data,
	deleted_at, is_manually_created, created_at, updated_at`

func (r *ObjectRepo) Get(ctx context.Context, id uuid.UUID) (*models.LaikaObject, error) {
	const q = `SELECT ` + objectColumns + ` FROM laika_objects WHERE id = $1`

	return scanObject(r.db.QueryRowContext(ctx, q, id))
}

func (r *ObjectRepo) Create(ctx context.Context, object *models.LaikaObject) error {
	if err := validateObject(object); err != nil {
		return fmt.Errorf("invalid object: %w", err)
	}

	data, err := json.Marshal(object.Data)
	if err != nil {
		return fmt.Errorf("marshal object data: %w", err)
	}

	const q = `INSERT INTO laika_objects
		(id, object_type_id, connection_account_id, data, is_manually_created, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`

	_, err = r.db.ExecContext(ctx, q,
		object.ID, object.ObjectTypeID, object.ConnectionAccountID, data, object.ManuallyCreated)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	return nil
}

func (r *ObjectRepo) Update(ctx context.Context, object *models.LaikaObject) error {
	if err := validateObject(object); err != nil {
		return fmt.Errorf("invalid object: %w", err)
	}

	data, err := json.Marshal(object.Data)
	if err != nil {
		return fmt.Errorf("marshal object data: %w", err)
	}

	const q = `UPDATE laika_objects
		SET data = $2, deleted_at = $3, updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q, object.ID, data, object.DeletedAt)
	if err != nil {
		return fmt.Errorf("update object: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// FindByData matches on JSONB containment, so the keys map compares by
// value exactly as stored. Soft-deleted rows participate: a record that
// reappears must revive its old row, not mint a new one. Live rows win
// when both exist.
func (r *ObjectRepo) FindByData(ctx context.Context, objectTypeID, accountID uuid.UUID, keys map[string]any) (*models.LaikaObject, error) {
	filter, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("marshal data filter: %w", err)
	}

	const q = `SELECT ` + objectColumns + ` FROM laika_objects
		WHERE object_type_id = $1 AND connection_account_id = $2
		  AND data @> $3
		ORDER BY (deleted_at IS NULL) DESC
		LIMIT 1`

	return scanObject(r.db.QueryRowContext(ctx, q, objectTypeID, accountID, filter))
}

// LoadIDIndex includes soft-deleted rows so an upsert can revive them;
// deleted rows are listed first, letting a live row with the same key
// overwrite the map entry.
func (r *ObjectRepo) LoadIDIndex(ctx context.Context, objectTypeID, accountID uuid.UUID, key string) (map[string]uuid.UUID, error) {
	const q = `SELECT id, COALESCE(data->>$3, '') FROM laika_objects
		WHERE object_type_id = $1 AND connection_account_id = $2
		ORDER BY (deleted_at IS NULL) ASC`

	rows, err := r.db.QueryContext(ctx, q, objectTypeID, accountID, key)
	if err != nil {
		return nil, fmt.Errorf("load id index: %w", err)
	}
	defer rows.Close()

	index := make(map[string]uuid.UUID)
	for rows.Next() {
		var id uuid.UUID
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan id index row: %w", err)
		}
		index[value] = id
	}
	return index, rows.Err()
}

func (r *ObjectRepo) SoftDeleteExcept(ctx context.Context, objectTypeID, accountID uuid.UUID, keep []uuid.UUID, lookup *models.DataLookup) (int64, error) {
	keepIDs := make([]string, 0, len(keep))
	for _, id := range keep {
		keepIDs = append(keepIDs, id.String())
	}

	q := `UPDATE laika_objects
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE object_type_id = $1 AND connection_account_id = $2
		  AND deleted_at IS NULL
		  AND NOT (id = ANY($3::uuid[]))`
	args := []any{objectTypeID, accountID, keepIDs}

	if lookup != nil {
		clause, extra, err := lookupClause(lookup, len(args)+1)
		if err != nil {
			return 0, err
		}
		q += clause
		args = append(args, extra...)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("soft delete objects: %w", err)
	}
	return res.RowsAffected()
}

// lookupClause renders a DataLookup into SQL. The key and bound bind as
// parameters; only the whitelisted operator lands in the query text.
// Numeric values compare numerically, anything else as text.
func lookupClause(lookup *models.DataLookup, argIdx int) (string, []any, error) {
	ops := map[string]string{"gt": ">", "gte": ">=", "lt": "<", "lte": "<=", "eq": "="}
	op, ok := ops[lookup.Op]
	if !ok {
		return "", nil, fmt.Errorf("unknown lookup op %q", lookup.Op)
	}

	switch v := lookup.Value.(type) {
	case int, int32, int64, float32, float64:
		clause := fmt.Sprintf(" AND (data->>$%d)::numeric %s $%d", argIdx, op, argIdx+1)
		return clause, []any{lookup.Key, v}, nil
	default:
		clause := fmt.Sprintf(" AND data->>$%d %s $%d", argIdx, op, argIdx+1)
		return clause, []any{lookup.Key, fmt.Sprint(v)}, nil
	}
}

func (r *ObjectRepo) CountByAccount(ctx context.Context, accountID uuid.UUID) (map[string]int, error) {
	const q = `SELECT t.type_name, COUNT(*)
		FROM laika_objects o
		JOIN object_types t ON t.id = o.object_type_id
		WHERE o.connection_account_id = $1 AND o.deleted_at IS NULL
		GROUP BY t.type_name`

	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("count objects: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typeName string
		var n int
		if err := rows.Scan(&typeName, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[typeName] = n
	}
	return counts, rows.Err()
}

// RewriteData applies fn to every object of the type, deleted rows
// included, inside one transaction. Used by spec migrations.
func (r *ObjectRepo) RewriteData(ctx context.Context, objectTypeID uuid.UUID, fn func(data map[string]any) map[string]any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rewrite: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, data FROM laika_objects WHERE object_type_id = $1 FOR UPDATE`, objectTypeID)
	if err != nil {
		return fmt.Errorf("select objects for rewrite: %w", err)
	}

	type pending struct {
		id   uuid.UUID
		data []byte
	}
	var updates []pending

	for rows.Next() {
		var id uuid.UUID
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("scan object for rewrite: %w", err)
		}

		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			rows.Close()
			return fmt.Errorf("unmarshal object data: %w", err)
		}

		rewritten, err := json.Marshal(fn(data))
		if err != nil {
			rows.Close()
			return fmt.Errorf("marshal rewritten data: %w", err)
		}
		updates = append(updates, pending{id: id, data: rewritten})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `UPDATE laika_objects SET data = $2, updated_at = NOW() WHERE id = $1`, u.id, u.data); err != nil {
			return fmt.Errorf("rewrite object %s: %w", u.id, err)
		}
	}

	return tx.Commit()
}

func scanObject(row rowScanner) (*models.LaikaObject, error) {
	var object models.LaikaObject
	var data []byte

	err := row.Scan(
		&object.ID, &object.ObjectTypeID, &object.ConnectionAccountID, &data,
		&object.DeletedAt, &object.ManuallyCreated, &object.CreatedAt, &object.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan object: %w", err)
	}

	if err := json.Unmarshal(data, &object.Data); err != nil {
		return nil, fmt.Errorf("unmarshal object data: %w", err)
	}
	return &object, nil
}
