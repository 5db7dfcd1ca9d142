package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/laikahq/sync-engine/models"
)

// ObjectTypeRepo implements models.ObjectTypeRepository.
type ObjectTypeRepo struct {
	db *sql.DB
}

func (r *ObjectTypeRepo) GetByTypeName(ctx context.Context, orgID uuid.UUID, typeName string) (*models.ObjectType, error) {
	const q = `SELECT id, organization_id, type_name, display_name, color, icon, created_at
		FROM object_types WHERE organization_id = $1 AND type_name = $2`

	var t models.ObjectType
	err := r.db.QueryRowContext(ctx, q, orgID, typeName).Scan(
		&t.ID, &t.OrganizationID, &t.TypeName, &t.DisplayName, &t.Color, &t.Icon, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object type: %w", err)
	}

	attrs, err := r.loadAttributes(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Attributes = attrs

	return &t, nil
}

func (r *ObjectTypeRepo) Create(ctx context.Context, objectType *models.ObjectType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create object type: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO object_types (id, organization_id, type_name, display_name, color, icon, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	if _, err := tx.ExecContext(ctx, q,
		objectType.ID, objectType.OrganizationID, objectType.TypeName,
		objectType.DisplayName, objectType.Color, objectType.Icon); err != nil {
		return fmt.Errorf("create object type: %w", err)
	}

	if err := insertAttributes(ctx, tx, objectType.ID, objectType.Attributes); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *ObjectTypeRepo) ReplaceAttributes(ctx context.Context, objectTypeID uuid.UUID, attrs []models.ObjectAttribute) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace attributes: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM object_attributes WHERE object_type_id = $1`, objectTypeID); err != nil {
		return fmt.Errorf("clear attributes: %w", err)
	}

	if err := insertAttributes(ctx, tx, objectTypeID, attrs); err != nil {
		return err
	}

	return tx.Commit()
}

func insertAttributes(ctx context.Context, tx *sql.Tx, objectTypeID uuid.UUID, attrs []models.ObjectAttribute) error {
	const q = `INSERT INTO object_attributes
		(id, object_type_id, name, type, is_required, is_manually_editable, min_width, sort_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, attr := range attrs {
		id := attr.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := tx.ExecContext(ctx, q,
			id, objectTypeID, attr.Name, attr.Type,
			attr.Required, attr.ManuallyEditable, attr.MinWidth, i); err != nil {
			return fmt.Errorf("insert attribute %q: %w", attr.Name, err)
		}
	}
	return nil
}

func (r *ObjectTypeRepo) loadAttributes(ctx context.Context, objectTypeID uuid.UUID) ([]models.ObjectAttribute, error) {
	const q = `SELECT id, name, type, is_required, is_manually_editable, min_width, sort_index
		FROM object_attributes WHERE object_type_id = $1 ORDER BY sort_index`

	rows, err := r.db.QueryContext(ctx, q, objectTypeID)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	defer rows.Close()

	var attrs []models.ObjectAttribute
	for rows.Next() {
		var attr models.ObjectAttribute
		if err := rows.Scan(&attr.ID, &attr.Name, &attr.Type,
			&attr.Required, &attr.ManuallyEditable, &attr.MinWidth, &attr.SortIndex); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs = append(attrs, attr)
	}
	return attrs, rows.Err()
}
