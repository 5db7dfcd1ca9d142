package objectspec

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/models"
)

// Migrator applies spec shape changes to already-materialized object
// types. Every operation rewrites the stored data maps of the affected
// type in one pass so that object data keys always mirror the spec.
type Migrator struct {
	types   models.ObjectTypeRepository
	objects models.LaikaObjectRepository
	logger  *zap.Logger
}

func NewMigrator(types models.ObjectTypeRepository, objects models.LaikaObjectRepository, logger *zap.Logger) *Migrator {
	return &Migrator{types: types, objects: objects, logger: logger}
}

// AddAttribute appends a new attribute and backfills stored data with a
// nil value under the new key.
func (m *Migrator) AddAttribute(ctx context.Context, objectType *models.ObjectType, attr models.ObjectAttribute) error {
	for i := range objectType.Attributes {
		if objectType.Attributes[i].Name == attr.Name {
			return fmt.Errorf("migrate: attribute %q already exists on %s", attr.Name, objectType.TypeName)
		}
	}

	attr.SortIndex = len(objectType.Attributes)
	objectType.Attributes = append(objectType.Attributes, attr)

	if err := m.types.ReplaceAttributes(ctx, objectType.ID, objectType.Attributes); err != nil {
		return err
	}

	return m.rewrite(ctx, objectType.ID, func(data map[string]any) map[string]any {
		if _, ok := data[attr.Name]; !ok {
			data[attr.Name] = nil
		}
		return data
	})
}

// RenameAttribute renames an attribute and moves the value under the new
// key in every stored object.
func (m *Migrator) RenameAttribute(ctx context.Context, objectType *models.ObjectType, oldName, newName string) error {
	found := false
	for i := range objectType.Attributes {
		if objectType.Attributes[i].Name == oldName {
			objectType.Attributes[i].Name = newName
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("migrate: attribute %q not found on %s", oldName, objectType.TypeName)
	}

	if err := m.types.ReplaceAttributes(ctx, objectType.ID, objectType.Attributes); err != nil {
		return err
	}

	return m.rewrite(ctx, objectType.ID, func(data map[string]any) map[string]any {
		if v, ok := data[oldName]; ok {
			data[newName] = v
			delete(data, oldName)
		} else if _, ok := data[newName]; !ok {
			data[newName] = nil
		}
		return data
	})
}

// DeleteAttribute removes an attribute and drops the key from every
// stored object.
func (m *Migrator) DeleteAttribute(ctx context.Context, objectType *models.ObjectType, name string) error {
	kept := objectType.Attributes[:0]
	found := false
	for _, a := range objectType.Attributes {
		if a.Name == name {
			found = true
			continue
		}
		a.SortIndex = len(kept)
		kept = append(kept, a)
	}
	if !found {
		return fmt.Errorf("migrate: attribute %q not found on %s", name, objectType.TypeName)
	}
	objectType.Attributes = kept

	if err := m.types.ReplaceAttributes(ctx, objectType.ID, objectType.Attributes); err != nil {
		return err
	}

	return m.rewrite(ctx, objectType.ID, func(data map[string]any) map[string]any {
		delete(data, name)
		return data
	})
}

// UpdateOrder rewrites sort indexes to match the given attribute name
// order. Stored data is unaffected.
func (m *Migrator) UpdateOrder(ctx context.Context, objectType *models.ObjectType, order []string) error {
	if len(order) != len(objectType.Attributes) {
		return fmt.Errorf("migrate: order has %d names, type %s has %d attributes", len(order), objectType.TypeName, len(objectType.Attributes))
	}

	byName := make(map[string]models.ObjectAttribute, len(objectType.Attributes))
	for _, a := range objectType.Attributes {
		byName[a.Name] = a
	}

	reordered := make([]models.ObjectAttribute, 0, len(order))
	for i, name := range order {
		a, ok := byName[name]
		if !ok {
			return fmt.Errorf("migrate: unknown attribute %q in order for %s", name, objectType.TypeName)
		}
		a.SortIndex = i
		reordered = append(reordered, a)
	}

	objectType.Attributes = reordered

	return m.types.ReplaceAttributes(ctx, objectType.ID, objectType.Attributes)
}

// UpdateNonDefaultFields syncs flags that do not affect data shape
// (required, manual editability, min width) from the spec declaration.
func (m *Migrator) UpdateNonDefaultFields(ctx context.Context, objectType *models.ObjectType, spec *Spec) error {
	for i := range objectType.Attributes {
		decl, ok := spec.Attribute(objectType.Attributes[i].Name)
		if !ok {
			continue
		}
		objectType.Attributes[i].Required = decl.Required
		objectType.Attributes[i].ManuallyEditable = decl.ManuallyEditable
		objectType.Attributes[i].MinWidth = decl.MinWidth
	}

	return m.types.ReplaceAttributes(ctx, objectType.ID, objectType.Attributes)
}

func (m *Migrator) rewrite(ctx context.Context, objectTypeID uuid.UUID, fn func(map[string]any) map[string]any) error {
	if err := m.objects.RewriteData(ctx, objectTypeID, fn); err != nil {
		return fmt.Errorf("migrate: rewrite object data: %w", err)
	}

	m.logger.Info("rewrote object data for spec migration", zap.String("object_type_id", objectTypeID.String()))

	return nil
}
