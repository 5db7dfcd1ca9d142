package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Attribute value types of the uniform object model.
const (
	AttributeText         = "text"
	AttributeBoolean      = "boolean"
	AttributeDate         = "date"
	AttributeJSON         = "json"
	AttributeNumber       = "number"
	AttributeSingleSelect = "single_select"
	AttributeUser         = "user"
)

// ObjectAttribute is one attribute row of a resolved object type. The
// display Name is also the key used in LaikaObject.Data.
type ObjectAttribute struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Required         bool      `json:"is_required"`
	ManuallyEditable bool      `json:"is_manually_editable"`
	MinWidth         int       `json:"min_width"`
	SortIndex        int       `json:"sort_index"`
}

// ObjectType is the per-organization materialization of a spec. It is
// shared by all connection accounts within the organization.
type ObjectType struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	TypeName       string            `json:"type_name"`
	DisplayName    string            `json:"display_name"`
	Color          string            `json:"color"`
	Icon           string            `json:"icon"`
	Attributes     []ObjectAttribute `json:"attributes"`
	CreatedAt      time.Time         `json:"created_at"`
}

// AttributeNames returns the attribute display names in sort order.
func (t *ObjectType) AttributeNames() []string {
	names := make([]string, 0, len(t.Attributes))
	for i := range t.Attributes {
		names = append(names, t.Attributes[i].Name)
	}
	return names
}

type ObjectTypeRepository interface {
	GetByTypeName(ctx context.Context, orgID uuid.UUID, typeName string) (*ObjectType, error)
	Create(ctx context.Context, objectType *ObjectType) error

	// ReplaceAttributes swaps the attribute rows of an object type,
	// preserving the given order as sort_index.
	ReplaceAttributes(ctx context.Context, objectTypeID uuid.UUID, attrs []ObjectAttribute) error
}
