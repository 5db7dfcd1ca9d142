package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LaikaObject is one uniform record under an object type. Data is keyed
// exactly by the attribute display names of the type's spec. Identity
// within (ObjectType, ConnectionAccount) is the tuple of Data values for
// the mapper's declared key fields; at most one non-deleted object exists
// per identity.
type LaikaObject struct {
	ID                  uuid.UUID      `json:"id"`
	ObjectTypeID        uuid.UUID      `json:"object_type_id"`
	ConnectionAccountID uuid.UUID      `json:"connection_account_id"`
	Data                map[string]any `json:"data"`
	DeletedAt           *time.Time     `json:"deleted_at"`
	ManuallyCreated     bool           `json:"is_manually_created"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// DataLookup narrows a cleanup to the rows whose Data[Key] compares
// against Value. It is how append-only streams (events) restrict soft
// deletion to the window that was actually re-fetched.
type DataLookup struct {
	Key string
	Op  string // "gt", "gte", "lt", "lte", "eq"
	Value any
}

type LaikaObjectRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*LaikaObject, error)
	Create(ctx context.Context, object *LaikaObject) error
	Update(ctx context.Context, object *LaikaObject) error

	// FindByData returns the non-deleted object whose Data matches every
	// key/value pair, scoped to one object type and account.
	FindByData(ctx context.Context, objectTypeID, accountID uuid.UUID, keys map[string]any) (*LaikaObject, error)

	// LoadIDIndex returns Data[key] -> object id for every non-deleted
	// object of the type/account, backing the v2 search strategy.
	LoadIDIndex(ctx context.Context, objectTypeID, accountID uuid.UUID, key string) (map[string]uuid.UUID, error)

	// SoftDeleteExcept sets deleted_at on every non-deleted row of the
	// type/account not listed in keep. A non-nil lookup narrows the
	// candidate set before exclusion.
	SoftDeleteExcept(ctx context.Context, objectTypeID, accountID uuid.UUID, keep []uuid.UUID, lookup *DataLookup) (int64, error)

	// CountByAccount returns per-type-name counts of non-deleted objects.
	CountByAccount(ctx context.Context, accountID uuid.UUID) (map[string]int, error)

	// RewriteData applies fn to the Data map of every object of the type
	// (deleted rows included) in one pass; used by spec migrations.
	RewriteData(ctx context.Context, objectTypeID uuid.UUID, fn func(data map[string]any) map[string]any) error
}
