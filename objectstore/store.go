// Package objectstore reconciles mapped vendor records against stored
// Laika objects: upsert by mapper key tuple, soft delete of unseen rows,
// and lookup-narrowed cleanup for append-only streams.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/deduper"
	"github.com/laikahq/sync-engine/mapper"
	"github.com/laikahq/sync-engine/models"
)

type Store struct {
	objects models.LaikaObjectRepository
	logger  *zap.Logger
}

func New(objects models.LaikaObjectRepository, logger *zap.Logger) *Store {
	return &Store{objects: objects, logger: logger}
}

// NewRun opens a per-sync session. The v2 search index and the record
// deduper live exactly as long as the run; two concurrent runs never
// share a cache.
func (s *Store) NewRun(account *models.ConnectionAccount, meta models.Metadata) *Run {
	return &Run{
		store:   s,
		account: account,
		search:  meta.EffectiveSearch(),
		chunk:   meta.EffectiveCursorChunks(),
		indexes: make(map[uuid.UUID]map[string]uuid.UUID),
		dedup:   deduper.New(),
	}
}

// Run is one sync invocation's view of the store.
type Run struct {
	store   *Store
	account *models.ConnectionAccount
	search  string
	chunk   int

	// objectTypeID -> key value -> row id, populated lazily under v2.
	indexes map[uuid.UUID]map[string]uuid.UUID
	dedup   deduper.Deduper
}

// Upsert maps raw vendor records and writes them under the object type,
// returning the ids touched in vendor enumeration order. A mapping error
// aborts immediately: bad mappings are programmer bugs. Test-mode
// accounts are a no-op.
func (r *Run) Upsert(ctx context.Context, objectType *models.ObjectType, m mapper.Mapper, records []map[string]any) ([]uuid.UUID, error) {
	if r.account.TestMode() {
		return nil, nil
	}

	var touched []uuid.UUID

	for start := 0; start < len(records); start += r.chunk {
		end := start + r.chunk
		if end > len(records) {
			end = len(records)
		}

		for _, raw := range records[start:end] {
			data, err := m.Apply(raw, r.account.Alias)
			if err != nil {
				return touched, err
			}

			if !r.dedup.AddIfNotExists(ctx, objectType.ID, m.KeyTuple(data)...) {
				continue
			}

			id, err := r.upsertOne(ctx, objectType, m, data)
			if err != nil {
				return touched, err
			}

			touched = append(touched, id)
		}
	}

	return touched, nil
}

func (r *Run) upsertOne(ctx context.Context, objectType *models.ObjectType, m mapper.Mapper, data map[string]any) (uuid.UUID, error) {
	existing, err := r.find(ctx, objectType, m, data)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return uuid.Nil, err
	}

	now := time.Now().UTC()

	if existing != nil {
		existing.Data = data
		existing.DeletedAt = nil
		existing.UpdatedAt = now

		if err := r.store.objects.Update(ctx, existing); err != nil {
			return uuid.Nil, fmt.Errorf("update object: %w", err)
		}

		return existing.ID, nil
	}

	object := &models.LaikaObject{
		ID:                  uuid.New(),
		ObjectTypeID:        objectType.ID,
		ConnectionAccountID: r.account.ID,
		Data:                data,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := r.store.objects.Create(ctx, object); err != nil {
		return uuid.Nil, fmt.Errorf("create object: %w", err)
	}

	r.indexInsert(objectType.ID, m, data, object.ID)

	return object.ID, nil
}

// find resolves the stored row for a mapped record. Under v2 with a
// single-field key the whole type's id index is loaded once per run and
// lookups stay in memory; everything else does a per-record query.
func (r *Run) find(ctx context.Context, objectType *models.ObjectType, m mapper.Mapper, data map[string]any) (*models.LaikaObject, error) {
	if r.search == models.SearchV2 && len(m.Keys) == 1 {
		index, err := r.index(ctx, objectType, m.Keys[0])
		if err != nil {
			return nil, err
		}

		id, ok := index[fmt.Sprintf("%v", data[m.Keys[0]])]
		if !ok {
			return nil, models.ErrNotFound
		}

		return r.store.objects.Get(ctx, id)
	}

	return r.store.objects.FindByData(ctx, objectType.ID, r.account.ID, m.KeyValues(data))
}

func (r *Run) index(ctx context.Context, objectType *models.ObjectType, key string) (map[string]uuid.UUID, error) {
	if index, ok := r.indexes[objectType.ID]; ok {
		return index, nil
	}

	index, err := r.store.objects.LoadIDIndex(ctx, objectType.ID, r.account.ID, key)
	if err != nil {
		return nil, fmt.Errorf("load id index: %w", err)
	}

	r.store.logger.Debug("loaded v2 search index",
		zap.String("object_type_id", objectType.ID.String()),
		zap.Int("entries", len(index)))

	r.indexes[objectType.ID] = index

	return index, nil
}

func (r *Run) indexInsert(objectTypeID uuid.UUID, m mapper.Mapper, data map[string]any, id uuid.UUID) {
	if r.search != models.SearchV2 || len(m.Keys) != 1 {
		return
	}
	if index, ok := r.indexes[objectTypeID]; ok {
		index[fmt.Sprintf("%v", data[m.Keys[0]])] = id
	}
}

// Cleanup soft-deletes every non-deleted row of the type/account that was
// not seen this run. Callers invoke it strictly after the run's last
// upsert so readers never observe a temporary gap.
func (r *Run) Cleanup(ctx context.Context, objectType *models.ObjectType, seen []uuid.UUID) (int64, error) {
	if r.account.TestMode() {
		return 0, nil
	}

	deleted, err := r.store.objects.SoftDeleteExcept(ctx, objectType.ID, r.account.ID, seen, nil)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}

	return deleted, nil
}

// CleanupByLookup restricts cleanup to rows matching the lookup. Used for
// append-only streams where only the re-fetched window is authoritative:
// rows outside it are neither re-seen nor stale.
func (r *Run) CleanupByLookup(ctx context.Context, objectType *models.ObjectType, seen []uuid.UUID, lookup models.DataLookup) (int64, error) {
	if r.account.TestMode() {
		return 0, nil
	}

	deleted, err := r.store.objects.SoftDeleteExcept(ctx, objectType.ID, r.account.ID, seen, &lookup)
	if err != nil {
		return 0, fmt.Errorf("cleanup by lookup: %w", err)
	}

	return deleted, nil
}
