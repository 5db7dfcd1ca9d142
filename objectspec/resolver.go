package objectspec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/models"
)

// Resolver materializes specs into per-organization object types, lazily
// on first use. Resolution results are cached per (org, type name) since
// object types never move between organizations.
type Resolver struct {
	types  models.ObjectTypeRepository
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*models.ObjectType
}

func NewResolver(types models.ObjectTypeRepository, logger *zap.Logger) *Resolver {
	return &Resolver{
		types:  types,
		logger: logger,
		cache:  make(map[string]*models.ObjectType),
	}
}

// Resolve returns the organization's object type for the spec, creating
// it together with its attribute rows on first call. Spec declaration
// order is preserved as sort_index.
func (r *Resolver) Resolve(ctx context.Context, orgID uuid.UUID, spec *Spec) (*models.ObjectType, error) {
	cacheKey := orgID.String() + "/" + spec.TypeName

	r.mu.Lock()
	if cached, ok := r.cache[cacheKey]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	existing, err := r.types.GetByTypeName(ctx, orgID, spec.TypeName)
	if err == nil {
		r.put(cacheKey, existing)
		return existing, nil
	}

	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("resolve object type %s: %w", spec.TypeName, err)
	}

	objectType := &models.ObjectType{
		ID:             uuid.New(),
		OrganizationID: orgID,
		TypeName:       spec.TypeName,
		DisplayName:    spec.DisplayName,
		Color:          spec.Color,
		Icon:           spec.Icon,
		Attributes:     spec.rows(),
		CreatedAt:      time.Now().UTC(),
	}

	if err := r.types.Create(ctx, objectType); err != nil {
		// Lost a race with a concurrent resolve; re-read.
		if errors.Is(err, models.ErrAlreadyExists) {
			existing, err2 := r.types.GetByTypeName(ctx, orgID, spec.TypeName)
			if err2 != nil {
				return nil, err2
			}
			r.put(cacheKey, existing)
			return existing, nil
		}
		return nil, fmt.Errorf("create object type %s: %w", spec.TypeName, err)
	}

	r.logger.Info("materialized object type",
		zap.String("organization_id", orgID.String()),
		zap.String("type_name", spec.TypeName))

	r.put(cacheKey, objectType)

	return objectType, nil
}

func (r *Resolver) put(key string, t *models.ObjectType) {
	r.mu.Lock()
	r.cache[key] = t
	r.mu.Unlock()
}
