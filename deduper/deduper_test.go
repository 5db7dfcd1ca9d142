package deduper_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/laikahq/sync-engine/deduper"
)

func TestAddIfNotExists(t *testing.T) {
	ctx := context.Background()
	d := deduper.New()
	typeID := uuid.New()

	assert.True(t, d.AddIfNotExists(ctx, typeID, "user-1"))
	assert.False(t, d.AddIfNotExists(ctx, typeID, "user-1"))
	assert.True(t, d.AddIfNotExists(ctx, typeID, "user-2"))
}

func TestAddIfNotExists_ScopedByObjectType(t *testing.T) {
	ctx := context.Background()
	d := deduper.New()

	assert.True(t, d.AddIfNotExists(ctx, uuid.New(), "user-1"))
	assert.True(t, d.AddIfNotExists(ctx, uuid.New(), "user-1"))
}

func TestAddIfNotExists_TupleBoundaries(t *testing.T) {
	ctx := context.Background()
	d := deduper.New()
	typeID := uuid.New()

	assert.True(t, d.AddIfNotExists(ctx, typeID, "ab", "c"))
	assert.True(t, d.AddIfNotExists(ctx, typeID, "a", "bc"))
	assert.False(t, d.AddIfNotExists(ctx, typeID, "ab", "c"))
}
