package alerts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laikahq/sync-engine/memstore"
	"github.com/laikahq/sync-engine/models"
)

func TestDiscovery_AlertsOnlyForNewCandidates(t *testing.T) {
	stores := memstore.New()
	d := NewDiscovery(stores.VendorCandidates(), zap.NewNop())
	ctx := context.Background()
	orgID := uuid.New()

	raised, err := d.RecordCandidates(ctx, orgID, []DiscoveredApp{
		{Name: "Slack", NumberOfUsers: 40},
		{Name: "Notion", NumberOfUsers: 12},
	})
	require.NoError(t, err)
	assert.Len(t, raised, 2)

	// Second sync sees the same apps plus one new one.
	raised, err = d.RecordCandidates(ctx, orgID, []DiscoveredApp{
		{Name: "Slack", NumberOfUsers: 45},
		{Name: "Notion", NumberOfUsers: 12},
		{Name: "Figma", NumberOfUsers: 3},
	})
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, "Figma", raised[0].CandidateName)

	// Counts refreshed for existing candidates.
	slack, err := stores.VendorCandidates().GetByName(ctx, orgID, "Slack")
	require.NoError(t, err)
	assert.Equal(t, 45, slack.NumberOfUsers)
	assert.Equal(t, models.DiscoveryStateNew, slack.State)
}

func TestDiscovery_PreservesConfirmedState(t *testing.T) {
	stores := memstore.New()
	d := NewDiscovery(stores.VendorCandidates(), zap.NewNop())
	ctx := context.Background()
	orgID := uuid.New()

	_, err := d.RecordCandidates(ctx, orgID, []DiscoveredApp{{Name: "Slack", NumberOfUsers: 1}})
	require.NoError(t, err)

	slack, err := stores.VendorCandidates().GetByName(ctx, orgID, "Slack")
	require.NoError(t, err)
	slack.State = models.DiscoveryStateConfirmed
	require.NoError(t, stores.VendorCandidates().Upsert(ctx, slack))

	_, err = d.RecordCandidates(ctx, orgID, []DiscoveredApp{{Name: "Slack", NumberOfUsers: 2}})
	require.NoError(t, err)

	slack, err = stores.VendorCandidates().GetByName(ctx, orgID, "Slack")
	require.NoError(t, err)
	assert.Equal(t, models.DiscoveryStateConfirmed, slack.State)
	assert.Equal(t, 2, slack.NumberOfUsers)
}

func TestDiscovery_SkipsEmptyNames(t *testing.T) {
	stores := memstore.New()
	d := NewDiscovery(stores.VendorCandidates(), zap.NewNop())

	raised, err := d.RecordCandidates(context.Background(), uuid.New(), []DiscoveredApp{{Name: ""}})
	require.NoError(t, err)
	assert.Empty(t, raised)
}
