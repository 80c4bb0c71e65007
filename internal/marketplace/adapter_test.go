package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryDispatch(t *testing.T) {
	reg := Registry{}
	stub := &NotImplementedAdapter{Name: "etsy", Log: zap.NewNop()}
	reg.Register(stub)

	got, err := reg.ForSource("etsy")
	require.NoError(t, err)
	assert.Same(t, stub, got)

	_, err = reg.ForSource("ebay")
	require.Error(t, err)
}

func TestNotImplementedAdapterNoOps(t *testing.T) {
	a := &NotImplementedAdapter{Name: "amazon", Log: zap.NewNop()}
	stats := &Stats{}
	ctx := context.Background()

	require.NoError(t, a.MergeReturns(ctx, stats))
	require.NoError(t, a.MergeOrders(ctx, stats))
	require.NoError(t, a.PushTracking(ctx, stats))
	require.NoError(t, a.UpdateInventoryFlags(ctx, stats))
	require.NoError(t, a.SyncProductChanges(ctx, stats))

	// A stubbed marketplace does partial-to-no work; it must not touch any
	// counter, error counter included.
	assert.Equal(t, Snapshot{}, stats.Snapshot())
}

func TestStatsSnapshot(t *testing.T) {
	stats := &Stats{}
	stats.AddReturnMerged()
	stats.AddOrderMerged()
	stats.AddOrderMerged()
	stats.AddTrackingUpdated()
	stats.AddInventoryUpdated()
	stats.AddProductSynced()
	stats.AddError()

	assert.Equal(t, Snapshot{
		ReturnsMerged:    1,
		OrdersMerged:     2,
		TrackingUpdated:  1,
		InventoryUpdated: 1,
		ProductsSynced:   1,
		Errors:           1,
	}, stats.Snapshot())
}
