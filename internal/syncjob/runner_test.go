package syncjob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"marketplace-internal-sync/internal/marketplace"
)

// stubAdapter records which stages ran and can fail a chosen stage.
type stubAdapter struct {
	name      string
	failStage string
	ran       []string
}

func (s *stubAdapter) Source() string { return s.name }

func (s *stubAdapter) stage(name string) error {
	s.ran = append(s.ran, name)
	if s.failStage == name {
		return errors.New("stage blew up")
	}
	return nil
}

func (s *stubAdapter) MergeReturns(context.Context, *marketplace.Stats) error {
	return s.stage("merge_returns")
}
func (s *stubAdapter) MergeOrders(context.Context, *marketplace.Stats) error {
	return s.stage("merge_orders")
}
func (s *stubAdapter) PushTracking(context.Context, *marketplace.Stats) error {
	return s.stage("push_tracking")
}
func (s *stubAdapter) UpdateInventoryFlags(context.Context, *marketplace.Stats) error {
	return s.stage("update_inventory_flags")
}
func (s *stubAdapter) SyncProductChanges(context.Context, *marketplace.Stats) error {
	return s.stage("sync_product_changes")
}

var allStages = []string{
	"merge_returns", "merge_orders", "push_tracking",
	"update_inventory_flags", "sync_product_changes",
}

func TestSyncAllRunsStagesInOrder(t *testing.T) {
	a := &stubAdapter{name: "tiktok"}
	reg := marketplace.Registry{}
	reg.Register(a)

	stats := &marketplace.Stats{}
	NewRunner(reg, zap.NewNop()).SyncAll(context.Background(), []string{"tiktok"}, stats)

	assert.Equal(t, allStages, a.ran)
	assert.Zero(t, stats.Snapshot().Errors)
}

func TestSyncAllSourceIsolation(t *testing.T) {
	// A failing marketplace aborts its own remaining stages but never the
	// other marketplaces.
	broken := &stubAdapter{name: "tiktok", failStage: "merge_orders"}
	healthy := &stubAdapter{name: "etsy"}
	reg := marketplace.Registry{}
	reg.Register(broken)
	reg.Register(healthy)

	stats := &marketplace.Stats{}
	NewRunner(reg, zap.NewNop()).SyncAll(context.Background(), []string{"tiktok", "etsy"}, stats)

	assert.Equal(t, []string{"merge_returns", "merge_orders"}, broken.ran)
	assert.Equal(t, allStages, healthy.ran)
	assert.Equal(t, 1, stats.Snapshot().Errors)
}

func TestSyncAllUnknownSource(t *testing.T) {
	healthy := &stubAdapter{name: "tiktok"}
	reg := marketplace.Registry{}
	reg.Register(healthy)

	stats := &marketplace.Stats{}
	NewRunner(reg, zap.NewNop()).SyncAll(context.Background(), []string{"walmart", "tiktok"}, stats)

	assert.Equal(t, allStages, healthy.ran)
	assert.Equal(t, 1, stats.Snapshot().Errors)
}
