// Package marketplace contains the pluggable per-marketplace sync adapters.
//
// Each external marketplace (TikTok today; Etsy and Amazon reserved) is
// reconciled through the same five-stage contract. Sources without a real
// implementation are registered as NotImplementedAdapter so the driver loop
// can be configured with them and still run cleanly.
package marketplace

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Adapter abstracts all marketplace-specific reconciliation logic.
type Adapter interface {
	// Source returns the marketplace identifier, e.g. "tiktok".
	Source() string

	// MergeReturns folds unprocessed external returns into the canonical
	// returns table.
	MergeReturns(ctx context.Context, stats *Stats) error

	// MergeOrders folds unprocessed external orders into the canonical
	// orders/order_items tables.
	MergeOrders(ctx context.Context, stats *Stats) error

	// PushTracking stamps tracking_synced_at on external order rows whose
	// canonical tracking changed since the last watermark. The outbound API
	// call is owned by a separate collaborator.
	PushTracking(ctx context.Context, stats *Stats) error

	// UpdateInventoryFlags stamps inventory_synced_at on synced product rows
	// due for an inventory push.
	UpdateInventoryFlags(ctx context.Context, stats *Stats) error

	// SyncProductChanges hands pending product edits to the external push
	// collaborator (sync_status: pending -> ready_for_api_sync).
	SyncProductChanges(ctx context.Context, stats *Stats) error
}

// Registry maps source name to adapter.
type Registry map[string]Adapter

// Register adds an adapter under its own source name.
func (r Registry) Register(a Adapter) { r[a.Source()] = a }

// ForSource returns the adapter for a source name.
func (r Registry) ForSource(source string) (Adapter, error) {
	a, ok := r[source]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for marketplace %q", source)
	}
	return a, nil
}

// NotImplementedAdapter is a clean no-op for sources that are configured but
// not yet built. Every stage succeeds without touching any counters.
type NotImplementedAdapter struct {
	Name string
	Log  *zap.Logger
}

func (a *NotImplementedAdapter) Source() string { return a.Name }

func (a *NotImplementedAdapter) skip(stage string) error {
	if a.Log != nil {
		a.Log.Debug("marketplace not implemented; skipping stage",
			zap.String("marketplace", a.Name), zap.String("stage", stage))
	}
	return nil
}

func (a *NotImplementedAdapter) MergeReturns(ctx context.Context, _ *Stats) error {
	return a.skip("merge_returns")
}

func (a *NotImplementedAdapter) MergeOrders(ctx context.Context, _ *Stats) error {
	return a.skip("merge_orders")
}

func (a *NotImplementedAdapter) PushTracking(ctx context.Context, _ *Stats) error {
	return a.skip("push_tracking")
}

func (a *NotImplementedAdapter) UpdateInventoryFlags(ctx context.Context, _ *Stats) error {
	return a.skip("update_inventory_flags")
}

func (a *NotImplementedAdapter) SyncProductChanges(ctx context.Context, _ *Stats) error {
	return a.skip("sync_product_changes")
}
