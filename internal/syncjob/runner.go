// Package syncjob drives the per-marketplace reconciliation run.
package syncjob

import (
	"context"

	"go.uber.org/zap"

	"marketplace-internal-sync/internal/marketplace"
)

// Runner iterates the configured marketplace sources and runs the five
// sync stages for each. One marketplace failing never prevents the others
// from being processed.
type Runner struct {
	registry marketplace.Registry
	log      *zap.Logger
}

func NewRunner(reg marketplace.Registry, log *zap.Logger) *Runner {
	return &Runner{registry: reg, log: log}
}

// SyncAll runs every stage for every source, folding counters into stats.
// A stage error aborts the remaining stages for that source only: the
// stages build on each other (returns need merged orders, tracking needs
// merged orders), so continuing after a stage-level failure would only
// churn.
func (r *Runner) SyncAll(ctx context.Context, sources []string, stats *marketplace.Stats) {
	for _, source := range sources {
		log := r.log.With(zap.String("marketplace", source))

		adapter, err := r.registry.ForSource(source)
		if err != nil {
			log.Error("marketplace sync skipped", zap.Error(err))
			stats.AddError()
			continue
		}

		log.Info("marketplace sync started")
		if err := r.syncOne(ctx, adapter, stats); err != nil {
			log.Error("marketplace sync failed", zap.Error(err))
			stats.AddError()
			continue
		}
		log.Info("marketplace sync completed")
	}
}

func (r *Runner) syncOne(ctx context.Context, a marketplace.Adapter, stats *marketplace.Stats) error {
	if err := a.MergeReturns(ctx, stats); err != nil {
		return err
	}
	if err := a.MergeOrders(ctx, stats); err != nil {
		return err
	}
	if err := a.PushTracking(ctx, stats); err != nil {
		return err
	}
	if err := a.UpdateInventoryFlags(ctx, stats); err != nil {
		return err
	}
	return a.SyncProductChanges(ctx, stats)
}

// LogSummary prints the end-of-run counters.
func LogSummary(log *zap.Logger, snap marketplace.Snapshot) {
	log.Info("sync statistics",
		zap.Int("returns_merged", snap.ReturnsMerged),
		zap.Int("orders_merged", snap.OrdersMerged),
		zap.Int("tracking_updated", snap.TrackingUpdated),
		zap.Int("inventory_updated", snap.InventoryUpdated),
		zap.Int("products_synced", snap.ProductsSynced),
		zap.Int("errors", snap.Errors))
}
