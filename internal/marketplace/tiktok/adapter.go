// Package tiktok reconciles the TikTok side tables against the canonical
// orders/returns schema. All stages are restartable: source rows carry
// processed_to_main flags or synced-at watermarks, so a rerun picks up
// exactly the work the previous run left unfinished.
package tiktok

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"marketplace-internal-sync/internal/marketplace"
	"marketplace-internal-sync/internal/postgres"
)

const source = "tiktok"

// Adapter implements marketplace.Adapter for TikTok.
type Adapter struct {
	db     postgres.DB
	log    *zap.Logger
	dryRun bool
	lim    *rate.Limiter
}

// Options configures the adapter for one run.
type Options struct {
	DryRun bool
	// RPS paces per-item writes; 0 disables pacing.
	RPS float64
}

func New(db postgres.DB, log *zap.Logger, opts Options) *Adapter {
	var lim *rate.Limiter
	if opts.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Adapter{
		db:     db,
		log:    log.With(zap.String("marketplace", source)),
		dryRun: opts.DryRun,
		lim:    lim,
	}
}

func (a *Adapter) Source() string { return source }

func (a *Adapter) pace(ctx context.Context) error {
	if a.lim == nil {
		return nil
	}
	return a.lim.Wait(ctx)
}

/* ========================= Return merge ========================= */

type returnRow struct {
	ID          int64
	UserID      int64
	ReturnID    string
	OrderID     string
	Data        *string
	Reason      *string
	Status      *string
	MainOrderID int64
}

// MergeReturns folds unprocessed TikTok returns into the canonical returns
// table. A return is only selectable once its parent order has been merged
// (main_order_id set), which keeps return rows from referencing orders that
// do not exist yet.
func (a *Adapter) MergeReturns(ctx context.Context, stats *marketplace.Stats) error {
	rows, err := a.db.Query(ctx, `
		SELECT tr.id, tr.user_id, tr.tiktok_return_id, tr.tiktok_order_id,
		       tr.return_data, tr.return_reason, tr.return_status,
		       o.main_order_id
		FROM tiktok_returns tr
		JOIN tiktok_orders o ON tr.tiktok_order_id = o.tiktok_order_id
		WHERE tr.processed_to_main = FALSE
		  AND o.main_order_id IS NOT NULL
		ORDER BY tr.created_at ASC`)
	if err != nil {
		return fmt.Errorf("select unprocessed returns: %w", err)
	}
	var candidates []returnRow
	for rows.Next() {
		var r returnRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.ReturnID, &r.OrderID, &r.Data, &r.Reason, &r.Status, &r.MainOrderID); err != nil {
			rows.Close()
			return fmt.Errorf("scan return row: %w", err)
		}
		candidates = append(candidates, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read unprocessed returns: %w", err)
	}

	a.log.Info("returns to merge", zap.Int("count", len(candidates)))

	for _, r := range candidates {
		if a.dryRun {
			a.log.Info("dry-run: would merge return", zap.String("tiktok_return_id", r.ReturnID))
			stats.AddReturnMerged()
			continue
		}
		if err := a.pace(ctx); err != nil {
			return err
		}
		if err := a.mergeReturn(ctx, r); err != nil {
			if errors.Is(err, errNoOrderItems) {
				// Transient: the parent order exists but has no items yet.
				a.log.Warn("no order items for merged order; skipping return",
					zap.Int64("main_order_id", r.MainOrderID),
					zap.String("tiktok_return_id", r.ReturnID))
				continue
			}
			a.log.Error("merge return failed", zap.Int64("id", r.ID), zap.Error(err))
			stats.AddError()
			continue
		}
		stats.AddReturnMerged()
	}
	return nil
}

var errNoOrderItems = errors.New("order has no order items")

func (a *Adapter) mergeReturn(ctx context.Context, r returnRow) error {
	// Attach the return to the first item of the parent order. The TikTok
	// payload carries no item-level reference, so multi-item orders cannot
	// be disambiguated here.
	var orderItemID, vendorID, ownerUserID int64
	err := a.db.QueryRow(ctx, `
		SELECT oi.id, oi.vendor_id, o.user_id
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.id = $1
		ORDER BY oi.id ASC
		LIMIT 1`, r.MainOrderID).Scan(&orderItemID, &vendorID, &ownerUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNoOrderItems
	}
	if err != nil {
		return fmt.Errorf("resolve order item: %w", err)
	}

	reason := defaultReturnReason
	if r.Reason != nil && *r.Reason != "" {
		reason = *r.Reason
	}
	status := ""
	if r.Status != nil {
		status = *r.Status
	}
	data := ""
	if r.Data != nil {
		data = *r.Data
	}
	audit, err := buildReturnAudit(r.ReturnID, r.OrderID, data)
	if err != nil {
		return fmt.Errorf("build return audit blob: %w", err)
	}

	// Insert the canonical return and mark the source row in one
	// transaction so a crash cannot leave a merged return unflagged.
	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	var mainReturnID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO returns (
			order_id, order_item_id, user_id, vendor_id,
			marketplace_source, return_reason, return_status, return_data,
			created_at
		) VALUES ($1, $2, $3, $4, 'tiktok', $5, $6, $7, NOW())
		RETURNING id`,
		r.MainOrderID, orderItemID, r.UserID, vendorID,
		reason, mapReturnStatus(status), audit).Scan(&mainReturnID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert return: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE tiktok_returns
		SET processed_to_main = TRUE, main_return_id = $1
		WHERE id = $2`, mainReturnID, r.ID); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("mark return processed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	a.log.Info("merged return",
		zap.String("tiktok_return_id", r.ReturnID),
		zap.Int64("main_return_id", mainReturnID))
	return nil
}

/* ========================= Order merge ========================= */

type orderRow struct {
	ID              int64
	UserID          int64
	OrderID         string
	Data            *string
	CustomerEmail   *string
	CustomerName    *string
	ShippingAddress *string
	TotalAmount     float64
	Currency        *string
}

// MergeOrders folds unprocessed TikTok orders into the canonical orders and
// order_items tables. Merged orders land as status 'paid': payment was
// already captured by the external platform.
func (a *Adapter) MergeOrders(ctx context.Context, stats *marketplace.Stats) error {
	rows, err := a.db.Query(ctx, `
		SELECT id, user_id, tiktok_order_id, order_data,
		       customer_email, customer_name, shipping_address,
		       total_amount, currency
		FROM tiktok_orders
		WHERE processed_to_main = FALSE
		ORDER BY created_at ASC`)
	if err != nil {
		return fmt.Errorf("select unprocessed orders: %w", err)
	}
	var candidates []orderRow
	for rows.Next() {
		var o orderRow
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderID, &o.Data, &o.CustomerEmail, &o.CustomerName, &o.ShippingAddress, &o.TotalAmount, &o.Currency); err != nil {
			rows.Close()
			return fmt.Errorf("scan order row: %w", err)
		}
		candidates = append(candidates, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read unprocessed orders: %w", err)
	}

	a.log.Info("orders to merge", zap.Int("count", len(candidates)))

	for _, o := range candidates {
		if a.dryRun {
			a.log.Info("dry-run: would merge order", zap.String("tiktok_order_id", o.OrderID))
			stats.AddOrderMerged()
			continue
		}
		if err := a.pace(ctx); err != nil {
			return err
		}
		if err := a.mergeOrder(ctx, o); err != nil {
			a.log.Error("merge order failed", zap.Int64("id", o.ID), zap.Error(err))
			stats.AddError()
			continue
		}
		stats.AddOrderMerged()
	}
	return nil
}

func (a *Adapter) mergeOrder(ctx context.Context, o orderRow) error {
	data := ""
	if o.Data != nil {
		data = *o.Data
	}
	// No canonical order can be created without valid line items; a parse
	// failure skips this order entirely.
	items, err := parseLineItems(data)
	if err != nil {
		return err
	}

	currency := "USD"
	if o.Currency != nil && *o.Currency != "" {
		currency = *o.Currency
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	var mainOrderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			user_id, status, total_amount, currency,
			customer_email, customer_name, shipping_address,
			marketplace_source, marketplace_order_id, created_at
		) VALUES ($1, 'paid', $2, $3, $4, $5, $6, 'tiktok', $7, NOW())
		RETURNING id`,
		o.UserID, o.TotalAmount, currency,
		o.CustomerEmail, o.CustomerName, o.ShippingAddress,
		o.OrderID).Scan(&mainOrderID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range items {
		vendorID := item.VendorID
		if vendorID == 0 {
			// TikTok items without a vendor belong to the order's owner:
			// the connected seller is the platform user.
			vendorID = o.UserID
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (
				order_id, product_id, vendor_id,
				quantity, price, total_price, marketplace_item_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			mainOrderID, item.ProductID, vendorID,
			item.Quantity, item.Price, item.TotalPrice, item.TikTokItemID); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE tiktok_orders
		SET processed_to_main = TRUE, main_order_id = $1
		WHERE id = $2`, mainOrderID, o.ID); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("mark order processed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	a.log.Info("merged order",
		zap.String("tiktok_order_id", o.OrderID),
		zap.Int64("main_order_id", mainOrderID),
		zap.Int("items", len(items)))
	return nil
}

/* ========================= Tracking push ========================= */

// PushTracking stamps tracking_synced_at on TikTok order rows whose
// canonical tracking changed after the current watermark. The stamp is the
// work queue for the external API sync collaborator; no network call
// happens here.
func (a *Adapter) PushTracking(ctx context.Context, stats *marketplace.Stats) error {
	rows, err := a.db.Query(ctx, `
		SELECT DISTINCT t.id, t.tiktok_order_id
		FROM tiktok_orders t
		JOIN orders o ON t.main_order_id = o.id
		JOIN order_items oi ON oi.order_id = o.id
		JOIN order_item_tracking oit ON oit.order_item_id = oi.id
		WHERE t.tracking_synced_at IS NULL
		   OR oit.updated_at > t.tracking_synced_at`)
	if err != nil {
		return fmt.Errorf("select tracking updates: %w", err)
	}
	type trackingRow struct {
		RowID   int64
		OrderID string
	}
	var candidates []trackingRow
	for rows.Next() {
		var t trackingRow
		if err := rows.Scan(&t.RowID, &t.OrderID); err != nil {
			rows.Close()
			return fmt.Errorf("scan tracking row: %w", err)
		}
		candidates = append(candidates, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read tracking updates: %w", err)
	}

	a.log.Info("tracking updates to stamp", zap.Int("count", len(candidates)))

	for _, t := range candidates {
		if !a.dryRun {
			if err := a.pace(ctx); err != nil {
				return err
			}
			if _, err := a.db.Exec(ctx, `
				UPDATE tiktok_orders
				SET tracking_synced_at = NOW()
				WHERE id = $1`, t.RowID); err != nil {
				a.log.Error("stamp tracking watermark failed",
					zap.String("tiktok_order_id", t.OrderID), zap.Error(err))
				stats.AddError()
				continue
			}
		}
		stats.AddTrackingUpdated()
		a.log.Info("tracking ready for push", zap.String("tiktok_order_id", t.OrderID))
	}
	return nil
}

/* ========================= Inventory flags ========================= */

// UpdateInventoryFlags stamps inventory_synced_at on synced product rows.
// Rows stamped within the last hour are left alone so the external pusher
// is not re-queued faster than it can drain.
func (a *Adapter) UpdateInventoryFlags(ctx context.Context, stats *marketplace.Stats) error {
	rows, err := a.db.Query(ctx, `
		SELECT tpd.product_id, tpd.user_id, tia.allocated_quantity, pi.qty_available
		FROM tiktok_product_data tpd
		JOIN tiktok_inventory_allocations tia
		  ON tia.product_id = tpd.product_id AND tia.user_id = tpd.user_id
		JOIN product_inventory pi ON pi.product_id = tpd.product_id
		WHERE tpd.sync_status = 'synced'
		  AND (tpd.inventory_synced_at IS NULL
		       OR tpd.inventory_synced_at < NOW() - INTERVAL '1 hour')`)
	if err != nil {
		return fmt.Errorf("select inventory updates: %w", err)
	}
	type inventoryRow struct {
		ProductID    int64
		UserID       int64
		Allocated    int
		QtyAvailable int
	}
	var candidates []inventoryRow
	for rows.Next() {
		var iv inventoryRow
		if err := rows.Scan(&iv.ProductID, &iv.UserID, &iv.Allocated, &iv.QtyAvailable); err != nil {
			rows.Close()
			return fmt.Errorf("scan inventory row: %w", err)
		}
		candidates = append(candidates, iv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read inventory updates: %w", err)
	}

	a.log.Info("inventory flags to stamp", zap.Int("count", len(candidates)))

	for _, iv := range candidates {
		if !a.dryRun {
			if err := a.pace(ctx); err != nil {
				return err
			}
			if _, err := a.db.Exec(ctx, `
				UPDATE tiktok_product_data
				SET inventory_synced_at = NOW()
				WHERE product_id = $1 AND user_id = $2`, iv.ProductID, iv.UserID); err != nil {
				a.log.Error("stamp inventory watermark failed",
					zap.Int64("product_id", iv.ProductID), zap.Error(err))
				stats.AddError()
				continue
			}
		}
		stats.AddInventoryUpdated()
	}
	return nil
}

/* ========================= Product change handoff ========================= */

// SyncProductChanges hands user-edited products to the external push
// collaborator: pending -> ready_for_api_sync. The final transition to
// 'synced' happens in that collaborator after the API call succeeds.
func (a *Adapter) SyncProductChanges(ctx context.Context, stats *marketplace.Stats) error {
	rows, err := a.db.Query(ctx, `
		SELECT product_id, user_id
		FROM tiktok_product_data
		WHERE sync_status = 'pending'
		ORDER BY updated_at ASC`)
	if err != nil {
		return fmt.Errorf("select pending products: %w", err)
	}
	type productRow struct {
		ProductID int64
		UserID    int64
	}
	var candidates []productRow
	for rows.Next() {
		var p productRow
		if err := rows.Scan(&p.ProductID, &p.UserID); err != nil {
			rows.Close()
			return fmt.Errorf("scan product row: %w", err)
		}
		candidates = append(candidates, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read pending products: %w", err)
	}

	a.log.Info("pending product changes", zap.Int("count", len(candidates)))

	for _, p := range candidates {
		if !a.dryRun {
			if err := a.pace(ctx); err != nil {
				return err
			}
			if _, err := a.db.Exec(ctx, `
				UPDATE tiktok_product_data
				SET sync_status = 'ready_for_api_sync'
				WHERE product_id = $1 AND user_id = $2`, p.ProductID, p.UserID); err != nil {
				a.log.Error("mark product ready failed",
					zap.Int64("product_id", p.ProductID), zap.Error(err))
				stats.AddError()
				continue
			}
		}
		stats.AddProductSynced()
		a.log.Info("product ready for api sync", zap.Int64("product_id", p.ProductID))
	}
	return nil
}
