package syncjob

import (
	"context"
	"fmt"

	"marketplace-internal-sync/internal/postgres"
)

// ddl creates every table the job touches. Idempotent; --mode init runs it
// against a fresh database, and run mode assumes it already happened. The
// canonical tables (orders, order_items, returns, order_item_tracking,
// product_inventory) are owned by the main system; the definitions here are
// the minimal shape this job depends on.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                   BIGSERIAL PRIMARY KEY,
		user_id              BIGINT NOT NULL,
		status               TEXT NOT NULL,
		total_amount         NUMERIC(12,2) NOT NULL DEFAULT 0,
		currency             TEXT NOT NULL DEFAULT 'USD',
		customer_email       TEXT,
		customer_name        TEXT,
		shipping_address     TEXT,
		marketplace_source   TEXT,
		marketplace_order_id TEXT,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (marketplace_source, marketplace_order_id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id                  BIGSERIAL PRIMARY KEY,
		order_id            BIGINT NOT NULL REFERENCES orders(id),
		product_id          BIGINT NOT NULL,
		vendor_id           BIGINT NOT NULL,
		quantity            INT NOT NULL,
		price               NUMERIC(12,2) NOT NULL,
		total_price         NUMERIC(12,2) NOT NULL,
		marketplace_item_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS returns (
		id                 BIGSERIAL PRIMARY KEY,
		order_id           BIGINT NOT NULL REFERENCES orders(id),
		order_item_id      BIGINT NOT NULL REFERENCES order_items(id),
		user_id            BIGINT NOT NULL,
		vendor_id          BIGINT NOT NULL,
		marketplace_source TEXT,
		return_reason      TEXT,
		return_status      TEXT NOT NULL,
		return_data        JSONB,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS order_item_tracking (
		id              BIGSERIAL PRIMARY KEY,
		order_item_id   BIGINT NOT NULL REFERENCES order_items(id),
		tracking_number TEXT,
		carrier         TEXT,
		last_status     TEXT,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS product_inventory (
		product_id    BIGINT PRIMARY KEY,
		qty_available INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tiktok_orders (
		id                 BIGSERIAL PRIMARY KEY,
		user_id            BIGINT NOT NULL,
		tiktok_order_id    TEXT NOT NULL UNIQUE,
		order_data         TEXT,
		customer_email     TEXT,
		customer_name      TEXT,
		shipping_address   TEXT,
		total_amount       NUMERIC(12,2) NOT NULL DEFAULT 0,
		currency           TEXT,
		order_status       TEXT,
		processed_to_main  BOOLEAN NOT NULL DEFAULT FALSE,
		main_order_id      BIGINT,
		tracking_synced_at TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tiktok_returns (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL,
		tiktok_return_id  TEXT NOT NULL UNIQUE,
		tiktok_order_id   TEXT NOT NULL,
		return_data       TEXT,
		return_reason     TEXT,
		return_status     TEXT,
		processed_to_main BOOLEAN NOT NULL DEFAULT FALSE,
		main_return_id    BIGINT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tiktok_product_data (
		product_id          BIGINT NOT NULL,
		user_id             BIGINT NOT NULL,
		tiktok_title        TEXT,
		tiktok_description  TEXT,
		tiktok_price        NUMERIC(12,2),
		sync_status         TEXT NOT NULL DEFAULT 'pending',
		inventory_synced_at TIMESTAMPTZ,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (product_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tiktok_inventory_allocations (
		product_id         BIGINT NOT NULL,
		user_id            BIGINT NOT NULL,
		allocated_quantity INT NOT NULL DEFAULT 0,
		PRIMARY KEY (product_id, user_id)
	)`,
}

// EnsureTables creates all tables the job reads or writes.
func EnsureTables(ctx context.Context, db postgres.DB) error {
	for _, stmt := range ddl {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

// Seed inserts a small synthetic data set for local runs: one unprocessed
// TikTok order with a line-item payload, a return for an already-merged
// order, and a product pending sync.
func Seed(ctx context.Context, db postgres.DB) error {
	stmts := []string{
		`INSERT INTO tiktok_orders (user_id, tiktok_order_id, order_data, customer_email, customer_name, total_amount, currency)
		 VALUES (1, 'TT-SEED-1', '{"line_items":[{"product_id":5,"quantity":2,"price":10.00,"total_price":20.00,"tiktok_item_id":"TTI-1"}]}',
		         'buyer@example.invalid', 'Seed Buyer', 20.00, 'USD')
		 ON CONFLICT (tiktok_order_id) DO NOTHING`,
		`INSERT INTO tiktok_returns (user_id, tiktok_return_id, tiktok_order_id, return_data, return_reason, return_status)
		 VALUES (1, 'TTR-SEED-1', 'TT-SEED-1', '{"note":"seed"}', 'damaged', 'requested')
		 ON CONFLICT (tiktok_return_id) DO NOTHING`,
		`INSERT INTO product_inventory (product_id, qty_available)
		 VALUES (5, 10)
		 ON CONFLICT (product_id) DO NOTHING`,
		`INSERT INTO tiktok_product_data (product_id, user_id, tiktok_title, tiktok_price, sync_status)
		 VALUES (5, 1, 'Seed product', 10.00, 'pending')
		 ON CONFLICT (product_id, user_id) DO NOTHING`,
		`INSERT INTO tiktok_inventory_allocations (product_id, user_id, allocated_quantity)
		 VALUES (5, 1, 4)
		 ON CONFLICT (product_id, user_id) DO NOTHING`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}
