package syncjob

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EnsureTables must create every table the stages read or write.
func TestEnsureTablesCoversAllTables(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tables := []string{
		"orders", "order_items", "returns", "order_item_tracking",
		"product_inventory", "tiktok_orders", "tiktok_returns",
		"tiktok_product_data", "tiktok_inventory_allocations",
	}
	for _, table := range tables {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + table + `\s`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, EnsureTables(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
