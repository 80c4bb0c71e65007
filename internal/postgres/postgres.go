// Package postgres provides the database handle shared by every sync stage.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the sync stages use. Stage code depends
// on this interface rather than the pool so tests can substitute a mock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect opens a pool and verifies the connection with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// TryRunLock attempts a session-scoped advisory lock keyed per job. It
// returns false when another run already holds the lock.
func TryRunLock(ctx context.Context, db DB, key int64) (bool, error) {
	var got bool
	if err := db.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&got); err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	return got, nil
}

// RunLock pins one pool connection so the advisory lock stays held for the
// whole run; advisory locks are per-session, so the lock and the release
// must happen on the same connection.
type RunLock struct {
	conn *pgxpool.Conn
}

// AcquireRunLock takes the advisory lock on a dedicated connection. ok is
// false (and lock nil) when another run holds it.
func AcquireRunLock(ctx context.Context, pool *pgxpool.Pool, key int64) (lock *RunLock, ok bool, err error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire conn: %w", err)
	}
	got, err := TryRunLock(ctx, conn, key)
	if err != nil || !got {
		conn.Release()
		return nil, false, err
	}
	return &RunLock{conn: conn}, true, nil
}

// Release returns the pinned connection to the pool, dropping the lock.
func (l *RunLock) Release() {
	if l != nil && l.conn != nil {
		l.conn.Release()
		l.conn = nil
	}
}
