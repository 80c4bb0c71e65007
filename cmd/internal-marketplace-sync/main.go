// Internal marketplace sync job.
//
// Reconciles the external-marketplace side tables (TikTok today) against the
// canonical orders/returns schema:
//  1. merge unprocessed marketplace returns into the main returns table
//  2. merge unprocessed marketplace orders into the main orders table
//  3. stamp tracking watermarks for the external API push collaborator
//  4. stamp inventory watermarks for the same collaborator
//  5. hand pending product edits to the collaborator (ready_for_api_sync)
//
// Designed to run from cron every 5 minutes. All state transitions are
// flag/watermark based, so an interrupted run resumes on the next tick.
//
// Usage:
//
//	internal-marketplace-sync [--mode init|seed|run] [--dry-run] [--marketplace=tiktok|etsy|amazon]
//
// Connection settings come from PG_DSN, or from DB_HOST/DB_USER/DB_PASS/
// DB_NAME (+DB_PORT). There are no baked-in defaults.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"marketplace-internal-sync/internal/config"
	"marketplace-internal-sync/internal/logging"
	"marketplace-internal-sync/internal/marketplace"
	"marketplace-internal-sync/internal/marketplace/tiktok"
	"marketplace-internal-sync/internal/postgres"
	"marketplace-internal-sync/internal/syncjob"
)

// Advisory lock key for this job; shared by every deployment of it.
const defaultLockKey = 7340021

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// Optional .env for local runs; absence is not an error.
	_ = godotenv.Load()

	var (
		mode        = flag.String("mode", getenv("MODE", "run"), "init|seed|run")
		dsn         = flag.String("dsn", "", "Postgres DSN (overrides PG_DSN / DB_* env)")
		dryRun      = flag.Bool("dry-run", getenvBool("DRY_RUN", false), "log what would happen; write nothing")
		marketFlag  = flag.String("marketplace", getenv("MARKETPLACE", ""), "restrict to one source: tiktok|etsy|amazon (empty = all)")
		rps         = flag.Float64("rps", 0, "pace per-item writes to this rate (0 = unpaced)")
		useLock     = flag.Bool("lock", getenvBool("RUN_LOCK", false), "take a Postgres advisory lock; exit 0 if another run holds it")
		lockKey     = flag.Int64("lock-key", defaultLockKey, "advisory lock key (with --lock)")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	resolvedDSN, err := config.ResolveDSN(*dsn, config.Getenv)
	if err != nil {
		fatalf("config: %v", err)
	}
	sources, err := config.ParseMarketplaces(*marketFlag)
	if err != nil {
		fatalf("config: %v", err)
	}
	cfg := config.Config{
		Mode:         *mode,
		DSN:          resolvedDSN,
		DryRun:       *dryRun,
		Marketplaces: sources,
		RPS:          *rps,
		UseLock:      *useLock,
		LockKey:      *lockKey,
		Verbose:      *verbose,
	}

	log, err := logging.New(cfg.Verbose)
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer log.Sync()
	log = log.With(zap.String("run_id", uuid.NewString()))

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, cfg.DSN)
	if err != nil {
		log.Error("database connect failed", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("connected to database")

	// Exit immediately on SIGINT/SIGTERM. Flag-based idempotency makes the
	// next cron tick resume whatever was in flight.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, exiting", zap.String("signal", sig.String()))
		os.Exit(0)
	}()

	switch strings.ToLower(cfg.Mode) {
	case "init":
		if err := syncjob.EnsureTables(ctx, pool); err != nil {
			log.Error("init failed", zap.Error(err))
			os.Exit(1)
		}
		log.Info("tables ensured")
		return
	case "seed":
		if err := syncjob.EnsureTables(ctx, pool); err != nil {
			log.Error("seed failed", zap.Error(err))
			os.Exit(1)
		}
		if err := syncjob.Seed(ctx, pool); err != nil {
			log.Error("seed failed", zap.Error(err))
			os.Exit(1)
		}
		log.Info("seed data inserted")
		return
	case "run":
		// fallthrough below
	default:
		fatalf("unknown --mode %q (expected init|seed|run)", cfg.Mode)
	}

	if cfg.UseLock {
		lock, ok, err := postgres.AcquireRunLock(ctx, pool, cfg.LockKey)
		if err != nil {
			log.Error("run lock failed", zap.Error(err))
			os.Exit(1)
		}
		if !ok {
			log.Info("another run holds the lock; exiting", zap.Int64("lock_key", cfg.LockKey))
			return
		}
		defer lock.Release()
	}

	if cfg.DryRun {
		log.Info("dry-run mode: no changes will be made")
	}

	reg := marketplace.Registry{}
	reg.Register(tiktok.New(pool, log, tiktok.Options{DryRun: cfg.DryRun, RPS: cfg.RPS}))
	reg.Register(&marketplace.NotImplementedAdapter{Name: "etsy", Log: log})
	reg.Register(&marketplace.NotImplementedAdapter{Name: "amazon", Log: log})

	stats := &marketplace.Stats{}
	syncjob.NewRunner(reg, log).SyncAll(ctx, cfg.Marketplaces, stats)
	syncjob.LogSummary(log, stats.Snapshot())
	log.Info("internal marketplace sync completed")
}
