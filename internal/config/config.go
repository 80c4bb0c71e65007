// Package config resolves the job configuration from flags and environment
// variables. Flags win over environment; environment wins over nothing —
// there are no baked-in deployment defaults for connection settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Sources that the driver loop iterates when --marketplace is not given.
var DefaultMarketplaces = []string{"tiktok", "etsy", "amazon"}

// Config is the immutable per-run configuration.
type Config struct {
	Mode         string // init|seed|run
	DSN          string
	DryRun       bool
	Marketplaces []string
	RPS          float64 // per-item write pacing; 0 disables
	UseLock      bool
	LockKey      int64
	Verbose      bool
}

// ResolveDSN picks the connection string: explicit flag value, then PG_DSN,
// then a DSN composed from the DB_* parts. env is an os.Getenv-compatible
// lookup so tests can inject values.
func ResolveDSN(flagDSN string, env func(string) string) (string, error) {
	if v := strings.TrimSpace(flagDSN); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(env("PG_DSN")); v != "" {
		return v, nil
	}
	host := strings.TrimSpace(env("DB_HOST"))
	user := strings.TrimSpace(env("DB_USER"))
	pass := env("DB_PASS")
	name := strings.TrimSpace(env("DB_NAME"))
	if host == "" || user == "" || name == "" {
		return "", errors.New("no DSN: set PG_DSN or DB_HOST/DB_USER/DB_PASS/DB_NAME")
	}
	port := strings.TrimSpace(env("DB_PORT"))
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	return u.String(), nil
}

// ParseMarketplaces turns the --marketplace flag value into the source list
// for this run. Empty means all configured sources.
func ParseMarketplaces(flagVal string) ([]string, error) {
	v := strings.ToLower(strings.TrimSpace(flagVal))
	if v == "" {
		return DefaultMarketplaces, nil
	}
	for _, m := range DefaultMarketplaces {
		if v == m {
			return []string{v}, nil
		}
	}
	return nil, fmt.Errorf("unknown marketplace %q (expected one of %s)", v, strings.Join(DefaultMarketplaces, "|"))
}

// Getenv is the default environment lookup used by main.
func Getenv(key string) string { return os.Getenv(key) }
