package repository

import (
	"context"
	"fmt"
	"strings"

	"plant_inspection/internal/domain"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
}

// Open returns the store selected by opts.Driver. An empty driver picks
// postgres when a database URL is set and memory otherwise.
func Open(ctx context.Context, opts Options) (domain.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverMemory
		if opts.DatabaseURL != "" {
			driver = DriverPostgres
		}
	}
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(opts.SQLitePath)
	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres driver requires DATABASE_URL")
		}
		return OpenPostgresStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
