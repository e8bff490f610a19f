// Package checkpoint persists per-item extraction outcomes and publish ledgers
// so an interrupted run can resume without repeating completed work.
package checkpoint

import (
	"context"
	"fmt"

	infraredis "github.com/jonesrussell/north-cloud/problemsync/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// DefaultSQLiteDSN is the checkpoint file used when no DSN is configured.
const DefaultSQLiteDSN = "problemsync.db"

// Store persists checkpoint entries and publish ledgers. Implementations are
// safe for concurrent use; writes to the same key are last-write-wins.
// Infrastructure failures wrap domain.ErrStoreUnavailable.
type Store interface {
	// Get returns the entry for id, or nil when there is none.
	Get(ctx context.Context, id string) (*domain.CheckpointEntry, error)
	Put(ctx context.Context, entry domain.CheckpointEntry) error
	List(ctx context.Context) ([]domain.CheckpointEntry, error)
	Delete(ctx context.Context, id string) error

	// LoadState returns the publish ledger for id, or nil when there is none.
	LoadState(ctx context.Context, id string) (*domain.PublishState, error)
	SaveState(ctx context.Context, state domain.PublishState) error
	DeleteState(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Driver string            `env:"CHECKPOINT_DRIVER" yaml:"driver"`
	DSN    string            `env:"CHECKPOINT_DSN"    yaml:"dsn"`
	Redis  infraredis.Config `yaml:"redis"`
}

// SetDefaults applies default values for zero-value fields.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.Driver == DriverSQLite && c.DSN == "" {
		c.DSN = DefaultSQLiteDSN
	}
}

// Open builds the store selected by cfg. SQL stores are migrated before use.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg.SetDefaults()

	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(ctx, cfg.Driver, cfg.DSN)
	case DriverRedis:
		client, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis checkpoint store: %w: %w", domain.ErrStoreUnavailable, err)
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cfg.Driver)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
