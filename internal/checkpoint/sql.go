package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

const (
	// DefaultMaxOpenConns is the connection cap for postgres.
	DefaultMaxOpenConns = 10

	// DefaultConnMaxLifetime is the maximum lifetime of a connection.
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultPingTimeout bounds the connectivity check on open.
	DefaultPingTimeout = 5 * time.Second
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS checkpoints (
		item_id    TEXT PRIMARY KEY,
		status     TEXT NOT NULL,
		data       TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS publish_states (
		item_id     TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		data        TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,
}

// SQLStore keeps checkpoints in SQLite or PostgreSQL. Entries are stored as
// JSON documents keyed by item ID.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open connection. Call Migrate before first use.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenSQL connects with driver ("sqlite" or "postgres"), verifies the
// connection and creates the tables.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, unavailable("open checkpoint database", err)
	}

	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection serializes workers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(DefaultMaxOpenConns)
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		_ = db.Close()
		return nil, unavailable("ping checkpoint database", pingErr)
	}

	s := NewSQLStore(db)
	if migrateErr := s.Migrate(ctx); migrateErr != nil {
		_ = db.Close()
		return nil, migrateErr
	}
	return s, nil
}

// Migrate creates the checkpoint tables when they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("migrate checkpoint schema", err)
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*domain.CheckpointEntry, error) {
	var data string
	query := s.db.Rebind(`SELECT data FROM checkpoints WHERE item_id = ?`)

	if err := s.db.GetContext(ctx, &data, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get checkpoint "+id, err)
	}

	var entry domain.CheckpointEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", id, err)
	}
	return &entry, nil
}

func (s *SQLStore) Put(ctx context.Context, entry domain.CheckpointEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", entry.ItemID, err)
	}

	query := s.db.Rebind(`
		INSERT INTO checkpoints (item_id, status, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`)

	_, err = s.db.ExecContext(ctx, query,
		entry.ItemID, string(entry.Status), string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return unavailable("put checkpoint "+entry.ItemID, err)
	}
	return nil
}

// List returns every entry ordered by item ID. Undecodable rows are skipped.
func (s *SQLStore) List(ctx context.Context) ([]domain.CheckpointEntry, error) {
	var rows []string
	if err := s.db.SelectContext(ctx, &rows, `SELECT data FROM checkpoints ORDER BY item_id`); err != nil {
		return nil, unavailable("list checkpoints", err)
	}

	entries := make([]domain.CheckpointEntry, 0, len(rows))
	for _, data := range rows {
		var e domain.CheckpointEntry
		if json.Unmarshal([]byte(data), &e) != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM checkpoints WHERE item_id = ?`), id); err != nil {
		return unavailable("delete checkpoint "+id, err)
	}
	return nil
}

func (s *SQLStore) LoadState(ctx context.Context, id string) (*domain.PublishState, error) {
	var data string
	query := s.db.Rebind(`SELECT data FROM publish_states WHERE item_id = ?`)

	if err := s.db.GetContext(ctx, &data, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("load publish state "+id, err)
	}

	var state domain.PublishState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode publish state %s: %w", id, err)
	}
	return &state, nil
}

func (s *SQLStore) SaveState(ctx context.Context, state domain.PublishState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode publish state %s: %w", state.ItemID, err)
	}

	query := s.db.Rebind(`
		INSERT INTO publish_states (item_id, document_id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (item_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`)

	_, err = s.db.ExecContext(ctx, query,
		state.ItemID, state.DocumentID, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return unavailable("save publish state "+state.ItemID, err)
	}
	return nil
}

func (s *SQLStore) DeleteState(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM publish_states WHERE item_id = ?`), id); err != nil {
		return unavailable("delete publish state "+id, err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping checkpoint database", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
