package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"token_ticker/internal/domain"
)

// KeyTokenSelection holds the comma separated active token IDs.
const KeyTokenSelection = "tokens"

// Store persists user settings in SQLite. Prices are never stored.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the settings database with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=2000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &Store{db: db}, nil
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *Store) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a setting. A missing key yields ok=false and no error.
func (s *Store) GetMetadata(ctx context.Context, key string) (entry domain.AppConfig, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT key, value, updated_at FROM metadata WHERE key = ?", key,
	).Scan(&entry.Key, &entry.Value, &entry.UpdatedAtUnixM)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AppConfig{}, false, nil
	}
	if err != nil {
		return domain.AppConfig{}, false, err
	}
	return entry, true, nil
}

// LoadTokenSelection resolves the persisted selection, falling back to
// fallback when nothing usable is stored.
func (s *Store) LoadTokenSelection(ctx context.Context, fallback string) ([]domain.TokenInfo, error) {
	entry, ok, err := s.GetMetadata(ctx, KeyTokenSelection)
	if err != nil {
		return nil, fmt.Errorf("load token selection: %w", err)
	}
	if ok {
		if tokens := domain.ParseSelection(entry.Value); len(tokens) > 0 {
			return tokens, nil
		}
	}

	tokens := domain.ParseSelection(fallback)
	if len(tokens) == 0 {
		tokens = domain.ParseSelection(domain.DefaultSelection)
	}
	return tokens, nil
}

// SaveTokenSelection validates csv and stores the normalized selection.
func (s *Store) SaveTokenSelection(ctx context.Context, csv string) ([]domain.TokenInfo, error) {
	tokens := domain.ParseSelection(csv)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("selection %q contains no known tokens", csv)
	}
	if err := s.UpsertMetadata(ctx, KeyTokenSelection, domain.SelectionString(tokens), time.Now().UnixMicro()); err != nil {
		return nil, fmt.Errorf("save token selection: %w", err)
	}
	return tokens, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
