package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/agrolink/agrolink/internal/api/store"
)

type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens (or creates) the database at the given DSN.
// Use "file:path.db?_busy_timeout=5000&_journal_mode=WAL" for a durable
// store or "file::memory:?cache=shared" in tests.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Users() store.Users       { return &usersRepo{db: s.db} }
func (s *Store) Contacts() store.Contacts { return &contactsRepo{db: s.db} }

// mapNotFound converts sql.ErrNoRows into the store-level sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConflict converts a sqlite UNIQUE violation into the store-level sentinel.
func mapConflict(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}
