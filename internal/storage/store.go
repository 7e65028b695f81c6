// Package storage owns the SQLite ledger: schema lifecycle, the adaptive
// entry writer and the preference table.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tasbeeh/internal/core"

	_ "modernc.org/sqlite"
)

// connParams is appended to the file path for every pooled connection.
// busy_timeout lets concurrent writers wait on SQLite's lock instead of
// failing with SQLITE_BUSY.
const connParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

// LedgerStore is the single shared handle to the ledger database.
//
// A store is constructed unopened and opened at most once: the first call to
// Open (directly, or through any operation) creates the directory, opens the
// pool, runs the migration pass and records the schema capabilities. Every
// later call returns the same handle or the same error; a failed open is not
// retried. The store is safe for concurrent use by multiple goroutines.
// Conflicting writes are serialized by SQLite itself.
type LedgerStore struct {
	path   string
	now    func() time.Time
	logger *slog.Logger

	once    sync.Once
	db      *sql.DB
	caps    Capabilities
	openErr error
}

// Option configures a LedgerStore.
type Option func(*LedgerStore)

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerStore) { s.now = now }
}

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LedgerStore) { s.logger = logger }
}

// NewLedgerStore returns an unopened store backed by the file at path.
func NewLedgerStore(path string, opts ...Option) *LedgerStore {
	s := &LedgerStore{
		path:   path,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open initializes the store on first use and returns the shared pool.
func (s *LedgerStore) Open(ctx context.Context) (*sql.DB, error) {
	s.once.Do(func() {
		// The first caller's cancellation must not poison the store for everyone else.
		s.openErr = s.open(context.WithoutCancel(ctx))
	})
	return s.db, s.openErr
}

func (s *LedgerStore) open(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create db directory: %w", core.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", s.path+connParams)
	if err != nil {
		return fmt.Errorf("%w: open sqlite database: %w", core.ErrStorageUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: ping database: %w", core.ErrStorageUnavailable, err)
	}

	if err := RunMigrations(s.path + connParams); err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", core.ErrMigrationFailed, err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return err
	}

	caps, err := loadCapabilities(ctx, db)
	if err != nil {
		db.Close()
		return fmt.Errorf("%w: inspect schema: %w", core.ErrMigrationFailed, err)
	}

	s.db = db
	s.caps = caps
	s.logger.InfoContext(ctx, "Ledger store opened",
		"path", s.path,
		"columns", caps.Columns(),
		"insert_columns", caps.InsertColumns(),
		"legacy_columns", caps.HasLegacyColumns())
	return nil
}

// Ready reports whether Open has completed successfully.
func (s *LedgerStore) Ready(ctx context.Context) bool {
	_, err := s.Open(ctx)
	return err == nil
}

// Capabilities returns the column set recorded at open.
func (s *LedgerStore) Capabilities(ctx context.Context) (Capabilities, error) {
	if _, err := s.Open(ctx); err != nil {
		return Capabilities{}, err
	}
	return s.caps, nil
}

// Close releases the pool. It is meant for process shutdown only.
func (s *LedgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
