package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path and applies migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}

	s.logger.Debug("state opened", slog.String("path", path))
	return nil
}

// OpenDB wraps an existing connection without migrating it.
func (s *SQLiteStore) OpenDB(db *sql.DB) {
	s.db = db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- Settings ---

// GetSetting returns the value stored for key in project.
func (s *SQLiteStore) GetSetting(ctx context.Context, project, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, fmt.Errorf("database not opened")
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE project = ? AND key = ?`,
		project, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value for key in project, replacing any previous value.
func (s *SQLiteStore) SetSetting(ctx context.Context, project, key, value string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	s.logger.Debug("setting stored", slog.String("project", project), slog.String("key", key))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (project, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (project, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		project, key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Suppressed returns the suppressed running version for project.
func (s *SQLiteStore) Suppressed(ctx context.Context, project string) (string, bool, error) {
	return s.GetSetting(ctx, project, SuppressionKey)
}

// SetSuppressed records version as the suppressed running version.
func (s *SQLiteStore) SetSuppressed(ctx context.Context, project, version string) error {
	return s.SetSetting(ctx, project, SuppressionKey, version)
}

// --- Generation history ---

// RecordGeneration appends g to the history.
func (s *SQLiteStore) RecordGeneration(ctx context.Context, g core.Generation) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	at := g.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (run_id, source, stamp, output, written, generated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.RunID, g.Source, formatStamp(g.Stamp), g.Output, g.Written, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record generation of %s: %w", g.Source, err)
	}
	return nil
}

// LatestGenerations returns the most recent generation of every source,
// ordered by source path.
func (s *SQLiteStore) LatestGenerations(ctx context.Context) ([]core.Generation, error) {
	return s.queryGenerations(ctx,
		`SELECT run_id, source, stamp, output, written, generated_at FROM generations
		 WHERE id IN (SELECT MAX(id) FROM generations GROUP BY source)
		 ORDER BY source`)
}

// RunGenerations returns the generations recorded by one run.
func (s *SQLiteStore) RunGenerations(ctx context.Context, runID string) ([]core.Generation, error) {
	return s.queryGenerations(ctx,
		`SELECT run_id, source, stamp, output, written, generated_at FROM generations
		 WHERE run_id = ? ORDER BY source`, runID)
}

func (s *SQLiteStore) queryGenerations(ctx context.Context, query string, args ...any) ([]core.Generation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.Generation
	for rows.Next() {
		var g core.Generation
		var stamp string
		var at int64
		if err := rows.Scan(&g.RunID, &g.Source, &stamp, &g.Output, &g.Written, &at); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		g.Stamp, err = parseStamp(stamp)
		if err != nil {
			return nil, fmt.Errorf("invalid stamp for %s: %w", g.Source, err)
		}
		g.At = time.Unix(0, at).UTC()
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read generations: %w", err)
	}
	return out, nil
}

// Stamps are unsigned 64-bit and stored as hex text, since SQLite integers
// are signed.
func formatStamp(stamp uint64) string {
	return fmt.Sprintf("%016x", stamp)
}

func parseStamp(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}
