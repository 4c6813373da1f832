// Package archive keeps a local SQLite log of completed agent turns and
// their token usage. Writes are best-effort; the reply path never waits on
// or fails because of the archive.
package archive

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/clawrelay/clawrelay/internal/autoreply"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Archive is the SQLite-backed turn log. It implements
// autoreply.TurnRecorder.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the archive database and applies pending
// migrations.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn from the driver's pool.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("turn archive ready", "path", path)
	return &Archive{db: db, path: path}, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load archive migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("init archive migrator: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create archive migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply archive migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Path returns the database file path.
func (a *Archive) Path() string { return a.path }

// RecordTurn inserts one turn. Failures are logged, never returned.
func (a *Archive) RecordTurn(rec autoreply.TurnRecord) {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := a.db.Exec(`
		INSERT INTO turns (at, surface, session_key, session_id, model,
			input_tokens, output_tokens, user_chars, reply_chars, aborted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at.UTC().Format(time.RFC3339Nano), rec.Surface, rec.SessionKey, rec.SessionID, rec.Model,
		rec.InputTokens, rec.OutputTokens, rec.UserChars, rec.ReplyChars,
		boolToInt(rec.Aborted),
	)
	if err != nil {
		slog.Warn("archive write failed", "session_key", rec.SessionKey, "error", err)
	}
}

// SessionStats aggregates archived usage for one session key.
type SessionStats struct {
	SessionKey   string
	Turns        int64
	InputTokens  int64
	OutputTokens int64
	LastTurn     time.Time
}

// Stats returns per-session-key usage totals, most recently active first.
func (a *Archive) Stats(limit int) ([]SessionStats, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(`
		SELECT session_key, COUNT(*), SUM(input_tokens), SUM(output_tokens), MAX(at)
		FROM turns
		GROUP BY session_key
		ORDER BY MAX(at) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive stats: %w", err)
	}
	defer rows.Close()

	var out []SessionStats
	for rows.Next() {
		var s SessionStats
		var last string
		if err := rows.Scan(&s.SessionKey, &s.Turns, &s.InputTokens, &s.OutputTokens, &last); err != nil {
			return nil, fmt.Errorf("scan archive stats: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, last); err == nil {
			s.LastTurn = t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TurnCount reports the total number of archived turns.
func (a *Archive) TurnCount() (int64, error) {
	var n int64
	err := a.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
