// Package ledger persists the materialization ledger in a SQLite database
// under the cache root. The ledger is the authority on which dependency
// versions the cache holds.
package ledger

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rios0rios0/prefetch/domain"
)

//go:embed schema.sql
var schemaSQL string

// DefaultFile is the ledger database name under the cache root.
const DefaultFile = "ledger.db"

// Ledger implements domain.Ledger over SQLite. A single connection is used:
// SQLite supports one writer at a time and the resolver already serializes
// per-dependency work.
type Ledger struct {
	db *sql.DB
}

var _ domain.Ledger = (*Ledger)(nil)

// Open creates or opens the ledger database at the given path, applying
// pragmas and the schema. Parent directories are created as needed.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Record inserts or replaces the row for (rec.Name, rec.VersionRef). Refetches
// of the same version keep the newest identity and path.
func (l *Ledger) Record(rec domain.MaterializationRecord) error {
	_, err := l.db.Exec(`
		INSERT INTO materializations (
			id, name, version_ref, source_location, fetcher,
			resolved_id, tree_hash, local_path, size_bytes, fetched_at, last_used_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, version_ref) DO UPDATE SET
			id              = excluded.id,
			source_location = excluded.source_location,
			fetcher         = excluded.fetcher,
			resolved_id     = excluded.resolved_id,
			tree_hash       = excluded.tree_hash,
			local_path      = excluded.local_path,
			size_bytes      = excluded.size_bytes,
			fetched_at      = excluded.fetched_at,
			last_used_at    = excluded.last_used_at`,
		rec.ID, rec.Name, rec.VersionRef, rec.SourceLocation, rec.Fetcher,
		rec.ResolvedID, rec.TreeHash, rec.LocalPath, rec.SizeBytes, rec.FetchedAt, rec.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record materialization of %q: %w", rec.Name, err)
	}
	return nil
}

// Find returns the record for the given name and version ref.
func (l *Ledger) Find(name, versionRef string) (domain.MaterializationRecord, bool, error) {
	row := l.db.QueryRow(`
		SELECT id, name, version_ref, source_location, fetcher,
		       resolved_id, tree_hash, local_path, size_bytes, fetched_at, last_used_at
		FROM materializations
		WHERE name = ? AND version_ref = ?`,
		name, versionRef,
	)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MaterializationRecord{}, false, nil
	}
	if err != nil {
		return domain.MaterializationRecord{}, false, fmt.Errorf("failed to look up %q: %w", name, err)
	}
	return rec, true, nil
}

// Touch bumps the last-used timestamp for a record.
func (l *Ledger) Touch(id string) error {
	_, err := l.db.Exec(`UPDATE materializations SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch record %q: %w", id, err)
	}
	return nil
}

// List returns all records ordered by name then version ref.
func (l *Ledger) List() ([]domain.MaterializationRecord, error) {
	rows, err := l.db.Query(`
		SELECT id, name, version_ref, source_location, fetcher,
		       resolved_id, tree_hash, local_path, size_bytes, fetched_at, last_used_at
		FROM materializations
		ORDER BY name, version_ref`)
	if err != nil {
		return nil, fmt.Errorf("failed to list materializations: %w", err)
	}
	defer rows.Close()

	var records []domain.MaterializationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read materialization row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list materializations: %w", err)
	}
	return records, nil
}

// Delete removes a record by id.
func (l *Ledger) Delete(id string) error {
	if _, err := l.db.Exec(`DELETE FROM materializations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record %q: %w", id, err)
	}
	return nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.MaterializationRecord, error) {
	var rec domain.MaterializationRecord
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.VersionRef, &rec.SourceLocation, &rec.Fetcher,
		&rec.ResolvedID, &rec.TreeHash, &rec.LocalPath, &rec.SizeBytes, &rec.FetchedAt, &rec.LastUsedAt,
	)
	return rec, err
}
