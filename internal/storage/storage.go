// Package storage persists service records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vyuha/vyuha-catalog/internal/catalog"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Import modes.
const (
	ModeMerge   = "merge"
	ModeReplace = "replace"
)

// ImportEntry is one row of the imports audit table.
type ImportEntry struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Mode      string    `json:"mode"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// ---------------------------------------------------------------------------
// Storage
// ---------------------------------------------------------------------------

// Storage is a thread-safe wrapper around a SQLite database holding the
// service records of the catalog. Records keep the position they were
// first saved at, so loading them back preserves record order.
type Storage struct {
	db *sql.DB
	mu sync.RWMutex
}

// ============================= LIFECYCLE ==================================

// New opens (or creates) the SQLite database at dbPath, applies the
// recommended PRAGMAs, runs any pending migrations and returns a ready
// *Storage.
func New(dbPath string) (*Storage, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open db %q: %w", dbPath, err)
	}

	// Only one writer at a time for SQLite.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("storage: set pragma %q: %w", p, err)
		}
	}

	s := &Storage{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ============================ MIGRATIONS ==================================

func (s *Storage) migrate() error {
	const createMigTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	)`
	if _, err := s.db.Exec(createMigTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration v%d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration v%d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// ========================= RECORD OPERATIONS ==============================

const upsertRecord = `INSERT INTO services (name, group_path, position, document, updated_at)
	VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM services), ?, CURRENT_TIMESTAMP)
	ON CONFLICT(name) DO UPDATE SET
		group_path = excluded.group_path,
		document   = excluded.document,
		updated_at = CURRENT_TIMESTAMP`

// SaveRecords upserts records in chunks of 500, each chunk in its own
// transaction. Existing records keep their position.
func (s *Storage) SaveRecords(ctx context.Context, records []catalog.ServiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const chunkSize = 500
	for i := 0; i < len(records); i += chunkSize {
		end := i + chunkSize
		if end > len(records) {
			end = len(records)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("storage: begin tx (save records): %w", err)
		}
		if err := saveRecordsTx(ctx, tx, records[i:end]); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("storage: commit save records: %w", err)
		}
	}
	return nil
}

func saveRecordsTx(ctx context.Context, tx *sql.Tx, records []catalog.ServiceRecord) error {
	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return fmt.Errorf("storage: prepare save-record stmt: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if r.Name == "" {
			return fmt.Errorf("storage: record #%d has no name", i)
		}
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("storage: marshal record %q: %w", r.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, r.Name, r.Group, string(doc)); err != nil {
			return fmt.Errorf("storage: insert record %q: %w", r.Name, err)
		}
	}
	return nil
}

// ReplaceAll swaps the whole record set atomically and logs the import.
// It returns the import ID.
func (s *Storage) ReplaceAll(ctx context.Context, source string, records []catalog.ServiceRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("storage: begin tx (replace records): %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM services"); err != nil {
		return "", fmt.Errorf("storage: clear records: %w", err)
	}
	if err := saveRecordsTx(ctx, tx, records); err != nil {
		return "", err
	}
	id, err := logImport(ctx, tx, source, ModeReplace, len(records))
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("storage: commit replace records: %w", err)
	}
	return id, nil
}

// Import merges records into the store and logs the import.
func (s *Storage) Import(ctx context.Context, source string, records []catalog.ServiceRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("storage: begin tx (import records): %w", err)
	}
	defer tx.Rollback()

	if err := saveRecordsTx(ctx, tx, records); err != nil {
		return "", err
	}
	id, err := logImport(ctx, tx, source, ModeMerge, len(records))
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("storage: commit import: %w", err)
	}
	return id, nil
}

func logImport(ctx context.Context, tx *sql.Tx, source, mode string, n int) (string, error) {
	id := uuid.New().String()
	_, err := tx.ExecContext(ctx,
		"INSERT INTO imports (id, source, mode, records) VALUES (?, ?, ?, ?)",
		id, source, mode, n,
	)
	if err != nil {
		return "", fmt.Errorf("storage: log import: %w", err)
	}
	return id, nil
}

// GetRecord retrieves a single record by service name.
func (s *Storage) GetRecord(ctx context.Context, name string) (*catalog.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM services WHERE name = ?", name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: record %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get record %q: %w", name, err)
	}

	r := &catalog.ServiceRecord{}
	if err := json.Unmarshal([]byte(doc), r); err != nil {
		return nil, fmt.Errorf("storage: decode record %q: %w", name, err)
	}
	return r, nil
}

// GetAllRecords returns every record in save order.
func (s *Storage) GetAllRecords(ctx context.Context) ([]catalog.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT name, document FROM services ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("storage: get all records: %w", err)
	}
	defer rows.Close()

	var out []catalog.ServiceRecord
	for rows.Next() {
		var name, doc string
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, fmt.Errorf("storage: scan record: %w", err)
		}
		var r catalog.ServiceRecord
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("storage: decode record %q: %w", name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRecordsByGroup returns the records whose group is prefix or lies
// below it.
func (s *Storage) GetRecordsByGroup(ctx context.Context, prefix string) ([]catalog.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, document FROM services WHERE group_path = ? OR group_path LIKE ? ESCAPE '\\' ORDER BY position",
		prefix, escapeLike(prefix)+".%",
	)
	if err != nil {
		return nil, fmt.Errorf("storage: get records by group %q: %w", prefix, err)
	}
	defer rows.Close()

	var out []catalog.ServiceRecord
	for rows.Next() {
		var name, doc string
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, fmt.Errorf("storage: scan record: %w", err)
		}
		var r catalog.ServiceRecord
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("storage: decode record %q: %w", name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRecord removes a record by name.
func (s *Storage) DeleteRecord(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM services WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("storage: delete record %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: record %q: %w", name, ErrNotFound)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Storage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM services").Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count records: %w", err)
	}
	return n, nil
}

// RecentImports returns the latest import log entries, newest first.
func (s *Storage) RecentImports(ctx context.Context, limit int) ([]ImportEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source, mode, records, created_at FROM imports ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: recent imports: %w", err)
	}
	defer rows.Close()

	var out []ImportEntry
	for rows.Next() {
		var e ImportEntry
		if err := rows.Scan(&e.ID, &e.Source, &e.Mode, &e.Records, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan import: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
