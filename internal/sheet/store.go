// Package sheet persists named tabular sheets and import history in
// SQLite. Sheets are whole-document replaced on write, the way the
// upstream spreadsheet API clears a range before updating it.
package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite access for sheets and import records.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database file and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := New(db)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle without migrating. Tests inject mock
// handles through here.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Health pings the underlying database.
func (s *Store) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sheets (
            name TEXT PRIMARY KEY,
            header_json TEXT,
            updated_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS sheet_rows (
            sheet TEXT,
            idx INTEGER,
            cells_json TEXT,
            PRIMARY KEY(sheet, idx)
        );`,
		`CREATE TABLE IF NOT EXISTS imports (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            filename TEXT,
            status TEXT,
            record_count INTEGER,
            skipped INTEGER,
            last_error TEXT,
            created_at TIMESTAMP,
            updated_at TIMESTAMP
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteSheet replaces a sheet's header and rows in one transaction.
func (s *Store) WriteSheet(ctx context.Context, name string, header []string, rows [][]string) error {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `INSERT INTO sheets(name, header_json, updated_at)
        VALUES(?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET header_json=excluded.header_json, updated_at=excluded.updated_at`,
		name, string(headerJSON), now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet=?`, name); err != nil {
		return err
	}
	for i, row := range rows {
		cellsJSON, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sheet_rows(sheet, idx, cells_json) VALUES(?,?,?)`,
			name, i, string(cellsJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadSheet returns a sheet's header and rows in stored order. Rows
// shorter than the header are padded so columns always line up; a
// missing sheet comes back with a nil header and no error.
func (s *Store) ReadSheet(ctx context.Context, name string) ([]string, [][]string, error) {
	var headerJSON string
	err := s.db.QueryRowContext(ctx, `SELECT header_json FROM sheets WHERE name=?`, name).Scan(&headerJSON)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return nil, nil, nil
	default:
		return nil, nil, err
	}
	var header []string
	if err := json.Unmarshal([]byte(headerJSON), &header); err != nil {
		return nil, nil, err
	}

	rowsIter, err := s.db.QueryContext(ctx, `SELECT cells_json FROM sheet_rows WHERE sheet=? ORDER BY idx ASC`, name)
	if err != nil {
		return nil, nil, err
	}
	defer rowsIter.Close()

	var rows [][]string
	for rowsIter.Next() {
		var cellsJSON string
		if err := rowsIter.Scan(&cellsJSON); err != nil {
			return nil, nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return nil, nil, err
		}
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		rows = append(rows, cells)
	}
	return header, rows, rowsIter.Err()
}

// Import tracks one export file moving through the pipeline.
type Import struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Status      string    `json:"status"`
	RecordCount int       `json:"record_count"`
	Skipped     int       `json:"skipped"`
	LastError   *string   `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Import statuses.
const (
	ImportPending = "pending"
	ImportRunning = "running"
	ImportDone    = "done"
	ImportFailed  = "failed"
)

func (s *Store) RecordImport(ctx context.Context, filename string, ts time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO imports(filename, status, record_count, skipped, created_at, updated_at)
        VALUES(?, ?, 0, 0, ?, ?)`, filename, ImportPending, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) MarkImportRunning(ctx context.Context, id int64, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE imports SET status=?, updated_at=? WHERE id=?`, ImportRunning, ts, id)
	return err
}

func (s *Store) MarkImportDone(ctx context.Context, id int64, records, skipped int, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE imports SET status=?, record_count=?, skipped=?, updated_at=? WHERE id=?`,
		ImportDone, records, skipped, ts, id)
	return err
}

func (s *Store) MarkImportFailed(ctx context.Context, id int64, errMsg string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE imports SET status=?, last_error=?, updated_at=? WHERE id=?`,
		ImportFailed, errMsg, ts, id)
	return err
}

func (s *Store) ListImports(ctx context.Context, limit int) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, filename, status, record_count, skipped, last_error, created_at, updated_at
        FROM imports ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var imports []Import
	for rows.Next() {
		var imp Import
		var errMsg sql.NullString
		if err := rows.Scan(&imp.ID, &imp.Filename, &imp.Status, &imp.RecordCount, &imp.Skipped, &errMsg, &imp.CreatedAt, &imp.UpdatedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			imp.LastError = &errMsg.String
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}
