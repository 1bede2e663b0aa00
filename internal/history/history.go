// Package history archives analysis reports in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/justin4957/logflow-access-analyzer/pkg/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no report has the requested id
var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	source           TEXT    NOT NULL,
	created_at       INTEGER NOT NULL,
	unique_addresses INTEGER NOT NULL,
	lines_read       INTEGER NOT NULL,
	lines_matched    INTEGER NOT NULL,
	report_json      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_source ON reports(source);
`

// Store is a report archive
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Entry is one archived report
type Entry struct {
	ID        int64
	CreatedAt time.Time
	Report    models.AnalysisReport
}

// Open opens or creates the archive at path. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.InitSchema(); err != nil {
		_ = db.Close() // Close error less important than schema error
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// InitSchema creates the tables if they do not exist
func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Path returns the database location
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives rep and returns its id
func (s *Store) Save(ctx context.Context, rep *models.AnalysisReport) (int64, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal report: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (source, created_at, unique_addresses, lines_read, lines_matched, report_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rep.Source, s.now().UnixMilli(), rep.UniqueAddressCount, rep.LinesRead, rep.LinesMatched, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report id: %w", err)
	}
	return id, nil
}

// List returns up to limit reports, newest first. A non-positive limit
// returns every report.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, created_at, report_json FROM reports ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}

	return entries, nil
}

// Get returns the report with the given id
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, report_json FROM reports WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return entry, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		entry     Entry
		createdAt int64
		data      string
	)
	if err := sc.Scan(&entry.ID, &createdAt, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &entry.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report %d: %w", entry.ID, err)
	}
	entry.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &entry, nil
}
