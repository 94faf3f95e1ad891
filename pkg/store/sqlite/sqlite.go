/*
Copyright 2024 The Statscache Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sqlite implements the store on a single SQLite database file.
// It is the default backend; a daemon restart resumes from whatever the
// file holds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vivekanand1101/statscache/pkg/model"
	"github.com/vivekanand1101/statscache/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rows (
	ident     TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	category  TEXT NOT NULL DEFAULT '',
	value     REAL NOT NULL,
	PRIMARY KEY (ident, timestamp, category)
);
CREATE INDEX IF NOT EXISTS rows_ident_ts ON rows (ident, timestamp);
`

type sqliteStore struct {
	db *sql.DB
}

// dsn builds the connection string. modernc.org/sqlite only applies
// settings passed as repeated _pragma parameters; mattn-style keys like
// _journal_mode are silently ignored by it.
func dsn(path string) string {
	return filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// Open opens (creating if needed) a SQLite store at the given path.
func Open(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite store path is required")
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Upsert(ctx context.Context, ident string, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rows (ident, timestamp, category, value) VALUES (?, ?, ?, ?)
		ON CONFLICT (ident, timestamp, category) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, ident, r.Timestamp.UTC().UnixMilli(), r.Category, r.Value); err != nil {
			return fmt.Errorf("failed to upsert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

func (s *sqliteStore) Query(ctx context.Context, ident string, f store.RowFilter) ([]model.Row, error) {
	query, args := buildQuery("SELECT timestamp, category, value FROM rows", ident, f)
	if f.Order == store.OrderDesc {
		query += " ORDER BY timestamp DESC"
	} else {
		query += " ORDER BY timestamp ASC"
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []model.Row
	for rows.Next() {
		var (
			ts       int64
			category string
			value    float64
		)
		if err := rows.Scan(&ts, &category, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, model.Row{
			Timestamp: time.UnixMilli(ts).UTC(),
			Category:  category,
			Value:     value,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

func (s *sqliteStore) DeleteSince(ctx context.Context, ident string, when time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rows WHERE ident = ? AND timestamp >= ?`, ident, when.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows since %v: %w", when, err)
	}
	return res.RowsAffected()
}

func (s *sqliteStore) DeleteBefore(ctx context.Context, ident string, when time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rows WHERE ident = ? AND timestamp < ?`, ident, when.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows before %v: %w", when, err)
	}
	return res.RowsAffected()
}

func (s *sqliteStore) Count(ctx context.Context, ident string, f store.RowFilter) (int64, error) {
	query, args := buildQuery("SELECT COUNT(*) FROM rows", ident, f)
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) Newest(ctx context.Context, ident string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM rows WHERE ident = ?`, ident).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query newest row: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ts.Int64).UTC(), nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// buildQuery appends the shared WHERE clause for ident and the inclusive
// timestamp bounds.
func buildQuery(prefix, ident string, f store.RowFilter) (string, []interface{}) {
	query := prefix + " WHERE ident = ?"
	args := []interface{}{ident}
	if !f.Start.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, f.Start.UTC().UnixMilli())
	}
	if !f.Stop.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, f.Stop.UTC().UnixMilli())
	}
	return query, args
}
