package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const fileColumns = "id, path, hash, line_count, last_explained"

// FileByPath returns the file record for path, or nil if none exists.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT "+fileColumns+" FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.LineCount, &f.LastExplained)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: file by path: %w", err)
	}
	return f, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// upsertFile inserts f, or updates the hash, line count, and timestamp of
// the existing record with the same path. f.ID is set either way.
func upsertFile(db querier, f *File) (int64, error) {
	err := db.QueryRow(
		`INSERT INTO files (path, hash, line_count, last_explained) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   hash = excluded.hash,
		   line_count = excluded.line_count,
		   last_explained = excluded.last_explained
		 RETURNING id`,
		f.Path, f.Hash, f.LineCount, f.LastExplained,
	).Scan(&f.ID)
	if err != nil {
		return 0, fmt.Errorf("store: upsert file %s: %w", f.Path, err)
	}
	return f.ID, nil
}
