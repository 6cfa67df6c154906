package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runColumns = "id, file_id, label, hash, created_at, explanation_count"

// insertRunTx records r and its explanations. An empty r.ID is replaced
// with a fresh UUID, a zero CreatedAt with the current time, and r.Count
// is set to len(exps).
func insertRunTx(tx *sql.Tx, r *Run, exps []Explanation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.Count = len(exps)

	var fileID sql.NullInt64
	if r.FileID != nil {
		fileID = sql.NullInt64{Int64: *r.FileID, Valid: true}
	}
	if _, err := tx.Exec(
		"INSERT INTO runs ("+runColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, fileID, r.Label, r.Hash, r.CreatedAt, r.Count,
	); err != nil {
		return fmt.Errorf("store: insert run %s: %w", r.Label, err)
	}
	for i := range exps {
		exps[i].Ordinal = i
	}
	return insertExplanationsTx(tx, r.ID, exps)
}

func insertExplanationsTx(tx *sql.Tx, runID string, exps []Explanation) error {
	if len(exps) == 0 {
		return nil
	}
	stmt, err := tx.Prepare("INSERT INTO explanations (run_id, ordinal, kind, line, col, text) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: prepare explanation insert: %w", err)
	}
	defer stmt.Close()

	for i := range exps {
		e := &exps[i]
		e.RunID = runID
		res, err := stmt.Exec(runID, e.Ordinal, e.Kind, e.Line, e.Col, e.Text)
		if err != nil {
			return fmt.Errorf("store: insert explanation %d: %w", e.Ordinal, err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("store: last insert id: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*Run, error) {
	r := &Run{}
	var fileID sql.NullInt64
	if err := sc.Scan(&r.ID, &fileID, &r.Label, &r.Hash, &r.CreatedAt, &r.Count); err != nil {
		return nil, err
	}
	if fileID.Valid {
		id := fileID.Int64
		r.FileID = &id
	}
	return r, nil
}

func (s *Store) queryRuns(query string, args ...any) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunByID returns the run with the given ID, or nil if none exists.
func (s *Store) RunByID(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: run by id: %w", err)
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRuns("SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
}

// RunsForFile returns every run recorded for fileID, newest first.
func (s *Store) RunsForFile(fileID int64) ([]*Run, error) {
	return s.queryRuns("SELECT "+runColumns+" FROM runs WHERE file_id = ? ORDER BY created_at DESC, rowid DESC", fileID)
}

// LatestRunForPath returns the newest run recorded under label path, or
// nil if there is none.
func (s *Store) LatestRunForPath(path string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(
		"SELECT "+runColumns+" FROM runs WHERE label = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", path,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest run for %s: %w", path, err)
	}
	return r, nil
}

// ExplanationsByRun returns a run's explanations in ordinal order.
func (s *Store) ExplanationsByRun(runID string) ([]*Explanation, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, ordinal, kind, line, col, text FROM explanations WHERE run_id = ? ORDER BY ordinal", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: explanations by run: %w", err)
	}
	defer rows.Close()
	var exps []*Explanation
	for rows.Next() {
		e := &Explanation{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Ordinal, &e.Kind, &e.Line, &e.Col, &e.Text); err != nil {
			return nil, fmt.Errorf("store: scan explanation: %w", err)
		}
		exps = append(exps, e)
	}
	return exps, rows.Err()
}

// KindCounts returns the number of stored explanations per kind, most
// frequent first.
func (s *Store) KindCounts() ([]KindCount, error) {
	rows, err := s.db.Query("SELECT kind, COUNT(*) FROM explanations GROUP BY kind ORDER BY COUNT(*) DESC, kind")
	if err != nil {
		return nil, fmt.Errorf("store: kind counts: %w", err)
	}
	defer rows.Close()
	var counts []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("store: scan kind count: %w", err)
		}
		counts = append(counts, kc)
	}
	return counts, rows.Err()
}

// TableCounts returns the number of rows in the files, runs, and
// explanations tables.
func (s *Store) TableCounts() (files, runs, explanations int, err error) {
	err = s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM files),
		(SELECT COUNT(*) FROM runs),
		(SELECT COUNT(*) FROM explanations)`).Scan(&files, &runs, &explanations)
	if err != nil {
		err = fmt.Errorf("store: table counts: %w", err)
	}
	return files, runs, explanations, err
}

// ErrAmbiguousPrefix is returned by RunByPrefix when more than one run ID
// starts with the prefix.
var ErrAmbiguousPrefix = errors.New("store: ambiguous run id prefix")

// RunByPrefix returns the single run whose ID starts with prefix, or nil
// if none does.
func (s *Store) RunByPrefix(prefix string) (*Run, error) {
	if prefix == "" {
		return nil, nil
	}
	runs, err := s.queryRuns("SELECT "+runColumns+" FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2", len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, nil
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousPrefix, prefix)
	}
}
