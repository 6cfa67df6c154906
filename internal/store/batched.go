package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// RunWriter records one explanation pass. Both Store (direct SQLite) and
// BatchedStore (in-memory buffering for parallel explaining) implement it.
type RunWriter interface {
	// RecordRun stores r with its explanations. When f is non-nil the file
	// record is upserted first and r is linked to it.
	RecordRun(f *File, r *Run, exps []Explanation) error
}

// Compile-time checks.
var (
	_ RunWriter = (*Store)(nil)
	_ RunWriter = (*BatchedStore)(nil)
)

// RecordRun writes f, r, and exps in a single transaction.
func (s *Store) RecordRun(f *File, r *Run, exps []Explanation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: record run: begin: %w", err)
	}
	defer tx.Rollback()

	if err := recordRunTx(tx, f, r, exps); err != nil {
		return err
	}
	return tx.Commit()
}

// pendingRun is one buffered RecordRun call.
type pendingRun struct {
	file         *File
	run          Run
	explanations []Explanation
}

// BatchedStore buffers runs in memory so workers never touch SQLite. The
// single writer goroutine flushes it with Store.CommitBatch.
//
// Thread safety: the mutex protects the pending slice.
type BatchedStore struct {
	mu      sync.Mutex
	pending []pendingRun
}

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{}
}

// RecordRun buffers a copy of f, r, and exps. Run IDs and ordinals are
// assigned at commit time unless already set.
func (b *BatchedStore) RecordRun(f *File, r *Run, exps []Explanation) error {
	p := pendingRun{run: *r, explanations: append([]Explanation(nil), exps...)}
	if f != nil {
		fc := *f
		p.file = &fc
	}
	if p.run.CreatedAt.IsZero() {
		p.run.CreatedAt = time.Now()
	}
	p.run.Count = len(exps)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, p)
	return nil
}

// Len returns the number of buffered runs.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Runs returns copies of the buffered runs in insertion order.
func (b *BatchedStore) Runs() []Run {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Run, len(b.pending))
	for i, p := range b.pending {
		out[i] = p.run
	}
	return out
}

// CommitBatch writes every buffered run from batch within a single
// transaction and empties the batch. Returns the committed run IDs in
// buffer order.
func (s *Store) CommitBatch(batch *BatchedStore) ([]string, error) {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(batch.pending))
	for i := range batch.pending {
		p := &batch.pending[i]
		if err := recordRunTx(tx, p.file, &p.run, p.explanations); err != nil {
			return nil, fmt.Errorf("store: commit batch: %w", err)
		}
		ids = append(ids, p.run.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit batch: %w", err)
	}
	batch.pending = nil
	return ids, nil
}

func recordRunTx(tx *sql.Tx, f *File, r *Run, exps []Explanation) error {
	if f != nil {
		if _, err := upsertFile(tx, f); err != nil {
			return err
		}
		id := f.ID
		r.FileID = &id
	}
	return insertRunTx(tx, r, exps)
}
