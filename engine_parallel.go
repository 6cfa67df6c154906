package pyexplain

import (
	"context"
	"errors"
	"fmt"
	"os"
	goruntime "runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/jward/pyexplain/internal/store"
)

// workItem holds everything a parallel worker needs for one file.
type workItem struct {
	index int
	path  string
	src   []byte
	hash  string

	// cached is set in Phase A when the stored run can be reused.
	cached *Result
	// batch buffers the new run; nil when history is disabled.
	batch *store.BatchedStore
}

// explainFilesParallel explains files using a three-phase parallel pipeline:
//
//	Phase A (serial):   Read, hash, and cache check.
//	Phase B (parallel): Parse, explain, and run the script via worker pool.
//	Phase C (serial):   Commit batches to SQLite in input order.
func (e *Engine) explainFilesParallel(ctx context.Context, paths []string) ([]*Result, error) {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	items := make([]*workItem, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		item, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		item.index = len(items)
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errors.Join(errs...)
	}

	// ---- Phase B: Parallel explaining ----
	numWorkers := e.workers
	if numWorkers == 0 {
		numWorkers = goruntime.NumCPU()
	}
	numWorkers = max(min(numWorkers, len(items)), 1)

	workCh := make(chan *workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	results := make([]*Result, len(items))
	itemErrs := make([]error, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The Runtime is stateless per call and each item has its own
			// BatchedStore, so workers share nothing mutable.
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					itemErrs[item.index] = fmt.Errorf("pyexplain: %s: %w", item.path, err)
					continue
				}
				res, err := e.explainItem(ctx, item)
				if err != nil {
					itemErrs[item.index] = fmt.Errorf("pyexplain: %s: %w", item.path, err)
					continue
				}
				results[item.index] = res
			}
		}()
	}
	wg.Wait()

	// ---- Phase C: Serial commit ----
	out := make([]*Result, 0, len(items))
	for i, item := range items {
		if itemErrs[i] != nil {
			errs = append(errs, itemErrs[i])
			continue
		}
		res := results[i]
		if item.batch != nil && item.batch.Len() > 0 {
			ids, err := e.store.CommitBatch(item.batch)
			if err != nil {
				errs = append(errs, fmt.Errorf("pyexplain: commit %s: %w", item.path, err))
				continue
			}
			res.RunID = ids[0]
		}
		out = append(out, res)
	}

	e.logger.Debug("parallel explain finished",
		zap.Int("files", len(out)), zap.Int("workers", numWorkers), zap.Int("errors", len(errs)))
	return out, errors.Join(errs...)
}

// prepareFile does Phase A work for a single file: read, hash, and cache
// lookup against the store.
func (e *Engine) prepareFile(path string) (*workItem, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pyexplain: read %s: %w", path, err)
	}
	item := &workItem{path: path, src: src, hash: store.ContentHash(src)}

	cached, err := e.cached(path, item.hash)
	if err != nil {
		return nil, fmt.Errorf("pyexplain: %s: %w", path, err)
	}
	item.cached = cached
	if cached == nil && e.store != nil {
		item.batch = store.NewBatchedStore()
	}
	return item, nil
}

// explainItem does Phase B work for a single file. New runs go to the
// item's BatchedStore; the store itself is only read.
func (e *Engine) explainItem(ctx context.Context, item *workItem) (*Result, error) {
	if item.cached != nil {
		return e.finish(ctx, item.cached, item.src)
	}
	var w store.RunWriter
	if item.batch != nil {
		w = item.batch
	}

	res, err := e.fresh(ctx, item.path, item.hash, item.src)
	if err != nil {
		return nil, err
	}
	if w != nil {
		run := &store.Run{Label: item.path, Hash: item.hash}
		if err := w.RecordRun(fileRecord(item.path, item.hash, item.src), run, toStored(res.Entries)); err != nil {
			return nil, err
		}
	}
	return e.finish(ctx, res, item.src)
}
