package pyexplain

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// HistoryQuery reads past runs from the history store.
type HistoryQuery struct {
	engine *Engine
}

// Stats summarizes the history store.
type Stats struct {
	Files        int
	Runs         int
	Explanations int
	Kinds        []KindCount
}

// History returns a query handle over the Engine's history.
func (e *Engine) History() *HistoryQuery {
	return &HistoryQuery{engine: e}
}

func (q *HistoryQuery) store() (*Store, error) {
	if q.engine.store == nil {
		return nil, ErrNoHistory
	}
	return q.engine.store, nil
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (q *HistoryQuery) Runs(limit int) ([]*Run, error) {
	s, err := q.store()
	if err != nil {
		return nil, err
	}
	return s.RecentRuns(limit)
}

// RunExplanations returns the run identified by runID together with its
// explanations. runID may be a unique prefix of the full ID.
func (q *HistoryQuery) RunExplanations(runID string) (*Run, []*Explanation, error) {
	s, err := q.store()
	if err != nil {
		return nil, nil, err
	}
	run, err := s.RunByID(runID)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		if run, err = s.RunByPrefix(runID); err != nil {
			return nil, nil, err
		}
	}
	if run == nil {
		return nil, nil, fmt.Errorf("pyexplain: no run %q", runID)
	}
	exps, err := s.ExplanationsByRun(run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, exps, nil
}

// Latest returns the most recent result recorded for path, or nil if path
// was never explained. Lines are the stored explanation texts.
func (q *HistoryQuery) Latest(path string) (*Result, error) {
	s, err := q.store()
	if err != nil {
		return nil, err
	}
	run, err := s.LatestRunForPath(path)
	if err != nil || run == nil {
		return nil, err
	}
	exps, err := s.ExplanationsByRun(run.ID)
	if err != nil {
		return nil, err
	}
	entries := fromStored(exps)
	return &Result{
		Path:    path,
		Hash:    run.Hash,
		RunID:   run.ID,
		Entries: entries,
		Lines:   lo.Map(entries, func(en Entry, _ int) string { return en.Text }),
		Cached:  true,
	}, nil
}

// Stats returns row counts and the per-kind explanation breakdown.
func (q *HistoryQuery) Stats() (*Stats, error) {
	s, err := q.store()
	if err != nil {
		return nil, err
	}
	files, runs, exps, err := s.TableCounts()
	if err != nil {
		return nil, err
	}
	kinds, err := s.KindCounts()
	if err != nil {
		return nil, err
	}
	if sum := lo.SumBy(kinds, func(kc KindCount) int { return kc.Count }); sum != exps {
		return nil, fmt.Errorf("pyexplain: kind counts total %d, want %d", sum, exps)
	}
	return &Stats{Files: files, Runs: runs, Explanations: exps, Kinds: kinds}, nil
}

// Forget deletes path's file record and every run recorded for it, and
// returns the number of runs removed. Forgetting an unknown path is a
// no-op.
func (q *HistoryQuery) Forget(path string) (int, error) {
	s, err := q.store()
	if err != nil {
		return 0, err
	}
	f, err := s.FileByPath(path)
	if err != nil || f == nil {
		return 0, err
	}
	runs, err := s.RunsForFile(f.ID)
	if err != nil {
		return 0, err
	}
	if err := s.DeleteFileData(f.ID); err != nil {
		return 0, err
	}
	q.engine.logger.Debug("forgot file", zap.String("path", path), zap.Int("count", len(runs)))
	return len(runs), nil
}
