package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path string) *File {
	t.Helper()
	f := &File{Path: path, Hash: "abc123", LineCount: 3, LastExplained: time.Now().Truncate(time.Second)}
	id, err := upsertFile(s.db, f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// insertRun records a run with no file record and returns its ID.
func insertRun(s *Store, r *Run, exps []Explanation) (string, error) {
	err := s.RecordRun(nil, r, exps)
	return r.ID, err
}

func testExplanations(texts ...string) []Explanation {
	exps := make([]Explanation, len(texts))
	for i, text := range texts {
		exps[i] = Explanation{Kind: "call", Line: i + 1, Col: 1, Text: text}
	}
	return exps
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "runs", "explanations", "metadata"} {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestNewStore_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestNewStore_BadPath(t *testing.T) {
	t.Parallel()
	_, err := NewStore(filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
}

// =============================================================================
// Files
// =============================================================================

func TestFileByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/src/app.py")

	got, err := s.FileByPath("/src/app.py")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, "abc123", got.Hash)
	assert.Equal(t, 3, got.LineCount)

	missing, err := s.FileByPath("/nope.py")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertFile_UpdatesExisting(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.py")

	up := &File{Path: "/a.py", Hash: "def456", LineCount: 10, LastExplained: time.Now()}
	id, err := upsertFile(s.db, up)
	require.NoError(t, err)
	assert.Equal(t, f.ID, id)

	got, err := s.FileByPath("/a.py")
	require.NoError(t, err)
	assert.Equal(t, "def456", got.Hash)
	assert.Equal(t, 10, got.LineCount)

	files, _, _, err := s.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, files)
}

func TestDeleteFileData(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	keep := insertTestFile(t, s, "/keep.py")
	drop := insertTestFile(t, s, "/drop.py")

	_, err := insertRun(s, &Run{FileID: &keep.ID, Label: keep.Path, Hash: keep.Hash}, testExplanations("a"))
	require.NoError(t, err)
	dropRun, err := insertRun(s, &Run{FileID: &drop.ID, Label: drop.Path, Hash: drop.Hash}, testExplanations("b", "c"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteFileData(drop.ID))

	got, err := s.FileByPath("/drop.py")
	require.NoError(t, err)
	assert.Nil(t, got)

	run, err := s.RunByID(dropRun)
	require.NoError(t, err)
	assert.Nil(t, run)

	files, runs, exps, err := s.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, exps)
}

func TestReset_KeepsMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.py")
	_, err := insertRun(s, &Run{FileID: &f.ID, Label: f.Path, Hash: f.Hash}, testExplanations("x"))
	require.NoError(t, err)
	require.NoError(t, s.SetMetadata("k", "v"))

	require.NoError(t, s.Reset())

	files, runs, exps, err := s.TableCounts()
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, runs)
	assert.Zero(t, exps)

	v, err := s.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

// =============================================================================
// Runs & Explanations
// =============================================================================

func TestRecordRun_AssignsIDAndOrdinals(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	exps := testExplanations("first", "second", "third")
	r := &Run{Label: "<stdin>", Hash: "h"}
	id, err := insertRun(s, r, exps)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, 3, r.Count)
	assert.False(t, r.CreatedAt.IsZero())

	got, err := s.RunByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.FileID)
	assert.Equal(t, "<stdin>", got.Label)
	assert.Equal(t, 3, got.Count)

	stored, err := s.ExplanationsByRun(id)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, e := range stored {
		assert.Equal(t, i, e.Ordinal)
		assert.Equal(t, id, e.RunID)
		assert.Positive(t, e.ID)
	}
	assert.Equal(t, "second", stored[1].Text)
	assert.Equal(t, 2, stored[1].Line)
}

func TestRecordRun_EmptyExplanations(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	id, err := insertRun(s, &Run{Label: "empty.py", Hash: "h"}, nil)
	require.NoError(t, err)

	stored, err := s.ExplanationsByRun(id)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRecordRun_DuplicateIDRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := insertRun(s, &Run{ID: "fixed", Label: "a", Hash: "h"}, testExplanations("one"))
	require.NoError(t, err)
	_, err = insertRun(s, &Run{ID: "fixed", Label: "b", Hash: "h"}, testExplanations("two", "three"))
	require.Error(t, err)

	_, _, exps, err := s.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, exps, "failed run must not leave explanations behind")
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, label := range []string{"a.py", "b.py", "c.py"} {
		_, err := insertRun(s, &Run{Label: label, Hash: "h", CreatedAt: base.Add(time.Duration(i) * time.Minute)}, nil)
		require.NoError(t, err)
	}

	runs, err := s.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.py", runs[0].Label)
	assert.Equal(t, "b.py", runs[1].Label)

	all, err := s.RecentRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLatestRunForPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/a.py")

	base := time.Now().Add(-time.Hour)
	_, err := insertRun(s, &Run{FileID: &f.ID, Label: f.Path, Hash: "old", CreatedAt: base}, nil)
	require.NoError(t, err)
	newID, err := insertRun(s, &Run{FileID: &f.ID, Label: f.Path, Hash: "new", CreatedAt: base.Add(time.Minute)}, nil)
	require.NoError(t, err)

	latest, err := s.LatestRunForPath("/a.py")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newID, latest.ID)
	require.NotNil(t, latest.FileID)
	assert.Equal(t, f.ID, *latest.FileID)

	runs, err := s.RunsForFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	none, err := s.LatestRunForPath("/b.py")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestKindCounts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	exps := []Explanation{
		{Kind: "call", Text: "c1"},
		{Kind: "assign", Text: "a1"},
		{Kind: "call", Text: "c2"},
	}
	_, err := insertRun(s, &Run{Label: "a", Hash: "h"}, exps)
	require.NoError(t, err)

	counts, err := s.KindCounts()
	require.NoError(t, err)
	assert.Equal(t, []KindCount{{Kind: "call", Count: 2}, {Kind: "assign", Count: 1}}, counts)
}

// =============================================================================
// Metadata & hashing
// =============================================================================

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("explainer_version")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("explainer_version", "1"))
	require.NoError(t, s.SetMetadata("explainer_version", "2"))

	v, err = s.GetMetadata("explainer_version")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHash(nil))
	assert.Equal(t, ContentHash([]byte("x = 1\n")), ContentHash([]byte("x = 1\n")))
	assert.NotEqual(t, ContentHash([]byte("x = 1\n")), ContentHash([]byte("x = 2\n")))
}

func TestLineCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src  string
		want int
	}{
		{"", 0},
		{"x", 1},
		{"x\n", 1},
		{"x\ny", 2},
		{"x\ny\n", 2},
		{"\n\n", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LineCount([]byte(tt.src)), "%q", tt.src)
	}
}

func TestRunByPrefix(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := insertRun(s, &Run{ID: "abc-111", Label: "a", Hash: "h"}, nil)
	require.NoError(t, err)
	_, err = insertRun(s, &Run{ID: "abd-222", Label: "b", Hash: "h"}, nil)
	require.NoError(t, err)

	r, err := s.RunByPrefix("abc")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "abc-111", r.ID)

	_, err = s.RunByPrefix("ab")
	assert.ErrorIs(t, err, ErrAmbiguousPrefix)

	none, err := s.RunByPrefix("zzz")
	require.NoError(t, err)
	assert.Nil(t, none)
}
