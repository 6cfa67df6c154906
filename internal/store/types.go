package store

import "time"

// File is a source file that has been explained at least once.
type File struct {
	ID            int64
	Path          string
	Hash          string
	LineCount     int
	LastExplained time.Time
}

// Run is one explanation pass over one source. FileID is nil for sources
// that did not come from a file, such as stdin.
type Run struct {
	ID        string
	FileID    *int64
	Label     string
	Hash      string
	CreatedAt time.Time
	Count     int
}

// Explanation is one stored explanation line. Ordinal is its 0-based
// position within the run.
type Explanation struct {
	ID      int64
	RunID   string
	Ordinal int
	Kind    string
	Line    int
	Col     int
	Text    string
}

// KindCount is the number of stored explanations of one kind.
type KindCount struct {
	Kind  string
	Count int
}
