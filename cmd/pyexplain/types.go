package main

import "time"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIEntry is a JSON-friendly explanation entry.
type CLIEntry struct {
	Kind string `json:"kind"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
	Text string `json:"text"`
}

// CLIExplanation is the result of explaining one source.
type CLIExplanation struct {
	Path    string     `json:"path"`
	Hash    string     `json:"hash"`
	RunID   string     `json:"run_id,omitempty"`
	Cached  bool       `json:"cached"`
	Lines   []string   `json:"lines"`
	Entries []CLIEntry `json:"entries"`
}

// CLIIndexedFile summarizes one file from an index run.
type CLIIndexedFile struct {
	Path   string `json:"path"`
	RunID  string `json:"run_id,omitempty"`
	Cached bool   `json:"cached"`
	Count  int    `json:"count"`
}

// CLIIndex is the result of the index command.
type CLIIndex struct {
	Root       string           `json:"root"`
	Database   string           `json:"database"`
	Files      []CLIIndexedFile `json:"files"`
	Errors     []string         `json:"errors,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// CLIRun is a JSON-friendly run summary.
type CLIRun struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Hash      string    `json:"hash"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// CLIRunDetail is one run with its explanations.
type CLIRunDetail struct {
	Run     CLIRun     `json:"run"`
	Entries []CLIEntry `json:"entries"`
}

// CLIKindCount is a JSON-friendly per-kind count.
type CLIKindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// CLIStats is a JSON-friendly history summary.
type CLIStats struct {
	Files        int            `json:"files"`
	Runs         int            `json:"runs"`
	Explanations int            `json:"explanations"`
	Kinds        []CLIKindCount `json:"kinds"`
}

// CLIElaboration is the result of the elaborate command.
type CLIElaboration struct {
	Path     string   `json:"path"`
	Model    string   `json:"model"`
	Lines    []string `json:"lines"`
	Response string   `json:"response"`
}
