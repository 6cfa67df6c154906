package store

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// ContentHash returns the hex SHA-256 of src. Two sources with the same
// hash produce the same explanations.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}

// LineCount counts lines the way an editor does: a trailing newline does
// not start a new line, and empty input has zero lines.
func LineCount(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := bytes.Count(src, []byte{'\n'})
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}
