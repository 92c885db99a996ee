// Package lineindex resolves byte offsets within a text blob to 1-based line
// numbers.
package lineindex

import "sort"

// Index is a sorted table of line-start byte offsets for a single text blob.
// Construction is O(len(text)); lookups are O(log lines).
type Index struct {
	starts []int
}

// New scans text once and records the byte offset following each line
// terminator, plus offset 0 for line 1.
func New(text string) *Index {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Index{starts: starts}
}

// LineAt resolves a byte offset to its 1-based line number. Offsets at or
// beyond the end of the text resolve to the last line; negative offsets
// resolve to line 1.
func (ix *Index) LineAt(offset int) int {
	if offset < 0 {
		return 1
	}
	// First line start strictly greater than offset; the offset belongs to
	// the line before it.
	n := sort.Search(len(ix.starts), func(i int) bool {
		return ix.starts[i] > offset
	})
	if n < 1 {
		return 1
	}
	return n
}

// Lines returns the number of lines in the indexed text.
func (ix *Index) Lines() int {
	return len(ix.starts)
}
