package ingest

import (
	"strings"
	"unicode/utf8"
)

// sanitizeMetadata strips malformed Unicode from a metadata string before it
// is sent to the vector store: unpaired surrogate code points and any byte
// sequence that does not decode as UTF-8 are dropped. Well-formed input is
// returned unchanged without allocating.
func sanitizeMetadata(s string) string {
	if isCleanUTF8(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || isSurrogate(r) {
			i += size
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}

func isCleanUTF8(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || isSurrogate(r) {
			return false
		}
		i += size
	}
	return true
}

func isSurrogate(r rune) bool {
	return r >= 0xD800 && r <= 0xDFFF
}
