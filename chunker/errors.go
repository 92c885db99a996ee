package chunker

import "errors"

// Common chunker errors
var (
	// ErrInvalidChunkSize indicates chunk size is invalid (<=0)
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap indicates overlap value is invalid (<0)
	ErrInvalidOverlap = errors.New("overlap must be non-negative")

	// ErrOverlapTooLarge indicates overlap is >= chunk size
	ErrOverlapTooLarge = errors.New("overlap must be less than chunk size")
)
