// Package chunker splits file text into token-bounded overlapping chunks with
// source-line attribution.
package chunker

import (
	"fmt"

	"github.com/Anas-2357/CodeSage/lineindex"
	"github.com/Anas-2357/CodeSage/tokenizer"
)

// Config holds configuration for text chunking behavior.
type Config struct {
	// ChunkSize is the maximum number of tokens per chunk.
	// Default: 1000 tokens.
	ChunkSize int

	// Overlap is the number of tokens duplicated between consecutive chunks
	// to preserve context at chunk boundaries. Must be strictly less than
	// ChunkSize or the window never advances.
	// Default: 200 tokens.
	Overlap int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 1000,
		Overlap:   200,
	}
}

// Validate checks if the chunk configuration is valid.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.Overlap < 0 {
		return ErrInvalidOverlap
	}
	if c.Overlap >= c.ChunkSize {
		return ErrOverlapTooLarge
	}
	return nil
}

// Chunk represents a single chunk of text with its metadata.
type Chunk struct {
	// Index is the chunk's position in the sequence (0-based)
	Index int

	// Text is the exact slice of the original text covered by this chunk
	Text string

	// StartLine and EndLine are the 1-based inclusive source lines the
	// chunk spans
	StartLine int
	EndLine   int

	// Tokens is the number of tokens in this chunk's window
	Tokens int
}

// Splitter produces overlapping token-bounded chunks using an injected codec.
type Splitter struct {
	codec tokenizer.Codec
	cfg   Config
}

// New creates a Splitter with the given codec and configuration.
func New(codec tokenizer.Codec, cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk config: %w", err)
	}
	return &Splitter{codec: codec, cfg: cfg}, nil
}

// Split chunks text into overlapping windows of at most ChunkSize tokens,
// consecutive windows sharing exactly Overlap tokens (the final window may be
// shorter). Empty text yields no chunks. Split is a pure function: identical
// inputs yield identical output.
//
// Byte offsets are recovered by decoding token prefixes of the original text
// rather than decoding the window itself; token boundaries are not byte
// boundaries, and slicing the original text avoids boundary artifacts.
func (s *Splitter) Split(text string) ([]Chunk, error) {
	if text == "" {
		return nil, nil
	}

	tokens, err := s.codec.Encode(text)
	if err != nil {
		return nil, err
	}
	total := len(tokens)
	if total == 0 {
		return nil, nil
	}

	lines := lineindex.New(text)
	stride := s.cfg.ChunkSize - s.cfg.Overlap

	var chunks []Chunk
	for start := 0; start < total; start += stride {
		end := start + s.cfg.ChunkSize
		if end > total {
			end = total
		}

		startText, err := s.codec.Decode(tokens[:start])
		if err != nil {
			return nil, fmt.Errorf("failed to decode prefix of chunk %d: %w", len(chunks), err)
		}
		endText, err := s.codec.Decode(tokens[:end])
		if err != nil {
			return nil, fmt.Errorf("failed to decode prefix of chunk %d: %w", len(chunks), err)
		}
		startOffset := len(startText)
		endOffset := len(endText)

		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      text[startOffset:endOffset],
			StartLine: lines.LineAt(startOffset),
			EndLine:   lines.LineAt(endOffset),
			Tokens:    end - start,
		})
	}

	return chunks, nil
}

// CountTokens counts the number of tokens in the given text.
func (s *Splitter) CountTokens(text string) (int, error) {
	return s.codec.Count(text)
}
