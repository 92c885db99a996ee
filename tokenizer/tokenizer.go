// Package tokenizer wraps a model-specific text/token codec behind a small
// interface so the chunking pipeline can be tested against fakes.
package tokenizer

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Codec converts between text and token ids. Implementations must be
// deterministic and round-trip faithful: Decode(Encode(x)) == x for all valid
// UTF-8 input. The chunker relies on this to recover byte offsets from token
// prefixes.
type Codec interface {
	// Encode converts text into a sequence of token ids.
	// An empty string encodes to an empty sequence.
	Encode(text string) ([]uint, error)

	// Decode converts token ids back into text.
	Decode(ids []uint) (string, error)

	// Count returns the number of tokens in text.
	Count(text string) (int, error)
}

// Cl100k is a Codec backed by tiktoken's cl100k_base encoding, the encoding
// used by OpenAI's text-embedding-3-small.
type Cl100k struct {
	enc tokenizer.Codec
}

// NewCl100k initializes the cl100k_base codec.
func NewCl100k() (*Cl100k, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}
	return &Cl100k{enc: enc}, nil
}

// Encode converts text into cl100k token ids.
func (c *Cl100k) Encode(text string) ([]uint, error) {
	if text == "" {
		return nil, nil
	}
	ids, _, err := c.enc.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenizeFailed, err)
	}
	return ids, nil
}

// Decode converts token ids back into text.
func (c *Cl100k) Decode(ids []uint) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	text, err := c.enc.Decode(ids)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return text, nil
}

// Count counts the tokens in text.
func (c *Cl100k) Count(text string) (int, error) {
	ids, err := c.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
