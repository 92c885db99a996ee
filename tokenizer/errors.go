package tokenizer

import "errors"

var (
	// ErrTokenizeFailed indicates text could not be encoded into tokens
	ErrTokenizeFailed = errors.New("tokenization failed")

	// ErrDecodeFailed indicates token ids could not be decoded back to text
	ErrDecodeFailed = errors.New("token decoding failed")
)
