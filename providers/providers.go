// Package providers defines the embedding provider contract and constructors
// for the supported backends.
package providers

import (
	"context"

	"github.com/Anas-2357/CodeSage/providers/gemini"
	"github.com/Anas-2357/CodeSage/providers/openai"
)

// EmbeddingProvider defines the interface all embedding backends must satisfy.
type EmbeddingProvider interface {
	// EmbedTexts turns a batch of texts into embedding vectors, one per
	// input, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Close frees any resources held by the provider.
	Close()
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config openai.Config) (EmbeddingProvider, error) {
	return openai.NewProvider(config)
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, config gemini.Config) (EmbeddingProvider, error) {
	return gemini.NewProvider(ctx, config)
}
