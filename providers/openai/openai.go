// Package openai embeds text with OpenAI's embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	DefaultModel = openai.EmbeddingModelTextEmbedding3Small
)

// modelInputLimits maps embedding models to their maximum input length in
// tokens.
var modelInputLimits = map[string]int{
	openai.EmbeddingModelTextEmbedding3Small: 8191,
	openai.EmbeddingModelTextEmbedding3Large: 8191,
	openai.EmbeddingModelTextEmbeddingAda002: 8191,
}

// Provider uses OpenAI's API to embed text.
type Provider struct {
	client *openai.Client
	model  string
}

// Config provides configuration options for the OpenAI embedding provider
type Config struct {
	APIKey  string
	BaseURL string
	OrgID   string
	Model   string
}

// NewProvider creates an embedding provider for OpenAI.
func NewProvider(config Config) (*Provider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OpenAI API key is required")
		}
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.OrgID != "" {
		opts = append(opts, option.WithOrganization(config.OrgID))
	}

	client := openai.NewClient(opts...)
	return &Provider{client: &client, model: model}, nil
}

// EmbedTexts sends the embedding request to OpenAI and returns one vector per
// input text, in input order.
func (p *Provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// OpenAI returns []float64; convert to []float32
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// MaxInputTokens returns the maximum accepted input length for the
// provider's model, in tokens.
func (p *Provider) MaxInputTokens() int {
	if limit, ok := modelInputLimits[p.model]; ok {
		return limit
	}
	return 8191 // Safe default shared by current OpenAI embedding models
}

func (p *Provider) Close() {}
