// Package search answers natural-language queries against an ingested
// repository namespace.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Anas-2357/CodeSage/providers"
	"github.com/Anas-2357/CodeSage/vectorstore"
)

// DefaultTopK is the number of matches returned when the caller does not ask
// for a specific count.
const DefaultTopK = 5

var ErrEmptyQuery = errors.New("search: query text is empty")

// Result is one retrieved chunk with its provenance.
type Result struct {
	Score     float32 `json:"score"`
	FilePath  string  `json:"filePath"`
	Chunk     string  `json:"chunk"`
	StartLine int     `json:"startLine"`
	EndLine   int     `json:"endLine"`
	RepoURL   string  `json:"repoUrl"`
}

// Searcher embeds query text with the same provider used at ingestion time
// and ranks stored chunks against it.
type Searcher struct {
	provider providers.EmbeddingProvider
	store    vectorstore.Store
	logger   *slog.Logger
}

func New(provider providers.EmbeddingProvider, store vectorstore.Store, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{provider: provider, store: store, logger: logger}
}

// Search embeds query and returns the topK closest chunks in namespace,
// best first. topK <= 0 falls back to DefaultTopK.
func (s *Searcher) Search(ctx context.Context, namespace, query string, topK int) ([]Result, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := s.provider.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors for one input", len(vectors))
	}

	matches, err := s.store.Query(ctx, namespace, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("querying namespace %s: %w", namespace, err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			Score:     m.Score,
			FilePath:  m.Metadata.FilePath,
			Chunk:     m.Metadata.Chunk,
			StartLine: m.Metadata.StartLine,
			EndLine:   m.Metadata.EndLine,
			RepoURL:   m.Metadata.RepoURL,
		})
	}
	s.logger.Debug("search.done", "namespace", namespace, "topK", topK, "results", len(results))
	return results, nil
}
