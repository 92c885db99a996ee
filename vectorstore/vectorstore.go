// Package vectorstore defines the namespaced vector index contract the
// ingestion pipeline persists into.
package vectorstore

import "context"

// Metadata is the per-record payload stored alongside an embedding.
type Metadata struct {
	FilePath  string `json:"filePath"`
	Chunk     string `json:"chunk"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	RepoURL   string `json:"repoUrl"`
}

// Record is the persisted form of an embedded chunk.
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match is a query result with its similarity score.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Store is a namespaced vector index. Namespaces isolate one ingestion run's
// vectors from every other run sharing the index.
type Store interface {
	// Upsert writes records into the namespace, replacing records with
	// matching ids.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to topK records from the namespace ranked by
	// similarity to vector, best first.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)

	// DeleteNamespace removes every record in the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Ping reports whether the index is reachable and ready.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
