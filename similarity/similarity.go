// Package similarity provides similarity functions for comparing embedding
// vectors.
package similarity

// Func computes similarity between two embedding vectors. Higher values
// indicate greater similarity.
type Func func(a, b []float32) float32
