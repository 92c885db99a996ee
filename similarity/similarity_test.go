package similarity

import (
	"math"
	"testing"
)

func TestSimilarityFunctions(t *testing.T) {
	vec1 := []float32{1, 0, 0}
	vec2 := []float32{0, 1, 0}
	vec3 := []float32{1, 0, 0} // Same as vec1

	t.Run("Cosine", func(t *testing.T) {
		// Orthogonal vectors score 0
		if sim := Cosine(vec1, vec2); sim != 0 {
			t.Errorf("Expected 0, got %f", sim)
		}

		// Identical vectors score 1
		if sim := Cosine(vec1, vec3); math.Abs(float64(sim-1)) > 0.001 {
			t.Errorf("Expected 1, got %f", sim)
		}

		// Empty vectors score 0
		if sim := Cosine([]float32{}, []float32{}); sim != 0 {
			t.Errorf("Expected 0 for empty vectors, got %f", sim)
		}

		// Mismatched lengths score 0
		if sim := Cosine(vec1, []float32{1, 0}); sim != 0 {
			t.Errorf("Expected 0 for different length vectors, got %f", sim)
		}

		// Magnitude does not change the score
		if sim := Cosine([]float32{2, 0, 0}, vec1); math.Abs(float64(sim-1)) > 0.001 {
			t.Errorf("Expected 1 for scaled vector, got %f", sim)
		}
	})

	t.Run("DotProduct", func(t *testing.T) {
		if sim := DotProduct(vec1, vec2); sim != 0 {
			t.Errorf("Expected 0, got %f", sim)
		}

		if sim := DotProduct([]float32{2, 3, 4}, []float32{1, 1, 1}); sim != 9 {
			t.Errorf("Expected 9, got %f", sim)
		}

		if sim := DotProduct([]float32{}, []float32{}); sim != 0 {
			t.Errorf("Expected 0 for empty vectors, got %f", sim)
		}
	})
}
