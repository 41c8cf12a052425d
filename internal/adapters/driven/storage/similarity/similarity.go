// Package similarity ranks stored vectors against a query vector.
// Used by the stores that compute distance in process (sqlite, memory).
package similarity

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Vectors of different length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Scored is one candidate with its score.
type Scored[T any] struct {
	Item  T
	Score float64
}

// TopK scores every candidate against query and returns the k best,
// highest first. Ties keep candidate order.
func TopK[T any](query []float32, candidates []T, vector func(T) []float32, k int) []Scored[T] {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]Scored[T], len(candidates))
	for i, c := range candidates {
		scored[i] = Scored[T]{Item: c, Score: Cosine(query, vector(c))}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
