package utils

import (
	"fmt"
	"math"
)

// ErrDimension is returned when two vectors cannot be compared.
var ErrDimension = fmt.Errorf("vectors must have the same non-zero dimension")

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// CosineSimilarity returns the cosine of the angle between a and b.
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, ErrDimension
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return float32(dot(a, b) / (na * nb)), nil
}

// MaxMarginalRelevance picks up to k candidate indexes, trading relevance to
// query against similarity to what is already picked. lambda 1 is pure
// relevance, 0 pure diversity. Candidates with a mismatched dimension are
// never picked.
func MaxMarginalRelevance(query []float32, candidates [][]float32, k int, lambda float32) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	relevance := make([]float32, len(candidates))
	usable := make([]bool, len(candidates))
	for i, c := range candidates {
		sim, err := CosineSimilarity(query, c)
		if err != nil {
			continue
		}
		relevance[i] = sim
		usable[i] = true
	}

	var picked []int
	taken := make([]bool, len(candidates))
	for len(picked) < k {
		best, bestScore := -1, float32(math.Inf(-1))
		for i := range candidates {
			if taken[i] || !usable[i] {
				continue
			}
			var redundancy float32
			for _, j := range picked {
				if sim, err := CosineSimilarity(candidates[i], candidates[j]); err == nil && sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		taken[best] = true
		picked = append(picked, best)
	}
	return picked
}
