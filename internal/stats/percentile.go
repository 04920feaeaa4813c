// Package stats computes summary statistics over integer samples.
package stats

import (
	"math"
	"slices"
)

// Distribution summarizes a sample as max, 95th percentile and mean.
type Distribution struct {
	Max int     `json:"max"`
	P95 int     `json:"p95"`
	Avg float64 `json:"avg"`
}

// Percentile returns the nearest-rank p-th percentile of data, p in (0, 1].
// The sorted index is ceil(p*n)-1 clamped to [0, n-1]; no interpolation.
// Empty input yields 0. data is not modified.
func Percentile(data []int, p float64) int {
	n := len(data)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	idx := int(math.Ceil(p*float64(n))) - 1
	idx = max(0, min(idx, n-1))
	return sorted[idx]
}

// Average returns the arithmetic mean, or 0 for empty input.
func Average(data []int) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	return sum / float64(len(data))
}

// Max returns the largest value, or 0 for empty input.
func Max(data []int) int {
	if len(data) == 0 {
		return 0
	}
	return slices.Max(data)
}

// Summarize builds a Distribution for data.
func Summarize(data []int) Distribution {
	return Distribution{
		Max: Max(data),
		P95: Percentile(data, 0.95),
		Avg: Average(data),
	}
}
