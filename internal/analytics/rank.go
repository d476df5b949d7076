// Package analytics implements the statistical evaluation engine: information
// coefficients, information ratios, decay curves, cross-sectional regression
// and factor covariance. Every operation is read-only over its input panels;
// per-date gaps are absorbed as absence, never as zero.
package analytics

import (
	"math"
	"sort"
)

// averageRanks assigns 1-based ranks to values, breaking ties by average
// rank. The output is aligned with the input slice.
func averageRanks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Positions i..j hold equal values; each gets the average rank.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// mean returns the arithmetic mean; 0 for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd returns the Bessel-corrected standard deviation. The boolean is
// false when fewer than 2 observations are available.
func sampleStd(xs []float64) (float64, bool) {
	n := len(xs)
	if n < 2 {
		return 0, false
	}
	m := mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1)), true
}
