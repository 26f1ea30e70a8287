// Package stats provides the ranking and ratio primitives shared by the
// detectors and the aggregator. Every function is pure and NaN-free.
package stats

import (
	"math"
	"sort"
)

// PercentileRank returns each value's rank within values as a fraction in
// (0, 1]. Ties receive the average of the positions they span, so the
// largest distinct value always ranks 1.0.
func PercentileRank(values []float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	for start := 0; start < n; {
		end := start + 1
		for end < n && values[idx[end]] == values[idx[start]] {
			end++
		}
		// positions start+1 .. end (1-based)
		avg := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			out[idx[k]] = avg / float64(n)
		}
		start = end
	}
	return out
}

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks. ok is false for an empty input.
func Quantile(values []float64, q float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, true
}

// SafeRatio divides num by den, returning 0 when den is zero
func SafeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Mean returns the arithmetic mean, or 0 for an empty input
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Sum returns the sum of values
func Sum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// MinRank ranks values descending with the "minimum" rule: a value's rank
// is one plus the number of values strictly greater than it.
func MinRank(values []float64) []int {
	n := len(values)
	out := make([]int, n)
	if n == 0 {
		return out
	}
	sorted := append([]float64(nil), values...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	for i, v := range values {
		// first index holding a value <= v
		out[i] = sort.Search(n, func(j int) bool { return sorted[j] <= v }) + 1
	}
	return out
}

// Round1 rounds to one decimal place, halves to even
func Round1(x float64) float64 {
	return math.RoundToEven(x*10) / 10
}
