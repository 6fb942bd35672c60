package forensics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// meanStd returns the population mean and standard deviation of x.
func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

// median returns the median of x without modifying it.
func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// shortfall is the relative distance of v below floor, in [0,1].
func shortfall(v, floor float64) float64 {
	if floor <= 0 || v >= floor {
		return 0
	}
	return (floor - v) / floor
}

// excess is the relative distance of v above bound, clamped to [0,1].
func excess(v, bound float64) float64 {
	if bound <= 0 || v <= bound {
		return 0
	}
	return math.Min(1, (v-bound)/bound)
}

// rollingEnds returns the last index of every span of span consecutive
// elements in a sequence of length n. A sequence shorter than span yields a
// single span covering all of it, as long as it has at least two elements.
func rollingEnds(n, span int) (int, []int) {
	span = max(2, min(span, n))
	if n < 2 {
		return span, nil
	}
	ends := make([]int, 0, n-span+1)
	for end := span - 1; end < n; end++ {
		ends = append(ends, end)
	}
	return span, ends
}
