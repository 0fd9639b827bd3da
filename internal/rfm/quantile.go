package rfm

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// bins is the number of quantile buckets every metric is cut into.
const bins = 5

// quantileEdges returns the bins+1 cut points of values at probabilities
// 0, 1/bins, ..., 1 using linear interpolation between closest ranks.
func quantileEdges(values []float64) []float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	last := float64(len(sorted) - 1)
	edges := make([]float64, bins+1)
	for i := range edges {
		pos := float64(i) / bins * last
		lo := math.Floor(pos)
		hi := math.Ceil(pos)
		frac := pos - lo
		edges[i] = sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*frac
	}
	return edges
}

// qcut assigns each value to one of bins equal-population buckets and
// returns labels[bucket] for it. Buckets are right-closed, with the lowest
// edge included in the first bucket. It fails rather than produce fewer
// than bins populated buckets.
func qcut(values []float64, labels [bins]int) ([]int, error) {
	if len(values) < bins {
		return nil, fmt.Errorf("need at least %d customers to form %d bins, have %d", bins, bins, len(values))
	}

	edges := quantileEdges(values)
	for i := 1; i < len(edges); i++ {
		if edges[i] == edges[i-1] {
			return nil, fmt.Errorf("bin edges must be unique, edge %g repeats", edges[i])
		}
	}

	var counts [bins]int
	out := make([]int, len(values))
	for i, v := range values {
		idx := sort.SearchFloat64s(edges, v)
		if idx == 0 {
			idx = 1
		}
		bucket := idx - 1
		counts[bucket]++
		out[i] = labels[bucket]
	}

	for bucket, n := range counts {
		if n == 0 {
			return nil, fmt.Errorf("bin %d of %d is empty", bucket+1, bins)
		}
	}
	return out, nil
}

// rankFirst ranks values from 1 to n in ascending order, breaking ties by
// position so that equal values receive distinct ranks.
func rankFirst(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case values[a] < values[b]:
			return -1
		case values[a] > values[b]:
			return 1
		}
		return 0
	})

	ranks := make([]float64, len(values))
	for rank, i := range order {
		ranks[i] = float64(rank + 1)
	}
	return ranks
}
