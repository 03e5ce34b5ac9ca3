package balance

import "sort"

type neighbor struct {
	index    int
	distance float64
}

// kNearest returns the k candidates closest to features[query] by squared
// Euclidean distance, excluding the query row itself. Ties are broken by row
// index so results are stable.
func kNearest(features [][]float64, query int, candidates []int, k int) []int {
	base := features[query]
	pool := make([]neighbor, 0, len(candidates))
	for _, idx := range candidates {
		if idx == query {
			continue
		}
		pool = append(pool, neighbor{index: idx, distance: squaredDistance(base, features[idx])})
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].distance == pool[j].distance {
			return pool[i].index < pool[j].index
		}
		return pool[i].distance < pool[j].distance
	})
	if len(pool) > k {
		pool = pool[:k]
	}
	out := make([]int, len(pool))
	for i, n := range pool {
		out[i] = n.index
	}
	return out
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
