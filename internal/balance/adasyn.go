package balance

import (
	"math"
	"math/rand"
	"sort"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// oversampleADASYN is oversampleSMOTE with the per-sample synthetic count
// weighted by how many of the sample's k nearest neighbours (over the whole
// dataset) belong to another class. Samples near the boundary get more rows.
func oversampleADASYN(ds models.Dataset, k int, targetRatio float64, rng *rand.Rand) (models.Dataset, int, error) {
	groups := ds.IndicesByClass()
	target := oversampleTarget(groups, targetRatio)

	all := make([]int, ds.Len())
	for i := range all {
		all[i] = i
	}

	out := ds.Clone()
	synthetic := 0
	for _, class := range ds.Classes() {
		members := groups[class]
		need := target - len(members)
		if need <= 0 {
			continue
		}
		if err := checkNeighbors(class, len(members), k); err != nil {
			return models.Dataset{}, 0, err
		}

		weights := make([]float64, len(members))
		for i, idx := range members {
			other := 0
			for _, n := range kNearest(ds.Features, idx, all, k) {
				if ds.Labels[n] != class {
					other++
				}
			}
			weights[i] = float64(other) / float64(k)
		}

		rows := interpolate(ds.Features, members, allocate(need, weights), k, rng)
		for _, row := range rows {
			out.Append(row, class)
		}
		synthetic += len(rows)
	}
	return out, synthetic, nil
}

// allocate splits total across weights using largest-remainder rounding so
// that the parts always sum to total. All-zero weights are treated as uniform.
func allocate(total int, weights []float64) []int {
	parts := make([]int, len(weights))
	if len(weights) == 0 || total <= 0 {
		return parts
	}

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		weights = make([]float64, len(weights))
		for i := range weights {
			weights[i] = 1
		}
		sum = float64(len(weights))
	}

	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := w / sum * float64(total)
		whole := math.Floor(exact)
		parts[i] = int(whole)
		assigned += parts[i]
		rems[i] = remainder{index: i, frac: exact - whole}
	}
	sort.SliceStable(rems, func(i, j int) bool {
		return rems[i].frac > rems[j].frac
	})
	for i := 0; assigned < total; i++ {
		parts[rems[i%len(rems)].index]++
		assigned++
	}
	return parts
}
