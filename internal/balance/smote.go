package balance

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/utils"
)

// oversampleSMOTE raises every class to ceil(majority/targetRatio) rows by
// interpolating between each member and one of its k nearest same-class
// neighbours. Synthetic rows are appended after the original rows.
func oversampleSMOTE(ds models.Dataset, k int, targetRatio float64, rng *rand.Rand) (models.Dataset, int, error) {
	groups := ds.IndicesByClass()
	target := oversampleTarget(groups, targetRatio)

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
		rows := interpolate(ds.Features, members, spread(need, len(members), rng), k, rng)
		for _, row := range rows {
			out.Append(row, class)
		}
		synthetic += len(rows)
	}
	return out, synthetic, nil
}

func oversampleTarget(groups map[string][]int, targetRatio float64) int {
	if targetRatio < 1 {
		targetRatio = 1
	}
	majority := 0
	for _, members := range groups {
		if len(members) > majority {
			majority = len(members)
		}
	}
	return int(math.Ceil(float64(majority) / targetRatio))
}

func checkNeighbors(class string, size, k int) error {
	if size-1 < k {
		return utils.NewAppError(
			"balance.neighbors",
			fmt.Sprintf("class %q has %d samples, need at least %d for k=%d", class, size, k+1, k),
			models.ErrInsufficientSamples,
		)
	}
	return nil
}

// spread divides total synthetic rows across n members as evenly as possible;
// the members receiving the remainder are chosen at random.
func spread(total, n int, rng *rand.Rand) []int {
	per := make([]int, n)
	if n == 0 {
		return per
	}
	base, extra := total/n, total%n
	for i := range per {
		per[i] = base
	}
	for _, idx := range rng.Perm(n)[:extra] {
		per[idx]++
	}
	return per
}

// interpolate generates perSample[i] rows for members[i], each on the segment
// between the member and a random one of its k nearest same-class neighbours.
func interpolate(features [][]float64, members []int, perSample []int, k int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, 0)
	for i, idx := range members {
		if perSample[i] == 0 {
			continue
		}
		neighbors := kNearest(features, idx, members, k)
		base := features[idx]
		for j := 0; j < perSample[i]; j++ {
			other := features[neighbors[rng.Intn(len(neighbors))]]
			gap := rng.Float64()
			row := make([]float64, len(base))
			for d := range base {
				row[d] = base[d] + gap*(other[d]-base[d])
			}
			out = append(out, row)
		}
	}
	return out
}
