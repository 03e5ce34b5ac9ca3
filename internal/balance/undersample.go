package balance

import (
	"math/rand"
	"sort"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// undersample randomly reduces every class larger than target down to target.
// Kept rows stay in their original order.
func undersample(ds models.Dataset, target int, rng *rand.Rand) (models.Dataset, int) {
	groups := ds.IndicesByClass()
	keep := make([]int, 0, ds.Len())
	for _, class := range ds.Classes() {
		members := groups[class]
		if len(members) <= target {
			keep = append(keep, members...)
			continue
		}
		for _, p := range rng.Perm(len(members))[:target] {
			keep = append(keep, members[p])
		}
	}
	sort.Ints(keep)
	return ds.Subset(keep), ds.Len() - len(keep)
}

func minorityCount(groups map[string][]int) int {
	minimum := -1
	for _, members := range groups {
		if minimum < 0 || len(members) < minimum {
			minimum = len(members)
		}
	}
	if minimum < 0 {
		return 0
	}
	return minimum
}

func meanCount(groups map[string][]int) int {
	if len(groups) == 0 {
		return 0
	}
	total := 0
	for _, members := range groups {
		total += len(members)
	}
	return (total + len(groups)/2) / len(groups)
}
