package balance

import (
	"math"
	"math/rand"
	"sort"

	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/utils"
)

const splitNote = "test partition keeps the original class distribution"

// StratifiedSplit partitions ds so that each class contributes round(count*f)
// rows to test. Both partitions keep the original row order.
func StratifiedSplit(ds models.Dataset, testFraction float64, seed int64) (models.Dataset, models.Dataset, error) {
	if !(testFraction > 0 && testFraction < 1) {
		return models.Dataset{}, models.Dataset{}, models.ErrInvalidFraction
	}
	if err := ds.Validate(); err != nil {
		return models.Dataset{}, models.Dataset{}, utils.NewAppError("split", "invalid dataset", err)
	}
	if ds.Len() == 0 {
		return models.Dataset{}, models.Dataset{}, models.ErrEmptyDataset
	}

	rng := rand.New(rand.NewSource(seed))
	groups := ds.IndicesByClass()
	trainIdx := make([]int, 0, ds.Len())
	testIdx := make([]int, 0, ds.Len())
	for _, class := range ds.Classes() {
		members := append([]int(nil), groups[class]...)
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		nTest := int(math.Round(float64(len(members)) * testFraction))
		testIdx = append(testIdx, members[:nTest]...)
		trainIdx = append(trainIdx, members[nTest:]...)
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return ds.Subset(trainIdx), ds.Subset(testIdx), nil
}

// SplitAndBalance splits ds and balances only the training partition with b.
// The test partition is returned untouched.
func SplitAndBalance(ds models.Dataset, testFraction float64, b *Balancer) (models.SplitResult, error) {
	train, test, err := StratifiedSplit(ds, testFraction, b.Options().Seed)
	if err != nil {
		return models.SplitResult{}, err
	}

	balanced, report, err := b.Balance(train)
	if err != nil {
		return models.SplitResult{}, err
	}

	return models.SplitResult{
		Train:           balanced,
		Test:            test,
		TrainUnbalanced: train.Len(),
		Report:          report,
		Note:            splitNote,
	}, nil
}
