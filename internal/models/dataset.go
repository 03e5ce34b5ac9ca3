package models

import (
	"fmt"
	"sort"
)

// Dataset is an ordered set of feature vectors paired with class labels.
type Dataset struct {
	FeatureNames []string
	Features     [][]float64
	Labels       []string
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Labels)
}

// Width returns the number of feature columns.
func (d Dataset) Width() int {
	if len(d.FeatureNames) > 0 {
		return len(d.FeatureNames)
	}
	if len(d.Features) > 0 {
		return len(d.Features[0])
	}
	return 0
}

// Validate checks that features and labels line up and rows are rectangular.
func (d Dataset) Validate() error {
	if len(d.Features) != len(d.Labels) {
		return fmt.Errorf("%w: %d feature rows for %d labels", ErrInvalidDataset, len(d.Features), len(d.Labels))
	}
	width := d.Width()
	for i, row := range d.Features {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidDataset, i, len(row), width)
		}
	}
	return nil
}

// Subset returns a copy of the rows at the given indices, in the given order.
func (d Dataset) Subset(indices []int) Dataset {
	out := Dataset{
		FeatureNames: append([]string(nil), d.FeatureNames...),
		Features:     make([][]float64, 0, len(indices)),
		Labels:       make([]string, 0, len(indices)),
	}
	for _, idx := range indices {
		out.Features = append(out.Features, append([]float64(nil), d.Features[idx]...))
		out.Labels = append(out.Labels, d.Labels[idx])
	}
	return out
}

// Append adds a row. The slice is stored as-is.
func (d *Dataset) Append(features []float64, label string) {
	d.Features = append(d.Features, features)
	d.Labels = append(d.Labels, label)
}

// Clone returns a deep copy.
func (d Dataset) Clone() Dataset {
	indices := make([]int, d.Len())
	for i := range indices {
		indices[i] = i
	}
	return d.Subset(indices)
}

// IndicesByClass groups row indices by label, preserving row order.
func (d Dataset) IndicesByClass() map[string][]int {
	groups := make(map[string][]int)
	for i, label := range d.Labels {
		groups[label] = append(groups[label], i)
	}
	return groups
}

// Classes returns the distinct labels in sorted order.
func (d Dataset) Classes() []string {
	seen := make(map[string]struct{})
	for _, label := range d.Labels {
		seen[label] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)
	return classes
}

// SplitResult is the output of a stratified split where only the training
// partition has been balanced.
type SplitResult struct {
	Train           Dataset
	Test            Dataset
	TrainUnbalanced int
	Report          BalancingReport
	Note            string
}
