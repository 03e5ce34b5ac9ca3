package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// Options controls how a CSV file maps to a Dataset.
type Options struct {
	// Target names the label column.
	Target string
	// Drop lists columns to ignore (identifiers, free text).
	Drop []string
}

// Read parses CSV with a header row. Every column other than the target and
// dropped columns must be numeric.
func Read(r io.Reader, opts Options) (models.Dataset, error) {
	if opts.Target == "" {
		return models.Dataset{}, errors.New("dataset: target column required")
	}
	rows, err := gocsv.DefaultCSVReader(r).ReadAll()
	if err != nil {
		return models.Dataset{}, fmt.Errorf("dataset: read csv: %w", err)
	}
	if len(rows) == 0 {
		return models.Dataset{}, models.ErrEmptyDataset
	}

	header := rows[0]
	drop := make(map[string]struct{}, len(opts.Drop))
	for _, name := range opts.Drop {
		drop[strings.TrimSpace(name)] = struct{}{}
	}

	targetIdx := -1
	featureIdx := make([]int, 0, len(header))
	ds := models.Dataset{}
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch {
		case name == opts.Target:
			targetIdx = i
		case isDropped(drop, name):
		default:
			featureIdx = append(featureIdx, i)
			ds.FeatureNames = append(ds.FeatureNames, name)
		}
	}
	if targetIdx < 0 {
		return models.Dataset{}, fmt.Errorf("%w: target column %q not found", models.ErrInvalidDataset, opts.Target)
	}

	for lineNo, row := range rows[1:] {
		if len(row) != len(header) {
			return models.Dataset{}, fmt.Errorf("%w: line %d has %d fields, want %d", models.ErrInvalidDataset, lineNo+2, len(row), len(header))
		}
		features := make([]float64, len(featureIdx))
		for j, col := range featureIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return models.Dataset{}, fmt.Errorf("%w: line %d column %q: %v", models.ErrInvalidDataset, lineNo+2, header[col], err)
			}
			features[j] = v
		}
		ds.Append(features, strings.TrimSpace(row[targetIdx]))
	}
	return ds, nil
}

// Write emits ds as CSV with the feature columns followed by the target.
func Write(w io.Writer, ds models.Dataset, target string) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if target == "" {
		target = "label"
	}
	out := gocsv.DefaultCSVWriter(w)

	header := append(append([]string(nil), ds.FeatureNames...), target)
	if err := out.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, row := range ds.Features {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = ds.Labels[i]
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// ReadFile opens path and calls Read.
func ReadFile(path string, opts Options) (models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Dataset{}, err
	}
	defer f.Close()
	return Read(f, opts)
}

// WriteFile creates path and calls Write.
func WriteFile(path string, ds models.Dataset, target string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, ds, target); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func isDropped(drop map[string]struct{}, name string) bool {
	_, ok := drop[name]
	return ok
}
