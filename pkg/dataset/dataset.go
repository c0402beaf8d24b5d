// Package dataset loads tabular training data and provides the sampling
// primitives the explanation engines rely on: feature selection,
// deterministic subsampling, train/test splitting, and column medians
// for imputation.
package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Dataset is a feature matrix with an optional binary target column.
// Missing or unparseable cells are stored as NaN and imputed downstream.
type Dataset struct {
	Features []string
	X        [][]float64
	Y        []int
}

// LoadCSV reads a CSV file with a header row into a Dataset. The target
// column is split out of the feature matrix; pass an empty target for
// unlabeled data.
func LoadCSV(path, target string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}

	header := records[0]
	targetIdx := -1
	features := make([]string, 0, len(header))
	for i, name := range header {
		if name == target && target != "" {
			targetIdx = i
			continue
		}
		features = append(features, name)
	}
	if target != "" && targetIdx < 0 {
		return nil, fmt.Errorf("target column %q not found in %s", target, path)
	}

	ds := &Dataset{Features: features}
	for _, record := range records[1:] {
		if len(record) != len(header) {
			continue
		}
		row := make([]float64, 0, len(features))
		for i, cell := range record {
			if i == targetIdx {
				continue
			}
			row = append(row, parseCell(cell))
		}
		ds.X = append(ds.X, row)
		if targetIdx >= 0 {
			label, err := strconv.Atoi(record[targetIdx])
			if err != nil {
				label = 0
			}
			ds.Y = append(ds.Y, label)
		}
	}

	return ds, nil
}

// parseCell converts a CSV cell to a float, NaN when empty or malformed.
func parseCell(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.X)
}

// FeatureIndex returns the column index of a feature name.
func (d *Dataset) FeatureIndex(name string) (int, bool) {
	for i, f := range d.Features {
		if f == name {
			return i, true
		}
	}
	return -1, false
}

// Select returns a dataset restricted to the named feature columns, in
// the given order.
func (d *Dataset) Select(features []string) (*Dataset, error) {
	indices := make([]int, len(features))
	for i, name := range features {
		idx, ok := d.FeatureIndex(name)
		if !ok {
			return nil, fmt.Errorf("unknown feature: %s", name)
		}
		indices[i] = idx
	}

	out := &Dataset{Features: append([]string(nil), features...), Y: d.Y}
	out.X = make([][]float64, len(d.X))
	for r, row := range d.X {
		selected := make([]float64, len(indices))
		for i, idx := range indices {
			selected[i] = row[idx]
		}
		out.X[r] = selected
	}
	return out, nil
}

// Subsample returns up to n rows drawn without replacement using a
// seeded generator, so repeated calls with the same seed see the same
// sample. Datasets at or under n are returned unchanged.
func (d *Dataset) Subsample(n int, seed int64) *Dataset {
	if d.Len() <= n {
		return d
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(d.Len())[:n]
	sort.Ints(perm)

	out := &Dataset{Features: d.Features}
	out.X = make([][]float64, 0, n)
	if d.Y != nil {
		out.Y = make([]int, 0, n)
	}
	for _, idx := range perm {
		out.X = append(out.X, d.X[idx])
		if d.Y != nil {
			out.Y = append(out.Y, d.Y[idx])
		}
	}
	return out
}

// Split partitions the dataset into train and test sets after a seeded
// shuffle.
func (d *Dataset) Split(testFraction float64, seed int64) (*Dataset, *Dataset) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(d.Len())

	testSize := int(float64(d.Len()) * testFraction)
	if testSize < 1 && d.Len() > 1 {
		testSize = 1
	}

	train := &Dataset{Features: d.Features}
	test := &Dataset{Features: d.Features}
	for i, idx := range perm {
		if i < testSize {
			test.X = append(test.X, d.X[idx])
			if d.Y != nil {
				test.Y = append(test.Y, d.Y[idx])
			}
		} else {
			train.X = append(train.X, d.X[idx])
			if d.Y != nil {
				train.Y = append(train.Y, d.Y[idx])
			}
		}
	}
	return train, test
}

// Column returns one feature column as a slice.
func (d *Dataset) Column(idx int) []float64 {
	col := make([]float64, d.Len())
	for r, row := range d.X {
		col[r] = row[idx]
	}
	return col
}

// Medians computes per-column medians, ignoring NaN cells. A column with
// no finite values gets median 0.
func (d *Dataset) Medians() []float64 {
	medians := make([]float64, len(d.Features))
	for i := range d.Features {
		finite := make([]float64, 0, d.Len())
		for _, row := range d.X {
			if !math.IsNaN(row[i]) {
				finite = append(finite, row[i])
			}
		}
		if len(finite) == 0 {
			medians[i] = 0
			continue
		}
		sort.Float64s(finite)
		medians[i] = stat.Quantile(0.5, stat.Empirical, finite, nil)
	}
	return medians
}

// RowToVector projects a named row onto the feature order, NaN for
// features the row does not carry.
func RowToVector(features []string, row map[string]float64) []float64 {
	vec := make([]float64, len(features))
	for i, name := range features {
		v, ok := row[name]
		if !ok {
			v = math.NaN()
		}
		vec[i] = v
	}
	return vec
}
