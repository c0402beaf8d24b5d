package dataset

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "income,age,default\n50000,30,0\n20000,45,1\n,25,0\n")

	ds, err := LoadCSV(path, "default")
	if err != nil {
		t.Fatalf("Failed to load CSV: %v", err)
	}

	if !reflect.DeepEqual(ds.Features, []string{"income", "age"}) {
		t.Errorf("Expected features [income age], got %v", ds.Features)
	}
	if ds.Len() != 3 {
		t.Fatalf("Expected 3 rows, got %d", ds.Len())
	}
	if !reflect.DeepEqual(ds.Y, []int{0, 1, 0}) {
		t.Errorf("Expected targets [0 1 0], got %v", ds.Y)
	}
	if ds.X[0][0] != 50000 || ds.X[0][1] != 30 {
		t.Errorf("Unexpected first row: %v", ds.X[0])
	}
	if !math.IsNaN(ds.X[2][0]) {
		t.Errorf("Expected NaN for missing cell, got %v", ds.X[2][0])
	}
}

func TestLoadCSVMissingTarget(t *testing.T) {
	path := writeCSV(t, "a,b\n1,2\n")

	if _, err := LoadCSV(path, "default"); err == nil {
		t.Error("Expected error for missing target column")
	}
}

func TestSelect(t *testing.T) {
	ds := &Dataset{
		Features: []string{"a", "b", "c"},
		X:        [][]float64{{1, 2, 3}, {4, 5, 6}},
		Y:        []int{0, 1},
	}

	sub, err := ds.Select([]string{"c", "a"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !reflect.DeepEqual(sub.X[0], []float64{3, 1}) {
		t.Errorf("Expected [3 1], got %v", sub.X[0])
	}

	if _, err := ds.Select([]string{"missing"}); err == nil {
		t.Error("Expected error for unknown feature")
	}
}

func TestSubsampleDeterministic(t *testing.T) {
	ds := &Dataset{Features: []string{"a"}}
	for i := 0; i < 100; i++ {
		ds.X = append(ds.X, []float64{float64(i)})
		ds.Y = append(ds.Y, i%2)
	}

	s1 := ds.Subsample(10, 42)
	s2 := ds.Subsample(10, 42)
	if s1.Len() != 10 {
		t.Fatalf("Expected 10 rows, got %d", s1.Len())
	}
	if !reflect.DeepEqual(s1.X, s2.X) {
		t.Error("Same seed must produce the same sample")
	}

	s3 := ds.Subsample(10, 7)
	if reflect.DeepEqual(s1.X, s3.X) {
		t.Error("Different seeds should produce different samples")
	}

	small := ds.Subsample(200, 42)
	if small.Len() != 100 {
		t.Errorf("Subsample above size must return all rows, got %d", small.Len())
	}
}

func TestSplit(t *testing.T) {
	ds := &Dataset{Features: []string{"a"}}
	for i := 0; i < 10; i++ {
		ds.X = append(ds.X, []float64{float64(i)})
		ds.Y = append(ds.Y, i%2)
	}

	train, test := ds.Split(0.2, 42)
	if train.Len() != 8 || test.Len() != 2 {
		t.Errorf("Expected 8/2 split, got %d/%d", train.Len(), test.Len())
	}
	if len(train.Y) != 8 || len(test.Y) != 2 {
		t.Errorf("Targets must follow the split")
	}
}

func TestMedians(t *testing.T) {
	ds := &Dataset{
		Features: []string{"a", "b"},
		X: [][]float64{
			{1, math.NaN()},
			{3, math.NaN()},
			{5, math.NaN()},
		},
	}

	medians := ds.Medians()
	if medians[0] != 3 {
		t.Errorf("Expected median 3, got %v", medians[0])
	}
	if medians[1] != 0 {
		t.Errorf("All-NaN column must default to 0, got %v", medians[1])
	}
}

func TestRowToVector(t *testing.T) {
	vec := RowToVector([]string{"a", "b"}, map[string]float64{"a": 1.5})
	if vec[0] != 1.5 {
		t.Errorf("Expected 1.5, got %v", vec[0])
	}
	if !math.IsNaN(vec[1]) {
		t.Errorf("Missing feature must map to NaN, got %v", vec[1])
	}
}
