package models

import (
	"errors"
	"fmt"
)

// ModelFamily identifies the structural family of a trained classifier.
type ModelFamily string

const (
	FamilyLogistic         ModelFamily = "logistic"          // linear model
	FamilyRandomForest     ModelFamily = "random_forest"     // bagging tree ensemble
	FamilyGradientBoosting ModelFamily = "gradient_boosting" // boosting tree ensemble
	FamilyNeuralNetwork    ModelFamily = "neural_network"    // feed-forward network
)

// AllFamilies lists every supported model family.
var AllFamilies = []ModelFamily{
	FamilyLogistic,
	FamilyRandomForest,
	FamilyGradientBoosting,
	FamilyNeuralNetwork,
}

// Valid reports whether the family is one of the supported families.
func (f ModelFamily) Valid() bool {
	for _, known := range AllFamilies {
		if f == known {
			return true
		}
	}
	return false
}

// IsTreeEnsemble reports whether the family is backed by decision trees.
func (f ModelFamily) IsTreeEnsemble() bool {
	return f == FamilyRandomForest || f == FamilyGradientBoosting
}

var (
	// ErrUnsupportedFamily is returned when an operation has no
	// implementation for the requested model family. This indicates a
	// caller bug and is surfaced rather than swallowed.
	ErrUnsupportedFamily = errors.New("unsupported model family")

	// ErrNotTrained is returned when no trained model exists for the
	// requested family.
	ErrNotTrained = errors.New("model not trained")
)

// UnsupportedFamilyError wraps ErrUnsupportedFamily with the offending
// family and operation name.
func UnsupportedFamilyError(op string, family ModelFamily) error {
	return fmt.Errorf("%s: %w: %s", op, ErrUnsupportedFamily, family)
}
