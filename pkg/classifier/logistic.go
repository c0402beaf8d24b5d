package classifier

import (
	"fmt"
	"math"

	"github.com/Kerremmarket/credit/pkg/models"
)

// LogisticModel is a binary logistic regression trained with batch
// gradient descent. Inputs are standardized internally during training;
// the stored coefficients are folded back to raw feature space, so
// z = sum(coef*x) + intercept holds for unscaled rows.
type LogisticModel struct {
	Coefs        []float64 `json:"coefficients"`
	Bias         float64   `json:"intercept"`
	Means        []float64 `json:"feature_means"`
	Names        []string  `json:"feature_names"`
	NumFeatures  int       `json:"num_features"`
	LearningRate float64   `json:"learning_rate"`
	Iterations   int       `json:"iterations"`
}

// NewLogisticModel creates a logistic model with default training
// hyperparameters where none are given.
func NewLogisticModel(learningRate float64, iterations int) *LogisticModel {
	if learningRate <= 0 {
		learningRate = 0.1
	}
	if iterations <= 0 {
		iterations = 500
	}

	return &LogisticModel{
		LearningRate: learningRate,
		Iterations:   iterations,
	}
}

// Train fits the model. NaN cells are imputed with column means, and
// the means are kept for predict-time imputation.
func (lm *LogisticModel) Train(X [][]float64, y []int, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	lm.Names = featureNames
	lm.NumFeatures = len(X[0])
	lm.Means = columnMeans(X)

	stds := columnStds(X, lm.Means)

	n := len(X)
	scaled := make([][]float64, n)
	for i, row := range X {
		s := make([]float64, lm.NumFeatures)
		for j, v := range row {
			if math.IsNaN(v) {
				v = lm.Means[j]
			}
			s[j] = (v - lm.Means[j]) / stds[j]
		}
		scaled[i] = s
	}

	weights := make([]float64, lm.NumFeatures)
	bias := 0.0

	for iter := 0; iter < lm.Iterations; iter++ {
		gradW := make([]float64, lm.NumFeatures)
		gradB := 0.0

		for i, row := range scaled {
			z := bias
			for j, v := range row {
				z += weights[j] * v
			}
			err := sigmoid(z) - float64(y[i])
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
		}

		for j := range weights {
			weights[j] -= lm.LearningRate * gradW[j] / float64(n)
		}
		bias -= lm.LearningRate * gradB / float64(n)
	}

	// Fold the standardization into the coefficients so predictions run
	// on raw feature values.
	lm.Coefs = make([]float64, lm.NumFeatures)
	lm.Bias = bias
	for j := range weights {
		lm.Coefs[j] = weights[j] / stds[j]
		lm.Bias -= weights[j] * lm.Means[j] / stds[j]
	}

	return nil
}

// Family returns the model's family.
func (lm *LogisticModel) Family() models.ModelFamily {
	return models.FamilyLogistic
}

// FeatureNames returns the feature order the model was trained on.
func (lm *LogisticModel) FeatureNames() []string {
	return lm.Names
}

// PredictProba returns the sigmoid of the linear margin.
func (lm *LogisticModel) PredictProba(x []float64) (float64, error) {
	z, err := lm.Margin(x)
	if err != nil {
		return 0, err
	}
	return sigmoid(z), nil
}

// Margin returns the raw linear output z = sum(coef*x) + intercept.
// NaN inputs are imputed with training means.
func (lm *LogisticModel) Margin(x []float64) (float64, error) {
	if lm.Coefs == nil {
		return 0, models.ErrNotTrained
	}
	if len(x) != lm.NumFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", lm.NumFeatures, len(x))
	}

	z := lm.Bias
	for j, v := range x {
		if math.IsNaN(v) {
			v = lm.Means[j]
		}
		z += lm.Coefs[j] * v
	}
	return z, nil
}

// Coefficients returns the per-feature weights in raw feature space.
func (lm *LogisticModel) Coefficients() []float64 {
	return lm.Coefs
}

// Intercept returns the bias term in raw feature space.
func (lm *LogisticModel) Intercept() float64 {
	return lm.Bias
}

// Impute replaces NaN cells with training means.
func (lm *LogisticModel) Impute(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) && j < len(lm.Means) {
			v = lm.Means[j]
		}
		out[j] = v
	}
	return out
}

// FeatureImportance returns normalized absolute coefficients.
func (lm *LogisticModel) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64)
	total := 0.0
	for _, c := range lm.Coefs {
		total += math.Abs(c)
	}
	for j, name := range lm.Names {
		if total > 0 {
			importance[name] = math.Abs(lm.Coefs[j]) / total
		} else {
			importance[name] = 0.0
		}
	}
	return importance
}

// columnMeans computes per-column means, ignoring NaN cells.
func columnMeans(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	means := make([]float64, len(X[0]))
	for j := range means {
		sum, count := 0.0, 0
		for _, row := range X {
			if !math.IsNaN(row[j]) {
				sum += row[j]
				count++
			}
		}
		if count > 0 {
			means[j] = sum / float64(count)
		}
	}
	return means
}

// columnStds computes per-column standard deviations, floored at a
// small epsilon so constant columns do not divide by zero.
func columnStds(X [][]float64, means []float64) []float64 {
	stds := make([]float64, len(means))
	for j := range stds {
		sum, count := 0.0, 0
		for _, row := range X {
			if !math.IsNaN(row[j]) {
				diff := row[j] - means[j]
				sum += diff * diff
				count++
			}
		}
		if count > 0 {
			stds[j] = math.Sqrt(sum / float64(count))
		}
		if stds[j] < 1e-9 {
			stds[j] = 1.0
		}
	}
	return stds
}
