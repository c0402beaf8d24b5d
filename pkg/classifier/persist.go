package classifier

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Kerremmarket/credit/pkg/models"
)

// SaveModel writes a trained model to a JSON file.
func SaveModel(m Model, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	return nil
}

// LoadModel reads a model of the given family from a JSON file.
func LoadModel(family models.ModelFamily, path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var m Model
	switch family {
	case models.FamilyLogistic:
		m = &LogisticModel{}
	case models.FamilyRandomForest:
		m = &RandomForest{}
	case models.FamilyGradientBoosting:
		m = &GradientBoosting{}
	case models.FamilyNeuralNetwork:
		m = &MLPModel{}
	default:
		return nil, models.UnsupportedFamilyError("load model", family)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	return m, nil
}

// TrainFamily trains a fresh model of the given family with default
// hyperparameters.
func TrainFamily(family models.ModelFamily, X [][]float64, y []int, featureNames []string, seed int64) (Model, error) {
	switch family {
	case models.FamilyLogistic:
		m := NewLogisticModel(0.1, 500)
		if err := m.Train(X, y, featureNames); err != nil {
			return nil, fmt.Errorf("failed to train logistic model: %w", err)
		}
		return m, nil
	case models.FamilyRandomForest:
		m := NewRandomForest(50, 5, seed)
		if err := m.Train(X, y, featureNames); err != nil {
			return nil, fmt.Errorf("failed to train random forest: %w", err)
		}
		return m, nil
	case models.FamilyGradientBoosting:
		m := NewGradientBoosting(50, 3, 0.1)
		if err := m.Train(X, y, featureNames); err != nil {
			return nil, fmt.Errorf("failed to train gradient boosting: %w", err)
		}
		return m, nil
	case models.FamilyNeuralNetwork:
		m := NewMLPModel([]int{16}, 50, seed)
		if err := m.Train(X, y, featureNames); err != nil {
			return nil, fmt.Errorf("failed to train neural network: %w", err)
		}
		return m, nil
	default:
		return nil, models.UnsupportedFamilyError("train", family)
	}
}
