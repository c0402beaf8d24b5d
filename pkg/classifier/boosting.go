package classifier

import (
	"fmt"
	"math"

	"github.com/Kerremmarket/credit/pkg/models"
)

// GradientBoosting is a boosting ensemble of regression trees fit to
// logistic gradients. Stages accumulate in margin (log-odds) space; the
// predicted probability is the sigmoid of the final margin.
type GradientBoosting struct {
	Trees         []*DecisionTree `json:"trees"`
	NumTrees      int             `json:"num_trees"`
	MaxDepth      int             `json:"max_depth"`
	LearningRate  float64         `json:"learning_rate"`
	InitialMargin float64         `json:"initial_margin"`
	Names         []string        `json:"feature_names"`
	NumFeatures   int             `json:"num_features"`
}

// NewGradientBoosting creates a boosting ensemble with default
// hyperparameters where none are given.
func NewGradientBoosting(numTrees, maxDepth int, learningRate float64) *GradientBoosting {
	if numTrees <= 0 {
		numTrees = 50
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if learningRate <= 0 {
		learningRate = 0.1
	}

	return &GradientBoosting{
		NumTrees:     numTrees,
		MaxDepth:     maxDepth,
		LearningRate: learningRate,
	}
}

// Train fits the stages sequentially. The initial margin is the prior
// log odds of the positive class; each stage fits a regression tree to
// the current logistic residuals.
func (gb *GradientBoosting) Train(X [][]float64, y []int, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	gb.Names = featureNames
	gb.NumFeatures = len(X[0])

	positives := 0
	for _, label := range y {
		if label != 0 {
			positives++
		}
	}
	prior := float64(positives) / float64(len(y))
	prior = math.Min(math.Max(prior, 1e-6), 1-1e-6)
	gb.InitialMargin = math.Log(prior / (1 - prior))

	margins := make([]float64, len(X))
	for i := range margins {
		margins[i] = gb.InitialMargin
	}

	gb.Trees = make([]*DecisionTree, 0, gb.NumTrees)
	residuals := make([]float64, len(X))

	for stage := 0; stage < gb.NumTrees; stage++ {
		for i := range X {
			residuals[i] = float64(y[i]) - sigmoid(margins[i])
		}

		tree := NewDecisionTree(gb.MaxDepth, 2, 1)
		if err := tree.TrainRegression(X, residuals, featureNames); err != nil {
			return fmt.Errorf("stage %d training failed: %w", stage, err)
		}
		gb.Trees = append(gb.Trees, tree)

		for i := range X {
			delta, err := tree.PredictValue(X[i])
			if err != nil {
				return fmt.Errorf("stage %d prediction failed: %w", stage, err)
			}
			margins[i] += gb.LearningRate * delta
		}
	}

	return nil
}

// Family returns the ensemble's model family.
func (gb *GradientBoosting) Family() models.ModelFamily {
	return models.FamilyGradientBoosting
}

// FeatureNames returns the feature order the ensemble was trained on.
func (gb *GradientBoosting) FeatureNames() []string {
	return gb.Names
}

// PredictProba returns the sigmoid of the final margin.
func (gb *GradientBoosting) PredictProba(x []float64) (float64, error) {
	margin, err := gb.Margin(x)
	if err != nil {
		return 0, err
	}
	return sigmoid(margin), nil
}

// Margin returns the final log-odds output for x.
func (gb *GradientBoosting) Margin(x []float64) (float64, error) {
	staged, err := gb.StagedMargins(x)
	if err != nil {
		return 0, err
	}
	if len(staged) == 0 {
		return gb.InitialMargin, nil
	}
	return staged[len(staged)-1], nil
}

// StagedMargins returns the cumulative margin after each stage, so
// adjacent differences are the per-tree contributions.
func (gb *GradientBoosting) StagedMargins(x []float64) ([]float64, error) {
	if len(gb.Trees) == 0 {
		return nil, models.ErrNotTrained
	}
	if len(x) != gb.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", gb.NumFeatures, len(x))
	}

	staged := make([]float64, len(gb.Trees))
	margin := gb.InitialMargin
	for i, tree := range gb.Trees {
		delta, err := tree.PredictValue(x)
		if err != nil {
			return nil, fmt.Errorf("stage %d prediction failed: %w", i, err)
		}
		margin += gb.LearningRate * delta
		staged[i] = margin
	}
	return staged, nil
}

// MemberCount returns the number of stages.
func (gb *GradientBoosting) MemberCount() int {
	return len(gb.Trees)
}

// Members returns the stage trees.
func (gb *GradientBoosting) Members() []*DecisionTree {
	return gb.Trees
}

// FeatureImportance averages importances over the stage trees.
func (gb *GradientBoosting) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64)
	for _, name := range gb.Names {
		importance[name] = 0.0
	}

	valid := 0
	for _, tree := range gb.Trees {
		if tree == nil {
			continue
		}
		for name, val := range tree.FeatureImportance() {
			importance[name] += val
		}
		valid++
	}

	if valid > 0 {
		for name := range importance {
			importance[name] /= float64(valid)
		}
	}

	return importance
}

// RepresentativeTree returns the first stage flattened in preorder. Its
// leaf values live in margin space rather than probability space.
func (gb *GradientBoosting) RepresentativeTree() (*TreeView, error) {
	if len(gb.Trees) == 0 || gb.Trees[0] == nil {
		return nil, models.ErrNotTrained
	}
	return gb.Trees[0].Flatten(), nil
}

// sigmoid maps a margin to a probability.
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
