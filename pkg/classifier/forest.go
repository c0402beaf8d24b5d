package classifier

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/Kerremmarket/credit/pkg/models"
)

// RandomForest is a bagging ensemble of decision trees over bootstrap
// samples. The predicted probability is the mean of the member
// probabilities. Every tree sees the full feature space so member trees
// index features the same way the ensemble does.
type RandomForest struct {
	Trees           []*DecisionTree `json:"trees"`
	NumTrees        int             `json:"num_trees"`
	MaxDepth        int             `json:"max_depth"`
	MinSamplesSplit int             `json:"min_samples_split"`
	MinSamplesLeaf  int             `json:"min_samples_leaf"`
	Names           []string        `json:"feature_names"`
	NumFeatures     int             `json:"num_features"`
	RandomSeed      int64           `json:"random_seed"`

	rng *rand.Rand
}

// NewRandomForest creates a random forest with default hyperparameters
// where none are given.
func NewRandomForest(numTrees, maxDepth int, seed int64) *RandomForest {
	if numTrees <= 0 {
		numTrees = 50
	}
	if maxDepth <= 0 {
		maxDepth = 5
	}

	return &RandomForest{
		NumTrees:        numTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomSeed:      seed,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// Train builds the forest from training data.
func (rf *RandomForest) Train(X [][]float64, y []int, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	rf.Names = featureNames
	rf.NumFeatures = len(X[0])
	if rf.rng == nil {
		rf.rng = rand.New(rand.NewSource(rf.RandomSeed))
	}

	// Bootstrap samples are drawn up front on the shared generator so
	// training stays deterministic under a fixed seed, then trees train
	// in parallel.
	samples := make([][]int, rf.NumTrees)
	for i := range samples {
		sample := make([]int, len(X))
		for j := range sample {
			sample[j] = rf.rng.Intn(len(X))
		}
		samples[i] = sample
	}

	rf.Trees = make([]*DecisionTree, rf.NumTrees)

	var wg sync.WaitGroup
	var mu sync.Mutex
	trainErrors := make([]error, 0)

	for i := 0; i < rf.NumTrees; i++ {
		wg.Add(1)
		go func(treeIdx int) {
			defer wg.Done()

			bootX := make([][]float64, len(X))
			bootY := make([]int, len(y))
			for j, idx := range samples[treeIdx] {
				bootX[j] = X[idx]
				bootY[j] = y[idx]
			}

			tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit, rf.MinSamplesLeaf)
			if err := tree.Train(bootX, bootY, featureNames); err != nil {
				mu.Lock()
				trainErrors = append(trainErrors, fmt.Errorf("tree %d training failed: %w", treeIdx, err))
				mu.Unlock()
				return
			}

			mu.Lock()
			rf.Trees[treeIdx] = tree
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	if len(trainErrors) > 0 {
		return fmt.Errorf("training errors: %v", trainErrors[0])
	}

	return nil
}

// Family returns the forest's model family.
func (rf *RandomForest) Family() models.ModelFamily {
	return models.FamilyRandomForest
}

// FeatureNames returns the feature order the forest was trained on.
func (rf *RandomForest) FeatureNames() []string {
	return rf.Names
}

// PredictProba averages the member probabilities.
func (rf *RandomForest) PredictProba(x []float64) (float64, error) {
	probas, err := rf.MemberProbas(x)
	if err != nil {
		return 0, err
	}
	return meanOf(probas), nil
}

// MemberCount returns the number of trees in the forest.
func (rf *RandomForest) MemberCount() int {
	return len(rf.Trees)
}

// MemberProbas returns each member tree's positive-class probability.
func (rf *RandomForest) MemberProbas(x []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, models.ErrNotTrained
	}
	if len(x) != rf.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", rf.NumFeatures, len(x))
	}

	probas := make([]float64, 0, len(rf.Trees))
	for i, tree := range rf.Trees {
		if tree == nil {
			continue
		}
		p, err := tree.PredictProba(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d prediction failed: %w", i, err)
		}
		probas = append(probas, p)
	}

	if len(probas) == 0 {
		return nil, fmt.Errorf("no valid predictions from trees")
	}
	return probas, nil
}

// Members returns the member trees.
func (rf *RandomForest) Members() []*DecisionTree {
	return rf.Trees
}

// FeatureImportance averages the member importances.
func (rf *RandomForest) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64)
	for _, name := range rf.Names {
		importance[name] = 0.0
	}

	valid := 0
	for _, tree := range rf.Trees {
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

// RepresentativeTree returns the first member flattened in preorder.
func (rf *RandomForest) RepresentativeTree() (*TreeView, error) {
	if len(rf.Trees) == 0 || rf.Trees[0] == nil {
		return nil, models.ErrNotTrained
	}
	return rf.Trees[0].Flatten(), nil
}
