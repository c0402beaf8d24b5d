package classifier

import (
	"fmt"
	"math"
	"sort"

	"github.com/Kerremmarket/credit/pkg/models"
)

// TreeNode represents a node in the decision tree
type TreeNode struct {
	IsLeaf       bool      `json:"is_leaf"`
	Feature      string    `json:"feature,omitempty"`
	FeatureIndex int       `json:"feature_index,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	Impurity     float64   `json:"impurity"`
	Value        float64   `json:"value"` // positive-class fraction, or mean target for regression
	SamplesCount int       `json:"samples_count"`
	Depth        int       `json:"depth"`
	Left         *TreeNode `json:"left,omitempty"`
	Right        *TreeNode `json:"right,omitempty"`
}

// DecisionTree implements a CART tree for binary classification, with a
// regression mode used by the boosting ensemble to fit gradients.
type DecisionTree struct {
	Root            *TreeNode `json:"root"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	Names           []string  `json:"feature_names"`
	NumFeatures     int       `json:"num_features"`
	Regression      bool      `json:"regression"`
}

// NewDecisionTree creates a decision tree with default hyperparameters
// where none are given.
func NewDecisionTree(maxDepth, minSamplesSplit, minSamplesLeaf int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 1
	}

	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
	}
}

// Train builds the tree from binary labels.
func (dt *DecisionTree) Train(X [][]float64, y []int, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	dt.Names = featureNames
	dt.NumFeatures = len(X[0])
	dt.Regression = false

	targets := make([]float64, len(y))
	for i, label := range y {
		if label != 0 {
			targets[i] = 1
		}
	}

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}

	dt.Root = dt.buildTree(X, targets, indices, 0)
	return nil
}

// TrainRegression builds the tree against numeric targets.
func (dt *DecisionTree) TrainRegression(X [][]float64, y []float64, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	dt.Names = featureNames
	dt.NumFeatures = len(X[0])
	dt.Regression = true

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}

	dt.Root = dt.buildTree(X, y, indices, 0)
	return nil
}

// buildTree recursively builds the tree. Classification targets are 0/1,
// so the node mean doubles as the positive-class fraction and gini
// impurity reduces to 2p(1-p); regression uses variance for both.
func (dt *DecisionTree) buildTree(X [][]float64, y []float64, indices []int, depth int) *TreeNode {
	node := &TreeNode{
		SamplesCount: len(indices),
		Depth:        depth,
	}

	current := make([]float64, len(indices))
	for i, idx := range indices {
		current[i] = y[idx]
	}

	mean := meanOf(current)
	node.Value = mean
	node.Impurity = dt.impurity(current, mean)

	if depth >= dt.MaxDepth || len(indices) < dt.MinSamplesSplit || node.Impurity < 1e-7 {
		node.IsLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestGain := dt.findBestSplit(X, y, indices, node.Impurity)
	if bestGain <= 0 {
		node.IsLeaf = true
		return node
	}

	leftIndices, rightIndices := dt.splitData(X, indices, bestFeature, bestThreshold)

	if len(leftIndices) < dt.MinSamplesLeaf || len(rightIndices) < dt.MinSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.IsLeaf = false
	node.Feature = dt.Names[bestFeature]
	node.FeatureIndex = bestFeature
	node.Threshold = bestThreshold

	node.Left = dt.buildTree(X, y, leftIndices, depth+1)
	node.Right = dt.buildTree(X, y, rightIndices, depth+1)

	return node
}

// impurity computes gini for classification and variance for regression.
func (dt *DecisionTree) impurity(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	if !dt.Regression {
		return 2 * mean * (1 - mean)
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return variance / float64(len(values))
}

// findBestSplit finds the feature and threshold with the largest
// impurity reduction.
func (dt *DecisionTree) findBestSplit(X [][]float64, y []float64, indices []int, parentImpurity float64) (int, float64, float64) {
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	for feature := 0; feature < dt.NumFeatures; feature++ {
		values := make([]float64, len(indices))
		for i, idx := range indices {
			values[i] = X[idx][feature]
		}

		for _, threshold := range candidateThresholds(values) {
			leftIndices, rightIndices := dt.splitData(X, indices, feature, threshold)

			if len(leftIndices) == 0 || len(rightIndices) == 0 {
				continue
			}

			leftValues := make([]float64, len(leftIndices))
			for i, idx := range leftIndices {
				leftValues[i] = y[idx]
			}
			rightValues := make([]float64, len(rightIndices))
			for i, idx := range rightIndices {
				rightValues[i] = y[idx]
			}

			leftImpurity := dt.impurity(leftValues, meanOf(leftValues))
			rightImpurity := dt.impurity(rightValues, meanOf(rightValues))

			n := float64(len(indices))
			nLeft := float64(len(leftIndices))
			nRight := float64(len(rightIndices))

			weighted := (nLeft/n)*leftImpurity + (nRight/n)*rightImpurity
			gain := parentImpurity - weighted

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// splitData splits indices based on feature and threshold
func (dt *DecisionTree) splitData(X [][]float64, indices []int, feature int, threshold float64) ([]int, []int) {
	var leftIndices, rightIndices []int

	for _, idx := range indices {
		if X[idx][feature] <= threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}

	return leftIndices, rightIndices
}

// Family returns the tree's model family. A standalone tree behaves as a
// one-member bagging ensemble for tracing purposes.
func (dt *DecisionTree) Family() models.ModelFamily {
	return models.FamilyRandomForest
}

// FeatureNames returns the feature order the tree was trained on.
func (dt *DecisionTree) FeatureNames() []string {
	return dt.Names
}

// PredictProba returns the positive-class fraction at the reached leaf.
func (dt *DecisionTree) PredictProba(x []float64) (float64, error) {
	leaf, err := dt.traverseToLeaf(x)
	if err != nil {
		return 0, err
	}
	return leaf.Value, nil
}

// PredictValue returns the regression output at the reached leaf.
func (dt *DecisionTree) PredictValue(x []float64) (float64, error) {
	leaf, err := dt.traverseToLeaf(x)
	if err != nil {
		return 0, err
	}
	return leaf.Value, nil
}

// traverseToLeaf walks the tree to the leaf for x.
func (dt *DecisionTree) traverseToLeaf(x []float64) (*TreeNode, error) {
	if dt.Root == nil {
		return nil, models.ErrNotTrained
	}
	if len(x) != dt.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	node := dt.Root
	for !node.IsLeaf {
		if x[node.FeatureIndex] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node, nil
}

// PathNodes returns the pointer nodes visited from root to leaf for x.
func (dt *DecisionTree) PathNodes(x []float64) ([]*TreeNode, error) {
	if dt.Root == nil {
		return nil, models.ErrNotTrained
	}
	if len(x) != dt.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	var path []*TreeNode
	node := dt.Root
	for {
		path = append(path, node)
		if node.IsLeaf {
			return path, nil
		}
		if x[node.FeatureIndex] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
}

// FeatureImportance calculates importance from sample-weighted impurity
// contributions, normalized to sum to one.
func (dt *DecisionTree) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64)
	for _, name := range dt.Names {
		importance[name] = 0.0
	}

	if dt.Root != nil {
		dt.calculateImportance(dt.Root, importance)
	}

	total := 0.0
	for _, val := range importance {
		total += val
	}
	if total > 0 {
		for name := range importance {
			importance[name] /= total
		}
	}

	return importance
}

// calculateImportance recursively accumulates impurity reduction
// weighted by node sample counts.
func (dt *DecisionTree) calculateImportance(node *TreeNode, importance map[string]float64) {
	if node.IsLeaf {
		return
	}

	n := float64(node.SamplesCount)
	nLeft := float64(node.Left.SamplesCount)
	nRight := float64(node.Right.SamplesCount)
	reduction := n*node.Impurity - nLeft*node.Left.Impurity - nRight*node.Right.Impurity
	if reduction > 0 {
		importance[node.Feature] += reduction
	}

	dt.calculateImportance(node.Left, importance)
	dt.calculateImportance(node.Right, importance)
}

// RepresentativeTree returns the tree flattened in preorder.
func (dt *DecisionTree) RepresentativeTree() (*TreeView, error) {
	if dt.Root == nil {
		return nil, models.ErrNotTrained
	}
	return dt.Flatten(), nil
}

// Flatten converts the pointer tree into parallel preorder arrays.
// Preorder keeps node indices strictly increasing on every root-to-leaf
// path, which the decision-path tracer relies on.
func (dt *DecisionTree) Flatten() *TreeView {
	view := &TreeView{FeatureNames: dt.Names}
	if dt.Root != nil {
		flattenInto(dt.Root, view)
	}
	return view
}

func flattenInto(node *TreeNode, view *TreeView) int {
	idx := len(view.Feature)
	feature := node.FeatureIndex
	if node.IsLeaf {
		feature = LeafFeature
	}
	view.Feature = append(view.Feature, feature)
	view.Threshold = append(view.Threshold, node.Threshold)
	view.Impurity = append(view.Impurity, node.Impurity)
	view.Value = append(view.Value, node.Value)
	view.Left = append(view.Left, -1)
	view.Right = append(view.Right, -1)

	if !node.IsLeaf {
		view.Left[idx] = flattenInto(node.Left, view)
		view.Right[idx] = flattenInto(node.Right, view)
	}
	return idx
}

// GetDepth returns the maximum depth of the tree.
func (dt *DecisionTree) GetDepth() int {
	return nodeDepth(dt.Root)
}

func nodeDepth(node *TreeNode) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return node.Depth
	}

	leftDepth := nodeDepth(node.Left)
	rightDepth := nodeDepth(node.Right)
	if leftDepth > rightDepth {
		return leftDepth
	}
	return rightDepth
}

// Helper functions

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func candidateThresholds(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	uniqueVals := make([]float64, 0, len(values))
	seen := make(map[float64]bool)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !seen[v] {
			seen[v] = true
			uniqueVals = append(uniqueVals, v)
		}
	}

	if len(uniqueVals) < 2 {
		return nil
	}

	sort.Float64s(uniqueVals)

	thresholds := make([]float64, len(uniqueVals)-1)
	for i := 0; i < len(uniqueVals)-1; i++ {
		thresholds[i] = (uniqueVals[i] + uniqueVals[i+1]) / 2.0
	}

	return thresholds
}
