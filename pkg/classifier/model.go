// Package classifier implements the four model families the explanation
// engines introspect: logistic regression, random forest, gradient
// boosting, and a feed-forward network. Structural access for tracing
// and attribution goes through the optional capability interfaces, so
// callers probe with type assertions instead of switching on family.
package classifier

import (
	"github.com/Kerremmarket/credit/pkg/models"
)

// Model is the minimal contract every trained classifier satisfies.
// PredictProba returns the positive-class probability.
type Model interface {
	Family() models.ModelFamily
	FeatureNames() []string
	PredictProba(x []float64) (float64, error)
}

// ImportanceProvider exposes structural feature importances, the
// fallback when attribution cannot run.
type ImportanceProvider interface {
	FeatureImportance() map[string]float64
}

// CoefficientProvider exposes linear model internals.
type CoefficientProvider interface {
	Coefficients() []float64
	Intercept() float64
}

// TreeProvider exposes a representative tree in flattened form for
// decision-path tracing. For a single tree that is the tree itself; for
// ensembles it is the first member.
type TreeProvider interface {
	RepresentativeTree() (*TreeView, error)
}

// EnsembleProvider exposes the members of a bagging ensemble.
type EnsembleProvider interface {
	MemberCount() int
	MemberProbas(x []float64) ([]float64, error)
}

// StagedProvider exposes cumulative margins of a boosting ensemble
// after each stage.
type StagedProvider interface {
	MemberCount() int
	StagedMargins(x []float64) ([]float64, error)
	Margin(x []float64) (float64, error)
}

// LayerProvider exposes the dense layers and input preprocessing of a
// feed-forward network.
type LayerProvider interface {
	Preprocess(x []float64) []float64
	DenseLayers() []DenseLayer
}

// DenseLayer is one fully connected layer. Weights has shape
// inputs x outputs, matching z = x*W + b.
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"` // "relu", "sigmoid", or "identity"
}

// TreeView is a tree flattened into parallel arrays in preorder, so
// node 0 is the root and indices strictly increase along any
// root-to-leaf path. Leaves carry feature index -2.
type TreeView struct {
	FeatureNames []string  `json:"feature_names"`
	Feature      []int     `json:"feature"`
	Threshold    []float64 `json:"threshold"`
	Impurity     []float64 `json:"impurity"`
	Value        []float64 `json:"value"`
	Left         []int     `json:"left"`
	Right        []int     `json:"right"`
}

// LeafFeature marks leaf nodes in a TreeView's Feature array.
const LeafFeature = -2

// NumNodes returns the number of nodes in the view.
func (v *TreeView) NumNodes() int {
	return len(v.Feature)
}

// IsLeaf reports whether node i is a leaf.
func (v *TreeView) IsLeaf(i int) bool {
	return v.Feature[i] == LeafFeature
}
