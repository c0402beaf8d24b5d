package explain

import (
	"fmt"
	"math"

	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/models"
)

// explainer attributes one row to per-feature contributions. Attribute
// returns contributions aligned with the model's feature order plus the
// base value such that base + sum(contributions) reconstructs the
// model output in the explainer's output space.
type explainer interface {
	Attribute(x []float64) (contributions []float64, base float64, err error)
	BaseValue() float64
}

// explainerFor picks the algorithm for the model's family: exact linear
// decomposition for logistic models, path attribution for tree
// ensembles, and occlusion sampling for networks.
func (e *Engine) explainerFor(m classifier.Model, background *dataset.Dataset) (explainer, error) {
	switch model := m.(type) {
	case classifier.CoefficientProvider:
		return newLinearExplainer(model, background)
	case *classifier.RandomForest:
		return &forestExplainer{forest: model}, nil
	case *classifier.GradientBoosting:
		return &boostingExplainer{boosting: model}, nil
	case classifier.LayerProvider:
		return newOcclusionExplainer(m, background)
	default:
		return nil, models.UnsupportedFamilyError("attribution", m.Family())
	}
}

// linearExplainer decomposes the margin exactly:
// z = intercept + sum(coef_j * mean_j) + sum(coef_j * (x_j - mean_j)),
// so the contribution of feature j is coef_j*(x_j - mean_j) and the
// base is the margin at the background mean.
type linearExplainer struct {
	coefs []float64
	means []float64
	base  float64
}

func newLinearExplainer(m classifier.CoefficientProvider, background *dataset.Dataset) (*linearExplainer, error) {
	coefs := m.Coefficients()
	if coefs == nil {
		return nil, models.ErrNotTrained
	}
	if len(background.Features) != len(coefs) {
		return nil, fmt.Errorf("background has %d features, model has %d", len(background.Features), len(coefs))
	}

	means := make([]float64, len(coefs))
	for j := range means {
		sum, count := 0.0, 0
		for _, row := range background.X {
			if !math.IsNaN(row[j]) {
				sum += row[j]
				count++
			}
		}
		if count > 0 {
			means[j] = sum / float64(count)
		}
	}

	base := m.Intercept()
	for j, c := range coefs {
		base += c * means[j]
	}

	return &linearExplainer{coefs: coefs, means: means, base: base}, nil
}

func (le *linearExplainer) Attribute(x []float64) ([]float64, float64, error) {
	if len(x) != len(le.coefs) {
		return nil, 0, fmt.Errorf("expected %d features, got %d", len(le.coefs), len(x))
	}

	contribs := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) {
			v = le.means[j]
		}
		contribs[j] = le.coefs[j] * (v - le.means[j])
	}
	return contribs, le.base, nil
}

func (le *linearExplainer) BaseValue() float64 {
	return le.base
}

// pathAttribution walks one tree and credits each split feature with
// the change in node value across the branch taken. The credits sum to
// leaf value minus root value, so root value is the tree's base.
func pathAttribution(tree *classifier.DecisionTree, x []float64, contribs []float64) (float64, error) {
	path, err := tree.PathNodes(x)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(path)-1; i++ {
		delta := path[i+1].Value - path[i].Value
		contribs[path[i].FeatureIndex] += delta
	}
	return path[0].Value, nil
}

// forestExplainer averages path attributions over the member trees, in
// probability space.
type forestExplainer struct {
	forest *classifier.RandomForest
}

func (fe *forestExplainer) Attribute(x []float64) ([]float64, float64, error) {
	members := fe.forest.Members()
	if len(members) == 0 {
		return nil, 0, models.ErrNotTrained
	}

	imputed := imputeNaN(x)
	contribs := make([]float64, len(fe.forest.FeatureNames()))
	base := 0.0
	valid := 0
	for _, tree := range members {
		if tree == nil {
			continue
		}
		rootValue, err := pathAttribution(tree, imputed, contribs)
		if err != nil {
			return nil, 0, err
		}
		base += rootValue
		valid++
	}
	if valid == 0 {
		return nil, 0, fmt.Errorf("no valid trees")
	}

	for j := range contribs {
		contribs[j] /= float64(valid)
	}
	return contribs, base / float64(valid), nil
}

func (fe *forestExplainer) BaseValue() float64 {
	base := 0.0
	valid := 0
	for _, tree := range fe.forest.Members() {
		if tree == nil || tree.Root == nil {
			continue
		}
		base += tree.Root.Value
		valid++
	}
	if valid == 0 {
		return 0
	}
	return base / float64(valid)
}

// boostingExplainer sums path attributions over the stage trees in
// margin space, scaled by the learning rate. The base is the initial
// margin plus the learning-rate-scaled root values.
type boostingExplainer struct {
	boosting *classifier.GradientBoosting
}

func (be *boostingExplainer) Attribute(x []float64) ([]float64, float64, error) {
	members := be.boosting.Members()
	if len(members) == 0 {
		return nil, 0, models.ErrNotTrained
	}

	imputed := imputeNaN(x)
	lr := be.boosting.LearningRate
	names := be.boosting.FeatureNames()

	raw := make([]float64, len(names))
	base := be.boosting.InitialMargin
	for _, tree := range members {
		if tree == nil {
			continue
		}
		rootValue, err := pathAttribution(tree, imputed, raw)
		if err != nil {
			return nil, 0, err
		}
		base += lr * rootValue
	}

	contribs := make([]float64, len(raw))
	for j, c := range raw {
		contribs[j] = lr * c
	}
	return contribs, base, nil
}

func (be *boostingExplainer) BaseValue() float64 {
	base := be.boosting.InitialMargin
	for _, tree := range be.boosting.Members() {
		if tree == nil || tree.Root == nil {
			continue
		}
		base += be.boosting.LearningRate * tree.Root.Value
	}
	return base
}

// occlusionExplainer attributes by output difference: each feature's
// contribution is f(x) minus f(x with that feature replaced by its
// background median). Used for models without exploitable structure.
type occlusionExplainer struct {
	model   classifier.Model
	medians []float64
	base    float64
}

func newOcclusionExplainer(m classifier.Model, background *dataset.Dataset) (*occlusionExplainer, error) {
	if background.Len() == 0 {
		return nil, fmt.Errorf("no background data")
	}

	sample := background.Subsample(backgroundCap, 0)
	medians := sample.Medians()

	base, count := 0.0, 0
	for _, row := range sample.X {
		p, err := m.PredictProba(row)
		if err != nil {
			return nil, fmt.Errorf("background prediction failed: %w", err)
		}
		base += p
		count++
	}

	return &occlusionExplainer{
		model:   m,
		medians: medians,
		base:    base / float64(count),
	}, nil
}

func (oe *occlusionExplainer) Attribute(x []float64) ([]float64, float64, error) {
	full, err := oe.model.PredictProba(x)
	if err != nil {
		return nil, 0, err
	}

	contribs := make([]float64, len(x))
	perturbed := make([]float64, len(x))
	for j := range x {
		copy(perturbed, x)
		perturbed[j] = oe.medians[j]
		occluded, err := oe.model.PredictProba(perturbed)
		if err != nil {
			return nil, 0, err
		}
		contribs[j] = full - occluded
	}
	return contribs, oe.base, nil
}

func (oe *occlusionExplainer) BaseValue() float64 {
	return oe.base
}

// imputeNaN zero-fills NaN cells; tree splits compare against real
// thresholds, so a NaN would otherwise always branch right.
func imputeNaN(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) {
			v = 0
		}
		out[j] = v
	}
	return out
}
