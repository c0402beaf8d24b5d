package trace

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/models"
)

// TreePath walks the representative tree of a tree-family model for one
// row and reports every split taken. Non-tree families return an error;
// internal failures degrade to an empty path with prediction 0.5.
func (t *Tracer) TreePath(m classifier.Model, row map[string]float64) (*models.TreePathTrace, error) {
	if !m.Family().IsTreeEnsemble() {
		return nil, models.UnsupportedFamilyError("tree path", m.Family())
	}

	provider, ok := m.(classifier.TreeProvider)
	if !ok {
		return nil, models.UnsupportedFamilyError("tree path", m.Family())
	}

	x := dataset.RowToVector(m.FeatureNames(), row)

	prediction := 0.5
	if p, err := m.PredictProba(x); err == nil && !math.IsNaN(p) {
		prediction = p
	}

	path, err := t.walk(provider, x)
	if err != nil {
		t.logger.Warn("tree path trace failed, returning empty path",
			zap.String("family", string(m.Family())), zap.Error(err))
		return &models.TreePathTrace{Path: []models.TreePathNode{}, Prediction: prediction}, nil
	}

	return &models.TreePathTrace{Path: path, Prediction: prediction}, nil
}

// walk collects the visited node set of the flattened tree, then emits
// it in increasing index order, which in the preorder layout is exactly
// root to leaf. The branch at each step is read off the successor: if
// the next visited node is the left child the branch was left,
// otherwise right.
func (t *Tracer) walk(provider classifier.TreeProvider, x []float64) ([]models.TreePathNode, error) {
	view, err := provider.RepresentativeTree()
	if err != nil {
		return nil, err
	}
	if view.NumNodes() == 0 {
		return nil, fmt.Errorf("empty tree")
	}

	visited := make([]int, 0, 16)
	idx := 0
	for {
		visited = append(visited, idx)
		if view.IsLeaf(idx) {
			break
		}
		feature := view.Feature[idx]
		if feature < 0 || feature >= len(x) {
			return nil, fmt.Errorf("node %d references feature %d out of range", idx, feature)
		}
		value := x[feature]
		if math.IsNaN(value) {
			value = 0
		}
		if value <= view.Threshold[idx] {
			idx = view.Left[idx]
		} else {
			idx = view.Right[idx]
		}
		if idx < 0 || idx >= view.NumNodes() {
			return nil, fmt.Errorf("child index %d out of range", idx)
		}
	}
	sort.Ints(visited)

	path := make([]models.TreePathNode, 0, len(visited))
	for i, nodeIdx := range visited {
		if view.IsLeaf(nodeIdx) {
			leafValue := view.Value[nodeIdx]
			path = append(path, models.TreePathNode{
				LeafValue: &leafValue,
				IsLeaf:    true,
			})
			continue
		}

		feature := view.Feature[nodeIdx]
		threshold := view.Threshold[nodeIdx]
		impurity := view.Impurity[nodeIdx]
		sampleValue := x[feature]
		if math.IsNaN(sampleValue) {
			sampleValue = 0
		}

		branch := "right"
		if i+1 < len(visited) && visited[i+1] == view.Left[nodeIdx] {
			branch = "left"
		}

		path = append(path, models.TreePathNode{
			Feature:     view.FeatureNames[feature],
			Threshold:   &threshold,
			SampleValue: &sampleValue,
			BranchTaken: branch,
			Impurity:    &impurity,
			IsLeaf:      false,
		})
	}

	return path, nil
}
