package explain

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Kerremmarket/credit/pkg/cache"
	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/models"
)

// dependenceSampleCap bounds the rows swept per grid point,
// independently of the attribution sample limit.
const dependenceSampleCap = 1000

// DependenceCurves computes partial dependence for each requested
// feature: the model's mean probability over a seeded subsample while
// the feature is swept across a uniform grid between its observed min
// and max. Unknown features are skipped; any failure degrades to an
// empty map.
func (e *Engine) DependenceCurves(m classifier.Model, ds *dataset.Dataset, features []string) map[string]models.DependenceCurve {
	params := cache.Params{
		"family":    string(m.Family()),
		"features":  features,
		"grid_size": e.gridSize,
		"n_samples": sampleSize(dsLen(ds), dependenceSampleCap),
	}

	namespace := NamespaceDependence + ":" + string(m.Family())
	var cached map[string]models.DependenceCurve
	if e.cache.GetJSON(namespace, params, &cached) {
		return cached
	}

	curves, err := e.computeDependence(m, ds, features)
	if err != nil {
		e.logger.Warn("dependence computation failed, returning empty result",
			zap.String("family", string(m.Family())), zap.Error(err))
		return map[string]models.DependenceCurve{}
	}

	e.cache.SetJSON(namespace, params, curves)
	return curves
}

func (e *Engine) computeDependence(m classifier.Model, ds *dataset.Dataset, features []string) (map[string]models.DependenceCurve, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("no background data")
	}

	background, err := ds.Select(m.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("background selection failed: %w", err)
	}
	background = background.Subsample(dependenceSampleCap, e.seed)

	curves := make(map[string]models.DependenceCurve, len(features))
	for _, feature := range features {
		idx, ok := background.FeatureIndex(feature)
		if !ok {
			e.logger.Debug("skipping unknown dependence feature",
				zap.String("feature", feature))
			continue
		}

		curve, err := e.curveFor(m, background, idx)
		if err != nil {
			return nil, fmt.Errorf("curve for %s failed: %w", feature, err)
		}
		curves[feature] = curve
	}
	return curves, nil
}

// curveFor sweeps one feature across its grid. A constant column
// produces a single-point grid rather than a degenerate sweep.
func (e *Engine) curveFor(m classifier.Model, background *dataset.Dataset, idx int) (models.DependenceCurve, error) {
	lo, hi, ok := columnRange(background, idx)
	if !ok {
		return models.DependenceCurve{}, fmt.Errorf("column has no finite values")
	}

	var grid []float64
	if lo == hi {
		grid = []float64{lo}
	} else {
		grid = make([]float64, e.gridSize)
		step := (hi - lo) / float64(e.gridSize-1)
		for i := range grid {
			grid[i] = lo + float64(i)*step
		}
	}

	values := make([]float64, len(grid))
	row := make([]float64, len(background.Features))
	for g, point := range grid {
		sum, count := 0.0, 0
		for _, sample := range background.X {
			copy(row, sample)
			row[idx] = point
			p, err := m.PredictProba(row)
			if err != nil {
				return models.DependenceCurve{}, err
			}
			sum += p
			count++
		}
		values[g] = sanitize(sum / float64(count))
	}

	return models.DependenceCurve{Grid: grid, Values: values}, nil
}

// columnRange returns the finite min and max of a column.
func columnRange(ds *dataset.Dataset, idx int) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	found := false
	for _, row := range ds.X {
		v := row[idx]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		found = true
	}
	return lo, hi, found
}

func dsLen(ds *dataset.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.Len()
}
