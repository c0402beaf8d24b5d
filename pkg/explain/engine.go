// Package explain computes feature attributions and dependence curves
// for trained classifiers. Results are memoized; computation failures
// degrade to structural importances or zeros rather than surfacing to
// callers.
package explain

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Kerremmarket/credit/pkg/cache"
	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/models"
)

const (
	// NamespaceSummary prefixes global attribution cache entries.
	NamespaceSummary = "attribution_summary"
	// NamespaceDependence prefixes dependence curve cache entries.
	NamespaceDependence = "dependence"

	// backgroundCap bounds the rows used as the attribution background
	// for the sampling explainer.
	backgroundCap = 100
)

// Engine computes attributions over a background dataset.
type Engine struct {
	cache      *cache.Cache
	logger     *zap.Logger
	maxSamples int
	gridSize   int
	seed       int64

	mu      sync.Mutex
	handles map[models.ModelFamily]explainer
}

// NewEngine creates an attribution engine.
func NewEngine(c *cache.Cache, logger *zap.Logger, maxSamples, gridSize int, seed int64) *Engine {
	return &Engine{
		cache:      c,
		logger:     logger.Named("explain"),
		maxSamples: maxSamples,
		gridSize:   gridSize,
		seed:       seed,
		handles:    make(map[models.ModelFamily]explainer),
	}
}

// explainerHandle returns the family's cached explainer, building it
// from the background on first use. Handles live until the family is
// invalidated on retrain.
func (e *Engine) explainerHandle(m classifier.Model, background *dataset.Dataset) (explainer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if exp, ok := e.handles[m.Family()]; ok {
		return exp, nil
	}

	exp, err := e.explainerFor(m, background)
	if err != nil {
		return nil, err
	}
	e.handles[m.Family()] = exp
	return exp, nil
}

// GlobalAttribution computes dataset-level importances for the model:
// mean absolute per-row contribution per feature, sorted descending.
// Failures degrade to the model's structural importances, then to
// zeros; the result always covers every model feature.
func (e *Engine) GlobalAttribution(m classifier.Model, ds *dataset.Dataset) *models.FeatureAttribution {
	features := m.FeatureNames()
	params := cache.Params{
		"family":    string(m.Family()),
		"features":  features,
		"n_samples": sampleSize(dsLen(ds), e.maxSamples),
	}

	var cached models.FeatureAttribution
	if e.cache.GetJSON(NamespaceSummary+":"+string(m.Family()), params, &cached) {
		return &cached
	}

	result, err := e.computeGlobal(m, ds)
	if err != nil {
		e.logger.Warn("global attribution failed, falling back to structural importances",
			zap.String("family", string(m.Family())), zap.Error(err))
		return e.structuralFallback(m)
	}

	e.cache.SetJSON(NamespaceSummary+":"+string(m.Family()), params, result)
	return result
}

// computeGlobal runs the per-family attribution over a seeded subsample.
func (e *Engine) computeGlobal(m classifier.Model, ds *dataset.Dataset) (*models.FeatureAttribution, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("no background data")
	}

	background, err := ds.Select(m.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("background selection failed: %w", err)
	}
	background = background.Subsample(e.maxSamples, e.seed)

	exp, err := e.explainerHandle(m, background)
	if err != nil {
		return nil, err
	}

	features := m.FeatureNames()
	sums := make([]float64, len(features))
	rows := 0
	for _, row := range background.X {
		contribs, _, err := exp.Attribute(row)
		if err != nil {
			return nil, fmt.Errorf("row attribution failed: %w", err)
		}
		for j, c := range contribs {
			sums[j] += math.Abs(sanitize(c))
		}
		rows++
	}
	if rows == 0 {
		return nil, fmt.Errorf("no rows attributed")
	}

	importances := make([]models.FeatureImportance, len(features))
	for j, name := range features {
		importances[j] = models.FeatureImportance{
			Feature:    name,
			Importance: sanitize(sums[j] / float64(rows)),
		}
	}
	sortImportances(importances)

	return &models.FeatureAttribution{
		Importances: importances,
		BaseValue:   sanitize(exp.BaseValue()),
	}, nil
}

// LocalAttribution computes signed per-feature contributions for one
// row. Failures degrade to zero contributions with the model's
// prediction, or 0.5 when even prediction fails.
func (e *Engine) LocalAttribution(m classifier.Model, ds *dataset.Dataset, row map[string]float64) *models.LocalAttribution {
	features := m.FeatureNames()
	x := dataset.RowToVector(features, row)

	prediction := 0.5
	if p, err := m.PredictProba(x); err == nil {
		prediction = sanitize(p)
	}

	result, err := e.computeLocal(m, ds, x)
	if err != nil {
		e.logger.Warn("local attribution failed, returning zero contributions",
			zap.String("family", string(m.Family())), zap.Error(err))
		zeros := make(map[string]float64, len(features))
		for _, name := range features {
			zeros[name] = 0
		}
		return &models.LocalAttribution{
			Contributions: zeros,
			BaseValue:     0,
			Prediction:    prediction,
		}
	}

	result.Prediction = prediction
	return result
}

func (e *Engine) computeLocal(m classifier.Model, ds *dataset.Dataset, x []float64) (*models.LocalAttribution, error) {
	background, err := e.backgroundFor(m, ds, x)
	if err != nil {
		return nil, err
	}

	exp, err := e.explainerHandle(m, background)
	if err != nil {
		return nil, err
	}

	contribs, base, err := exp.Attribute(x)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(contribs))
	for j, name := range m.FeatureNames() {
		out[name] = sanitize(contribs[j])
	}

	return &models.LocalAttribution{
		Contributions: out,
		BaseValue:     sanitize(base),
	}, nil
}

// backgroundFor builds the explainer background. Without a dataset the
// row itself serves as a single-point background.
func (e *Engine) backgroundFor(m classifier.Model, ds *dataset.Dataset, x []float64) (*dataset.Dataset, error) {
	if ds == nil || ds.Len() == 0 {
		return &dataset.Dataset{
			Features: m.FeatureNames(),
			X:        [][]float64{x},
		}, nil
	}
	background, err := ds.Select(m.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("background selection failed: %w", err)
	}
	return background.Subsample(e.maxSamples, e.seed), nil
}

// structuralFallback maps the model's own importances into the result
// shape, or zeros when the model has none.
func (e *Engine) structuralFallback(m classifier.Model) *models.FeatureAttribution {
	features := m.FeatureNames()
	importances := make([]models.FeatureImportance, len(features))

	if provider, ok := m.(classifier.ImportanceProvider); ok {
		structural := provider.FeatureImportance()
		for j, name := range features {
			importances[j] = models.FeatureImportance{
				Feature:    name,
				Importance: sanitize(structural[name]),
			}
		}
	} else {
		for j, name := range features {
			importances[j] = models.FeatureImportance{Feature: name}
		}
	}

	sortImportances(importances)
	return &models.FeatureAttribution{Importances: importances, BaseValue: 0}
}

// InvalidateFamily drops the family's cached attributions, dependence
// curves, and in-process explainer handle, returning the number of
// cache entries removed.
func (e *Engine) InvalidateFamily(family models.ModelFamily) int {
	e.mu.Lock()
	delete(e.handles, family)
	e.mu.Unlock()

	removed := e.cache.InvalidatePrefix(NamespaceSummary + ":" + string(family))
	removed += e.cache.InvalidatePrefix(NamespaceDependence + ":" + string(family))
	return removed
}

// sortImportances orders descending by importance. The stable sort over
// the column-ordered slice breaks ties by original column position.
func sortImportances(importances []models.FeatureImportance) {
	sort.SliceStable(importances, func(i, j int) bool {
		return importances[i].Importance > importances[j].Importance
	})
}

// sanitize maps non-finite values to zero.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func sampleSize(available, limit int) int {
	if available < limit {
		return available
	}
	return limit
}
