package models

// FeatureImportance is one entry of a global attribution result.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FeatureAttribution is a global (dataset-level) attribution result:
// one non-negative importance per requested feature, sorted descending,
// plus the explainer's base value.
type FeatureAttribution struct {
	Importances []FeatureImportance `json:"feature_importance"`
	BaseValue   float64             `json:"base_value"`
}

// ImportanceFor returns the importance recorded for a feature.
func (a *FeatureAttribution) ImportanceFor(feature string) (float64, bool) {
	for _, fi := range a.Importances {
		if fi.Feature == feature {
			return fi.Importance, true
		}
	}
	return 0, false
}

// LocalAttribution is a single-instance attribution result: one signed
// contribution per feature, the base value, and the model's prediction
// for the row.
type LocalAttribution struct {
	Contributions map[string]float64 `json:"contributions"`
	BaseValue     float64            `json:"base_value"`
	Prediction    float64            `json:"prediction"`
}

// DependenceCurve is a one-dimensional marginal response curve: model
// output averaged over the sample at each grid point of one feature.
type DependenceCurve struct {
	Grid   []float64 `json:"grid"`
	Values []float64 `json:"values"`
}
