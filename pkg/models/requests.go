package models

import "fmt"

// TrainRequest asks the server to train one model family on the loaded
// dataset.
type TrainRequest struct {
	Family   ModelFamily `json:"family"`
	Features []string    `json:"features,omitempty"`
}

// Validate checks if the TrainRequest is valid
func (r *TrainRequest) Validate() error {
	if r.Family == "" {
		return fmt.Errorf("family is required")
	}
	if !r.Family.Valid() {
		return fmt.Errorf("invalid model family: %s", r.Family)
	}
	return nil
}

// TrainResponse reports the outcome of a training run.
type TrainResponse struct {
	Family          ModelFamily        `json:"family"`
	ModelID         string             `json:"model_id"`
	Accuracy        float64            `json:"accuracy"`
	AUC             float64            `json:"auc"`
	ConfusionMatrix [][]int            `json:"confusion_matrix"`
	Importances     map[string]float64 `json:"feature_importance,omitempty"`
	TrainedAt       string             `json:"trained_at"`
}

// PredictRequest asks for predictions over a batch of rows.
type PredictRequest struct {
	Family ModelFamily          `json:"family"`
	Rows   []map[string]float64 `json:"rows"`
}

// Validate checks if the PredictRequest is valid
func (r *PredictRequest) Validate() error {
	if !r.Family.Valid() {
		return fmt.Errorf("invalid model family: %s", r.Family)
	}
	if len(r.Rows) == 0 {
		return fmt.Errorf("rows is required")
	}
	return nil
}

// PredictResponse carries per-row probabilities and log odds.
type PredictResponse struct {
	Family  ModelFamily `json:"family"`
	Probas  []float64   `json:"probabilities"`
	LogOdds []float64   `json:"log_odds"`
}

// SummaryRequest asks for a global attribution over the loaded dataset.
type SummaryRequest struct {
	Family   ModelFamily `json:"family"`
	Features []string    `json:"features,omitempty"`
}

// Validate checks if the SummaryRequest is valid
func (r *SummaryRequest) Validate() error {
	if !r.Family.Valid() {
		return fmt.Errorf("invalid model family: %s", r.Family)
	}
	return nil
}

// LocalRequest asks for a single-row attribution.
type LocalRequest struct {
	Family ModelFamily        `json:"family"`
	Row    map[string]float64 `json:"row"`
}

// Validate checks if the LocalRequest is valid
func (r *LocalRequest) Validate() error {
	if !r.Family.Valid() {
		return fmt.Errorf("invalid model family: %s", r.Family)
	}
	if len(r.Row) == 0 {
		return fmt.Errorf("row is required")
	}
	return nil
}

// DependenceRequest asks for dependence curves over one or more features.
type DependenceRequest struct {
	Family   ModelFamily `json:"family"`
	Features []string    `json:"features"`
}

// Validate checks if the DependenceRequest is valid
func (r *DependenceRequest) Validate() error {
	if !r.Family.Valid() {
		return fmt.Errorf("invalid model family: %s", r.Family)
	}
	if len(r.Features) == 0 {
		return fmt.Errorf("features is required")
	}
	return nil
}

// TraceRequest asks for a forward-pass, decision-path, or ensemble trace
// of one row.
type TraceRequest struct {
	Family ModelFamily        `json:"family"`
	Row    map[string]float64 `json:"row"`
}

// Validate checks if the TraceRequest is valid
func (r *TraceRequest) Validate() error {
	if !r.Family.Valid() {
		return fmt.Errorf("invalid model family: %s", r.Family)
	}
	if len(r.Row) == 0 {
		return fmt.Errorf("row is required")
	}
	return nil
}

// EnsembleRequest asks for an ensemble contribution trace. The row is
// optional; without one only the member count is reported.
type EnsembleRequest struct {
	Family ModelFamily        `json:"family"`
	Row    map[string]float64 `json:"row,omitempty"`
}

// Validate checks if the EnsembleRequest is valid
func (r *EnsembleRequest) Validate() error {
	if !r.Family.Valid() {
		return fmt.Errorf("invalid model family: %s", r.Family)
	}
	return nil
}

// CacheClearResponse reports how many cache entries were removed.
type CacheClearResponse struct {
	Removed int `json:"removed"`
}

// ErrorResponse is the uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
