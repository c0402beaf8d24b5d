package models

// LayerTrace records the arithmetic of one computational layer during a
// forward pass. Weights are omitted for layers above the render size
// threshold; bias, pre-activation and post-activation are always full.
type LayerTrace struct {
	Kind           string             `json:"kind"` // "linear" or "dense"
	Weights        [][]float64        `json:"weights,omitempty"`
	Bias           []float64          `json:"bias"`
	PreActivation  []float64          `json:"pre_activation"`
	PostActivation []float64          `json:"post_activation"`
	Activation     string             `json:"activation,omitempty"`
	Shape          string             `json:"shape,omitempty"`
	Contributions  map[string]float64 `json:"feature_contributions,omitempty"`
}

// ForwardTrace is the full input-to-output trace of a forward pass.
// An empty Layers slice with Logit 0 and Proba 0.5 means the trace was
// unavailable, not that the model computed those values.
type ForwardTrace struct {
	Layers []LayerTrace `json:"layers"`
	Logit  float64      `json:"logit"`
	Proba  float64      `json:"proba"`
}

// TreePathNode is one step of a decision path. Internal nodes carry the
// split description; the terminal node carries only the leaf value.
type TreePathNode struct {
	Feature     string   `json:"feature,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty"`
	SampleValue *float64 `json:"sample_value,omitempty"`
	BranchTaken string   `json:"branch_taken,omitempty"` // "left" or "right"
	Impurity    *float64 `json:"impurity,omitempty"`
	LeafValue   *float64 `json:"leaf_value,omitempty"`
	IsLeaf      bool     `json:"is_leaf"`
}

// TreePathTrace is the root-to-leaf decision path for one row, plus the
// model's own probability prediction for that row.
type TreePathTrace struct {
	Path       []TreePathNode `json:"path"`
	Prediction float64        `json:"prediction"`
}

// EnsembleTrace decomposes an ensemble's output into per-member
// contributions. For bagging, PerMember holds each member's probability
// and FinalProba the mean. For boosting, PerMember holds per-tree margin
// increments, FinalMargin the cumulative logit and FinalProba its
// sigmoid. PerMember is nil when no row was supplied or the breakdown is
// unavailable; MemberCount is always set.
type EnsembleTrace struct {
	Family      ModelFamily `json:"family"`
	MemberCount int         `json:"member_count"`
	PerMember   []float64   `json:"per_member,omitempty"`
	FinalProba  *float64    `json:"final_proba,omitempty"`
	FinalMargin *float64    `json:"final_margin,omitempty"`
}
