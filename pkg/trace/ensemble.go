package trace

import (
	"go.uber.org/zap"

	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/models"
)

// EnsembleTrace decomposes an ensemble prediction into per-member
// contributions: member probabilities averaged for bagging, per-stage
// margin deltas for boosting. Without a row only the member count is
// reported. Non-ensemble families return an error; internal failures
// degrade to a trace carrying only the member count.
func (t *Tracer) EnsembleTrace(m classifier.Model, row map[string]float64) (*models.EnsembleTrace, error) {
	switch model := m.(type) {
	case classifier.StagedProvider:
		if len(row) == 0 {
			return &models.EnsembleTrace{Family: m.Family(), MemberCount: model.MemberCount()}, nil
		}
		return t.boostingTrace(m, model, dataset.RowToVector(m.FeatureNames(), row)), nil
	case classifier.EnsembleProvider:
		if len(row) == 0 {
			return &models.EnsembleTrace{Family: m.Family(), MemberCount: model.MemberCount()}, nil
		}
		return t.baggingTrace(m, model, dataset.RowToVector(m.FeatureNames(), row)), nil
	default:
		return nil, models.UnsupportedFamilyError("ensemble trace", m.Family())
	}
}

// baggingTrace reports each member's probability and their mean.
func (t *Tracer) baggingTrace(m classifier.Model, ep classifier.EnsembleProvider, x []float64) *models.EnsembleTrace {
	trace := &models.EnsembleTrace{
		Family:      m.Family(),
		MemberCount: ep.MemberCount(),
	}

	probas, err := ep.MemberProbas(x)
	if err != nil {
		t.logger.Warn("member probabilities failed, returning count only",
			zap.String("family", string(m.Family())), zap.Error(err))
		return trace
	}

	sum := 0.0
	for _, p := range probas {
		sum += p
	}
	final := sum / float64(len(probas))

	trace.PerMember = probas
	trace.FinalProba = &final
	return trace
}

// boostingTrace reports per-stage margin deltas, the final margin, and
// its sigmoid.
func (t *Tracer) boostingTrace(m classifier.Model, sp classifier.StagedProvider, x []float64) *models.EnsembleTrace {
	trace := &models.EnsembleTrace{
		Family:      m.Family(),
		MemberCount: sp.MemberCount(),
	}

	staged, err := sp.StagedMargins(x)
	if err != nil || len(staged) == 0 {
		t.logger.Warn("staged margins failed, returning count only",
			zap.String("family", string(m.Family())), zap.Error(err))
		return trace
	}

	deltas := make([]float64, len(staged))
	var initial float64
	if gb, ok := m.(*classifier.GradientBoosting); ok {
		initial = gb.InitialMargin
	}
	prev := initial
	for i, margin := range staged {
		deltas[i] = margin - prev
		prev = margin
	}

	finalMargin := staged[len(staged)-1]
	finalProba := sigmoid(finalMargin)

	trace.PerMember = deltas
	trace.FinalMargin = &finalMargin
	trace.FinalProba = &finalProba
	return trace
}
