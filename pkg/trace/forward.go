// Package trace reconstructs how a model arrived at a prediction:
// layer-by-layer forward passes for linear and feed-forward models,
// root-to-leaf decision paths for tree models, and per-member
// contribution breakdowns for ensembles.
package trace

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Kerremmarket/credit/pkg/classifier"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/models"
)

const (
	// weightRenderLimit is the matrix size above which layer weights are
	// omitted from traces to keep payloads bounded.
	weightRenderLimit = 1000

	// probaEpsilon clamps probabilities before log-odds derivation.
	probaEpsilon = 1e-10
)

// Tracer builds model execution traces.
type Tracer struct {
	logger *zap.Logger
}

// NewTracer creates a tracer.
func NewTracer(logger *zap.Logger) *Tracer {
	return &Tracer{logger: logger.Named("trace")}
}

// ForwardTrace records the arithmetic of a forward pass for linear and
// feed-forward models. Tree families are unsupported and return an
// error; internal computation failures degrade to an empty trace with
// logit 0 and probability 0.5.
func (t *Tracer) ForwardTrace(m classifier.Model, row map[string]float64) (*models.ForwardTrace, error) {
	x := dataset.RowToVector(m.FeatureNames(), row)

	switch model := m.(type) {
	case classifier.CoefficientProvider:
		trace, err := t.linearTrace(m, model, x)
		if err != nil {
			t.logger.Warn("linear trace failed, returning empty trace", zap.Error(err))
			return emptyForwardTrace(), nil
		}
		return trace, nil
	case classifier.LayerProvider:
		trace, err := t.networkTrace(m, model, x)
		if err != nil {
			t.logger.Warn("network trace failed, returning empty trace", zap.Error(err))
			return emptyForwardTrace(), nil
		}
		return trace, nil
	default:
		return nil, models.UnsupportedFamilyError("forward trace", m.Family())
	}
}

// linearTrace renders the single linear layer: z = sum(coef*x) +
// intercept, probability = sigmoid(z), with per-feature terms.
func (t *Tracer) linearTrace(m classifier.Model, cp classifier.CoefficientProvider, x []float64) (*models.ForwardTrace, error) {
	coefs := cp.Coefficients()
	if coefs == nil {
		return nil, models.ErrNotTrained
	}
	if len(x) != len(coefs) {
		return nil, fmt.Errorf("expected %d features, got %d", len(coefs), len(x))
	}

	imputed := x
	if lm, ok := m.(*classifier.LogisticModel); ok {
		imputed = lm.Impute(x)
	}

	z := cp.Intercept()
	contributions := make(map[string]float64, len(coefs))
	for j, name := range m.FeatureNames() {
		term := coefs[j] * imputed[j]
		contributions[name] = term
		z += term
	}
	proba := sigmoid(z)

	layer := models.LayerTrace{
		Kind:           "linear",
		Weights:        [][]float64{coefs},
		Bias:           []float64{cp.Intercept()},
		PreActivation:  []float64{z},
		PostActivation: []float64{proba},
		Activation:     "sigmoid",
		Shape:          fmt.Sprintf("1x%d", len(coefs)),
		Contributions:  contributions,
	}

	return &models.ForwardTrace{
		Layers: []models.LayerTrace{layer},
		Logit:  z,
		Proba:  proba,
	}, nil
}

// networkTrace runs the preprocessed input through each dense layer,
// recording pre- and post-activations. Weight matrices above the render
// limit are omitted. The logit is derived back from the final output.
func (t *Tracer) networkTrace(m classifier.Model, lp classifier.LayerProvider, x []float64) (*models.ForwardTrace, error) {
	layers := lp.DenseLayers()
	if len(layers) == 0 {
		return nil, models.ErrNotTrained
	}
	if len(x) != len(m.FeatureNames()) {
		return nil, fmt.Errorf("expected %d features, got %d", len(m.FeatureNames()), len(x))
	}

	activation := lp.Preprocess(x)
	traces := make([]models.LayerTrace, 0, len(layers))

	for _, layer := range layers {
		in := len(layer.Weights)
		if in == 0 || len(activation) != in {
			return nil, fmt.Errorf("layer shape mismatch: input %d, weights %d", len(activation), in)
		}
		out := len(layer.Bias)

		z := make([]float64, out)
		for j := 0; j < out; j++ {
			sum := layer.Bias[j]
			for i := 0; i < in; i++ {
				sum += activation[i] * layer.Weights[i][j]
			}
			z[j] = sum
		}
		post := applyActivation(z, layer.Activation)

		lt := models.LayerTrace{
			Kind:           "dense",
			Bias:           layer.Bias,
			PreActivation:  z,
			PostActivation: post,
			Activation:     layer.Activation,
			Shape:          fmt.Sprintf("%dx%d", in, out),
		}
		if in*out < weightRenderLimit {
			lt.Weights = layer.Weights
		}
		traces = append(traces, lt)

		activation = post
	}

	if len(activation) != 1 {
		return nil, fmt.Errorf("expected scalar output, got %d units", len(activation))
	}
	proba := activation[0]

	clamped := math.Min(math.Max(proba, probaEpsilon), 1-probaEpsilon)
	logit := math.Log(clamped / (1 - clamped))

	return &models.ForwardTrace{
		Layers: traces,
		Logit:  logit,
		Proba:  proba,
	}, nil
}

func emptyForwardTrace() *models.ForwardTrace {
	return &models.ForwardTrace{
		Layers: []models.LayerTrace{},
		Logit:  0,
		Proba:  0.5,
	}
}

func applyActivation(z []float64, activation string) []float64 {
	out := make([]float64, len(z))
	switch activation {
	case "relu":
		for i, v := range z {
			if v > 0 {
				out[i] = v
			}
		}
	case "sigmoid":
		for i, v := range z {
			out[i] = sigmoid(v)
		}
	default:
		copy(out, z)
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
