package classifier

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/Kerremmarket/credit/pkg/models"
)

// MLPModel is a small feed-forward network for binary classification:
// median imputation, standard scaling, relu hidden layers, and a single
// sigmoid output unit. Trained with per-sample SGD backprop.
type MLPModel struct {
	Layers       []DenseLayer `json:"layers"`
	Medians      []float64    `json:"medians"`
	Means        []float64    `json:"means"`
	Stds         []float64    `json:"stds"`
	Names        []string     `json:"feature_names"`
	NumFeatures  int          `json:"num_features"`
	HiddenSizes  []int        `json:"hidden_sizes"`
	LearningRate float64      `json:"learning_rate"`
	Epochs       int          `json:"epochs"`
	RandomSeed   int64        `json:"random_seed"`
}

// NewMLPModel creates a network with the given hidden layer sizes and
// default training hyperparameters where none are given.
func NewMLPModel(hiddenSizes []int, epochs int, seed int64) *MLPModel {
	if len(hiddenSizes) == 0 {
		hiddenSizes = []int{16}
	}
	if epochs <= 0 {
		epochs = 50
	}

	return &MLPModel{
		HiddenSizes:  hiddenSizes,
		LearningRate: 0.01,
		Epochs:       epochs,
		RandomSeed:   seed,
	}
}

// Train fits the imputer and scaler on the training data, then runs SGD
// backprop over shuffled epochs.
func (mlp *MLPModel) Train(X [][]float64, y []int, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	mlp.Names = featureNames
	mlp.NumFeatures = len(X[0])
	mlp.fitPreprocessing(X)

	scaled := make([][]float64, len(X))
	for i, row := range X {
		scaled[i] = mlp.Preprocess(row)
	}

	rng := rand.New(rand.NewSource(mlp.RandomSeed))
	mlp.initLayers(rng)

	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < mlp.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, idx := range order {
			mlp.backprop(scaled[idx], float64(y[idx]))
		}
	}

	return nil
}

// fitPreprocessing records column medians for imputation and column
// means/stds for scaling.
func (mlp *MLPModel) fitPreprocessing(X [][]float64) {
	mlp.Medians = make([]float64, mlp.NumFeatures)
	for j := 0; j < mlp.NumFeatures; j++ {
		finite := make([]float64, 0, len(X))
		for _, row := range X {
			if !math.IsNaN(row[j]) {
				finite = append(finite, row[j])
			}
		}
		mlp.Medians[j] = medianOf(finite)
	}

	imputed := make([][]float64, len(X))
	for i, row := range X {
		r := make([]float64, mlp.NumFeatures)
		for j, v := range row {
			if math.IsNaN(v) {
				v = mlp.Medians[j]
			}
			r[j] = v
		}
		imputed[i] = r
	}

	mlp.Means = columnMeans(imputed)
	mlp.Stds = columnStds(imputed, mlp.Means)
}

// initLayers builds the weight matrices with small random values scaled
// by fan-in.
func (mlp *MLPModel) initLayers(rng *rand.Rand) {
	sizes := append([]int{mlp.NumFeatures}, mlp.HiddenSizes...)
	sizes = append(sizes, 1)

	mlp.Layers = make([]DenseLayer, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		scale := 1.0 / math.Sqrt(float64(in))

		weights := make([][]float64, in)
		for i := range weights {
			weights[i] = make([]float64, out)
			for j := range weights[i] {
				weights[i][j] = (rng.Float64()*2 - 1) * scale
			}
		}

		activation := "relu"
		if l == len(sizes)-2 {
			activation = "sigmoid"
		}

		mlp.Layers[l] = DenseLayer{
			Weights:    weights,
			Bias:       make([]float64, out),
			Activation: activation,
		}
	}
}

// backprop runs one SGD step for a single preprocessed sample.
func (mlp *MLPModel) backprop(x []float64, target float64) {
	activations := make([][]float64, len(mlp.Layers)+1)
	activations[0] = x
	preacts := make([][]float64, len(mlp.Layers))

	for l, layer := range mlp.Layers {
		z := denseForward(activations[l], layer)
		preacts[l] = z
		activations[l+1] = applyActivation(z, layer.Activation)
	}

	// Output delta for sigmoid with cross-entropy loss.
	deltas := make([][]float64, len(mlp.Layers))
	out := activations[len(mlp.Layers)]
	deltas[len(mlp.Layers)-1] = []float64{out[0] - target}

	for l := len(mlp.Layers) - 2; l >= 0; l-- {
		layer := mlp.Layers[l+1]
		delta := make([]float64, len(preacts[l]))
		for i := range delta {
			sum := 0.0
			for j := range deltas[l+1] {
				sum += layer.Weights[i][j] * deltas[l+1][j]
			}
			if preacts[l][i] > 0 {
				delta[i] = sum
			}
		}
		deltas[l] = delta
	}

	for l := range mlp.Layers {
		layer := &mlp.Layers[l]
		for i := range layer.Weights {
			for j := range layer.Weights[i] {
				layer.Weights[i][j] -= mlp.LearningRate * deltas[l][j] * activations[l][i]
			}
		}
		for j := range layer.Bias {
			layer.Bias[j] -= mlp.LearningRate * deltas[l][j]
		}
	}
}

// Family returns the model's family.
func (mlp *MLPModel) Family() models.ModelFamily {
	return models.FamilyNeuralNetwork
}

// FeatureNames returns the feature order the model was trained on.
func (mlp *MLPModel) FeatureNames() []string {
	return mlp.Names
}

// PredictProba runs the forward pass and returns the output unit.
func (mlp *MLPModel) PredictProba(x []float64) (float64, error) {
	if len(mlp.Layers) == 0 {
		return 0, models.ErrNotTrained
	}
	if len(x) != mlp.NumFeatures {
		return 0, fmt.Errorf("expected %d features, got %d", mlp.NumFeatures, len(x))
	}

	a := mlp.Preprocess(x)
	for _, layer := range mlp.Layers {
		a = applyActivation(denseForward(a, layer), layer.Activation)
	}
	return a[0], nil
}

// Preprocess imputes NaN cells with medians and applies the standard
// scaler.
func (mlp *MLPModel) Preprocess(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if math.IsNaN(v) {
			v = mlp.Medians[j]
		}
		out[j] = (v - mlp.Means[j]) / mlp.Stds[j]
	}
	return out
}

// DenseLayers returns the network's layers.
func (mlp *MLPModel) DenseLayers() []DenseLayer {
	return mlp.Layers
}

// denseForward computes z = x*W + b for one layer.
func denseForward(x []float64, layer DenseLayer) []float64 {
	in := len(layer.Weights)
	out := len(layer.Bias)

	w := mat.NewDense(in, out, nil)
	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			w.Set(i, j, layer.Weights[i][j])
		}
	}

	xv := mat.NewDense(1, in, x)
	var z mat.Dense
	z.Mul(xv, w)

	result := make([]float64, out)
	for j := 0; j < out; j++ {
		result[j] = z.At(0, j) + layer.Bias[j]
	}
	return result
}

// applyActivation applies the named activation elementwise.
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

// medianOf returns the median of a slice, 0 when empty.
func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
