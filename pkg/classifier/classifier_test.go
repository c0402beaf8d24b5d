package classifier

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/Kerremmarket/credit/pkg/models"
)

// syntheticData generates a binary problem where the first feature
// separates the classes and the second is noise.
func syntheticData(n int, seed int64) ([][]float64, []int, []string) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		signal := rng.Float64() * 10
		noise := rng.Float64() * 10
		X[i] = []float64{signal, noise}
		if signal > 5 {
			y[i] = 1
		}
	}
	return X, y, []string{"signal", "noise"}
}

func TestDecisionTreeTrainPredict(t *testing.T) {
	X, y, names := syntheticData(200, 1)

	tree := NewDecisionTree(5, 2, 1)
	if err := tree.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	pHigh, err := tree.PredictProba([]float64{9.0, 5.0})
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	pLow, err := tree.PredictProba([]float64{1.0, 5.0})
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}

	if pHigh <= pLow {
		t.Errorf("Expected higher probability for signal=9 than signal=1, got %v vs %v", pHigh, pLow)
	}
	if pHigh < 0 || pHigh > 1 || pLow < 0 || pLow > 1 {
		t.Errorf("Probabilities out of range: %v, %v", pHigh, pLow)
	}
}

func TestDecisionTreeUntrained(t *testing.T) {
	tree := NewDecisionTree(5, 2, 1)
	if _, err := tree.PredictProba([]float64{1, 2}); err == nil {
		t.Error("Expected error for untrained tree")
	}
}

func TestDecisionTreeFeatureImportance(t *testing.T) {
	X, y, names := syntheticData(200, 2)

	tree := NewDecisionTree(5, 2, 1)
	if err := tree.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	importance := tree.FeatureImportance()
	total := 0.0
	for _, v := range importance {
		if v < 0 {
			t.Errorf("Negative importance: %v", importance)
		}
		total += v
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("Importances must sum to 1, got %v", total)
	}
	if importance["signal"] <= importance["noise"] {
		t.Errorf("Signal feature should dominate, got %v", importance)
	}
}

func TestFlattenPreorder(t *testing.T) {
	X, y, names := syntheticData(200, 3)

	tree := NewDecisionTree(5, 2, 1)
	if err := tree.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	view := tree.Flatten()
	if view.NumNodes() < 3 {
		t.Fatalf("Expected a split tree, got %d nodes", view.NumNodes())
	}

	// Children always carry larger indices than their parent in a
	// preorder layout.
	for i := 0; i < view.NumNodes(); i++ {
		if view.IsLeaf(i) {
			if view.Left[i] != -1 || view.Right[i] != -1 {
				t.Errorf("Leaf %d has children", i)
			}
			continue
		}
		if view.Left[i] <= i || view.Right[i] <= i {
			t.Errorf("Node %d has non-increasing children %d/%d", i, view.Left[i], view.Right[i])
		}
	}

	// The flattened walk must reach the same leaf value as the pointer
	// tree's own prediction.
	x := []float64{7.5, 2.0}
	want, err := tree.PredictProba(x)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}

	idx := 0
	for !view.IsLeaf(idx) {
		if x[view.Feature[idx]] <= view.Threshold[idx] {
			idx = view.Left[idx]
		} else {
			idx = view.Right[idx]
		}
	}
	if view.Value[idx] != want {
		t.Errorf("Flattened leaf value %v != tree prediction %v", view.Value[idx], want)
	}
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y, names := syntheticData(150, 4)

	rf1 := NewRandomForest(10, 4, 42)
	if err := rf1.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	rf2 := NewRandomForest(10, 4, 42)
	if err := rf2.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	x := []float64{8.0, 3.0}
	p1, _ := rf1.PredictProba(x)
	p2, _ := rf2.PredictProba(x)
	if p1 != p2 {
		t.Errorf("Same seed must give identical forests, got %v vs %v", p1, p2)
	}
}

func TestRandomForestMemberProbas(t *testing.T) {
	X, y, names := syntheticData(150, 5)

	rf := NewRandomForest(10, 4, 42)
	if err := rf.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	x := []float64{8.0, 3.0}
	probas, err := rf.MemberProbas(x)
	if err != nil {
		t.Fatalf("MemberProbas failed: %v", err)
	}
	if len(probas) != rf.MemberCount() {
		t.Fatalf("Expected %d member probabilities, got %d", rf.MemberCount(), len(probas))
	}

	mean := 0.0
	for _, p := range probas {
		if p < 0 || p > 1 {
			t.Errorf("Member probability out of range: %v", p)
		}
		mean += p
	}
	mean /= float64(len(probas))

	final, _ := rf.PredictProba(x)
	if math.Abs(final-mean) > 1e-12 {
		t.Errorf("Forest probability %v must equal member mean %v", final, mean)
	}
}

func TestGradientBoostingStagedMargins(t *testing.T) {
	X, y, names := syntheticData(150, 6)

	gb := NewGradientBoosting(10, 3, 0.1)
	if err := gb.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	x := []float64{8.0, 3.0}
	staged, err := gb.StagedMargins(x)
	if err != nil {
		t.Fatalf("StagedMargins failed: %v", err)
	}
	if len(staged) != gb.MemberCount() {
		t.Fatalf("Expected %d staged margins, got %d", gb.MemberCount(), len(staged))
	}

	// Initial margin plus per-stage deltas must reconstruct the final
	// margin exactly.
	sum := gb.InitialMargin
	prev := gb.InitialMargin
	for _, m := range staged {
		sum += m - prev
		prev = m
	}
	final, err := gb.Margin(x)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}
	if math.Abs(sum-final) > 1e-9 {
		t.Errorf("Delta sum %v != final margin %v", sum, final)
	}

	proba, _ := gb.PredictProba(x)
	want := 1.0 / (1.0 + math.Exp(-final))
	if math.Abs(proba-want) > 1e-12 {
		t.Errorf("Probability %v must be sigmoid of margin, want %v", proba, want)
	}
}

func TestGradientBoostingLearnsSignal(t *testing.T) {
	X, y, names := syntheticData(200, 7)

	gb := NewGradientBoosting(20, 3, 0.2)
	if err := gb.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	pHigh, _ := gb.PredictProba([]float64{9.0, 5.0})
	pLow, _ := gb.PredictProba([]float64{1.0, 5.0})
	if pHigh <= pLow {
		t.Errorf("Expected higher probability for signal=9, got %v vs %v", pHigh, pLow)
	}
}

func TestLogisticMarginProperty(t *testing.T) {
	X, y, names := syntheticData(300, 8)

	lm := NewLogisticModel(0.5, 800)
	if err := lm.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	x := []float64{7.0, 2.0}
	z, err := lm.Margin(x)
	if err != nil {
		t.Fatalf("Margin failed: %v", err)
	}

	want := lm.Intercept()
	for j, c := range lm.Coefficients() {
		want += c * x[j]
	}
	if math.Abs(z-want) > 1e-9 {
		t.Errorf("Margin %v != coef dot x + intercept %v", z, want)
	}

	proba, _ := lm.PredictProba(x)
	if math.Abs(proba-1.0/(1.0+math.Exp(-z))) > 1e-12 {
		t.Errorf("Probability must be sigmoid of margin")
	}

	pHigh, _ := lm.PredictProba([]float64{9.0, 5.0})
	pLow, _ := lm.PredictProba([]float64{1.0, 5.0})
	if pHigh <= pLow {
		t.Errorf("Expected higher probability for signal=9, got %v vs %v", pHigh, pLow)
	}
}

func TestLogisticImputesNaN(t *testing.T) {
	X, y, names := syntheticData(200, 9)

	lm := NewLogisticModel(0.5, 300)
	if err := lm.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	p, err := lm.PredictProba([]float64{math.NaN(), 5.0})
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		t.Errorf("NaN input must be imputed, got %v", p)
	}
}

func TestMLPForwardPass(t *testing.T) {
	X, y, names := syntheticData(200, 10)

	mlp := NewMLPModel([]int{8}, 30, 42)
	if err := mlp.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	p, err := mlp.PredictProba([]float64{8.0, 3.0})
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if p <= 0 || p >= 1 {
		t.Errorf("Sigmoid output must be in (0,1), got %v", p)
	}

	layers := mlp.DenseLayers()
	if len(layers) != 2 {
		t.Fatalf("Expected 2 layers, got %d", len(layers))
	}
	if layers[0].Activation != "relu" || layers[1].Activation != "sigmoid" {
		t.Errorf("Unexpected activations: %v, %v", layers[0].Activation, layers[1].Activation)
	}

	pre := mlp.Preprocess([]float64{math.NaN(), 3.0})
	if math.IsNaN(pre[0]) {
		t.Error("Preprocess must impute NaN with the median")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	X, y, names := syntheticData(150, 11)

	gb := NewGradientBoosting(5, 3, 0.1)
	if err := gb.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := SaveModel(gb, path); err != nil {
		t.Fatalf("SaveModel failed: %v", err)
	}

	loaded, err := LoadModel(models.FamilyGradientBoosting, path)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}

	x := []float64{6.0, 4.0}
	want, _ := gb.PredictProba(x)
	got, err := loaded.PredictProba(x)
	if err != nil {
		t.Fatalf("Loaded model prediction failed: %v", err)
	}
	if math.Abs(want-got) > 1e-12 {
		t.Errorf("Loaded model predicts %v, want %v", got, want)
	}
}

func TestLoadModelUnknownFamily(t *testing.T) {
	if _, err := LoadModel("svm", "nope.json"); err == nil {
		t.Error("Expected error for unknown family")
	}
}

func TestMetrics(t *testing.T) {
	X, y, names := syntheticData(200, 12)

	tree := NewDecisionTree(6, 2, 1)
	if err := tree.Train(X, y, names); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	acc := Accuracy(tree, X, y)
	if acc < 0.9 {
		t.Errorf("Expected high training accuracy on separable data, got %v", acc)
	}

	auc := AUC(tree, X, y)
	if auc < 0.9 || auc > 1.0 {
		t.Errorf("Expected AUC near 1, got %v", auc)
	}

	cm := ConfusionMatrix(tree, X, y)
	total := cm[0][0] + cm[0][1] + cm[1][0] + cm[1][1]
	if total != len(X) {
		t.Errorf("Confusion matrix total %d != %d samples", total, len(X))
	}
}
