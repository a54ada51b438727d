package ml

import (
	"math"
	"path/filepath"
	"testing"
)

func TestLinearRegressionFitsLine(t *testing.T) {
	var features [][]float64
	var targets []float64
	for i := 0; i < 50; i++ {
		x := float64(i) / 50.0
		features = append(features, []float64{x})
		targets = append(targets, 2*x+1)
	}

	model := NewLinearRegression(0.05, 500, 8)
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pred, err := model.Predict([]float64{0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(pred-2.0) > 0.3 {
		t.Fatalf("expected prediction near 2.0, got %f", pred)
	}
}

func TestLinearRegressionValidation(t *testing.T) {
	model := NewLinearRegression(0, 0, 0)

	if err := model.Train(nil, nil); err == nil {
		t.Fatal("expected error for empty training data")
	}
	if err := model.Train([][]float64{{1}}, []float64{1, 2}); err == nil {
		t.Fatal("expected error for size mismatch")
	}
	if _, err := model.Predict([]float64{1}); err == nil {
		t.Fatal("expected error for untrained model")
	}
}

func TestLinearRegressionSaveLoad(t *testing.T) {
	features := [][]float64{{0}, {0.5}, {1}}
	targets := []float64{1, 2, 3}

	model := NewLinearRegression(0.1, 300, 3)
	if err := model.Train(features, targets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "linear.model")
	if err := model.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	restored := NewLinearRegression(0, 0, 0)
	if err := restored.Load(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want, _ := model.Predict([]float64{0.7})
	got, err := restored.Predict([]float64{0.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want != got {
		t.Fatalf("expected restored model to predict %f, got %f", want, got)
	}
}
