package ml

import (
	"math"
	"testing"
)

func TestEvaluatePerfectFit(t *testing.T) {
	yTrue := []float64{1, 2, 3, 4}

	eval, err := Evaluate(yTrue, yTrue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.MAE != 0 || eval.RMSE != 0 {
		t.Fatalf("expected zero error, got %+v", eval)
	}
	if eval.R2 != 1 {
		t.Fatalf("expected R2 1, got %f", eval.R2)
	}
	if eval.DataPoints != 4 {
		t.Fatalf("expected 4 data points, got %d", eval.DataPoints)
	}
}

func TestEvaluateKnownValues(t *testing.T) {
	yTrue := []float64{1, 2, 3, 4}
	yPred := []float64{2, 3, 4, 5}

	eval, err := Evaluate(yTrue, yPred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.MAE != 1 {
		t.Fatalf("expected MAE 1, got %f", eval.MAE)
	}
	if eval.RMSE != 1 {
		t.Fatalf("expected RMSE 1, got %f", eval.RMSE)
	}
	if math.Abs(eval.R2-0.2) > 1e-9 {
		t.Fatalf("expected R2 0.2, got %f", eval.R2)
	}
}

func TestR2ConstantSeries(t *testing.T) {
	r, err := R2([]float64{5, 5, 5}, []float64{4, 5, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != 0 {
		t.Fatalf("expected R2 0 for constant series, got %f", r)
	}
}

func TestMetricsRejectBadInput(t *testing.T) {
	if _, err := MAE(nil, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := RMSE([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
	if _, err := Evaluate([]float64{1, 2}, []float64{1}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}
