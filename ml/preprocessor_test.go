package ml

import (
	"math"
	"path/filepath"
	"testing"
)

func TestPreprocessorNormalize(t *testing.T) {
	series := hourlySeries("Delhi", 30, func(i int) float64 { return float64(i) })
	features, err := ExtractFeatures(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p DataPreprocessor
	if err := p.ComputeStats(features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vectors, err := p.Normalize(features)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != len(features) {
		t.Fatalf("expected %d rows, got %d", len(features), len(vectors))
	}
	for i, vector := range vectors {
		for j, v := range vector {
			if v < 0 || v > 1 {
				t.Fatalf("row %d feature %d out of [0,1]: %f", i, j, v)
			}
		}
	}
	// Temperature rises monotonically, so the first and last rows hit the
	// range ends.
	if vectors[0][0] != 0 || vectors[len(vectors)-1][0] != 1 {
		t.Fatalf("expected temp scaled to 0 and 1, got %f and %f",
			vectors[0][0], vectors[len(vectors)-1][0])
	}
}

func TestPreprocessorRequiresStats(t *testing.T) {
	var p DataPreprocessor
	if _, err := p.Normalize([]WeatherFeatures{{}}); err == nil {
		t.Fatal("expected error before ComputeStats")
	}
	if err := p.ComputeStats(nil); err == nil {
		t.Fatal("expected error for empty feature set")
	}
}

func TestPreprocessorFitRowsAndReload(t *testing.T) {
	series := hourlySeries("Delhi", 40, func(i int) float64 { return 20 + float64(i%7) })
	features, err := ExtractFeatures(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := make([][]float64, len(features))
	for i, f := range features {
		rows[i] = FeatureVector(f)
	}

	var p DataPreprocessor
	if err := p.FitRows(rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scaled, err := p.NormalizeRows(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, row := range scaled {
		for j, v := range row {
			if v < 0 || v > 1 {
				t.Fatalf("row %d feature %d out of [0,1]: %f", i, j, v)
			}
		}
	}

	path := StatsPath(filepath.Join(t.TempDir(), "temperature.model"))
	if err := p.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var reloaded DataPreprocessor
	if err := reloaded.Load(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := reloaded.NormalizeRow(rows[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for j, v := range got {
		if math.Abs(v-scaled[0][j]) > 1e-12 {
			t.Fatalf("reloaded stats scale differently at feature %d: %f vs %f", j, v, scaled[0][j])
		}
	}
}

func TestPreprocessorFitRowsEmpty(t *testing.T) {
	var p DataPreprocessor
	if err := p.FitRows(nil); err == nil {
		t.Fatal("expected error for empty rows")
	}
	if _, err := p.NormalizeRow(make([]float64, len(FeatureNames()))); err == nil {
		t.Fatal("expected error before FitRows")
	}
}

func TestNormalizeVectorConstantFeature(t *testing.T) {
	out, err := NormalizeVector([]float64{5, 10}, []float64{5, 0}, []float64{5, 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 0 {
		t.Fatalf("constant feature should map to 0, got %f", out[0])
	}
	if math.Abs(out[1]-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %f", out[1])
	}

	if _, err := NormalizeVector([]float64{1}, []float64{0, 0}, []float64{1, 1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
