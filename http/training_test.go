package http

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skycast/ml"
	"skycast/weather"
)

func syntheticSeries(city string, n int) []weather.Observation {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	series := make([]weather.Observation, n)
	for i := 0; i < n; i++ {
		hour := float64(i % 24)
		series[i] = weather.Observation{
			City:        city,
			Timestamp:   start.Add(time.Duration(i) * time.Hour),
			Temperature: 25 + 5*hour/24,
			Humidity:    60,
			Pressure:    1010,
			WindSpeed:   3,
			Clouds:      20,
		}
	}
	return series
}

func TestTrainModel(t *testing.T) {
	original := loadTrainingObservations
	loadTrainingObservations = func(city string, limit int) ([]weather.Observation, error) {
		return syntheticSeries(city, 300), nil
	}
	defer func() { loadTrainingObservations = original }()

	modelPath := filepath.Join(t.TempDir(), "temperature.model")
	run, err := trainModel(TrainingConfig{
		City:           "Delhi",
		ModelType:      "regression_tree",
		ModelPath:      modelPath,
		MaxTreeDepth:   6,
		LookaheadHours: 3,
		TestRatio:      0.2,
		MinDataPoints:  200,
		HistoryLimit:   5000,
	})
	if err != nil {
		t.Fatalf("trainModel failed: %v", err)
	}
	if run.ModelName != "regression_tree" {
		t.Fatalf("unexpected model name: %s", run.ModelName)
	}
	if run.DataPoints == 0 {
		t.Fatal("expected nonzero data points")
	}
	// The diurnal pattern is learnable, so the error stays small.
	if run.MAE > 3 {
		t.Fatalf("MAE too high: %f", run.MAE)
	}
	if _, err := os.Stat(ml.StatsPath(modelPath)); err != nil {
		t.Fatalf("expected feature stats next to the model: %v", err)
	}
}

func TestTrainModelLinear(t *testing.T) {
	original := loadTrainingObservations
	loadTrainingObservations = func(city string, limit int) ([]weather.Observation, error) {
		return syntheticSeries(city, 300), nil
	}
	defer func() { loadTrainingObservations = original }()

	modelPath := filepath.Join(t.TempDir(), "temperature.model")
	run, err := trainModel(TrainingConfig{
		City:           "Delhi",
		ModelType:      "linear",
		ModelPath:      modelPath,
		LookaheadHours: 3,
		TestRatio:      0.2,
		MinDataPoints:  200,
		HistoryLimit:   5000,
	})
	if err != nil {
		t.Fatalf("trainModel failed: %v", err)
	}
	if math.IsNaN(run.MAE) || math.IsInf(run.MAE, 0) {
		t.Fatalf("linear model diverged: MAE %f", run.MAE)
	}
	if run.MAE > 3 {
		t.Fatalf("MAE too high: %f", run.MAE)
	}
	if _, err := os.Stat(modelPath); err != nil {
		t.Fatalf("expected saved model: %v", err)
	}
}

func TestTrainModelValidation(t *testing.T) {
	if _, err := trainModel(TrainingConfig{ModelPath: "x"}); err == nil {
		t.Fatal("expected error for missing city")
	}
	if _, err := trainModel(TrainingConfig{City: "Delhi"}); err == nil {
		t.Fatal("expected error for missing model path")
	}

	original := loadTrainingObservations
	loadTrainingObservations = func(city string, limit int) ([]weather.Observation, error) {
		return syntheticSeries(city, 50), nil
	}
	defer func() { loadTrainingObservations = original }()

	_, err := trainModel(TrainingConfig{
		City:          "Delhi",
		ModelType:     "regression_tree",
		ModelPath:     filepath.Join(t.TempDir(), "m"),
		MinDataPoints: 200,
	})
	if err == nil {
		t.Fatal("expected error for insufficient data")
	}
}
