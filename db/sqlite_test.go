package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"skycast/pipeline"
	"skycast/weather"
)

func initTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skycast.db")
	if err := InitDB(path); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() {
		Close()
		database = nil
	})
}

func testObservation(city string, ts time.Time, temp float64) *weather.Observation {
	return &weather.Observation{
		City:        city,
		Timestamp:   ts,
		Temperature: temp,
		FeelsLike:   temp + 1,
		Humidity:    65,
		Pressure:    1009,
		WindSpeed:   4.2,
		Clouds:      30,
		Condition:   "Clouds",
		Description: "scattered clouds",
		AQI:         3,
		PM25:        42.5,
		PM10:        80.1,
	}
}

func TestSaveAndQueryObservations(t *testing.T) {
	initTestDB(t)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := []*weather.Observation{
		testObservation("Delhi", base, 30),
		testObservation("Delhi", base.Add(time.Hour), 31),
		testObservation("Mumbai", base, 28),
	}
	if err := SaveObservations(context.Background(), batch); err != nil {
		t.Fatalf("SaveObservations failed: %v", err)
	}

	points, err := QueryObservations("Delhi", 10)
	if err != nil {
		t.Fatalf("QueryObservations failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(points))
	}
	// Chronological order, oldest first.
	if !points[0].Timestamp.Before(points[1].Timestamp) {
		t.Fatal("expected ascending timestamps")
	}
	if points[0].Temperature != 30 || points[1].Temperature != 31 {
		t.Fatalf("unexpected temperatures: %f, %f", points[0].Temperature, points[1].Temperature)
	}
	if points[0].Description != "scattered clouds" || points[0].PM25 != 42.5 {
		t.Fatalf("row fields not persisted: %+v", points[0])
	}
}

func TestSaveObservationsUpsert(t *testing.T) {
	initTestDB(t)

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := SaveObservations(context.Background(), []*weather.Observation{testObservation("Delhi", ts, 30)}); err != nil {
		t.Fatalf("SaveObservations failed: %v", err)
	}
	if err := SaveObservations(context.Background(), []*weather.Observation{testObservation("Delhi", ts, 35)}); err != nil {
		t.Fatalf("SaveObservations failed: %v", err)
	}

	count, err := CountObservations("Delhi")
	if err != nil {
		t.Fatalf("CountObservations failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", count)
	}

	latest, err := LatestObservation("Delhi")
	if err != nil {
		t.Fatalf("LatestObservation failed: %v", err)
	}
	if latest == nil || latest.Temperature != 35 {
		t.Fatalf("expected replaced temperature 35, got %+v", latest)
	}
}

func TestLastTimestamp(t *testing.T) {
	initTestDB(t)

	last, err := LastTimestamp(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("LastTimestamp failed: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time for empty city, got %v", last)
	}

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := []*weather.Observation{
		testObservation("Delhi", base, 30),
		testObservation("Delhi", base.Add(2*time.Hour), 32),
	}
	if err := SaveObservations(context.Background(), batch); err != nil {
		t.Fatalf("SaveObservations failed: %v", err)
	}

	last, err = LastTimestamp(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("LastTimestamp failed: %v", err)
	}
	if !last.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", base.Add(2*time.Hour), last)
	}
}

func TestLatestObservationMissingCity(t *testing.T) {
	initTestDB(t)

	latest, err := LatestObservation("Atlantis")
	if err != nil {
		t.Fatalf("LatestObservation failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil for missing city, got %+v", latest)
	}
}

func TestListCities(t *testing.T) {
	initTestDB(t)

	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := []*weather.Observation{
		testObservation("Mumbai", ts, 28),
		testObservation("Delhi", ts, 30),
	}
	if err := SaveObservations(context.Background(), batch); err != nil {
		t.Fatalf("SaveObservations failed: %v", err)
	}

	cities, err := ListCities()
	if err != nil {
		t.Fatalf("ListCities failed: %v", err)
	}
	if len(cities) != 2 || cities[0] != "Delhi" || cities[1] != "Mumbai" {
		t.Fatalf("unexpected cities: %v", cities)
	}
}

func TestTrainingLogRoundtrip(t *testing.T) {
	initTestDB(t)

	run := TrainingRun{
		ModelName:  "regression_tree",
		MAE:        0.8,
		RMSE:       1.1,
		R2:         0.92,
		TrainedAt:  time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		DataPoints: 500,
	}
	if err := LogTraining(run); err != nil {
		t.Fatalf("LogTraining failed: %v", err)
	}

	runs, err := LoadTrainingLog()
	if err != nil {
		t.Fatalf("LoadTrainingLog failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ModelName != run.ModelName || got.MAE != run.MAE || got.R2 != run.R2 || got.DataPoints != run.DataPoints {
		t.Fatalf("unexpected run: %+v", got)
	}
}

func TestSaveQualityIssuesAndPrediction(t *testing.T) {
	initTestDB(t)

	issues := []pipeline.QualityIssue{{
		Type:      "temperature_range",
		Severity:  "error",
		Message:   "temperature out of range",
		Timestamp: time.Now().UTC(),
		City:      "Delhi",
	}}
	if err := SaveQualityIssues(issues); err != nil {
		t.Fatalf("SaveQualityIssues failed: %v", err)
	}

	point := weather.ForecastPoint{
		Timestamp:   time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
		Temperature: 33.4,
	}
	if err := SavePrediction("Delhi", point, "live"); err != nil {
		t.Fatalf("SavePrediction failed: %v", err)
	}
	// Same target time replaces the earlier row.
	if err := SavePrediction("Delhi", point, "live"); err != nil {
		t.Fatalf("SavePrediction failed: %v", err)
	}
}

func TestStoreAdapter(t *testing.T) {
	initTestDB(t)

	var store Store
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := store.SaveBatch(context.Background(), []*weather.Observation{testObservation("Delhi", ts, 30)}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	last, err := store.GetLastTimestamp(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("GetLastTimestamp failed: %v", err)
	}
	if !last.Equal(ts) {
		t.Fatalf("expected %v, got %v", ts, last)
	}

	points, err := store.RecentObservations("Delhi", 5)
	if err != nil {
		t.Fatalf("RecentObservations failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 row, got %d", len(points))
	}
}
