package pipeline

import (
	"context"
	"testing"
	"time"

	"skycast/weather"
)

type fakeStorage struct {
	saved  []*weather.Observation
	issues []QualityIssue
	last   map[string]time.Time
}

func (fs *fakeStorage) SaveBatch(ctx context.Context, points []*weather.Observation) error {
	fs.saved = append(fs.saved, points...)
	return nil
}

func (fs *fakeStorage) GetLastTimestamp(ctx context.Context, city string) (time.Time, error) {
	return fs.last[city], nil
}

func (fs *fakeStorage) SaveQualityIssues(issues []QualityIssue) error {
	fs.issues = append(fs.issues, issues...)
	return nil
}

type fakeAlertSink struct {
	alerts []QualityIssue
}

func (fa *fakeAlertSink) BroadcastQualityAlert(issue QualityIssue) {
	fa.alerts = append(fa.alerts, issue)
}

type fakeMetrics struct {
	counters map[string]int64
}

func (fm *fakeMetrics) IncCounter(name string, delta int64) {
	if fm.counters == nil {
		fm.counters = make(map[string]int64)
	}
	fm.counters[name] += delta
}

func TestIngestBatch(t *testing.T) {
	storage := &fakeStorage{last: make(map[string]time.Time)}
	ingester := NewDataIngester(IngestionConfig{}, nil, NewDataCleaner(), storage)

	now := time.Now()
	points := []*weather.Observation{
		{City: "Delhi", Timestamp: now, Temperature: 28, Humidity: 55, Pressure: 1008, AQI: 3},
		{City: "Mumbai", Timestamp: now, Temperature: 30, Humidity: 70, Pressure: 1005, AQI: 2},
		{City: "Delhi", Timestamp: now.Add(time.Hour), Temperature: 500}, // rejected
	}

	if err := ingester.IngestBatch(context.Background(), points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(storage.saved) != 2 {
		t.Fatalf("expected 2 saved points, got %d", len(storage.saved))
	}

	stats := ingester.GetStats()
	if stats.TotalPoints != 2 {
		t.Fatalf("expected 2 buffered points, got %d", stats.TotalPoints)
	}
	if stats.RejectedPoints != 1 {
		t.Fatalf("expected 1 rejected point, got %d", stats.RejectedPoints)
	}
	if stats.Cities["Delhi"] != 1 || stats.Cities["Mumbai"] != 1 {
		t.Fatalf("unexpected per-city counts: %+v", stats.Cities)
	}
	if len(storage.issues) == 0 {
		t.Fatal("expected rejection issues to be persisted")
	}
}

func TestIngestBatchStreamsIssuesAndCounts(t *testing.T) {
	storage := &fakeStorage{last: make(map[string]time.Time)}
	sink := &fakeAlertSink{}
	metrics := &fakeMetrics{}

	ingester := NewDataIngester(IngestionConfig{}, nil, NewDataCleaner(), storage)
	ingester.SetQualityAlertSink(sink)
	ingester.SetMetricsSink(metrics)

	now := time.Now()
	points := []*weather.Observation{
		{City: "Delhi", Timestamp: now, Temperature: 28, Humidity: 55, Pressure: 1008, AQI: 3},
		{City: "Delhi", Timestamp: now.Add(time.Hour), Temperature: 28, Humidity: 200}, // rejected
	}

	if err := ingester.IngestBatch(context.Background(), points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.alerts) == 0 {
		t.Fatal("expected quality issues to reach the alert sink")
	}
	if sink.alerts[0].City != "Delhi" {
		t.Fatalf("unexpected issue city: %q", sink.alerts[0].City)
	}
	if got := metrics.counters["skycast_points_ingested_total"]; got != 1 {
		t.Fatalf("expected 1 ingested point counted, got %d", got)
	}
	if got := metrics.counters["skycast_points_rejected_total"]; got != 1 {
		t.Fatalf("expected 1 rejected point counted, got %d", got)
	}
}

func TestIngestBatchUpdatesProgress(t *testing.T) {
	storage := &fakeStorage{last: make(map[string]time.Time)}
	ingester := NewDataIngester(IngestionConfig{EnableIncremental: true}, nil, nil, storage)

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	points := []*weather.Observation{
		{City: "Delhi", Timestamp: ts, Temperature: 28},
	}

	if err := ingester.IngestBatch(context.Background(), points); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	progress, err := ingester.GetProgress("Delhi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !progress.Equal(ts) {
		t.Fatalf("expected progress %s, got %s", ts, progress)
	}
}
