package db

import (
	"context"
	"time"

	"skycast/pipeline"
	"skycast/weather"
)

// Store adapts the package functions to the ingestion and prediction
// interfaces so the wiring stays in main.
type Store struct{}

func (Store) SaveBatch(ctx context.Context, points []*weather.Observation) error {
	return SaveObservations(ctx, points)
}

func (Store) GetLastTimestamp(ctx context.Context, city string) (time.Time, error) {
	return LastTimestamp(ctx, city)
}

func (Store) RecentObservations(city string, limit int) ([]weather.Observation, error) {
	return QueryObservations(city, limit)
}

func (Store) SaveQualityIssues(issues []pipeline.QualityIssue) error {
	return SaveQualityIssues(issues)
}
