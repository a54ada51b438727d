package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// DataPreprocessor normalizes feature vectors against stats captured from the
// training set, so training and serving see the same scaling.
type DataPreprocessor struct {
	featureStats map[string][2]float64
}

// ComputeStats captures per-feature min/max from a feature set.
func (p *DataPreprocessor) ComputeStats(features []WeatherFeatures) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	p.featureStats = computeFeatureStats(features)
	return nil
}

// Normalize scales each feature row to [0, 1] using the captured stats.
func (p *DataPreprocessor) Normalize(features []WeatherFeatures) ([][]float64, error) {
	if len(features) == 0 {
		return nil, errors.New("features is empty")
	}
	if p.featureStats == nil {
		return nil, errors.New("feature stats not computed")
	}

	names := FeatureNames()
	mins := make([]float64, len(names))
	maxs := make([]float64, len(names))
	for i, name := range names {
		stats, ok := p.featureStats[name]
		if !ok {
			return nil, fmt.Errorf("missing stats for %s", name)
		}
		mins[i] = stats[0]
		maxs[i] = stats[1]
	}

	vectors := make([][]float64, len(features))
	for i, feature := range features {
		vector := FeatureVector(feature)
		normalized, err := NormalizeVector(vector, mins, maxs)
		if err != nil {
			return nil, err
		}
		vectors[i] = normalized
	}
	return vectors, nil
}

// FitRows captures per-column min/max from raw feature vectors. Columns
// follow FeatureNames order.
func (p *DataPreprocessor) FitRows(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("rows is empty")
	}
	names := FeatureNames()
	if len(rows[0]) != len(names) {
		return fmt.Errorf("row width %d does not match %d features", len(rows[0]), len(names))
	}

	stats := make(map[string][2]float64, len(names))
	for col, name := range names {
		min, max := rows[0][col], rows[0][col]
		for _, row := range rows[1:] {
			if row[col] < min {
				min = row[col]
			}
			if row[col] > max {
				max = row[col]
			}
		}
		stats[name] = [2]float64{min, max}
	}
	p.featureStats = stats
	return nil
}

// NormalizeRow scales one raw feature vector with the captured stats.
func (p *DataPreprocessor) NormalizeRow(row []float64) ([]float64, error) {
	mins, maxs, err := p.bounds()
	if err != nil {
		return nil, err
	}
	return NormalizeVector(row, mins, maxs)
}

// NormalizeRows scales a raw feature matrix with the captured stats.
func (p *DataPreprocessor) NormalizeRows(rows [][]float64) ([][]float64, error) {
	mins, maxs, err := p.bounds()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		normalized, err := NormalizeVector(row, mins, maxs)
		if err != nil {
			return nil, err
		}
		out[i] = normalized
	}
	return out, nil
}

func (p *DataPreprocessor) bounds() ([]float64, []float64, error) {
	if p.featureStats == nil {
		return nil, nil, errors.New("feature stats not computed")
	}
	names := FeatureNames()
	mins := make([]float64, len(names))
	maxs := make([]float64, len(names))
	for i, name := range names {
		stats, ok := p.featureStats[name]
		if !ok {
			return nil, nil, fmt.Errorf("missing stats for %s", name)
		}
		mins[i] = stats[0]
		maxs[i] = stats[1]
	}
	return mins, maxs, nil
}

// Save writes the captured stats as JSON, next to the model they scale for.
func (p *DataPreprocessor) Save(path string) error {
	if p.featureStats == nil {
		return errors.New("feature stats not computed")
	}
	payload, err := json.Marshal(p.featureStats)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load restores stats written by Save.
func (p *DataPreprocessor) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var stats map[string][2]float64
	if err := json.Unmarshal(payload, &stats); err != nil {
		return err
	}
	if len(stats) == 0 {
		return errors.New("stats file is empty")
	}
	p.featureStats = stats
	return nil
}

// StatsPath is the sidecar file carrying the scaling stats for a model.
func StatsPath(modelPath string) string {
	return modelPath + ".stats"
}

// NormalizeVector min-max scales one vector. A constant feature maps to 0.
func NormalizeVector(vector, mins, maxs []float64) ([]float64, error) {
	if len(vector) != len(mins) || len(vector) != len(maxs) {
		return nil, errors.New("vector/stats length mismatch")
	}
	out := make([]float64, len(vector))
	for i, v := range vector {
		if maxs[i] == mins[i] {
			out[i] = 0
			continue
		}
		out[i] = (v - mins[i]) / (maxs[i] - mins[i])
	}
	return out, nil
}

// FeatureStats returns a copy of the captured stats.
func (p *DataPreprocessor) FeatureStats() map[string][2]float64 {
	if p.featureStats == nil {
		return nil
	}
	out := make(map[string][2]float64, len(p.featureStats))
	keys := make([]string, 0, len(p.featureStats))
	for key := range p.featureStats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out[key] = p.featureStats[key]
	}
	return out
}
