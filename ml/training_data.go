package ml

import (
	"errors"

	"skycast/weather"
)

// GenerateTargets returns the temperature lookahead observations ahead of
// each row. The series is assumed hourly and time ordered. Rows within
// lookahead of the end have no target and are excluded by BuildTrainingSet.
func GenerateTargets(series []weather.Observation, lookahead int) ([]float64, error) {
	if len(series) == 0 {
		return nil, errors.New("observation series is empty")
	}
	if lookahead <= 0 {
		return nil, errors.New("lookahead must be positive")
	}

	targets := make([]float64, len(series))
	for i := range series {
		if i+lookahead >= len(series) {
			targets[i] = series[i].Temperature
			continue
		}
		targets[i] = series[i+lookahead].Temperature
	}
	return targets, nil
}

// BuildTrainingSet pairs feature vectors with lookahead targets. Feature
// extraction drops the lookback warmup, and target alignment drops the last
// lookahead rows.
func BuildTrainingSet(series []weather.Observation, lookahead int) ([][]float64, []float64, error) {
	features, err := ExtractFeatures(series)
	if err != nil {
		return nil, nil, err
	}
	targets, err := GenerateTargets(series, lookahead)
	if err != nil {
		return nil, nil, err
	}

	offset := len(series) - len(features)
	featureVectors := make([][]float64, 0, len(features))
	targetValues := make([]float64, 0, len(features))
	for i, feature := range features {
		seriesIdx := i + offset
		if seriesIdx+lookahead >= len(series) {
			break
		}
		featureVectors = append(featureVectors, FeatureVector(feature))
		targetValues = append(targetValues, targets[seriesIdx])
	}

	if len(featureVectors) == 0 {
		return nil, nil, errors.New("not enough observations to build a training set")
	}

	return featureVectors, targetValues, nil
}
