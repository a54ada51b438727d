package ml

import (
	"math"
	"math/rand"
)

// TrainTestSplit shuffles and partitions a dataset. testRatio outside (0, 1)
// falls back to 0.2.
func TrainTestSplit(features [][]float64, targets []float64, testRatio float64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	indices := rand.Perm(len(features))
	split := int(math.Round(float64(len(features)) * (1 - testRatio)))

	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, targets[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, targets[idx])
		}
	}
	return trainX, trainY, testX, testY
}

// ChronologicalSplit partitions without shuffling, keeping the test set at
// the end of the series. Preferred for time-series evaluation.
func ChronologicalSplit(features [][]float64, targets []float64, testRatio float64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i := range features {
		if i < split {
			trainX = append(trainX, features[i])
			trainY = append(trainY, targets[i])
		} else {
			testX = append(testX, features[i])
			testY = append(testY, targets[i])
		}
	}
	return trainX, trainY, testX, testY
}
