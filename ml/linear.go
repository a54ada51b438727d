package ml

import (
	"encoding/json"
	"errors"
	"math/rand"
	"os"
)

// LinearRegression is trained with mini-batch gradient descent.
type LinearRegression struct {
	weights []float64
	bias    float64

	Lr        float64
	Epochs    int
	BatchSize int
}

type linearModelFile struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// NewLinearRegression creates an untrained model with the given
// hyperparameters; zero values fall back to sensible defaults.
func NewLinearRegression(lr float64, epochs, batchSize int) *LinearRegression {
	if lr <= 0 {
		lr = 0.01
	}
	if epochs <= 0 {
		epochs = 200
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &LinearRegression{Lr: lr, Epochs: epochs, BatchSize: batchSize}
}

// Train fits weights with mini-batch SGD over shuffled epochs.
func (m *LinearRegression) Train(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}

	dim := len(features[0])
	m.weights = make([]float64, dim)
	for i := range m.weights {
		m.weights[i] = rand.NormFloat64() * 0.01
	}
	m.bias = 0

	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}

	for epoch := 0; epoch < m.Epochs; epoch++ {
		rand.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		for start := 0; start < len(indices); start += m.BatchSize {
			end := start + m.BatchSize
			if end > len(indices) {
				end = len(indices)
			}
			batch := indices[start:end]

			gradW := make([]float64, dim)
			gradB := 0.0
			for _, idx := range batch {
				row := features[idx]
				if len(row) != dim {
					return errors.New("inconsistent feature dimensions")
				}
				pred := m.bias
				for j, v := range row {
					pred += m.weights[j] * v
				}
				// Gradient of MSE: 2*(pred-y)/n, the constant folds into Lr.
				diff := pred - targets[idx]
				for j, v := range row {
					gradW[j] += diff * v
				}
				gradB += diff
			}

			scale := m.Lr / float64(len(batch))
			for j := range m.weights {
				m.weights[j] -= scale * gradW[j]
			}
			m.bias -= scale * gradB
		}
	}

	return nil
}

// Predict returns the regression value for one feature vector.
func (m *LinearRegression) Predict(features []float64) (float64, error) {
	if len(m.weights) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(m.weights) {
		return 0, errors.New("feature dimension mismatch")
	}
	sum := m.bias
	for j, v := range features {
		sum += m.weights[j] * v
	}
	return sum, nil
}

// Save writes the weights as JSON.
func (m *LinearRegression) Save(path string) error {
	if len(m.weights) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(linearModelFile{Weights: m.weights, Bias: m.bias})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Load restores weights from a file written by Save.
func (m *LinearRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file linearModelFile
	if err := json.Unmarshal(payload, &file); err != nil {
		return err
	}
	if len(file.Weights) == 0 {
		return errors.New("model file has no weights")
	}
	m.weights = file.Weights
	m.bias = file.Bias
	return nil
}
