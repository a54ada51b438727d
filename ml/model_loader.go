package ml

import (
	"errors"
)

// NewModel constructs an untrained model of the given type.
func NewModel(modelType string, maxTreeDepth int) (Regressor, error) {
	switch modelType {
	case "linear":
		return NewLinearRegression(0, 0, 0), nil
	case "regression_tree":
		return NewRegressionTree(maxTreeDepth), nil
	default:
		return nil, errors.New("unsupported model type")
	}
}

// LoadModel restores a trained model from disk.
func LoadModel(modelType, path string) (Regressor, error) {
	model, err := NewModel(modelType, 0)
	if err != nil {
		return nil, err
	}
	if err := model.Load(path); err != nil {
		return nil, err
	}
	return model, nil
}
