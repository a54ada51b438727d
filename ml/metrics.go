package ml

import (
	"errors"
	"math"
)

// Evaluation is a regression quality summary.
type Evaluation struct {
	MAE        float64 `json:"mae"`
	MSE        float64 `json:"mse"`
	RMSE       float64 `json:"rmse"`
	R2         float64 `json:"r2"`
	DataPoints int     `json:"data_points"`
}

// Evaluate computes the standard regression metrics over paired slices.
func Evaluate(yTrue, yPred []float64) (*Evaluation, error) {
	if len(yTrue) == 0 {
		return nil, errors.New("no values to evaluate")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.New("true/predicted length mismatch")
	}

	mse := mse(yTrue, yPred)
	return &Evaluation{
		MAE:        mae(yTrue, yPred),
		MSE:        mse,
		RMSE:       math.Sqrt(mse),
		R2:         r2(yTrue, yPred),
		DataPoints: len(yTrue),
	}, nil
}

// MAE returns the mean absolute error.
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPaired(yTrue, yPred); err != nil {
		return 0, err
	}
	return mae(yTrue, yPred), nil
}

// RMSE returns the root mean squared error.
func RMSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPaired(yTrue, yPred); err != nil {
		return 0, err
	}
	return math.Sqrt(mse(yTrue, yPred)), nil
}

// R2 returns the coefficient of determination. A constant true series
// yields 0.
func R2(yTrue, yPred []float64) (float64, error) {
	if err := checkPaired(yTrue, yPred); err != nil {
		return 0, err
	}
	return r2(yTrue, yPred), nil
}

func checkPaired(yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.New("no values to evaluate")
	}
	if len(yTrue) != len(yPred) {
		return errors.New("true/predicted length mismatch")
	}
	return nil
}

func mae(yTrue, yPred []float64) float64 {
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		if d < 0 {
			d = -d
		}
		s += d
	}
	return s / float64(len(yTrue))
}

func mse(yTrue, yPred []float64) float64 {
	s := 0.0
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		s += d * d
	}
	return s / float64(len(yTrue))
}

func r2(yTrue, yPred []float64) float64 {
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	ssTot := 0.0
	ssRes := 0.0
	for i := range yTrue {
		d := yTrue[i] - mean
		ssTot += d * d
		r := yTrue[i] - yPred[i]
		ssRes += r * r
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
