package ml

// Regressor is a trainable regression model with file persistence.
type Regressor interface {
	Train(features [][]float64, targets []float64) error
	Predict(features []float64) (float64, error)
	Save(path string) error
	Load(path string) error
}
