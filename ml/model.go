package ml

import (
	"context"
	"errors"
)

var (
	ErrModelNotLoaded   = errors.New("model not loaded")
	ErrUnsupportedModel = errors.New("unsupported model type")
	ErrInvalidModel     = errors.New("invalid model artifact")
	ErrInvalidInput     = errors.New("invalid input")
)

// Regressor predicts one real value per input row.
type Regressor interface {
	Predict(ctx context.Context, rows [][]float64) ([]float64, error)
	NumFeatures() int
}

// PredictOne runs a single feature vector through r.
func PredictOne(ctx context.Context, r Regressor, features []float64) (float64, error) {
	out, err := r.Predict(ctx, [][]float64{features})
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, errors.New("model returned no prediction")
	}
	return out[0], nil
}
