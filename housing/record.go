// Package housing defines the prediction record shared by the HTTP service
// and the desktop form.
package housing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NumFeatures is the width of the model input.
const NumFeatures = 8

// PredictionColumn is the last column of the prediction log.
const PredictionColumn = "Prediction"

// FeatureNames lists the model inputs in the order the model expects them.
var FeatureNames = []string{
	"MedInc", "HouseAge", "AveRooms", "AveBedrms",
	"Population", "AveOccup", "Latitude", "Longitude",
}

// Header returns the prediction log header row.
func Header() []string {
	header := make([]string, 0, NumFeatures+1)
	header = append(header, FeatureNames...)
	return append(header, PredictionColumn)
}

// Record is one feature vector plus the prediction made for it.
type Record struct {
	Features   []float64 `json:"features"`
	Prediction float64   `json:"prediction"`
}

// NewRecord copies features so the caller may reuse its slice.
func NewRecord(features []float64, prediction float64) (Record, error) {
	if len(features) != NumFeatures {
		return Record{}, fmt.Errorf("record needs %d features, got %d", NumFeatures, len(features))
	}
	return Record{
		Features:   append([]float64(nil), features...),
		Prediction: prediction,
	}, nil
}

// Feature returns the named feature value.
func (r Record) Feature(name string) (float64, bool) {
	for i, n := range FeatureNames {
		if n == name && i < len(r.Features) {
			return r.Features[i], true
		}
	}
	return 0, false
}

// Row formats the record as a log row.
func (r Record) Row() []string {
	row := make([]string, 0, len(r.Features)+1)
	for _, v := range r.Features {
		row = append(row, formatFloat(v))
	}
	return append(row, formatFloat(r.Prediction))
}

// ParseRow is the inverse of Row.
func ParseRow(row []string) (Record, error) {
	if len(row) != NumFeatures+1 {
		return Record{}, fmt.Errorf("row has %d columns, expected %d", len(row), NumFeatures+1)
	}
	values := make([]float64, len(row))
	for i, cell := range row {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %s: %w", Header()[i], err)
		}
		values[i] = v
	}
	return Record{Features: values[:NumFeatures], Prediction: values[NumFeatures]}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FieldError reports the first form field that could not be used.
type FieldError struct {
	Field string
	Empty bool
}

func (e *FieldError) Error() string {
	if e.Empty {
		return fmt.Sprintf("Please enter a value for %s.", e.Field)
	}
	return fmt.Sprintf("Invalid input for %s. Please enter a number.", e.Field)
}

// ErrFieldCount is returned when the form does not supply every feature.
var ErrFieldCount = errors.New("expected one value per feature")

// ParseFields converts raw form values into a feature vector. Fields are
// checked in order and the first bad one is reported. Only a field with no
// text at all is empty; whitespace around a number is ignored, but a field
// of only whitespace is not a number.
func ParseFields(values []string) ([]float64, error) {
	if len(values) != NumFeatures {
		return nil, fmt.Errorf("%w: got %d", ErrFieldCount, len(values))
	}
	features := make([]float64, 0, NumFeatures)
	for i, raw := range values {
		if raw == "" {
			return nil, &FieldError{Field: FeatureNames[i], Empty: true}
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &FieldError{Field: FeatureNames[i]}
		}
		features = append(features, v)
	}
	return features, nil
}
