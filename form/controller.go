// Package form implements the desktop prediction form independently of the
// UI toolkit. A Presenter shows dialogs, charts and the history table.
package form

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"go.uber.org/zap"

	"calhousing/charts"
	"calhousing/db"
	"calhousing/housing"
	"calhousing/ml"
)

const (
	TitleError      = "Error"
	TitlePrediction = "Prediction"
	TitleSave       = "Save"
)

// Presenter is the UI side of the form.
type Presenter interface {
	ShowInfo(title, message string)
	ShowError(title, message string)
	SetCharts(bar, scatter, histogram image.Image)
	SetTable(header []string, rows [][]string)
}

type Controller struct {
	model     ml.Regressor
	store     db.RecordStore
	presenter Presenter
	logger    *zap.Logger
	size      charts.Size
}

func NewController(model ml.Regressor, store db.RecordStore, presenter Presenter, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		model:     model,
		store:     store,
		presenter: presenter,
		logger:    logger,
	}
}

// SetChartSize changes the size of charts drawn after the next submit.
func (c *Controller) SetChartSize(size charts.Size) {
	c.size = size
}

// Submit validates the raw field values, predicts, logs the record and
// redraws the charts. Every failure is reported through the presenter; the
// returned error is for callers that want to know what happened.
func (c *Controller) Submit(ctx context.Context, values []string) (housing.Record, error) {
	features, err := housing.ParseFields(values)
	if err != nil {
		c.presenter.ShowError(TitleError, err.Error())
		return housing.Record{}, err
	}

	prediction, err := ml.PredictOne(ctx, c.model, features)
	if err != nil {
		c.logger.Warn("prediction failed", zap.Error(err))
		c.presenter.ShowError(TitleError, fmt.Sprintf("An error occurred: %v", err))
		return housing.Record{}, err
	}
	c.presenter.ShowInfo(TitlePrediction, fmt.Sprintf("Predicted House Value: %.2f", prediction))

	rec, err := housing.NewRecord(features, prediction)
	if err != nil {
		c.presenter.ShowError(TitleError, fmt.Sprintf("An error occurred: %v", err))
		return housing.Record{}, err
	}

	saved := c.save(ctx, rec)
	if err := c.refreshCharts(ctx, rec, saved); err != nil {
		c.logger.Warn("chart refresh failed", zap.Error(err))
		c.presenter.ShowError(TitleError, fmt.Sprintf("An error occurred: %v", err))
		return rec, err
	}
	return rec, nil
}

func (c *Controller) save(ctx context.Context, rec housing.Record) bool {
	if err := c.store.Append(ctx, rec); err != nil {
		c.logger.Warn("failed to save prediction", zap.String("path", c.store.Path()), zap.Error(err))
		c.presenter.ShowError(TitleError, fmt.Sprintf("Failed to save prediction: %v", err))
		return false
	}
	c.logger.Debug("prediction saved", zap.String("path", c.store.Path()), zap.Float64("prediction", rec.Prediction))
	c.presenter.ShowInfo(TitleSave, fmt.Sprintf("Prediction saved to %s!", filepath.Base(c.store.Path())))
	return true
}

// refreshCharts redraws from the logged history. The current record is
// added when it did not make it into the log.
func (c *Controller) refreshCharts(ctx context.Context, current housing.Record, saved bool) error {
	history, err := c.store.LoadAll(ctx)
	if err != nil {
		if !errors.Is(err, db.ErrNoLog) {
			c.logger.Warn("failed to read prediction history", zap.Error(err))
		}
		history = nil
		saved = false
	}
	if !saved {
		history = append(history, current)
	}

	predictions := make([]float64, len(history))
	for i, rec := range history {
		predictions[i] = rec.Prediction
	}

	bar, err := charts.Bar(current.Features, current.Prediction, c.size)
	if err != nil {
		return err
	}
	scatter, err := charts.Scatter(history, c.size)
	if err != nil {
		return err
	}
	histogram, err := charts.Histogram(predictions, c.size)
	if err != nil {
		return err
	}
	c.presenter.SetCharts(bar, scatter, histogram)
	return nil
}

// LoadPrevious fills the history table from the prediction log.
func (c *Controller) LoadPrevious(ctx context.Context) error {
	records, err := c.store.LoadAll(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNoLog) {
			c.presenter.ShowError(TitleError, "No predictions found. Please make a prediction first.")
		} else {
			c.presenter.ShowError(TitleError, fmt.Sprintf("Failed to load predictions: %v", err))
		}
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.Row())
	}
	c.presenter.SetTable(housing.Header(), rows)
	return nil
}
