package ml

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Holder owns the process-wide model. It is loaded once at startup and
// may be replaced by Reload or Swap; readers always see a complete model.
type Holder struct {
	modelType string
	path      string
	logger    *zap.Logger

	mu      sync.RWMutex
	model   Regressor
	loadErr error

	listenersMu sync.Mutex
	listeners   []func(error)
}

func NewHolder(modelType, path string, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Holder{modelType: modelType, path: path, logger: logger}
}

func (h *Holder) Path() string {
	return h.path
}

// OnReload registers fn to run after every Reload attempt.
func (h *Holder) OnReload(fn func(error)) {
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, fn)
	h.listenersMu.Unlock()
}

// Reload reads the artifact again. A failed reload keeps the previous
// model; the error is remembered only when no model was ever loaded.
func (h *Holder) Reload() error {
	model, err := LoadModel(h.modelType, h.path)
	h.mu.Lock()
	if err == nil {
		h.model = model
		h.loadErr = nil
	} else if h.model == nil {
		h.loadErr = err
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Warn("model load failed", zap.String("path", h.path), zap.Error(err))
	} else {
		h.logger.Info("model loaded",
			zap.String("path", h.path),
			zap.String("type", h.modelType),
			zap.Int("features", model.NumFeatures()))
	}

	h.listenersMu.Lock()
	listeners := append([]func(error){}, h.listeners...)
	h.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(err)
	}
	return err
}

func (h *Holder) Swap(model Regressor) {
	h.mu.Lock()
	h.model = model
	h.loadErr = nil
	h.mu.Unlock()
}

func (h *Holder) Get() (Regressor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.model == nil {
		if h.loadErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelNotLoaded, h.loadErr)
		}
		return nil, ErrModelNotLoaded
	}
	return h.model, nil
}

func (h *Holder) Loaded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model != nil
}

func (h *Holder) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	model, err := h.Get()
	if err != nil {
		return nil, err
	}
	return model.Predict(ctx, rows)
}

func (h *Holder) NumFeatures() int {
	model, err := h.Get()
	if err != nil {
		return 0
	}
	return model.NumFeatures()
}
