package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"calhousing/housing"
	"calhousing/ml"
	"calhousing/monitoring"
)

const welcomeText = "Welcome to the California Housing Price Prediction API! Use the /predict endpoint to get predictions."

const maxRequestBytes = 1 << 20

var (
	errMissingFeatures = errors.New(`Missing "features" key in input data`)
	errFeatureCount    = fmt.Errorf("Invalid number of features. Expected %d.", housing.NumFeatures)
	errRaggedFeatures  = errors.New("features has an inhomogeneous shape")
)

// ModelStatus reports whether a model is ready; ml.Holder implements it.
type ModelStatus interface {
	Loaded() bool
}

type predictRequest map[string]json.RawMessage

type predictResponse struct {
	Prediction []float64 `json:"prediction"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// API serves the prediction endpoints.
type API struct {
	model    ml.Regressor
	status   ModelStatus
	logger   *zap.Logger
	metrics  *monitoring.Collector
	gatherer prometheus.Gatherer
}

type Option func(*API)

func WithLogger(logger *zap.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithMetrics records prediction metrics in collector and serves gatherer
// on /metrics.
func WithMetrics(collector *monitoring.Collector, gatherer prometheus.Gatherer) Option {
	return func(a *API) {
		a.metrics = collector
		a.gatherer = gatherer
	}
}

func WithModelStatus(status ModelStatus) Option {
	return func(a *API) { a.status = status }
}

func NewAPI(model ml.Regressor, opts ...Option) *API {
	a := &API{model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterHandlers 注册路由
func (a *API) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleHome)
	mux.HandleFunc("POST /predict", a.handlePredict)
	mux.HandleFunc("GET /health", a.handleHealth)
	if a.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler 返回带中间件的完整处理器
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterHandlers(mux)

	chain := Chain(
		RecoveryMiddleware(a.logger),
		LoggerMiddleware(a.logger, a.metrics),
		RequestSizeMiddleware(maxRequestBytes),
	)
	return chain(mux)
}

func (a *API) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(welcomeText))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := a.model != nil
	if a.status != nil {
		loaded = a.status.Loaded()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": loaded,
	})
}

func (a *API) handlePredict(w http.ResponseWriter, r *http.Request) {
	// measured from when LoggerMiddleware accepted the request
	start := GetStartTime(r.Context())
	if start.IsZero() {
		start = time.Now()
	}

	var body predictRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	raw, ok := body["features"]
	if !ok {
		a.fail(w, r, http.StatusBadRequest, errMissingFeatures)
		return
	}

	features, err := decodeFeatures(raw)
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	if len(features) != housing.NumFeatures {
		a.fail(w, r, http.StatusBadRequest, errFeatureCount)
		return
	}

	if a.model == nil {
		a.fail(w, r, http.StatusInternalServerError, ml.ErrModelNotLoaded)
		return
	}
	prediction, err := ml.PredictOne(r.Context(), a.model, features)
	if err != nil {
		a.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	if a.metrics != nil {
		a.metrics.ObservePrediction("ok", time.Since(start))
	}
	writeJSON(w, http.StatusOK, predictResponse{Prediction: []float64{prediction}})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	outcome := "error"
	if status < http.StatusInternalServerError {
		outcome = "client_error"
		a.logger.Debug("rejected prediction request",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
	} else {
		a.logger.Warn("prediction failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
	}
	if a.metrics != nil {
		a.metrics.ObservePrediction(outcome, 0)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decodeFeatures accepts a number, a flat array or rectangular nested
// arrays of numbers and returns the values flattened in row-major order.
func decodeFeatures(raw json.RawMessage) ([]float64, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	if _, err := arrayShape(value); err != nil {
		return nil, err
	}
	features := make([]float64, 0, housing.NumFeatures)
	return flattenNumbers(value, features)
}

func flattenNumbers(value interface{}, out []float64) ([]float64, error) {
	switch v := value.(type) {
	case nil:
		return out, nil
	case float64:
		return append(out, v), nil
	case []interface{}:
		var err error
		for _, item := range v {
			if item == nil {
				return nil, errors.New("features must not contain null")
			}
			if out, err = flattenNumbers(item, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("could not convert %v to float", v)
	}
}

// arrayShape returns the dimensions of a nested array. Sibling elements
// must agree in depth and length.
func arrayShape(value interface{}) ([]int, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, nil
	}
	var inner []int
	for i, item := range items {
		shape, err := arrayShape(item)
		if err != nil {
			return nil, err
		}
		if i > 0 && !slices.Equal(shape, inner) {
			return nil, errRaggedFeatures
		}
		inner = shape
	}
	return append([]int{len(items)}, inner...), nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
