package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"calhousing/monitoring"
)

type staticStatus bool

func (s staticStatus) Loaded() bool { return bool(s) }

func TestHomeHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	NewAPI(&fakeModel{}).Handler().ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	if rr.Body.String() != welcomeText {
		t.Errorf("handler returned unexpected body: got %v", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestUnknownPath(t *testing.T) {
	req := httptest.NewRequest("GET", "/nope", nil)
	rr := httptest.NewRecorder()
	NewAPI(&fakeModel{}).Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		status   ModelStatus
		expected string
	}{
		{status: staticStatus(true), expected: `{"model_loaded":true,"status":"ok"}`},
		{status: staticStatus(false), expected: `{"model_loaded":false,"status":"ok"}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()
		NewAPI(&fakeModel{}, WithModelStatus(tt.status)).Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if strings.TrimSpace(rr.Body.String()) != tt.expected {
			t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), tt.expected)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := monitoring.NewCollector()
	registry.MustRegister(collector)
	handler := NewAPI(&fakeModel{value: 1}, WithMetrics(collector, registry)).Handler()

	doPredict(t, handler, `{"features":[1,2,3,4,5,6,7,8]}`)
	doPredict(t, handler, `{"features":[1]}`)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`housing_predictions_total{outcome="ok"} 1`,
		`housing_predictions_total{outcome="client_error"} 1`,
		`housing_http_requests_total{code="400",method="POST",path="/predict"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestPredictionDurationFromRequestStart(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := monitoring.NewCollector()
	registry.MustRegister(collector)
	api := NewAPI(&fakeModel{value: 1}, WithMetrics(collector, registry))

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"features":[1,2,3,4,5,6,7,8]}`))
	started := time.Now().Add(-2 * time.Second)
	req = req.WithContext(context.WithValue(req.Context(), StartTimeKey, started))
	rr := httptest.NewRecorder()
	api.handlePredict(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	mrr := httptest.NewRecorder()
	api.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var sum float64
	for _, line := range strings.Split(mrr.Body.String(), "\n") {
		if rest, ok := strings.CutPrefix(line, "housing_prediction_duration_seconds_sum "); ok {
			v, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				t.Fatalf("bad sum line %q: %v", line, err)
			}
			sum = v
		}
	}
	if sum < 2 {
		t.Fatalf("expected duration measured from request start, got %v", sum)
	}
}

func TestMetricsDisabled(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	NewAPI(&fakeModel{}).Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", rr.Code)
	}
}
