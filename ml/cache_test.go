package ml

import (
	"context"
	"errors"
	"testing"
)

func TestCachedRegressorHitsAndMisses(t *testing.T) {
	fake := &fakeRegressor{value: 1.25}
	cached, err := NewCachedRegressor(fake, 16)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		got, err := PredictOne(context.Background(), cached, sampleRow)
		if err != nil || got != 1.25 {
			t.Fatalf("unexpected result: %v %v", got, err)
		}
	}
	if fake.calls != 1 {
		t.Fatalf("expected one model call, got %d", fake.calls)
	}
	if cached.Hits() != 2 || cached.Misses() != 1 || cached.Len() != 1 {
		t.Fatalf("unexpected stats: hits=%d misses=%d len=%d", cached.Hits(), cached.Misses(), cached.Len())
	}

	cached.Purge()
	if _, err := PredictOne(context.Background(), cached, sampleRow); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected purge to force a model call, got %d calls", fake.calls)
	}
}

func TestCachedRegressorDistinguishesRows(t *testing.T) {
	fake := &fakeRegressor{value: 1}
	cached, _ := NewCachedRegressor(fake, 16)
	other := append([]float64(nil), sampleRow...)
	other[7] = -122.24
	PredictOne(context.Background(), cached, sampleRow)
	PredictOne(context.Background(), cached, other)
	if fake.calls != 2 {
		t.Fatalf("expected two model calls, got %d", fake.calls)
	}
}

func TestCachedRegressorSkipsErrorsAndBatches(t *testing.T) {
	fake := &fakeRegressor{err: errors.New("boom")}
	cached, _ := NewCachedRegressor(fake, 16)
	if _, err := PredictOne(context.Background(), cached, sampleRow); err == nil {
		t.Fatal("expected error")
	}
	if cached.Len() != 0 {
		t.Fatal("errors must not be cached")
	}

	fake.err = nil
	if _, err := cached.Predict(context.Background(), [][]float64{sampleRow, sampleRow}); err != nil {
		t.Fatal(err)
	}
	if cached.Len() != 0 {
		t.Fatal("multi-row calls bypass the cache")
	}
}

func TestCachedRegressorDisabled(t *testing.T) {
	fake := &fakeRegressor{value: 2}
	cached, err := NewCachedRegressor(fake, 0)
	if err != nil {
		t.Fatal(err)
	}
	PredictOne(context.Background(), cached, sampleRow)
	PredictOne(context.Background(), cached, sampleRow)
	if fake.calls != 2 || cached.Hits() != 0 {
		t.Fatalf("disabled cache should pass through, calls=%d", fake.calls)
	}
	if cached.NumFeatures() != 8 {
		t.Fatal("NumFeatures should delegate")
	}
}

// gatedRegressor blocks each call until release is closed.
type gatedRegressor struct {
	value   float64
	started chan struct{}
	release chan struct{}
}

func (g *gatedRegressor) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	close(g.started)
	<-g.release
	return []float64{g.value}, nil
}

func (g *gatedRegressor) NumFeatures() int { return 8 }

func TestCachedRegressorDropsResultFromBeforePurge(t *testing.T) {
	old := &gatedRegressor{value: 1, started: make(chan struct{}), release: make(chan struct{})}
	cached, err := NewCachedRegressor(old, 16)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan float64)
	go func() {
		v, _ := PredictOne(context.Background(), cached, sampleRow)
		done <- v
	}()
	<-old.started

	// the model is replaced while the old prediction is still running
	cached.Purge()
	close(old.release)
	if v := <-done; v != 1 {
		t.Fatalf("in-flight call should still return its result, got %v", v)
	}
	if cached.Len() != 0 {
		t.Fatal("a prediction started before Purge must not be cached")
	}

	fresh := &fakeRegressor{value: 2}
	cached.next = fresh
	got, err := PredictOne(context.Background(), cached, sampleRow)
	if err != nil || got != 2 {
		t.Fatalf("expected fresh prediction, got %v %v", got, err)
	}
	if cached.Len() != 1 {
		t.Fatal("predictions after Purge should be cached")
	}
}
