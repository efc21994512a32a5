package ml

import (
	"context"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedRegressor memoizes single-row predictions by exact feature values.
// A prediction still in flight when Purge runs is not cached, since it may
// have been computed by the previous model.
type CachedRegressor struct {
	next   Regressor
	cache  *lru.Cache[string, float64]
	hits   atomic.Uint64
	misses atomic.Uint64

	mu         sync.RWMutex
	generation uint64
}

// NewCachedRegressor wraps next. A size of zero or less disables caching
// and returns a pass-through wrapper.
func NewCachedRegressor(next Regressor, size int) (*CachedRegressor, error) {
	c := &CachedRegressor{next: next}
	if size <= 0 {
		return c, nil
	}
	cache, err := lru.New[string, float64](size)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

func (c *CachedRegressor) Predict(ctx context.Context, rows [][]float64) ([]float64, error) {
	if c.cache == nil || len(rows) != 1 {
		return c.next.Predict(ctx, rows)
	}
	key := cacheKey(rows[0])
	if v, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return []float64{v}, nil
	}
	c.misses.Add(1)
	gen := c.currentGeneration()
	out, err := c.next.Predict(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 1 {
		c.mu.RLock()
		if c.generation == gen {
			c.cache.Add(key, out[0])
		}
		c.mu.RUnlock()
	}
	return out, nil
}

func (c *CachedRegressor) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *CachedRegressor) NumFeatures() int {
	return c.next.NumFeatures()
}

// Purge drops every cached prediction; call it after the model changes.
func (c *CachedRegressor) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *CachedRegressor) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *CachedRegressor) Hits() uint64   { return c.hits.Load() }
func (c *CachedRegressor) Misses() uint64 { return c.misses.Load() }

func cacheKey(row []float64) string {
	buf := make([]byte, 0, len(row)*17)
	for i, v := range row {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, math.Float64bits(v), 16)
	}
	return string(buf)
}
