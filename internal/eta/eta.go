package eta

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/taxi-dispatch/internal/geo"
	"github.com/example/taxi-dispatch/internal/models"
)

// DefaultSpeedKmh is the assumed average urban speed. A policy constant,
// not a measurement.
const DefaultSpeedKmh = 30.0

// DispatchBufferMinutes is added on top of the travel estimate at claim
// time to cover the driver actually getting moving.
const DispatchBufferMinutes = 3

// EstimateMinutes converts a distance to whole minutes at the given
// average speed, truncating toward zero. Non-positive speeds fall back to
// the default.
func EstimateMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return int(distanceKm / speedKmh * 60)
}

// Client estimates travel minutes between two points. Implemented by the
// OSRM client; the fixed-speed estimate is the fallback when no routing
// engine is configured or reachable.
type Client interface {
	EstimateMinutes(from, to models.Coord) (int, error)
}

// Estimator resolves travel time through the optional routing client and
// cache, falling back to the fixed-speed estimate.
type Estimator struct {
	SpeedKmh float64
	Routing  Client
	Cache    *Cache
}

func (e *Estimator) Minutes(from, to models.Coord) int {
	if e.Cache != nil {
		if v, ok := e.Cache.Get(from, to); ok {
			return v
		}
	}
	if e.Routing != nil {
		if v, err := e.Routing.EstimateMinutes(from, to); err == nil {
			if e.Cache != nil {
				e.Cache.Set(from, to, v)
			}
			return v
		}
	}
	return EstimateMinutes(geo.Haversine(from.Lat, from.Lon, to.Lat, to.Lon), e.SpeedKmh)
}

// Cache is a tiny in-memory TTL cache for routing lookups keyed by coords.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  int
	ts time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

func (c *Cache) Get(a, b models.Coord) (int, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, false
	}
	return e.v, true
}

func (c *Cache) Set(a, b models.Coord, v int) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}
