package eta

import (
	"testing"
	"time"

	"github.com/example/taxi-dispatch/internal/models"
)

func TestEstimateMinutesTruncates(t *testing.T) {
	// 5 km at 30 km/h = 10 minutes exactly
	if got := EstimateMinutes(5, 30); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	// 5.4 km at 30 km/h = 10.8 minutes, truncated to 10
	if got := EstimateMinutes(5.4, 30); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := EstimateMinutes(0, 30); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestEstimateMinutesMonotonic(t *testing.T) {
	prev := -1
	for _, d := range []float64{0, 0.5, 1, 2, 5, 10, 50, 200} {
		m := EstimateMinutes(d, 30)
		if m < prev {
			t.Fatalf("eta decreased at %f km: %d < %d", d, m, prev)
		}
		prev = m
	}
}

func TestEstimateMinutesDefaultsSpeed(t *testing.T) {
	if got := EstimateMinutes(30, 0); got != 60 {
		t.Fatalf("expected default 30 km/h, got %d minutes", got)
	}
}

type fixedClient struct{ v int }

func (f fixedClient) EstimateMinutes(from, to models.Coord) (int, error) { return f.v, nil }

func TestEstimatorPrefersRoutingClient(t *testing.T) {
	e := &Estimator{SpeedKmh: 30, Routing: fixedClient{v: 42}}
	if got := e.Minutes(models.Coord{}, models.Coord{Lat: 1}); got != 42 {
		t.Fatalf("expected routing value 42, got %d", got)
	}
}

func TestEstimatorFallsBackToFixedSpeed(t *testing.T) {
	e := &Estimator{SpeedKmh: 30}
	from := models.Coord{Lat: 35.0, Lon: 139.0}
	to := models.Coord{Lat: 35.0, Lon: 139.0}
	if got := e.Minutes(from, to); got != 0 {
		t.Fatalf("expected 0 for equal points, got %d", got)
	}
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	a, b := models.Coord{Lat: 1}, models.Coord{Lat: 2}
	c.Set(a, b, 7)
	if v, ok := c.Get(a, b); !ok || v != 7 {
		t.Fatalf("expected hit 7, got %d %v", v, ok)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(a, b); ok {
		t.Fatal("expected expiry")
	}
}
