package geo

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/taxi-dispatch/internal/models"
)

// DriverIndex is the minimal lookup interface the candidate-ranking
// handlers need. Both the in-memory index and the Redis GEO index satisfy it.
type DriverIndex interface {
	Nearby(lat, lon float64, limit int) []models.Driver
	Upsert(d models.Driver)
}

type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.Driver)}
}

func (g *Index) Upsert(d models.Driver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.UpdatedAt = time.Now()
	g.drivers[d.ID] = d
}

// naive scan; fine for fleet sizes this serves, use Redis GEO beyond that
func (g *Index) Nearby(lat, lon float64, limit int) []models.Driver {
	g.mu.RLock()
	defer g.mu.RUnlock()
	type pair struct {
		d    models.Driver
		dist float64
	}
	arr := make([]pair, 0, len(g.drivers))
	for _, d := range g.drivers {
		if d.Status != models.DriverAvailable {
			continue
		}
		arr = append(arr, pair{d, Haversine(lat, lon, d.Loc.Lat, d.Loc.Lon)})
	}
	sort.SliceStable(arr, func(i, j int) bool { return arr[i].dist < arr[j].dist })
	if limit > 0 && limit < len(arr) {
		arr = arr[:limit]
	}
	out := make([]models.Driver, 0, len(arr))
	for _, p := range arr {
		out = append(out, p.d)
	}
	return out
}

// Haversine returns the great-circle distance between two points in
// kilometers, Earth radius 6371 km. Total over finite inputs; equal points
// yield 0.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
