// Package matching ranks claim candidates by distance. Ranking is a
// read-only view; a human operator confirms the actual claim, which keeps
// two automated assigners from picking the same request.
package matching

import (
	"sort"

	"github.com/example/taxi-dispatch/internal/eta"
	"github.com/example/taxi-dispatch/internal/geo"
	"github.com/example/taxi-dispatch/internal/models"
)

type RankedDriver struct {
	Driver     models.Driver `json:"driver"`
	DistanceKm float64       `json:"distance_km"`
}

type RankedRequest struct {
	Request    models.Request `json:"request"`
	DistanceKm float64        `json:"distance_km"`
	EtaMinutes int            `json:"eta_minutes"`
}

// RankDriversForRequest filters to available drivers and sorts them by
// ascending distance from the request origin. Ties keep input order.
func RankDriversForRequest(req models.Request, drivers []models.Driver) []RankedDriver {
	out := make([]RankedDriver, 0, len(drivers))
	for _, d := range drivers {
		if d.Status != models.DriverAvailable {
			continue
		}
		dist := geo.Haversine(req.Origin.Lat, req.Origin.Lon, d.Loc.Lat, d.Loc.Lon)
		out = append(out, RankedDriver{Driver: d, DistanceKm: dist})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

// RankRequestsForDriver filters to pending requests and sorts them by
// ascending distance from the driver, with a fixed-speed ETA for display.
func RankRequestsForDriver(d models.Driver, requests []models.Request, speedKmh float64) []RankedRequest {
	out := make([]RankedRequest, 0, len(requests))
	for _, r := range requests {
		if r.Status != models.StatusPending {
			continue
		}
		dist := geo.Haversine(d.Loc.Lat, d.Loc.Lon, r.Origin.Lat, r.Origin.Lon)
		out = append(out, RankedRequest{Request: r, DistanceKm: dist, EtaMinutes: eta.EstimateMinutes(dist, speedKmh)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}
