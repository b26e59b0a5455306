package matching

import (
	"testing"

	"github.com/example/taxi-dispatch/internal/models"
)

func TestRankDriversFiltersUnavailable(t *testing.T) {
	req := models.Request{Origin: models.Coord{Lat: 35.0, Lon: 139.0}, Status: models.StatusPending}
	drivers := []models.Driver{
		{ID: "busy", Loc: models.Coord{Lat: 35.0, Lon: 139.0}, Status: models.DriverBusy},
		{ID: "far", Loc: models.Coord{Lat: 35.05, Lon: 139.0}, Status: models.DriverAvailable},
		{ID: "near", Loc: models.Coord{Lat: 35.005, Lon: 139.0}, Status: models.DriverAvailable},
	}
	got := RankDriversForRequest(req, drivers)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Driver.ID != "near" || got[1].Driver.ID != "far" {
		t.Fatalf("wrong order: %s, %s", got[0].Driver.ID, got[1].Driver.ID)
	}
	if got[0].DistanceKm >= got[1].DistanceKm {
		t.Fatal("distances not ascending")
	}
}

func TestRankDriversEmptyWhenNoneAvailable(t *testing.T) {
	req := models.Request{Origin: models.Coord{Lat: 35.0, Lon: 139.0}}
	got := RankDriversForRequest(req, []models.Driver{
		{ID: "d1", Status: models.DriverBusy},
	})
	if len(got) != 0 {
		t.Fatalf("expected empty ranking, got %d", len(got))
	}
}

// three pending requests at roughly 2 km, 0.5 km and 10 km come back
// ordered nearest first
func TestRankRequestsForDriverOrdersByDistance(t *testing.T) {
	d := models.Driver{ID: "d1", Loc: models.Coord{Lat: 35.0, Lon: 139.0}, Status: models.DriverAvailable}
	// ~1 degree latitude is ~111 km, so offsets are distance/111
	requests := []models.Request{
		{ID: "two", Origin: models.Coord{Lat: 35.0 + 2.0/111, Lon: 139.0}, Status: models.StatusPending},
		{ID: "half", Origin: models.Coord{Lat: 35.0 + 0.5/111, Lon: 139.0}, Status: models.StatusPending},
		{ID: "ten", Origin: models.Coord{Lat: 35.0 + 10.0/111, Lon: 139.0}, Status: models.StatusPending},
	}
	got := RankRequestsForDriver(d, requests, 30)
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	want := []string{"half", "two", "ten"}
	for i, w := range want {
		if got[i].Request.ID != w {
			t.Fatalf("position %d: expected %s, got %s", i, w, got[i].Request.ID)
		}
	}
	// eta must be non-decreasing with distance
	for i := 1; i < len(got); i++ {
		if got[i].EtaMinutes < got[i-1].EtaMinutes {
			t.Fatalf("eta decreased at %d", i)
		}
	}
}

func TestRankRequestsFiltersNonPending(t *testing.T) {
	d := models.Driver{ID: "d1", Status: models.DriverAvailable}
	requests := []models.Request{
		{ID: "p", Status: models.StatusPending},
		{ID: "a", Status: models.StatusAssigned},
		{ID: "c", Status: models.StatusCompleted},
	}
	got := RankRequestsForDriver(d, requests, 30)
	if len(got) != 1 || got[0].Request.ID != "p" {
		t.Fatalf("expected only pending request, got %+v", got)
	}
}

func TestRankDriversStableOnTies(t *testing.T) {
	req := models.Request{Origin: models.Coord{Lat: 0, Lon: 0}}
	same := models.Coord{Lat: 0.01, Lon: 0}
	drivers := []models.Driver{
		{ID: "first", Loc: same, Status: models.DriverAvailable},
		{ID: "second", Loc: same, Status: models.DriverAvailable},
	}
	got := RankDriversForRequest(req, drivers)
	if got[0].Driver.ID != "first" || got[1].Driver.ID != "second" {
		t.Fatalf("tie broke input order: %s, %s", got[0].Driver.ID, got[1].Driver.ID)
	}
}
