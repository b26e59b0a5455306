package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/example/taxi-dispatch/internal/models"
)

func TestMemoryUpdateIfConflictOnWrongStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRequestStore()
	if err := s.Create(ctx, models.Request{ID: "r1", Status: models.StatusPending}); err != nil {
		t.Fatal(err)
	}
	_, err := s.UpdateIf(ctx, "r1", models.StatusAssigned, func(r *models.Request) error { return nil })
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryUpdateIfNotFound(t *testing.T) {
	s := NewMemoryRequestStore()
	_, err := s.UpdateIf(context.Background(), "missing", models.StatusPending, func(r *models.Request) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryCreateDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRequestStore()
	if err := s.Create(ctx, models.Request{ID: "r1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, models.Request{ID: "r1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryUpdateIfSingleWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRequestStore()
	if err := s.Create(ctx, models.Request{ID: "r1", Status: models.StatusPending}); err != nil {
		t.Fatal(err)
	}

	const claimants = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateIf(ctx, "r1", models.StatusPending, func(r *models.Request) error {
				r.Status = models.StatusAssigned
				return nil
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else if !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestMemoryAllReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRequestStore()
	_ = s.Create(ctx, models.Request{ID: "r1", Status: models.StatusPending})
	snap, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	r := snap["r1"]
	r.Status = models.StatusCompleted
	snap["r1"] = r
	got, _ := s.Get(ctx, "r1")
	if got.Status != models.StatusPending {
		t.Fatal("All must return a copy, not the live map")
	}
}

func TestFileRequestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileRequestStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	req := models.Request{
		ID:        "r1",
		Origin:    models.Coord{Lat: 35.0, Lon: 139.0},
		Status:    models.StatusPending,
		CreatedAt: now,
	}
	if err := s.Create(ctx, req); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Origin.Lat != 35.0 || got.Status != models.StatusPending {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.AssignedAt != nil {
		t.Fatal("unset timestamp should stay nil")
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at mismatch: %v", got.CreatedAt)
	}
}

func TestFileRequestStoreUpdateIfPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileRequestStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Create(ctx, models.Request{ID: "r1", Status: models.StatusPending})
	now := time.Now()
	_, err = s.UpdateIf(ctx, "r1", models.StatusPending, func(r *models.Request) error {
		r.Status = models.StatusAssigned
		r.AssignedDriver = "d1"
		r.AssignedAt = &now
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// fresh handle on the same file sees the update
	s2, err := NewFileRequestStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.Get(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusAssigned || got.AssignedDriver != "d1" || got.AssignedAt == nil {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestFileRequestStoreCorruptFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "requests.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileRequestStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	all, err := s.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty snapshot, got %d records", len(all))
	}
}

func TestFileRequestStoreClearAll(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileRequestStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Create(ctx, models.Request{ID: "r1", Status: models.StatusPending})
	_ = s.Create(ctx, models.Request{ID: "r2", Status: models.StatusPending})
	if err := s.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	all, _ := s.All(ctx)
	if len(all) != 0 {
		t.Fatalf("expected empty store after clear, got %d", len(all))
	}
}

func TestFileDriverStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileDriverStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d := models.Driver{ID: "d1", Name: "Sato", VehicleNumber: "1234", Status: models.DriverAvailable, UpdatedAt: time.Now()}
	if err := s.Put(ctx, d); err != nil {
		t.Fatal(err)
	}
	d.Status = models.DriverBusy
	if err := s.Put(ctx, d); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.DriverBusy || got.Name != "Sato" {
		t.Fatalf("upsert mismatch: %+v", got)
	}
}
