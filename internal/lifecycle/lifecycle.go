// Package lifecycle drives requests through
// pending → assigned → arrived → departed → completed. Every transition is
// validated against the persisted record inside the store's conditional
// update, never against a caller's cached copy.
package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/taxi-dispatch/internal/eta"
	"github.com/example/taxi-dispatch/internal/geo"
	"github.com/example/taxi-dispatch/internal/models"
	"github.com/example/taxi-dispatch/internal/observability"
	"github.com/example/taxi-dispatch/internal/store"
)

// Notifier pushes a best-effort notice about a new request to connected
// driver sessions. Polling remains the source of truth.
type Notifier interface {
	NotifyNewRequest(r models.Request)
}

// FareCollector holds a fare at claim time and captures it on completion.
type FareCollector interface {
	Hold(ctx context.Context, requestID string, distanceKm float64) error
	Capture(ctx context.Context, requestID string) error
}

type Service struct {
	Requests store.RequestStore
	Drivers  store.DriverStore
	Eta      *eta.Estimator

	// BufferMinutes is added to the travel estimate at claim time.
	BufferMinutes int

	// AutoBusy marks the claiming driver busy so they drop out of
	// candidate rankings until completion. Off by default: the operator
	// toggles busy manually.
	AutoBusy bool

	Notify   Notifier
	Fares    FareCollector
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Create registers a new pending request from the front desk.
func (s *Service) Create(ctx context.Context, origin models.Coord, destination, passengerName, specialRequests string) (models.Request, error) {
	r := models.Request{
		ID:              newID(),
		Origin:          origin,
		Destination:     destination,
		PassengerName:   passengerName,
		SpecialRequests: specialRequests,
		Status:          models.StatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.Requests.Create(ctx, r); err != nil {
		return models.Request{}, err
	}
	observability.RequestsCreated.Inc()
	if s.Notify != nil {
		s.Notify.NotifyNewRequest(r)
	}
	return r, nil
}

// Claim assigns a pending request to the calling driver. The status check
// runs against the persisted record, so of two racing claimants exactly
// one wins and the other gets store.ErrConflict.
func (s *Service) Claim(ctx context.Context, requestID, driverID string) (models.Request, error) {
	d, err := s.Drivers.Get(ctx, driverID)
	if err != nil {
		return models.Request{}, err
	}
	est := s.Eta
	if est == nil {
		est = &eta.Estimator{}
	}
	now := s.now()
	var distKm float64
	r, err := s.Requests.UpdateIf(ctx, requestID, models.StatusPending, func(r *models.Request) error {
		distKm = distanceKm(d.Loc, r.Origin)
		minutes := est.Minutes(d.Loc, r.Origin) + s.BufferMinutes
		r.Status = models.StatusAssigned
		r.AssignedDriver = d.ID
		r.DriverName = d.Name
		r.VehicleNumber = d.VehicleNumber
		r.EstimatedArrivalMinutes = minutes
		r.AssignedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			observability.ClaimConflicts.Inc()
		}
		return models.Request{}, err
	}
	observability.ClaimsTotal.Inc()

	if s.AutoBusy {
		d.Status = models.DriverBusy
		d.UpdatedAt = now
		if err := s.Drivers.Put(ctx, d); err != nil {
			s.log().Warn("auto-busy update failed", "driver_id", d.ID, "error", err)
		}
	}
	if s.Fares != nil {
		if err := s.Fares.Hold(ctx, r.ID, distKm); err != nil {
			s.log().Warn("fare hold failed", "request_id", r.ID, "error", err)
		}
	}
	return r, nil
}

// MarkArrived records the driver reaching the pickup point.
func (s *Service) MarkArrived(ctx context.Context, requestID, driverID string) (models.Request, error) {
	return s.advance(ctx, requestID, driverID, models.StatusAssigned, func(r *models.Request, t time.Time) {
		r.Status = models.StatusArrived
		r.ArrivedAt = &t
	})
}

// MarkDeparted records the pickup leaving with the passenger.
func (s *Service) MarkDeparted(ctx context.Context, requestID, driverID string) (models.Request, error) {
	return s.advance(ctx, requestID, driverID, models.StatusArrived, func(r *models.Request, t time.Time) {
		r.Status = models.StatusDeparted
		r.DepartedAt = &t
	})
}

// MarkCompleted finishes the trip and returns the driver to available.
func (s *Service) MarkCompleted(ctx context.Context, requestID, driverID string) (models.Request, error) {
	r, err := s.advance(ctx, requestID, driverID, models.StatusDeparted, func(r *models.Request, t time.Time) {
		r.Status = models.StatusCompleted
		r.CompletedAt = &t
	})
	if err != nil {
		return models.Request{}, err
	}
	observability.CompletionsTotal.Inc()

	d, err := s.Drivers.Get(ctx, driverID)
	if err == nil {
		d.Status = models.DriverAvailable
		d.UpdatedAt = s.now()
		if perr := s.Drivers.Put(ctx, d); perr != nil {
			return r, perr
		}
	}
	if s.Fares != nil {
		if err := s.Fares.Capture(ctx, r.ID); err != nil {
			s.log().Warn("fare capture failed", "request_id", r.ID, "error", err)
		}
	}
	return r, nil
}

// advance applies a single-stage transition. The assignee check runs inside
// the store's critical section; it should not normally fail since only the
// assigned driver advances a request, but stale client state happens.
func (s *Service) advance(ctx context.Context, requestID, driverID string, from models.RequestStatus, apply func(*models.Request, time.Time)) (models.Request, error) {
	now := s.now()
	return s.Requests.UpdateIf(ctx, requestID, from, func(r *models.Request) error {
		if r.AssignedDriver != driverID {
			return fmt.Errorf("%w: assigned to another driver", store.ErrConflict)
		}
		apply(r, now)
		return nil
	})
}

func distanceKm(a, b models.Coord) float64 {
	return geo.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

func newID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
