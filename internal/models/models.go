package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RequestStatus walks pending → assigned → arrived → departed → completed.
// No transition skips a stage and none reverses.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAssigned  RequestStatus = "assigned"
	StatusArrived   RequestStatus = "arrived"
	StatusDeparted  RequestStatus = "departed"
	StatusCompleted RequestStatus = "completed"
)

var statusOrder = map[RequestStatus]int{
	StatusPending:   0,
	StatusAssigned:  1,
	StatusArrived:   2,
	StatusDeparted:  3,
	StatusCompleted: 4,
}

func (s RequestStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Rank returns the position of s in the lifecycle, -1 if unknown.
func (s RequestStatus) Rank() int {
	if r, ok := statusOrder[s]; ok {
		return r
	}
	return -1
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
)

func (s DriverStatus) Valid() bool {
	return s == DriverAvailable || s == DriverBusy
}

// Request is a pickup request created by the front desk. Stage timestamps
// are nil until the corresponding transition fires and serialize as null.
type Request struct {
	ID              string        `json:"id"`
	Origin          Coord         `json:"origin"`
	Destination     string        `json:"destination,omitempty"`
	PassengerName   string        `json:"passenger_name,omitempty"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	Status          RequestStatus `json:"status"`
	AssignedDriver  string        `json:"assigned_driver,omitempty"`

	// denormalized from the claiming driver for display
	DriverName    string `json:"driver_name,omitempty"`
	VehicleNumber string `json:"vehicle_number,omitempty"`

	EstimatedArrivalMinutes int `json:"estimated_arrival_minutes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at"`
	ArrivedAt   *time.Time `json:"arrived_at"`
	DepartedAt  *time.Time `json:"departed_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// Driver is an operator-maintained record, created implicitly on first
// profile save by that driver id and never deleted.
type Driver struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	VehicleNumber string       `json:"vehicle_number"`
	Loc           Coord        `json:"location"`
	Status        DriverStatus `json:"status"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
