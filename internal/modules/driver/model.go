// README: Driver aggregate, live location, and rating definitions.
package driver

import (
	"errors"
	"time"

	"bistro/internal/types"
)

var (
	ErrNotFound           = errors.New("driver not found")
	ErrConflict           = errors.New("phone already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidLocation    = errors.New("coordinates out of range")
	ErrActiveDeliveries   = errors.New("driver has active deliveries")
)

// Location is the latest known position; no history is kept here.
type Location struct {
	Lat       float64   `json:"latitude"`
	Lng       float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Driver struct {
	ID              types.ID
	Name            string
	Email           string
	Phone           string
	PasswordHash    string
	VehicleInfo     string
	IsAvailable     bool
	Location        *Location
	Rating          float64
	TotalDeliveries int
	Earnings        types.Money
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Delivery is the slim order projection attached to active driver listings.
type Delivery struct {
	OrderID         types.ID
	OrderNumber     string
	Status          string
	DeliveryAddress string
}

// ActiveDriver is a driver visible on live maps, with in-flight deliveries.
type ActiveDriver struct {
	Driver
	Deliveries []Delivery
}

type Rating struct {
	OrderID   types.ID
	DriverID  types.ID
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
