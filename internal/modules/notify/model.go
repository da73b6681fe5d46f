// README: Tracking events fanned out to connected viewers.
package notify

import (
	"time"

	"bistro/internal/types"
)

type EventType string

const (
	EventConnected      EventType = "connected"
	EventOrderStatus    EventType = "order_status"
	EventOrderPayment   EventType = "order_payment"
	EventDriverAssigned EventType = "driver_assigned"
	EventDriverLocation EventType = "driver_location"
)

// Event is published verbatim to every subscriber; viewers filter
// client-side by the order or driver they care about.
type Event struct {
	Type     EventType      `json:"type"`
	OrderID  types.ID       `json:"order_id,omitempty"`
	DriverID types.ID       `json:"driver_id,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	At       time.Time      `json:"at"`
}
