// README: Order aggregate, status machine, and payment axis definitions.
package order

import (
	"time"

	"bistro/internal/types"
)

type Status string

const (
	StatusNone           Status = "NONE"
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
	StatusRefunded       Status = "REFUNDED"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
)

type Type string

const (
	TypeDelivery Type = "DELIVERY"
	TypePickup   Type = "PICKUP"
)

// AllowedTransitions represents the order state flow as code. Cancellation
// and refund are reachable from every pre-delivery state; DELIVERED,
// CANCELLED, and REFUNDED are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusPreparing, StatusCancelled, StatusRefunded},
	StatusConfirmed:      {StatusPreparing, StatusCancelled, StatusRefunded},
	StatusPreparing:      {StatusReadyForPickup, StatusOutForDelivery, StatusCancelled, StatusRefunded},
	StatusReadyForPickup: {StatusDelivered, StatusCancelled, StatusRefunded},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled, StatusRefunded},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

type Order struct {
	ID              types.ID
	OrderNumber     string
	Type            Type
	Status          Status
	StatusVersion   int
	PaymentStatus   PaymentStatus
	CustomerID      types.ID
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress *string
	DriverID        *types.ID
	Subtotal        types.Money
	Tax             types.Money
	DeliveryFee     types.Money
	Total           types.Money
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// Item is an immutable snapshot of a cart line taken at checkout. Name,
// description, and price stay as they were even if the menu item is later
// edited or deleted.
type Item struct {
	ID                  types.ID
	OrderID             types.ID
	MenuItemID          types.ID
	Name                string
	Description         string
	UnitPrice           types.Money
	Quantity            int
	TotalPrice          types.Money
	SpecialInstructions string
	Customizations      string
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Payment records the single charge made for an order, keyed by order id so
// retries cannot duplicate it.
type Payment struct {
	OrderID       types.ID
	Method        string
	Amount        types.Money
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
