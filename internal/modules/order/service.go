// README: Order lifecycle manager; checkout, payment, driver interlock, tracking.
package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bistro/internal/logger"
	"bistro/internal/modules/cart"
	"bistro/internal/modules/driver"
	"bistro/internal/modules/menu"
	"bistro/internal/modules/notify"
	"bistro/internal/modules/pricing"
	"bistro/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("order state conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidDriver     = errors.New("driver is not available")
	ErrDriverRequired    = errors.New("delivery requires an assigned driver")
	ErrPaymentRequired   = errors.New("payment must complete before kitchen work starts")
	ErrNotDelivered      = errors.New("order has not been delivered")
	ErrDriverMismatch    = errors.New("order has no such driver")
	ErrCustomerMismatch  = errors.New("order belongs to a different customer")
	ErrPaymentGateway    = errors.New("payment gateway failure")
)

// CartSource is the cart snapshot the order is created from.
type CartSource interface {
	Snapshot(ctx context.Context, id cart.Identity) (*cart.Cart, []cart.Line, error)
}

// Catalog supplies the menu item names and descriptions copied into order
// item snapshots.
type Catalog interface {
	Get(ctx context.Context, id types.ID) (*menu.Item, error)
}

// Drivers is the driver-registry collaborator.
type Drivers interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	SubmitRating(ctx context.Context, orderID, driverID types.ID, rating int, comment string) (float64, error)
	RecordDelivery(ctx context.Context, driverID types.ID, fee types.Money) error
}

// ETAEstimator optionally enriches tracking responses with a travel estimate.
type ETAEstimator interface {
	Estimate(ctx context.Context, from types.Point, toAddress string) (time.Duration, error)
}

type Service struct {
	store   *Store
	pricing *pricing.Service
	carts   CartSource
	catalog Catalog
	drivers Drivers
	gateway Gateway
	broker  *notify.Broker
	eta     ETAEstimator
	log     *logger.Logger
}

type ServiceDeps struct {
	Store   *Store
	Pricing *pricing.Service
	Carts   CartSource
	Catalog Catalog
	Drivers Drivers
	Gateway Gateway
	Broker  *notify.Broker
	ETA     ETAEstimator
	Log     *logger.Logger
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		store:   deps.Store,
		pricing: deps.Pricing,
		carts:   deps.Carts,
		catalog: deps.Catalog,
		drivers: deps.Drivers,
		gateway: deps.Gateway,
		broker:  deps.Broker,
		eta:     deps.ETA,
		log:     deps.Log,
	}
}

type CheckoutCommand struct {
	Identity        cart.Identity
	Type            Type
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress string
}

// Checkout converts the identity's cart into an order: every line becomes an
// immutable item snapshot, totals are quoted, and the cart is destroyed in
// the same transaction as the order insert.
func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (*Order, error) {
	if cmd.Type != TypeDelivery && cmd.Type != TypePickup {
		return nil, ErrBadRequest
	}
	if cmd.CustomerName == "" || cmd.CustomerPhone == "" {
		return nil, ErrBadRequest
	}
	if cmd.Type == TypeDelivery && cmd.DeliveryAddress == "" {
		return nil, ErrBadRequest
	}

	c, lines, err := s.carts.Snapshot(ctx, cmd.Identity)
	if errors.Is(err, cart.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	pl := make([]pricing.Line, len(lines))
	for i, l := range lines {
		pl[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	subtotal, _ := s.pricing.Totals(pl)
	quote := s.pricing.QuoteOrder(subtotal, cmd.Type == TypeDelivery)

	now := time.Now().UTC()
	number, err := s.store.NextOrderNumber(ctx, now)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            newID(),
		OrderNumber:   number,
		Type:          cmd.Type,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CustomerID:    cmd.Identity.CustomerID,
		CustomerName:  cmd.CustomerName,
		CustomerPhone: cmd.CustomerPhone,
		CustomerEmail: cmd.CustomerEmail,
		Subtotal:      quote.Subtotal,
		Tax:           quote.Tax,
		DeliveryFee:   quote.DeliveryFee,
		Total:         quote.Total,
		CreatedAt:     now,
	}
	if cmd.Type == TypeDelivery {
		addr := cmd.DeliveryAddress
		o.DeliveryAddress = &addr
	}
	for _, l := range lines {
		o.Items = append(o.Items, s.snapshotLine(ctx, o.ID, l))
	}

	if err := s.store.Create(ctx, o, c.ID); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "customer",
		CreatedAt:  now,
	})
	s.publishStatus(ctx, o, StatusPending)
	return o, nil
}

// snapshotLine copies the menu item's current name and description next to
// the cart line's captured price. A vanished menu item leaves the name
// blank rather than failing the checkout; the price was captured at add time.
func (s *Service) snapshotLine(ctx context.Context, orderID types.ID, l cart.Line) Item {
	item := Item{
		ID:                  newID(),
		OrderID:             orderID,
		MenuItemID:          l.MenuItemID,
		UnitPrice:           l.UnitPrice,
		Quantity:            l.Quantity,
		TotalPrice:          l.UnitPrice.Mul(int64(l.Quantity)),
		SpecialInstructions: l.SpecialInstructions,
		Customizations:      l.Customizations,
	}
	if s.catalog != nil {
		if it, err := s.catalog.Get(ctx, l.MenuItemID); err == nil {
			item.Name = it.Name
			item.Description = it.Description
		}
	}
	return item
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

type PaymentCommand struct {
	OrderID types.ID
	Method  string
}

// ProcessPayment charges the external gateway and, on success, marks the
// payment completed and moves the order into PREPARING. The charge is
// idempotent per order: re-processing a completed payment returns the
// recorded payment and never charges again.
func (s *Service) ProcessPayment(ctx context.Context, cmd PaymentCommand) (*Payment, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus == PaymentCompleted {
		p, err := s.store.GetPayment(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		// The charge already went through; finish the interrupted
		// status advance if a prior attempt died between commits.
		if o.Status == StatusPending || o.Status == StatusConfirmed {
			if err := s.advance(ctx, o, StatusPreparing, "system", nil); err != nil && !errors.Is(err, ErrConflict) {
				return nil, err
			}
		}
		return p, nil
	}

	if o.Status.Terminal() {
		return nil, ErrInvalidTransition
	}
	if !CanTransition(o.Status, StatusPreparing) {
		return nil, ErrInvalidTransition
	}

	claimed, err := s.store.BeginPayment(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another attempt holds the charge; exactly one reaches the gateway.
		return nil, ErrConflict
	}

	res, err := s.gateway.Charge(ctx, o.Total, o.OrderNumber)
	if err != nil {
		_ = s.store.SetPaymentStatus(ctx, o.ID, PaymentFailed)
		s.log.Error("payment_charge_failed", "gateway unreachable", err,
			slog.String("order_id", string(o.ID)))
		return nil, ErrPaymentGateway
	}
	if !res.Success {
		_ = s.store.SetPaymentStatus(ctx, o.ID, PaymentFailed)
		s.log.Info("payment_declined", res.Error, slog.String("order_id", string(o.ID)))
		return nil, ErrPaymentGateway
	}

	p := Payment{
		OrderID:       o.ID,
		Method:        cmd.Method,
		Amount:        o.Total,
		TransactionID: res.TransactionID,
	}
	if err := s.store.UpsertPayment(ctx, p); err != nil {
		s.reconcile(o, res.TransactionID, err)
		return nil, err
	}
	if err := s.store.SetPaymentStatus(ctx, o.ID, PaymentCompleted); err != nil {
		s.reconcile(o, res.TransactionID, err)
		return nil, err
	}
	s.publishPayment(ctx, o, PaymentCompleted)

	if err := s.advance(ctx, o, StatusPreparing, "system", nil); err != nil {
		// Payment is committed; a retry will skip the charge and only
		// redo the advance.
		s.reconcile(o, res.TransactionID, err)
		return nil, err
	}
	return &p, nil
}

// reconcile logs a charge that succeeded at the gateway but could not be
// fully committed locally; these need manual follow-up, never a blind retry.
func (s *Service) reconcile(o *Order, transactionID string, err error) {
	s.log.Error("payment_reconciliation_required", "charge succeeded but local commit failed", err,
		slog.String("order_id", string(o.ID)),
		slog.String("order_number", o.OrderNumber),
		slog.String("transaction_id", transactionID),
	)
}

type AssignDriverCommand struct {
	OrderID  types.ID
	DriverID types.ID
}

// AssignDriver attaches an available driver to an order that the kitchen has
// accepted but not yet sent out.
func (s *Service) AssignDriver(ctx context.Context, cmd AssignDriverCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status != StatusConfirmed && o.Status != StatusPreparing {
		return ErrInvalidTransition
	}
	d, err := s.drivers.Get(ctx, cmd.DriverID)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return ErrInvalidDriver
		}
		return err
	}
	if !d.IsAvailable {
		return ErrInvalidDriver
	}

	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, o.Status, o.StatusVersion, &cmd.DriverID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if s.broker != nil {
		s.broker.Publish(ctx, notify.Event{
			Type:     notify.EventDriverAssigned,
			OrderID:  o.ID,
			DriverID: cmd.DriverID,
			Payload:  map[string]any{"order_number": o.OrderNumber},
			At:       time.Now().UTC(),
		})
	}
	return nil
}

type AdvanceCommand struct {
	OrderID   types.ID
	To        Status
	ActorType string
	ActorID   *types.ID
}

// AdvanceStatus moves the order along the transition table. Kitchen work
// cannot start before payment completes, and delivery dispatch requires an
// assigned driver.
func (s *Service) AdvanceStatus(ctx context.Context, cmd AdvanceCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, cmd.To) {
		return ErrInvalidTransition
	}
	switch cmd.To {
	case StatusPreparing:
		if o.PaymentStatus != PaymentCompleted {
			return ErrPaymentRequired
		}
	case StatusOutForDelivery:
		if o.Type != TypeDelivery {
			return ErrInvalidTransition
		}
		if o.DriverID == nil {
			return ErrDriverRequired
		}
	case StatusReadyForPickup:
		if o.Type != TypePickup {
			return ErrInvalidTransition
		}
	}
	actorType := cmd.ActorType
	if actorType == "" {
		actorType = "staff"
	}
	return s.advance(ctx, o, cmd.To, actorType, cmd.ActorID)
}

func (s *Service) advance(ctx context.Context, o *Order, to Status, actorType string, actorID *types.ID) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, to, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	})
	s.publishStatus(ctx, o, to)

	if to == StatusDelivered && o.DriverID != nil {
		if err := s.drivers.RecordDelivery(ctx, *o.DriverID, o.DeliveryFee); err != nil {
			s.log.Error("delivery_credit_failed", "driver stats not updated", err,
				slog.String("order_id", string(o.ID)),
				slog.String("driver_id", string(*o.DriverID)))
		}
	}
	return nil
}

type CancelCommand struct {
	OrderID   types.ID
	ActorType string
	ActorID   *types.ID
}

// Cancel stops a not-yet-delivered order. A paid order lands in REFUNDED
// instead of CANCELLED, and the gateway refund runs only after the status
// transition commits: losing the CAS race to a concurrent dispatch must not
// leave refunded money on an order that goes out anyway.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	target := StatusCancelled
	var p *Payment
	if o.PaymentStatus == PaymentCompleted {
		p, err = s.store.GetPayment(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		target = StatusRefunded
	}

	actorType := cmd.ActorType
	if actorType == "" {
		actorType = "customer"
	}
	if err := s.advance(ctx, o, target, actorType, cmd.ActorID); err != nil {
		return nil, err
	}

	if p != nil {
		if err := s.gateway.Refund(ctx, p.TransactionID, p.Amount); err != nil {
			s.log.Error("refund_reconciliation_required", "order refunded locally but gateway refund failed", err,
				slog.String("order_id", string(o.ID)),
				slog.String("order_number", o.OrderNumber),
				slog.String("transaction_id", p.TransactionID))
			return nil, ErrPaymentGateway
		}
	}
	return s.store.Get(ctx, o.ID)
}

type RatingCommand struct {
	OrderID       types.ID
	CustomerPhone string
	CustomerEmail string
	Rating        int
	Comment       string
}

// SubmitDriverRating rates the driver of a delivered order. One rating per
// order; resubmitting edits the prior one and re-aggregates.
func (s *Service) SubmitDriverRating(ctx context.Context, cmd RatingCommand) (float64, error) {
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return 0, ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return 0, err
	}
	if o.Status != StatusDelivered {
		return 0, ErrNotDelivered
	}
	if o.DriverID == nil {
		return 0, ErrDriverMismatch
	}
	if !matchesCustomer(o, cmd.CustomerPhone, cmd.CustomerEmail) {
		return 0, ErrCustomerMismatch
	}
	return s.drivers.SubmitRating(ctx, o.ID, *o.DriverID, cmd.Rating, cmd.Comment)
}

// matchesCustomer compares contact identity, not session: the phone used on
// the order, or its email when one was given.
func matchesCustomer(o *Order, phone, email string) bool {
	if phone != "" && phone == o.CustomerPhone {
		return true
	}
	if email != "" && o.CustomerEmail != "" && strings.EqualFold(email, o.CustomerEmail) {
		return true
	}
	return false
}

// Tracking is the pull-side view for the order tracking page.
type Tracking struct {
	Order          *Order
	DriverLocation *driver.Location
	DriverName     string
	ETA            *time.Duration
}

// TrackByNumber looks an order up by its human-facing number, normalised to
// uppercase, and attaches the assigned driver's latest position.
func (s *Service) TrackByNumber(ctx context.Context, number string) (*Tracking, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, ErrBadRequest
	}
	o, err := s.store.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	t := &Tracking{Order: o}
	if o.DriverID == nil {
		return t, nil
	}
	d, err := s.drivers.Get(ctx, *o.DriverID)
	if err != nil {
		return t, nil
	}
	t.DriverName = d.Name
	t.DriverLocation = d.Location
	if s.eta != nil && d.Location != nil && o.DeliveryAddress != nil {
		if eta, err := s.eta.Estimate(ctx, types.Point{Lat: d.Location.Lat, Lng: d.Location.Lng}, *o.DeliveryAddress); err == nil {
			t.ETA = &eta
		}
	}
	return t, nil
}

func (s *Service) publishStatus(ctx context.Context, o *Order, status Status) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(ctx, notify.Event{
		Type:    notify.EventOrderStatus,
		OrderID: o.ID,
		Payload: map[string]any{
			"order_number": o.OrderNumber,
			"status":       string(status),
		},
		At: time.Now().UTC(),
	})
}

func (s *Service) publishPayment(ctx context.Context, o *Order, ps PaymentStatus) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(ctx, notify.Event{
		Type:    notify.EventOrderPayment,
		OrderID: o.ID,
		Payload: map[string]any{
			"order_number":   o.OrderNumber,
			"payment_status": string(ps),
		},
		At: time.Now().UTC(),
	})
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
