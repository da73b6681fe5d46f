// README: Order store backed by PostgreSQL; status changes are CAS updates.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bistro/internal/modules/cart"
	"bistro/internal/types"
)

type Store struct {
	db       *pgxpool.Pool
	currency string
}

func NewStore(db *pgxpool.Pool, currency string) *Store {
	return &Store{db: db, currency: currency}
}

// NextOrderNumber allocates the next human-facing order number.
func (s *Store) NextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	row := s.db.QueryRow(ctx, `SELECT nextval('order_number_seq')`)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%03d", now.Format("20060102"), seq), nil
}

// Create persists the order with its item snapshots and destroys the source
// cart in the same transaction, so checkout either fully happens or not at all.
func (s *Store) Create(ctx context.Context, o *Order, cartID types.ID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, order_type, status, status_version, payment_status,
			customer_id, customer_name, customer_phone, customer_email, delivery_address,
			subtotal, tax, delivery_fee, total, currency, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			NULLIF($7, ''), $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17
		)`,
		string(o.ID), o.OrderNumber, string(o.Type), string(o.Status), o.StatusVersion, string(o.PaymentStatus),
		string(o.CustomerID), o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.DeliveryAddress,
		o.Subtotal.Amount, o.Tax.Amount, o.DeliveryFee.Amount, o.Total.Amount, o.Subtotal.Currency, o.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (
				id, order_id, menu_item_id, name, description,
				unit_price, quantity, total_price, special_instructions, customizations
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			string(it.ID), string(o.ID), string(it.MenuItemID), it.Name, it.Description,
			it.UnitPrice.Amount, it.Quantity, it.TotalPrice.Amount, it.SpecialInstructions, it.Customizations,
		); err != nil {
			return err
		}
	}

	if cartID != "" {
		tag, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, string(cartID))
		if err != nil {
			return err
		}
		// A concurrent checkout already consumed this cart; rolling back
		// keeps one cart from producing two orders.
		if tag.RowsAffected() == 0 {
			return ErrEmptyCart
		}
	}

	return tx.Commit(ctx)
}

const orderColumns = `
	id, order_number, order_type, status, status_version, payment_status,
	COALESCE(customer_id, ''), customer_name, customer_phone, customer_email, delivery_address,
	driver_id, subtotal, tax, delivery_fee, total, currency,
	created_at, updated_at, delivered_at, cancelled_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return s.scanOrder(ctx, row)
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
	return s.scanOrder(ctx, row)
}

func (s *Store) scanOrder(ctx context.Context, row pgx.Row) (*Order, error) {
	var o Order
	var driverID *string
	var currency string
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Type, &o.Status, &o.StatusVersion, &o.PaymentStatus,
		&o.CustomerID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.DeliveryAddress,
		&driverID, &o.Subtotal.Amount, &o.Tax.Amount, &o.DeliveryFee.Amount, &o.Total.Amount, &currency,
		&o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		d := types.ID(*driverID)
		o.DriverID = &d
	}
	for _, m := range []*types.Money{&o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Total} {
		m.Currency = currency
	}

	items, err := s.items(ctx, o.ID, currency)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *Store) items(ctx context.Context, orderID types.ID, currency string) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, description,
		       unit_price, quantity, total_price, special_instructions, customizations
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Description,
			&it.UnitPrice.Amount, &it.Quantity, &it.TotalPrice.Amount, &it.SpecialInstructions, &it.Customizations); err != nil {
			return nil, err
		}
		it.UnitPrice.Currency = currency
		it.TotalPrice.Currency = currency
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus performs a compare-and-swap on (status, status_version). A
// false return means another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID) (bool, error) {
	var d *string
	if driverID != nil {
		v := string(*driverID)
		d = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    delivered_at = CASE WHEN $1 = 'DELIVERED' THEN NOW() ELSE delivered_at END,
		    cancelled_at = CASE WHEN $1 IN ('CANCELLED', 'REFUNDED') THEN NOW() ELSE cancelled_at END,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), d, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// paymentClaimTTL bounds how long a PROCESSING claim blocks other attempts.
// An attempt that crashes before reporting a terminal payment status would
// otherwise hold the claim forever.
const paymentClaimTTL = 2 * time.Minute

// BeginPayment claims the order for charging: PENDING or FAILED moves to
// PROCESSING, as does a PROCESSING claim older than the TTL. A false return
// means another attempt is in flight or the payment has completed.
func (s *Store) BeginPayment(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET payment_status = 'PROCESSING', updated_at = NOW()
		WHERE id = $1 AND (
			payment_status IN ('PENDING', 'FAILED')
			OR (payment_status = 'PROCESSING' AND updated_at < NOW() - make_interval(secs => $2))
		)`, string(id), paymentClaimTTL.Seconds(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id types.ID, ps PaymentStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`,
		string(id), string(ps),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_status_events (order_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus), e.ActorType, actorID, e.CreatedAt,
	)
	return err
}

// UpsertPayment records the charge, keyed by order id so a retried payment
// cannot create a second record.
func (s *Store) UpsertPayment(ctx context.Context, p Payment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO payments (order_id, method, amount, currency, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE
		SET method = EXCLUDED.method, transaction_id = EXCLUDED.transaction_id, updated_at = NOW()`,
		string(p.OrderID), p.Method, p.Amount.Amount, p.Amount.Currency, p.TransactionID,
	)
	return err
}

func (s *Store) GetPayment(ctx context.Context, orderID types.ID) (*Payment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT order_id, method, amount, currency, transaction_id, created_at, updated_at
		FROM payments
		WHERE order_id = $1`, string(orderID),
	)
	var p Payment
	err := row.Scan(&p.OrderID, &p.Method, &p.Amount.Amount, &p.Amount.Currency, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ItemsForReorder exposes the order's snapshot lines to the cart module.
func (s *Store) ItemsForReorder(ctx context.Context, orderID types.ID) ([]cart.ReorderItem, error) {
	items, err := s.items(ctx, orderID, s.currency)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		if _, err := s.Get(ctx, orderID); err != nil {
			return nil, err
		}
	}
	out := make([]cart.ReorderItem, len(items))
	for i, it := range items {
		out[i] = cart.ReorderItem{
			MenuItemID:          it.MenuItemID,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			SpecialInstructions: it.SpecialInstructions,
			Customizations:      it.Customizations,
		}
	}
	return out, nil
}
