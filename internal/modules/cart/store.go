// README: Cart store backed by PostgreSQL; line upserts are single statements.
package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bistro/internal/types"
)

type Store struct {
	db       *pgxpool.Pool
	currency string
}

func NewStore(db *pgxpool.Pool, currency string) *Store {
	return &Store{db: db, currency: currency}
}

func (s *Store) Find(ctx context.Context, id Identity) (*Cart, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, COALESCE(customer_id, ''), COALESCE(session_id, ''), created_at, updated_at
		FROM carts
		WHERE (customer_id = $1 AND $1 <> '') OR (session_id = $2 AND $2 <> '')`,
		string(id.CustomerID), string(id.SessionID),
	)
	var c Cart
	err := row.Scan(&c.ID, &c.CustomerID, &c.SessionID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Ensure returns the cart for the identity, creating it if absent. The
// insert is conflict-tolerant so two concurrent first adds converge on the
// same row instead of violating the one-cart-per-identity index.
func (s *Store) Ensure(ctx context.Context, id Identity, newCartID types.ID) (*Cart, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO carts (id, customer_id, session_id)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		ON CONFLICT DO NOTHING`,
		string(newCartID), string(id.CustomerID), string(id.SessionID),
	)
	if err != nil {
		return nil, err
	}
	return s.Find(ctx, id)
}

// UpsertLine adds a line or, when one already exists for (cart, menu item),
// increments its quantity in the same statement. The read-increment-write
// happens inside Postgres, so two concurrent adds cannot lose an update.
// A merged line keeps the unit price captured when it was first created.
func (s *Store) UpsertLine(ctx context.Context, l Line) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO cart_lines (id, cart_id, menu_item_id, quantity, unit_price, total_price, special_instructions, customizations)
		VALUES ($1, $2, $3, $4, $5, $4 * $5, $6, $7)
		ON CONFLICT (cart_id, menu_item_id) DO UPDATE
		SET quantity    = cart_lines.quantity + EXCLUDED.quantity,
		    total_price = cart_lines.unit_price * (cart_lines.quantity + EXCLUDED.quantity),
		    updated_at  = NOW()`,
		string(l.ID), string(l.CartID), string(l.MenuItemID),
		l.Quantity, l.UnitPrice.Amount, l.SpecialInstructions, l.Customizations,
	)
	return err
}

// UpsertLines applies a batch of upserts atomically. Used by reorder, where
// a failure on any line must leave the cart untouched.
func (s *Store) UpsertLines(ctx context.Context, lines []Line) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_lines (id, cart_id, menu_item_id, quantity, unit_price, total_price, special_instructions, customizations)
			VALUES ($1, $2, $3, $4, $5, $4 * $5, $6, $7)
			ON CONFLICT (cart_id, menu_item_id) DO UPDATE
			SET quantity    = cart_lines.quantity + EXCLUDED.quantity,
			    total_price = cart_lines.unit_price * (cart_lines.quantity + EXCLUDED.quantity),
			    updated_at  = NOW()`,
			string(l.ID), string(l.CartID), string(l.MenuItemID),
			l.Quantity, l.UnitPrice.Amount, l.SpecialInstructions, l.Customizations,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetLine(ctx context.Context, lineID types.ID) (*Line, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, cart_id, menu_item_id, quantity, unit_price, total_price, special_instructions, customizations
		FROM cart_lines
		WHERE id = $1`, string(lineID),
	)
	var l Line
	err := row.Scan(&l.ID, &l.CartID, &l.MenuItemID, &l.Quantity, &l.UnitPrice.Amount, &l.TotalPrice.Amount, &l.SpecialInstructions, &l.Customizations)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.UnitPrice.Currency = s.currency
	l.TotalPrice.Currency = s.currency
	return &l, nil
}

// UpdateLineQuantity sets the quantity and recomputes the line total from
// the stored unit price in one statement.
func (s *Store) UpdateLineQuantity(ctx context.Context, lineID types.ID, quantity int, instructions, customizations *string) (types.ID, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE cart_lines
		SET quantity             = $2,
		    total_price          = unit_price * $2,
		    special_instructions = COALESCE($3, special_instructions),
		    customizations       = COALESCE($4, customizations),
		    updated_at           = NOW()
		WHERE id = $1
		RETURNING cart_id`,
		string(lineID), quantity, instructions, customizations,
	)
	var cartID string
	err := row.Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return types.ID(cartID), nil
}

func (s *Store) DeleteLine(ctx context.Context, lineID types.ID) (types.ID, error) {
	row := s.db.QueryRow(ctx, `
		DELETE FROM cart_lines
		WHERE id = $1
		RETURNING cart_id`, string(lineID),
	)
	var cartID string
	err := row.Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return types.ID(cartID), nil
}

func (s *Store) Lines(ctx context.Context, cartID types.ID) ([]Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, cart_id, menu_item_id, quantity, unit_price, total_price, special_instructions, customizations
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at`, string(cartID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.CartID, &l.MenuItemID, &l.Quantity, &l.UnitPrice.Amount, &l.TotalPrice.Amount, &l.SpecialInstructions, &l.Customizations); err != nil {
			return nil, err
		}
		l.UnitPrice.Currency = s.currency
		l.TotalPrice.Currency = s.currency
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Clear removes the cart and its lines; called once a cart has been
// converted into an order.
func (s *Store) Clear(ctx context.Context, cartID types.ID) error {
	_, err := s.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, string(cartID))
	return err
}
