// README: Menu store backed by PostgreSQL.
package menu

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

func (s *Store) Get(ctx context.Context, id types.ID) (*Item, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, price, available, created_at, updated_at
		FROM menu_items
		WHERE id = $1`, string(id),
	)

	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Price.Amount, &it.Available, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.Price.Currency = s.currency
	return &it, nil
}

func (s *Store) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, price, available, created_at, updated_at
		FROM menu_items
		ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price.Amount, &it.Available, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		it.Price.Currency = s.currency
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetAvailability toggles whether an item can be added to carts.
func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE menu_items
		SET available = $1, updated_at = NOW()
		WHERE id = $2`, available, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
