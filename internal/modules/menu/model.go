// README: Menu catalog items (read-mostly collaborator for cart and orders).
package menu

import (
	"errors"
	"time"

	"bistro/internal/types"
)

var (
	ErrNotFound    = errors.New("menu item not found")
	ErrUnavailable = errors.New("menu item unavailable")
)

type Item struct {
	ID          types.ID
	Name        string
	Description string
	Price       types.Money
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
