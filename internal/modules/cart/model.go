// README: Cart aggregate, line items, and identity keys.
package cart

import (
	"errors"
	"time"

	"bistro/internal/types"
)

var (
	ErrNotFound        = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrBadIdentity     = errors.New("exactly one of customer id or session id required")
)

// Identity keys a cart to either a logged-in customer or a guest session.
// Exactly one field is set.
type Identity struct {
	CustomerID types.ID
	SessionID  types.ID
}

func (id Identity) Valid() bool {
	return (id.CustomerID == "") != (id.SessionID == "")
}

type Cart struct {
	ID         types.ID
	CustomerID types.ID
	SessionID  types.ID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Line struct {
	ID                  types.ID
	CartID              types.ID
	MenuItemID          types.ID
	Quantity            int
	UnitPrice           types.Money
	TotalPrice          types.Money
	SpecialInstructions string
	Customizations      string
}

// View is the cart shape returned to callers. Total and ItemCount are
// recomputed from the lines on every read, never stored.
type View struct {
	ID        types.ID `json:"id,omitempty"`
	Items     []Line   `json:"items"`
	Total     types.Money
	ItemCount int
}
