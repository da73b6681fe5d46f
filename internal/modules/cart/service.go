// README: Cart service; add/update/remove/merge lines and reorder.
package cart

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"bistro/internal/modules/menu"
	"bistro/internal/modules/pricing"
	"bistro/internal/types"
)

// Catalog is the read-only menu collaborator the cart validates against.
type Catalog interface {
	Get(ctx context.Context, id types.ID) (*menu.Item, error)
}

// ReorderItem is one snapshotted line from a past order, priced as it was
// when the order was placed.
type ReorderItem struct {
	MenuItemID          types.ID
	Quantity            int
	UnitPrice           types.Money
	SpecialInstructions string
	Customizations      string
}

// OrderReader exposes the order snapshot lines needed for reorder.
type OrderReader interface {
	ItemsForReorder(ctx context.Context, orderID types.ID) ([]ReorderItem, error)
}

type Service struct {
	store   *Store
	catalog Catalog
	pricing *pricing.Service
}

func NewService(store *Store, catalog Catalog, pricingSvc *pricing.Service) *Service {
	return &Service{store: store, catalog: catalog, pricing: pricingSvc}
}

// Get returns the cart for the identity. A missing cart is not an error;
// callers get an empty view.
func (s *Service) Get(ctx context.Context, id Identity) (*View, error) {
	if !id.Valid() {
		return nil, ErrBadIdentity
	}
	c, err := s.store.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return emptyView(), nil
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c.ID)
}

type AddItemCommand struct {
	Identity            Identity
	MenuItemID          types.ID
	Quantity            int
	SpecialInstructions string
	Customizations      string
}

// AddItem snapshots the item's current menu price onto a new line, or merges
// into an existing line for the same menu item by summing quantities.
func (s *Service) AddItem(ctx context.Context, cmd AddItemCommand) (*View, error) {
	if !cmd.Identity.Valid() {
		return nil, ErrBadIdentity
	}
	if cmd.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	item, err := s.catalog.Get(ctx, cmd.MenuItemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, menu.ErrUnavailable
	}

	c, err := s.store.Ensure(ctx, cmd.Identity, newID())
	if err != nil {
		return nil, err
	}
	line := Line{
		ID:                  newID(),
		CartID:              c.ID,
		MenuItemID:          cmd.MenuItemID,
		Quantity:            cmd.Quantity,
		UnitPrice:           item.Price,
		SpecialInstructions: cmd.SpecialInstructions,
		Customizations:      cmd.Customizations,
	}
	if err := s.store.UpsertLine(ctx, line); err != nil {
		return nil, err
	}
	return s.view(ctx, c.ID)
}

type UpdateLineCommand struct {
	LineID              types.ID
	Quantity            int
	SpecialInstructions *string
	Customizations      *string
}

// UpdateLine changes a line's quantity. Zero is rejected; removal is a
// separate operation.
func (s *Service) UpdateLine(ctx context.Context, cmd UpdateLineCommand) (*View, error) {
	if cmd.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	cartID, err := s.store.UpdateLineQuantity(ctx, cmd.LineID, cmd.Quantity, cmd.SpecialInstructions, cmd.Customizations)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cartID)
}

func (s *Service) RemoveLine(ctx context.Context, lineID types.ID) (*View, error) {
	cartID, err := s.store.DeleteLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cartID)
}

// Reorder copies a past order's snapshot lines into the identity's cart,
// preserving the original unit prices. Every referenced menu item must still
// exist; otherwise the whole operation fails without touching the cart.
func (s *Service) Reorder(ctx context.Context, orders OrderReader, orderID types.ID, id Identity) (*View, error) {
	if !id.Valid() {
		return nil, ErrBadIdentity
	}
	items, err := orders.ItemsForReorder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if _, err := s.catalog.Get(ctx, it.MenuItemID); err != nil {
			return nil, fmt.Errorf("menu item %s from the original order is no longer offered: %w", it.MenuItemID, err)
		}
	}

	c, err := s.store.Ensure(ctx, id, newID())
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{
			ID:                  newID(),
			CartID:              c.ID,
			MenuItemID:          it.MenuItemID,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			SpecialInstructions: it.SpecialInstructions,
			Customizations:      it.Customizations,
		})
	}
	if err := s.store.UpsertLines(ctx, lines); err != nil {
		return nil, err
	}
	return s.view(ctx, c.ID)
}

// Snapshot returns the cart and its lines for checkout.
func (s *Service) Snapshot(ctx context.Context, id Identity) (*Cart, []Line, error) {
	if !id.Valid() {
		return nil, nil, ErrBadIdentity
	}
	c, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.store.Lines(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, lines, nil
}

// Clear empties the identity's cart. Clearing a cart that does not exist is
// a no-op; the next read is an empty view either way.
func (s *Service) Clear(ctx context.Context, id Identity) error {
	if !id.Valid() {
		return ErrBadIdentity
	}
	c, err := s.store.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.Clear(ctx, c.ID)
}

func (s *Service) view(ctx context.Context, cartID types.ID) (*View, error) {
	lines, err := s.store.Lines(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return emptyView(), nil
	}
	pl := make([]pricing.Line, len(lines))
	for i, l := range lines {
		pl[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	total, count := s.pricing.Totals(pl)
	return &View{ID: cartID, Items: lines, Total: total, ItemCount: count}, nil
}

func emptyView() *View {
	return &View{Items: []Line{}}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
