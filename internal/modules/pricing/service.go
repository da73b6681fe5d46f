// README: Pricing service; pure computation over line items and quotes.
package pricing

import (
	"errors"

	"bistro/internal/types"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

type Service struct {
	policy Policy
}

func NewService(policy Policy) *Service {
	return &Service{policy: policy}
}

// LineTotal computes the total for a single cart line. The unit price is the
// one captured when the line was created, never re-derived from the menu.
func (s *Service) LineTotal(unitPrice types.Money, quantity int) (types.Money, error) {
	if quantity <= 0 {
		return types.Money{}, ErrInvalidQuantity
	}
	return unitPrice.Mul(int64(quantity)), nil
}

// Line is the minimal shape aggregate totals are computed from.
type Line struct {
	UnitPrice types.Money
	Quantity  int
}

// Totals recomputes cart aggregates as a full sum over lines. Aggregates are
// never patched incrementally, so a missed update cannot cause drift.
func (s *Service) Totals(lines []Line) (total types.Money, itemCount int) {
	total = types.Money{Currency: s.policy.Currency}
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(int64(l.Quantity)))
		itemCount += l.Quantity
	}
	return total, itemCount
}

// QuoteOrder prices an order at checkout. Delivery fee applies to delivery
// orders only; tax is rounded half up.
func (s *Service) QuoteOrder(subtotal types.Money, delivery bool) Quote {
	tax := types.Money{
		Amount:   (subtotal.Amount*s.policy.TaxBps + 5000) / 10000,
		Currency: s.policy.Currency,
	}
	fee := types.Money{Currency: s.policy.Currency}
	if delivery {
		fee.Amount = s.policy.DeliveryFee
	}
	return Quote{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal.Add(tax).Add(fee),
	}
}
