// README: Pricing policy inputs and quote breakdown.
package pricing

import "bistro/internal/types"

// Policy carries the externally configured tax rate and delivery fee.
type Policy struct {
	Currency    string
	TaxBps      int64
	DeliveryFee int64
}

// Quote is the priced breakdown of an order at checkout.
// Total is always Subtotal + Tax + DeliveryFee.
type Quote struct {
	Subtotal    types.Money
	Tax         types.Money
	DeliveryFee types.Money
	Total       types.Money
}
