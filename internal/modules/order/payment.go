// README: Payment gateway port; the card processor is an external service.
package order

import (
	"context"

	"bistro/internal/types"
)

// ChargeResult is the gateway's answer to a charge attempt.
type ChargeResult struct {
	Success       bool
	TransactionID string
	Error         string
}

// Gateway is the external card-payment collaborator. Charge is keyed by the
// order reference on the gateway side; Refund reverses a prior transaction.
type Gateway interface {
	Charge(ctx context.Context, amount types.Money, reference string) (ChargeResult, error)
	Refund(ctx context.Context, transactionID string, amount types.Money) error
}
