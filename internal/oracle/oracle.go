// Package oracle defines the payout-decision capability consumed by the
// policy ledger. The core only requires a boolean answer per claim
// attempt; how a gateway arrives at that answer is its own business.
package oracle

import "context"

// Gateway answers, per claim attempt, whether the insured event for a
// product has occurred. Implementations must be read-only with respect
// to ledger state.
type Gateway interface {
	IsPayoutEvent(ctx context.Context, productID int64) (bool, error)
}
