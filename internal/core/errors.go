package core

import "errors"

// ErrPremiumTooLow rejects a purchase paying less than the product premium.
var ErrPremiumTooLow = errors.New("paid amount below product premium")
