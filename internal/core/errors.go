package core

import "errors"

// Admin and batch-shape error kinds from spec §7. Matching-path errors
// (no-quantity, price-zero, ...) live in internal/engine and are returned
// through unchanged.
var (
	ErrLengthMismatch       = errors.New("length-mismatch")
	ErrNotMaker             = errors.New("not-maker")
	ErrNothingToClaim       = errors.New("nothing-to-claim")
	ErrTooManyClaimOrders   = errors.New("too-many-claim-orders")
	ErrTickCannotBeChanged  = errors.New("tick-cannot-be-changed")
	ErrMaxOrdersNotMultiple = errors.New("max-orders-not-multiple")
	ErrDevFeeTooHigh        = errors.New("dev-fee-too-high")
	ErrDevFeeZeroAddress    = errors.New("dev-fee-zero-address")
)
