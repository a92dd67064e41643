package engine

import "errors"

// Error kinds from spec §7 that originate inside the matching core. Admin
// and batch-shape errors (length-mismatch, tick-cannot-be-changed, ...) live
// in internal/core, closer to the validation that raises them.
var (
	ErrNoQuantity             = errors.New("no-quantity")
	ErrPriceZero              = errors.New("price-zero")
	ErrTokenDoesNotExist      = errors.New("token-does-not-exist")
	ErrPriceNotMultipleOfTick = errors.New("price-not-multiple-of-tick")
	ErrTooManyOrdersHit       = errors.New("too-many-orders-hit")
	ErrQuantityRemainingLow   = errors.New("quantity-remaining-too-low")
)
