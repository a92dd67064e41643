package engine

// ItemConfig is the per-item-id record governing price granularity and the
// smallest permitted resting remainder (spec §3). Tick is immutable once
// set non-zero; that rule is enforced by the caller (internal/core), not
// here, since it requires remembering the previous value.
type ItemConfig struct {
	Tick        uint64
	MinQuantity uint64
}

// Registered reports whether an item id has been configured for trading.
func (c ItemConfig) Registered() bool { return c.Tick > 0 }
