package engine

// FeeBasis is the basis-of-10000 denominator fee rates are expressed
// against.
const FeeBasis = 10000

// FeeConfig is the global fee schedule applied at match/claim time (spec
// §3, §6). Rates are basis points out of FeeBasis.
type FeeConfig struct {
	DevRate          uint16
	BurnRate         uint16
	RoyaltyRate      uint16
	DevRecipient     string
	RoyaltyRecipient string
}

// FeeSplit is the result of applying a FeeConfig to a gross coin amount.
type FeeSplit struct {
	Royalty uint64
	Dev     uint64
	Burn    uint64
}

// Total returns the combined fee taken out of the gross amount.
func (s FeeSplit) Total() uint64 { return s.Royalty + s.Dev + s.Burn }

// Split computes royalty/dev/burn shares of gross. Each share truncates
// (gross * rate / FeeBasis), matching the worked examples' integer division
// exactly rather than rounding to nearest.
func (f FeeConfig) Split(gross uint64) FeeSplit {
	share := func(rate uint16) uint64 {
		return gross * uint64(rate) / FeeBasis
	}

	return FeeSplit{
		Royalty: share(f.RoyaltyRate),
		Dev:     share(f.DevRate),
		Burn:    share(f.BurnRate),
	}
}
