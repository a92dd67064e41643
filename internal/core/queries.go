package core

import (
	"fenrir-lob/internal/book"
	"fenrir-lob/internal/engine"
)

// HighestBid returns the best resting buy price for an item, if any.
func (e *Engine) HighestBid(itemID uint64) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ob, ok := e.books[itemID]
	if !ok {
		return 0, false
	}
	return ob.HighestBid()
}

// LowestAsk returns the best resting sell price for an item, if any.
func (e *Engine) LowestAsk(itemID uint64) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ob, ok := e.books[itemID]
	if !ok {
		return 0, false
	}
	return ob.LowestAsk()
}

// AllOrdersAtPrice returns the resting (order_id, quantity) pairs at a price
// on a side, in time order.
func (e *Engine) AllOrdersAtPrice(itemID uint64, side engine.Side, price uint64) ([]book.Slot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ob, ok := e.books[itemID]
	if !ok {
		return nil, false
	}
	return ob.AllOrdersAtPrice(side, price)
}

// Node exposes a price level's tombstone offset for diagnostics.
func (e *Engine) Node(itemID uint64, side engine.Side, price uint64) (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ob, ok := e.books[itemID]
	if !ok {
		return 0, false
	}
	return ob.Node(side, price)
}

// MakerOf returns the maker who placed orderID, if it has ever existed.
func (e *Engine) MakerOf(orderID uint64) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	maker, ok := e.makerOf[orderID]
	return maker, ok
}

// CoinsClaimable sums the claimable coin balance across orderIDs. If
// applyFees is set, the sum is previewed net of the fee schedule currently
// active (the same split claim_coins would apply right now), without
// mutating any claimable state; a later fee-schedule change can still alter
// the amount actually paid out at claim time.
func (e *Engine) CoinsClaimable(orderIDs []uint64, applyFees bool) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var gross uint64
	for _, id := range orderIDs {
		gross += e.coinsClaimable[id]
	}
	if !applyFees {
		return gross
	}
	return gross - e.fees.Split(gross).Total()
}

// ItemsClaimable returns, for each parallel (orderIDs[i], itemIDs[i]) pair,
// that pair's currently claimable item quantity.
func (e *Engine) ItemsClaimable(orderIDs, itemIDs []uint64) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	amounts := make([]uint64, len(orderIDs))
	for i, id := range orderIDs {
		if i >= len(itemIDs) {
			break
		}
		amounts[i] = e.itemsClaimable[id][itemIDs[i]]
	}
	return amounts
}

// ItemConfig returns the registered configuration for an item id.
func (e *Engine) ItemConfig(itemID uint64) (engine.ItemConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.itemConfigs[itemID]
	return cfg, ok
}

// Fees returns the currently active fee schedule.
func (e *Engine) Fees() engine.FeeConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.fees
}

// MaxOrdersPerPrice returns the currently configured per-level occupancy cap.
func (e *Engine) MaxOrdersPerPrice() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.maxOrdersPerPrice
}
