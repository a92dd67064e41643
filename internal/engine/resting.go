package engine

import "fenrir-lob/internal/book"

// Rest appends a resting order's residual quantity to its side of the book,
// applying the insert-with-overflow-to-next-tick policy (spec §4.2). Bids
// overflow to lower prices, asks to higher prices.
func (ob *OrderBook) Rest(side Side, orderID, quantity, price, tick uint64, maxOrdersPerPrice int) (uint64, error) {
	if side == Bid {
		return ob.Bids.Insert(orderID, quantity, price, -1, tick, maxOrdersPerPrice)
	}
	return ob.Asks.Insert(orderID, quantity, price, 1, tick, maxOrdersPerPrice)
}

// Cancel removes a single resting order from its side's book at price,
// returning the quantity that was resting. It does not check maker
// ownership — that check uses the maker table the core engine owns.
func (ob *OrderBook) Cancel(side Side, orderID, price uint64) (uint64, error) {
	return ob.sideBook(side).Cancel(orderID, price)
}

// HighestBid returns the best resting buy price, if any.
func (ob *OrderBook) HighestBid() (uint64, bool) { return ob.Bids.First() }

// LowestAsk returns the best resting sell price, if any.
func (ob *OrderBook) LowestAsk() (uint64, bool) { return ob.Asks.First() }

// AllOrdersAtPrice returns resting (order_id, quantity) pairs at a price on
// a side, in time order, skipping tombstoned segments.
func (ob *OrderBook) AllOrdersAtPrice(side Side, price uint64) ([]book.Slot, bool) {
	return ob.sideBook(side).AllOrdersAtPrice(price)
}

// Node exposes a price level's tombstone offset for the query surface.
func (ob *OrderBook) Node(side Side, price uint64) (uint32, bool) {
	return ob.sideBook(side).GetNode(price)
}

// Lookup finds a resting order without mutating anything, so a batch cancel
// can validate every entry before committing any of it.
func (ob *OrderBook) Lookup(side Side, orderID, price uint64) (book.Slot, bool) {
	return ob.sideBook(side).Lookup(orderID, price)
}
