package engine

import "fenrir-lob/internal/book"

// TakeBuy sweeps the ask side for a buy order capped at price, mirroring
// spec §4.3's buy-taker algorithm. It returns the unfilled residual, the
// gross coin cost of the fills (quantity * level price, summed), and the
// individual fills. The book is left unmutated if the call would exceed
// MaxMatchesPerCall (spec: validation/cap failures leave no state change).
func (ob *OrderBook) TakeBuy(price, quantity uint64) (MatchResult, error) {
	return take(ob.Asks, price, quantity, func(levelPrice uint64) bool {
		return levelPrice <= price
	})
}

// TakeSell sweeps the bid side for a sell order capped at price, mirroring
// spec §4.3's sell-taker algorithm (mirror logic of buy-taker).
func (ob *OrderBook) TakeSell(price, quantity uint64) (MatchResult, error) {
	return take(ob.Bids, price, quantity, func(levelPrice uint64) bool {
		return levelPrice >= price
	})
}

// take implements spec §4.3's take-from-book loop against restingBook
// (asks for a buy-taker, bids for a sell-taker). crosses reports whether a
// resting level's price is still acceptable to the taker (the price-protect
// check). It is first simulated read-only to decide whether the cap would
// be hit, then, only if the whole call is safe, replayed with mutation —
// this gives the "no partial state change on too-many-orders-hit" property
// without needing a true rollback of the tree/segment structures.
func take(restingBook *book.Book, price, quantity uint64, crosses func(uint64) bool) (MatchResult, error) {
	if _, _, _, err := runMatch(restingBook, price, quantity, crosses, false); err != nil {
		return MatchResult{}, err
	}
	residual, cost, matches, err := runMatch(restingBook, price, quantity, crosses, true)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{Residual: residual, Cost: cost, Matches: matches}, nil
}

// runMatch is the single implementation of the take-from-book sweep. When
// mutate is false it performs an identical walk but never writes to the
// book, used purely to discover whether MaxMatchesPerCall would be
// exceeded before committing to the real pass.
//
// The level list is captured once, in best-first order, before the walk
// starts. The algorithm only ever advances past a level once that level has
// been fully drained (if residual survives a whole level, it moves on; if
// residual hits zero mid-level, the whole walk stops) — so a single
// snapshot of the ordering is equivalent to re-querying First() after each
// removal, and it lets the read-only (mutate=false) pass terminate without
// needing to simulate tree deletions.
func runMatch(restingBook *book.Book, price, quantity uint64, crosses func(uint64) bool, mutate bool) (residual, cost uint64, matches []Match, err error) {
	residual = quantity
	levels := restingBook.Levels()

	for _, lvl := range levels {
		if residual == 0 {
			break
		}
		levelPrice := lvl.Price()
		if !crosses(levelPrice) {
			break
		}

		segmentsFullyConsumed := 0
		activeSegments := lvl.ActiveSegmentCount()
		for i := 0; i < activeSegments; i++ {
			seg := lvl.Segment(i)

			nonZeroBefore := 0
			for j := 0; j < book.K; j++ {
				if !seg.Get(j).Empty() {
					nonZeroBefore++
				}
			}

			slotsConsumed := 0
			for offset := 0; offset < book.K; offset++ {
				slot := seg.Get(offset)
				if slot.Empty() || residual == 0 {
					break
				}

				if residual >= slot.Quantity {
					residual -= slot.Quantity
					matches = append(matches, Match{OrderID: slot.OrderID, Quantity: slot.Quantity, Price: levelPrice})
					cost += slot.Quantity * levelPrice
					if mutate {
						seg.Zero(offset)
					}
					slotsConsumed++

					nextEmpty := offset == book.K-1 || seg.Get(offset+1).Empty()
					if nextEmpty {
						segmentsFullyConsumed++
					}
				} else {
					matched := residual
					matches = append(matches, Match{OrderID: slot.OrderID, Quantity: matched, Price: levelPrice})
					cost += matched * levelPrice
					if mutate {
						seg.Set(offset, slot.OrderID, slot.Quantity-matched)
					}
					residual = 0
				}
			}

			if mutate && slotsConsumed != 0 && slotsConsumed != nonZeroBefore {
				seg.CompactLeft()
			}
			if residual == 0 {
				break
			}
		}

		if mutate {
			if segmentsFullyConsumed == activeSegments {
				_ = restingBook.RemoveLevel(levelPrice)
			} else {
				_ = restingBook.Edit(levelPrice, uint32(segmentsFullyConsumed))
			}
		}

		if len(matches) >= MaxMatchesPerCall {
			return 0, 0, nil, ErrTooManyOrdersHit
		}
	}

	return residual, cost, matches, nil
}
