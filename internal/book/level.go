package book

import (
	"errors"
	"sort"
)

var (
	// errLevelFull is returned internally while walking overflow ticks; it
	// never escapes Insert.
	errLevelFull = errors.New("price level full")

	ErrOrderNotFoundInTree = errors.New("order not found in tree")
	ErrOrderNotFound       = errors.New("order not found")
	ErrPriceTickOverflow   = errors.New("no further tick available to overflow into")
)

// Insert implements the spec §4.2 insert primitive: place (orderID,
// quantity) at price, or, if that level is full, walk in tickDirection
// (positive for asks, negative for bids) until an existing non-full level or
// a not-yet-present price is found. Returns the price actually written to.
//
// maxOrdersPerPrice bounds occupancy per spec invariant 5; tick is the
// item's configured tick size, used to step prices during overflow.
func (b *Book) Insert(orderID, quantity, price uint64, tickDirection int64, tick uint64, maxOrdersPerPrice int) (uint64, error) {
	for {
		lvl := b.level(price)
		if lvl == nil {
			lvl, err := b.insertEmptyLevel(price)
			if err != nil {
				return 0, err
			}
			lvl.segments = append(lvl.segments, Segment{})
			lvl.segments[0].Set(0, orderID, quantity)
			return price, nil
		}

		if err := lvl.insertAt(orderID, quantity, maxOrdersPerPrice); err == nil {
			return price, nil
		} else if !errors.Is(err, errLevelFull) {
			return 0, err
		}

		next, ok := stepPrice(price, tickDirection, tick)
		if !ok {
			return 0, ErrPriceTickOverflow
		}
		price = next
	}
}

// stepPrice moves price by one tick in the given direction, failing if that
// would underflow past zero (bid side) or overflow uint64 (ask side). Price
// must stay strictly positive, per spec §4.3 pre-validation.
func stepPrice(price uint64, direction int64, tick uint64) (uint64, bool) {
	if direction < 0 {
		if price <= tick {
			return 0, false
		}
		return price - tick, true
	}
	next := price + tick
	if next < price {
		return 0, false
	}
	return next, true
}

// insertAt writes (orderID, quantity) into the level's final segment if it
// has room, or appends a fresh segment. Returns errLevelFull if occupancy is
// already at maxOrdersPerPrice and the final segment's last slot is taken.
func (l *Level) insertAt(orderID, quantity uint64, maxOrdersPerPrice int) error {
	if l.ActiveSegmentCount() > 0 {
		last := &l.segments[len(l.segments)-1]
		lastSlotTaken := !last.Get(K - 1).Empty()
		if l.OrdersAtLevel() >= maxOrdersPerPrice && lastSlotTaken {
			return errLevelFull
		}
		if idx := last.firstEmpty(); idx != -1 {
			last.Set(idx, orderID, quantity)
			return nil
		}
	}
	l.segments = append(l.segments, Segment{})
	l.segments[len(l.segments)-1].Set(0, orderID, quantity)
	return nil
}

// Cancel implements the spec §4.2 cancel primitive: locate orderID within
// price's active segments (binary search, since order ids increase strictly
// along scan order across segments) and surgically remove it, returning its
// resting quantity. The caller is responsible for the "not-maker" check
// (the maker table lives outside this package).
func (b *Book) Cancel(orderID, price uint64) (uint64, error) {
	lvl := b.level(price)
	if lvl == nil {
		return 0, ErrOrderNotFoundInTree
	}

	segIdx, slotIdx, found := lvl.find(orderID)
	if !found {
		return 0, ErrOrderNotFound
	}

	seg := lvl.activeSegment(segIdx)
	quantity := seg.Get(slotIdx).Quantity

	onlyOccupant := slotIdx == 0 && firstEmptyAfterZeroingHead(seg)
	if onlyOccupant {
		lvl.removeSegment(segIdx)
	} else {
		seg.Zero(slotIdx)
		seg.CompactLeft()
	}

	if lvl.ActiveSegmentCount() == 0 {
		return quantity, b.removeLevel(price)
	}
	return quantity, nil
}

// firstEmptyAfterZeroingHead reports whether every slot other than slot 0 is
// already empty, i.e. canceling slot 0 would leave the whole segment empty.
func firstEmptyAfterZeroingHead(seg *Segment) bool {
	for i := 1; i < K; i++ {
		if !seg.Get(i).Empty() {
			return false
		}
	}
	return true
}

// removeSegment deletes the segment at tombstone-relative index segIdx by
// shifting later segments down by one and shrinking the slice. This is a
// structural splice, not a tombstone advance: the segment being removed is
// not necessarily the head of the active range.
func (l *Level) removeSegment(segIdx int) {
	abs := int(l.tombstoneOffset) + segIdx
	copy(l.segments[abs:], l.segments[abs+1:])
	l.segments = l.segments[:len(l.segments)-1]
}

// find locates orderID among active segments via binary search over each
// segment's minimum (first, dense-packed) order id, then scans the K slots
// of the matching segment. Returns tombstone-relative segment index and
// in-segment slot offset.
func (l *Level) find(orderID uint64) (segIdx, slotIdx int, found bool) {
	n := l.ActiveSegmentCount()
	if n == 0 {
		return 0, 0, false
	}
	// First segment whose minimum id is > orderID; the target, if present,
	// is in the segment just before it.
	i := sort.Search(n, func(i int) bool {
		minID, ok := l.activeSegment(i).minOrderID()
		if !ok {
			return true
		}
		return minID > orderID
	})
	if i == 0 {
		return 0, 0, false
	}
	seg := l.activeSegment(i - 1)
	for j := 0; j < K; j++ {
		s := seg.Get(j)
		if s.Empty() {
			break
		}
		if s.OrderID == orderID {
			return i - 1, j, true
		}
	}
	return 0, 0, false
}

// Lookup finds orderID at price without mutating anything, for callers that
// need to validate a whole batch before committing any of it.
func (b *Book) Lookup(orderID, price uint64) (Slot, bool) {
	lvl := b.level(price)
	if lvl == nil {
		return Slot{}, false
	}
	segIdx, slotIdx, found := lvl.find(orderID)
	if !found {
		return Slot{}, false
	}
	return lvl.activeSegment(segIdx).Get(slotIdx), true
}

// Segment exposes the tombstone-relative segment at i for the matching
// engine's read/write access during a match pass. i must be in
// [0, ActiveSegmentCount()).
func (l *Level) Segment(i int) *Segment {
	return l.activeSegment(i)
}

// AdvanceTombstone retires delta leading segments: they are never read
// again, and no further tree mutation is required (spec §4.1 "never changes
// tree shape").
func (l *Level) AdvanceTombstone(delta uint32) {
	l.tombstoneOffset += delta
}

// RemoveLevel removes price entirely, used once a match fully drains every
// active segment at a level.
func (b *Book) RemoveLevel(price uint64) error {
	return b.removeLevel(price)
}

// Level returns the live node at price for direct matching access, or nil.
func (b *Book) Level(price uint64) *Level {
	return b.level(price)
}
