// Package book implements the per-(side, item) price-indexed order book: a
// balanced tree over active prices (the "ordered price index") plus, per
// price, a packed sequence of order segments (the "packed segment storage").
// Both halves are deliberately kept in the same package: cancellation and
// matching mutate both as a single unit, and spec invariant 3 ("a price
// level exists in the tree iff it has an active non-empty slot") only holds
// if index and storage are kept consistent by the same code path.
package book

import (
	"errors"

	"github.com/tidwall/btree"
)

var (
	ErrPriceLevelExists   = errors.New("price level already exists")
	ErrPriceLevelNotFound = errors.New("price level not found")
)

// Side selects which end of the tree counts as "best": bids want the
// highest price first, asks want the lowest price first.
type Side int

const (
	Bid Side = iota
	Ask
)

// Level is a single active price's state: the tombstone offset (how many
// leading segments are fully consumed and skipped) and the segment storage
// itself. A Level only exists in a Book's tree while it has at least one
// active, non-empty slot (invariant 3).
type Level struct {
	price           uint64
	tombstoneOffset uint32
	segments        []Segment
}

// Price returns the level's price.
func (l *Level) Price() uint64 { return l.price }

// TombstoneOffset returns the number of leading segments retired from this
// level. Segments at index [0, TombstoneOffset) must never be read again.
func (l *Level) TombstoneOffset() uint32 { return l.tombstoneOffset }

// ActiveSegmentCount returns how many segments remain live (past the
// tombstone offset).
func (l *Level) ActiveSegmentCount() int {
	return len(l.segments) - int(l.tombstoneOffset)
}

// OrdersAtLevel returns the number of resting orders currently occupying
// this level, per spec invariant 5: (len-tombstone)*K minus trailing empty
// slots of the final segment.
func (l *Level) OrdersAtLevel() int {
	active := l.ActiveSegmentCount()
	if active == 0 {
		return 0
	}
	count := active * K
	last := l.segments[len(l.segments)-1]
	for i := K - 1; i >= 0; i-- {
		if !last.Get(i).Empty() {
			break
		}
		count--
	}
	return count
}

// activeSegment returns the segment at a tombstone-relative index (0 is the
// first still-active segment).
func (l *Level) activeSegment(i int) *Segment {
	return &l.segments[int(l.tombstoneOffset)+i]
}

// Book is the ordered price index and packed segment storage for a single
// (side, item_id). A fresh Book is empty; item-level isolation is the
// caller's responsibility (one Book per item id per side).
type Book struct {
	side Side
	tree *btree.BTreeG[*Level]
}

// NewBook constructs an empty book for the given side.
func NewBook(side Side) *Book {
	var less func(a, b *Level) bool
	switch side {
	case Bid:
		less = func(a, b *Level) bool { return a.price > b.price }
	default:
		less = func(a, b *Level) bool { return a.price < b.price }
	}
	return &Book{side: side, tree: btree.NewBTreeG(less)}
}

// Side returns which side of the market this book represents.
func (b *Book) Side() Side { return b.side }

// Copy returns an independent snapshot of the book: the tree is copied
// copy-on-write (btree.BTreeG.Copy) and every level is duplicated, so writes
// through the copy never reach the original's levels. Used to give batch
// operations atomic all-or-nothing semantics: mutate the copy, and only swap
// it in for the original once the whole batch is known to succeed.
func (b *Book) Copy() *Book {
	cp := &Book{side: b.side, tree: b.tree.Copy()}
	b.tree.Scan(func(lvl *Level) bool {
		cp.tree.Set(&Level{
			price:           lvl.price,
			tombstoneOffset: lvl.tombstoneOffset,
			segments:        append([]Segment(nil), lvl.segments...),
		})
		return true
	})
	return cp
}

// First returns the best price on this side: the lowest ask, or the highest
// bid. Both are the tree's Min under the side's comparator.
func (b *Book) First() (uint64, bool) {
	lvl, ok := b.tree.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// Last returns the worst (furthest from crossing) active price on this side.
func (b *Book) Last() (uint64, bool) {
	lvl, ok := b.tree.Max()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// Exists reports whether a price level is currently active.
func (b *Book) Exists(price uint64) bool {
	_, ok := b.tree.Get(&Level{price: price})
	return ok
}

// level returns the live node for a price, or nil.
func (b *Book) level(price uint64) *Level {
	lvl, ok := b.tree.Get(&Level{price: price})
	if !ok {
		return nil
	}
	return lvl
}

// insertEmptyLevel inserts a brand-new, empty price level. Fails if the
// price is already present.
func (b *Book) insertEmptyLevel(price uint64) (*Level, error) {
	if b.Exists(price) {
		return nil, ErrPriceLevelExists
	}
	lvl := &Level{price: price}
	b.tree.Set(lvl)
	return lvl, nil
}

// removeLevel removes a price level entirely. Fails if absent.
func (b *Book) removeLevel(price uint64) error {
	if _, ok := b.tree.Delete(&Level{price: price}); !ok {
		return ErrPriceLevelNotFound
	}
	return nil
}

// Edit adds delta to a level's tombstone offset in place. Never changes tree
// shape (no delete/reinsert), matching spec §4.1.
func (b *Book) Edit(price uint64, delta uint32) error {
	lvl := b.level(price)
	if lvl == nil {
		return ErrPriceLevelNotFound
	}
	lvl.tombstoneOffset += delta
	return nil
}

// GetNode returns the tombstone offset for an active price.
func (b *Book) GetNode(price uint64) (uint32, bool) {
	lvl := b.level(price)
	if lvl == nil {
		return 0, false
	}
	return lvl.tombstoneOffset, true
}

// Levels returns all active levels in ascending tree order (best-first for
// this side's comparator). Intended for queries/tests, not the hot path.
func (b *Book) Levels() []*Level {
	var out []*Level
	b.tree.Scan(func(lvl *Level) bool {
		out = append(out, lvl)
		return true
	})
	return out
}

// AllOrdersAtPrice returns the resting (order_id, quantity) pairs at a
// price, in time order, skipping tombstoned segments. Returns ok=false if
// the price has no active level.
func (b *Book) AllOrdersAtPrice(price uint64) ([]Slot, bool) {
	lvl := b.level(price)
	if lvl == nil {
		return nil, false
	}
	var out []Slot
	for i := 0; i < lvl.ActiveSegmentCount(); i++ {
		seg := lvl.activeSegment(i)
		for j := 0; j < K; j++ {
			s := seg.Get(j)
			if s.Empty() {
				break
			}
			out = append(out, s)
		}
	}
	return out, true
}
