package book

// K is the number of order slots packed into a single segment. A segment is
// the unit the tombstone offset skips over, and the unit an overflow check
// allocates when a price level's final segment has no room left.
const K = 4

// idBits is the width of the order id packed into the low bits of a slot;
// the remaining high bits hold the quantity. See spec: "quantity:u24 || id:u40".
const (
	idBits  = 40
	idMask  = (uint64(1) << idBits) - 1
	qtyBits = 64 - idBits
	qtyMask = (uint64(1) << qtyBits) - 1
)

// MaxOrderID is the largest order id a slot can hold.
const MaxOrderID = idMask

// MaxSlotQuantity is the largest quantity a single slot can hold.
const MaxSlotQuantity = qtyMask

// Segment packs K order slots into fixed-width 64-bit words: order_id in the
// low 40 bits, quantity in the high 24 bits. Slots are filled densely from
// the left; a slot with id == 0 is empty.
type Segment [K]uint64

// Slot is the unpacked view of a single unit inside a segment.
type Slot struct {
	OrderID  uint64
	Quantity uint64
}

// Empty reports whether the slot holds no order.
func (s Slot) Empty() bool { return s.OrderID == 0 }

func packSlot(orderID, quantity uint64) uint64 {
	return (quantity&qtyMask)<<idBits | (orderID & idMask)
}

func unpackSlot(v uint64) Slot {
	return Slot{
		OrderID:  v & idMask,
		Quantity: v >> idBits,
	}
}

// Get returns the unpacked slot at offset i (0..K-1).
func (seg *Segment) Get(i int) Slot {
	return unpackSlot(seg[i])
}

// Set writes an (orderID, quantity) pair into slot i.
func (seg *Segment) Set(i int, orderID, quantity uint64) {
	seg[i] = packSlot(orderID, quantity)
}

// Zero empties slot i.
func (seg *Segment) Zero(i int) {
	seg[i] = 0
}

// firstEmpty returns the index of the first empty slot, or -1 if the segment
// is full. Slots are dense-from-the-left (invariant 1), so this is just a
// scan for the first id == 0.
func (seg *Segment) firstEmpty() int {
	for i := 0; i < K; i++ {
		if seg.Get(i).Empty() {
			return i
		}
	}
	return -1
}

// CompactLeft shifts non-empty slots to the front of the segment, zeroing
// the trailing slots. Used after a partial in-place consumption (cancel
// mid-segment, or a match that only consumes a prefix) to restore invariant 1.
func (seg *Segment) CompactLeft() {
	write := 0
	var tmp Segment
	for read := 0; read < K; read++ {
		s := seg.Get(read)
		if !s.Empty() {
			tmp.Set(write, s.OrderID, s.Quantity)
			write++
		}
	}
	*seg = tmp
}

// minOrderID returns the id of the first occupied slot. Segments are dense
// from the left, so this is the segment's smallest id, which is also smaller
// than every id in any later segment (monotonic order ids, append order).
func (seg *Segment) minOrderID() (uint64, bool) {
	s := seg.Get(0)
	if s.Empty() {
		return 0, false
	}
	return s.OrderID, true
}
