package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slots(lvl *Level) []Slot {
	var out []Slot
	for i := 0; i < lvl.ActiveSegmentCount(); i++ {
		seg := lvl.Segment(i)
		for j := 0; j < K; j++ {
			s := seg.Get(j)
			if s.Empty() {
				break
			}
			out = append(out, s)
		}
	}
	return out
}

func TestBook_FirstLast_BidsHighestFirst(t *testing.T) {
	b := NewBook(Bid)
	_, err := b.Insert(1, 10, 100, -1, 1, 100)
	require.NoError(t, err)
	_, err = b.Insert(2, 10, 99, -1, 1, 100)
	require.NoError(t, err)
	_, err = b.Insert(3, 10, 101, -1, 1, 100)
	require.NoError(t, err)

	first, ok := b.First()
	require.True(t, ok)
	assert.Equal(t, uint64(101), first, "highest bid should be first")

	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(99), last)
}

func TestBook_FirstLast_AsksLowestFirst(t *testing.T) {
	b := NewBook(Ask)
	_, err := b.Insert(1, 10, 101, 1, 1, 100)
	require.NoError(t, err)
	_, err = b.Insert(2, 10, 99, 1, 1, 100)
	require.NoError(t, err)

	first, ok := b.First()
	require.True(t, ok)
	assert.Equal(t, uint64(99), first, "lowest ask should be first")
}

func TestBook_Insert_AppendsToSameSegmentThenOverflowsSegment(t *testing.T) {
	b := NewBook(Bid)
	for i := uint64(1); i <= 4; i++ {
		_, err := b.Insert(i, 10, 100, -1, 1, 100)
		require.NoError(t, err)
	}
	lvl := b.Level(100)
	require.NotNil(t, lvl)
	assert.Equal(t, 1, lvl.ActiveSegmentCount(), "4 orders should fit a single K=4 segment")

	_, err := b.Insert(5, 10, 100, -1, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, lvl.ActiveSegmentCount(), "5th order should spill into a new segment")
}

func TestBook_Insert_OverflowsToNextTickWhenFull(t *testing.T) {
	b := NewBook(Bid)
	// max 4 orders per price, fully occupy 100.
	for i := uint64(1); i <= 4; i++ {
		_, err := b.Insert(i, 10, 100, -1, 1, 4)
		require.NoError(t, err)
	}
	price, err := b.Insert(5, 10, 100, -1, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), price, "bid overflow should step down by tick")

	lvl100 := b.Level(100)
	require.NotNil(t, lvl100)
	assert.Equal(t, 4, lvl100.OrdersAtLevel())

	lvl99 := b.Level(99)
	require.NotNil(t, lvl99)
	assert.Equal(t, 1, lvl99.OrdersAtLevel())
}

func TestBook_Insert_AskOverflowStepsUp(t *testing.T) {
	b := NewBook(Ask)
	for i := uint64(1); i <= 4; i++ {
		_, err := b.Insert(i, 10, 100, 1, 1, 4)
		require.NoError(t, err)
	}
	price, err := b.Insert(5, 10, 100, 1, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), price)
}

func TestBook_Cancel_MiddleOfSegment_ShiftsLeft(t *testing.T) {
	b := NewBook(Bid)
	for i := uint64(1); i <= 4; i++ {
		_, err := b.Insert(i, 10, 100, -1, 1, 100)
		require.NoError(t, err)
	}

	qty, err := b.Cancel(2, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), qty)

	lvl := b.Level(100)
	require.NotNil(t, lvl)
	got := slots(lvl)
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{1, 3, 4}, []uint64{got[0].OrderID, got[1].OrderID, got[2].OrderID})
}

func TestBook_Cancel_SoleOccupantRemovesSegment(t *testing.T) {
	b := NewBook(Bid)
	_, err := b.Insert(1, 10, 100, -1, 1, 100)
	require.NoError(t, err)

	_, err = b.Cancel(1, 100)
	require.NoError(t, err)
	assert.False(t, b.Exists(100), "level should be removed once its only order is canceled")
}

func TestBook_Cancel_NotFoundErrors(t *testing.T) {
	b := NewBook(Bid)
	_, err := b.Cancel(1, 100)
	assert.ErrorIs(t, err, ErrOrderNotFoundInTree)

	_, err = b.Insert(1, 10, 100, -1, 1, 100)
	require.NoError(t, err)
	_, err = b.Cancel(99, 100)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestBook_ConsumeThenReAdd_TombstoneResetsOnFreshAllocation(t *testing.T) {
	b := NewBook(Bid)
	for i := uint64(1); i <= 4; i++ {
		_, err := b.Insert(i, 10, 100, -1, 1, 100)
		require.NoError(t, err)
	}
	lvl := b.Level(100)
	// Simulate full consumption by matching: advance the tombstone past the only
	// segment, then remove the level (mirrors the matching engine's bookkeeping).
	lvl.AdvanceTombstone(1)
	require.NoError(t, b.RemoveLevel(100))
	assert.False(t, b.Exists(100))

	_, err := b.Insert(5, 20, 100, -1, 1, 100)
	require.NoError(t, err)
	lvl2 := b.Level(100)
	require.NotNil(t, lvl2)
	assert.Equal(t, uint32(0), lvl2.TombstoneOffset(), "fresh allocation starts at tombstone 0")
	assert.Equal(t, 1, lvl2.ActiveSegmentCount())
}

func TestBook_AllOrdersAtPrice_SkipsTombstonedSegments(t *testing.T) {
	b := NewBook(Bid)
	for i := uint64(1); i <= 8; i++ {
		_, err := b.Insert(i, 10, 100, -1, 1, 100)
		require.NoError(t, err)
	}
	lvl := b.Level(100)
	require.Equal(t, 2, lvl.ActiveSegmentCount())
	lvl.AdvanceTombstone(1)

	out, ok := b.AllOrdersAtPrice(100)
	require.True(t, ok)
	require.Len(t, out, 4)
	assert.Equal(t, uint64(5), out[0].OrderID)
}
