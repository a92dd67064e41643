package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir-lob/internal/engine"
)

func registerItem(t *testing.T, eng *Engine, itemID, tick, minQty uint64) {
	t.Helper()
	require.NoError(t, eng.SetItemConfigs(map[uint64]engine.ItemConfig{
		itemID: {Tick: tick, MinQuantity: minQty},
	}))
}

func TestLimitOrders_RestingBidEscrowsCostPlusResidual(t *testing.T) {
	eng, coins, _, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	coins.Credit("alice", 1000)

	outcomes, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	out := outcomes[0]
	assert.NotZero(t, out.OrderID)
	assert.Equal(t, uint64(100), out.RestedPrice)
	assert.Equal(t, uint64(10), out.Residual)
	assert.Equal(t, uint64(0), out.Cost)

	assert.Equal(t, uint64(0), coins.Balance("alice"))
	assert.Equal(t, uint64(1000), coins.Balance("core"))

	bid, ok := eng.HighestBid(1)
	require.True(t, ok)
	assert.Equal(t, uint64(100), bid)
}

func TestLimitOrders_FullMatchSettlesTakerAndCreditsMakerClaimable(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	items.Credit("bob", 1, 10)
	coins.Credit("alice", 1000)

	restOut, err := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)
	bobOrderID := restOut[0].OrderID
	require.NotZero(t, bobOrderID)
	assert.Equal(t, uint64(0), items.Balance("bob", 1))
	assert.Equal(t, uint64(10), items.Balance("core", 1))

	takeOut, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)
	out := takeOut[0]
	assert.Equal(t, uint64(0), out.OrderID, "fully matched order never rests")
	assert.Equal(t, uint64(0), out.Residual)
	assert.Equal(t, uint64(1000), out.Cost)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, engine.Match{OrderID: bobOrderID, Quantity: 10, Price: 100}, out.Matches[0])

	assert.Equal(t, uint64(0), coins.Balance("alice"))
	assert.Equal(t, uint64(10), items.Balance("alice", 1))
	assert.Equal(t, uint64(1000), eng.CoinsClaimable([]uint64{bobOrderID}, false))
}

func TestLimitOrders_ResidualBelowMinQuantityIsDroppedNotRested(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 5)
	items.Credit("bob", 1, 10)
	coins.Credit("alice", 1000)

	restOut, err := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)
	bobOrderID := restOut[0].OrderID

	// The resting ask only has 10 available; a 12-unit taker fills all 10
	// and is left with a 2-unit residual, below min_quantity of 5.
	takeOut, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 12},
	})
	require.NoError(t, err)
	out := takeOut[0]
	assert.Equal(t, uint64(0), out.OrderID, "a dropped residual never rests")
	assert.Equal(t, uint64(2), out.Residual)
	assert.Equal(t, uint64(1000), out.Cost)
	require.NotNil(t, out.FailedToAdd)
	assert.Equal(t, uint64(2), out.FailedToAdd.Quantity)

	// Escrow covers only the matched cost: the dropped residual is never
	// charged for, since it was neither rested nor delivered.
	assert.Equal(t, uint64(1000), coins.Balance("core"))
	assert.Equal(t, uint64(0), coins.Balance("alice"))
	assert.Equal(t, uint64(10), items.Balance("alice", 1))
	assert.Equal(t, uint64(1000), eng.CoinsClaimable([]uint64{bobOrderID}, false))

	_, stillResting := eng.AllOrdersAtPrice(1, engine.Ask, 100)
	assert.False(t, stillResting, "ask level fully consumed")
}

func TestLimitOrders_ValidationErrorAbortsWholeBatchWithNoSideEffects(t *testing.T) {
	eng, coins, _, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	coins.Credit("alice", 1000)

	_, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 5},
		{Side: engine.Bid, ItemID: 1, Price: 0, Quantity: 5},
	})
	assert.ErrorIs(t, err, engine.ErrPriceZero)

	assert.Equal(t, uint64(1000), coins.Balance("alice"))
	_, ok := eng.HighestBid(1)
	assert.False(t, ok, "first order must not have been applied")
}

func TestCancelOrders_NotMakerAbortsWholeBatch(t *testing.T) {
	eng, coins, _, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	coins.Credit("alice", 2000)

	outcomes, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 5},
		{Side: engine.Bid, ItemID: 1, Price: 101, Quantity: 5},
	})
	require.NoError(t, err)
	order1, order2 := outcomes[0].OrderID, outcomes[1].OrderID

	err = eng.CancelOrders("alice", []CancelInput{
		{OrderID: order1, Side: engine.Bid, ItemID: 1, Price: 100},
		{OrderID: order2, Side: engine.Bid, ItemID: 1, Price: 101},
	})
	require.NoError(t, err)

	_, ok := eng.HighestBid(1)
	assert.False(t, ok)

	outcomes2, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 5},
	})
	require.NoError(t, err)
	restOrder := outcomes2[0].OrderID

	err = eng.CancelOrders("mallory", []CancelInput{
		{OrderID: restOrder, Side: engine.Bid, ItemID: 1, Price: 100},
	})
	assert.ErrorIs(t, err, ErrNotMaker)

	bid, ok := eng.HighestBid(1)
	require.True(t, ok, "cancel must not have applied when the batch was invalid")
	assert.Equal(t, uint64(100), bid)
}

func TestCancelOrders_RefundsEscrowToMaker(t *testing.T) {
	eng, coins, _, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	coins.Credit("alice", 1000)

	outcomes, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)
	orderID := outcomes[0].OrderID
	require.Equal(t, uint64(0), coins.Balance("alice"))

	require.NoError(t, eng.CancelOrders("alice", []CancelInput{
		{OrderID: orderID, Side: engine.Bid, ItemID: 1, Price: 100},
	}))

	assert.Equal(t, uint64(1000), coins.Balance("alice"))
	assert.Equal(t, uint64(0), coins.Balance("core"))
}

func TestClaimCoins_NothingToClaimAndNotMaker(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	items.Credit("bob", 1, 10)
	coins.Credit("alice", 1000)

	restOut, _ := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
	})
	bobOrderID := restOut[0].OrderID

	_, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)

	_, err = eng.ClaimCoins("mallory", []uint64{bobOrderID})
	assert.ErrorIs(t, err, ErrNotMaker)

	amount, err := eng.ClaimCoins("bob", []uint64{bobOrderID})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), amount)
	assert.Equal(t, uint64(0), eng.CoinsClaimable([]uint64{bobOrderID}, false))

	_, err = eng.ClaimCoins("bob", []uint64{bobOrderID})
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaimCoins_TooManyOrdersRejected(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	ids := make([]uint64, MaxClaimOrders+1)
	_, err := eng.ClaimCoins("alice", ids)
	assert.ErrorIs(t, err, ErrTooManyClaimOrders)
}

func TestClaimCoins_UsesFeeScheduleActiveAtClaimTimeNotMatchTime(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	items.Credit("bob", 1, 10)
	coins.Credit("alice", 1000)

	restOut, _ := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
	})
	bobOrderID := restOut[0].OrderID

	_, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1000), eng.CoinsClaimable([]uint64{bobOrderID}, false), "claimable balance stores the pure gross amount")

	require.NoError(t, eng.SetFees(100, 0, "dev-wallet")) // 1% dev fee, set after the match

	assert.Equal(t, uint64(990), eng.CoinsClaimable([]uint64{bobOrderID}, true), "apply_fees previews the net amount without mutating claimable state")
	assert.Equal(t, uint64(1000), eng.CoinsClaimable([]uint64{bobOrderID}, false), "preview must not have consumed the claimable balance")

	net, err := eng.ClaimCoins("bob", []uint64{bobOrderID})
	require.NoError(t, err)
	assert.Equal(t, uint64(990), net, "claim-time fee schedule applies, not the (fee-free) match-time schedule")
	assert.Equal(t, uint64(10), coins.Balance("dev-wallet"))
}

func TestClaimItems_NothingToClaim(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	coins.Credit("alice", 1000)
	items.Credit("bob", 1, 10)

	restOut, _ := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
	})
	aliceOrderID := restOut[0].OrderID

	_, err := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)

	amount, err := eng.ClaimItems("alice", []uint64{aliceOrderID}, []uint64{1})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), amount)
	assert.Equal(t, uint64(10), items.Balance("alice", 1))

	_, err = eng.ClaimItems("alice", []uint64{aliceOrderID}, []uint64{1})
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaimItems_LengthMismatchRejected(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	_, err := eng.ClaimItems("alice", []uint64{1, 2}, []uint64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestClaimItems_ParallelArraysClaimDifferentItemsAcrossOrders(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	registerItem(t, eng, 2, 1, 1)
	coins.Credit("alice", 2000)
	items.Credit("bob", 1, 10)
	items.Credit("bob", 2, 5)

	// items_claimable credits the resting bid's maker, so alice ends up
	// holding both items' claimable balances, one per item id, on her own
	// two order ids.
	aliceRest, _ := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
		{Side: engine.Bid, ItemID: 2, Price: 100, Quantity: 5},
	})
	aliceOrder1, aliceOrder2 := aliceRest[0].OrderID, aliceRest[1].OrderID

	_, err := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
		{Side: engine.Ask, ItemID: 2, Price: 100, Quantity: 5},
	})
	require.NoError(t, err)

	amount, err := eng.ClaimItems("alice", []uint64{aliceOrder1, aliceOrder2}, []uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(15), amount)
	assert.Equal(t, uint64(10), items.Balance("alice", 1))
	assert.Equal(t, uint64(5), items.Balance("alice", 2))
}

func TestClaimAll_SkipsItemIDsWithNothingToClaim(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	items.Credit("bob", 1, 10)
	coins.Credit("alice", 1000)

	restOut, _ := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
	})
	bobOrderID := restOut[0].OrderID

	_, err := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
	})
	require.NoError(t, err)

	coinsPaid, itemsPaid, err := eng.ClaimAll("bob", []uint64{bobOrderID}, []uint64{bobOrderID}, []uint64{1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), coinsPaid)
	assert.Equal(t, uint64(0), itemsPaid, "bob never held any item claimable balance from a sell fill")
}

func TestItemsClaimable_BatchedParallelArrays(t *testing.T) {
	eng, coins, items, _ := newTestEngine(t)
	registerItem(t, eng, 1, 1, 1)
	registerItem(t, eng, 2, 1, 1)
	coins.Credit("alice", 2000)
	items.Credit("bob", 1, 10)
	items.Credit("bob", 2, 5)

	aliceRest, _ := eng.LimitOrders("alice", []LimitOrderInput{
		{Side: engine.Bid, ItemID: 1, Price: 100, Quantity: 10},
		{Side: engine.Bid, ItemID: 2, Price: 100, Quantity: 5},
	})
	order1, order2 := aliceRest[0].OrderID, aliceRest[1].OrderID

	_, err := eng.LimitOrders("bob", []LimitOrderInput{
		{Side: engine.Ask, ItemID: 1, Price: 100, Quantity: 10},
		{Side: engine.Ask, ItemID: 2, Price: 100, Quantity: 5},
	})
	require.NoError(t, err)

	amounts := eng.ItemsClaimable([]uint64{order1, order2}, []uint64{1, 2})
	assert.Equal(t, []uint64{10, 5}, amounts)
}
