package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir-lob/internal/collat"
	"fenrir-lob/internal/engine"
)

func newTestEngine(t *testing.T) (*Engine, *collat.CoinLedger, *collat.ItemCustody, *collat.RoyaltyOracle) {
	t.Helper()
	coins := collat.NewCoinLedger()
	items := collat.NewItemCustody()
	royalty := collat.NewRoyaltyOracle()
	eng := New(coins, items, royalty)
	return eng, coins, items, royalty
}

func TestSetItemConfigs_TickImmutableOnceSet(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	require.NoError(t, eng.SetItemConfigs(map[uint64]engine.ItemConfig{
		1: {Tick: 5, MinQuantity: 1},
	}))

	err := eng.SetItemConfigs(map[uint64]engine.ItemConfig{
		1: {Tick: 10, MinQuantity: 1},
	})
	assert.ErrorIs(t, err, ErrTickCannotBeChanged)

	cfg, ok := eng.ItemConfig(1)
	require.True(t, ok)
	assert.Equal(t, uint64(5), cfg.Tick)
}

func TestSetItemConfigs_BatchAbortsWhollyOnOneBadEntry(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)
	require.NoError(t, eng.SetItemConfigs(map[uint64]engine.ItemConfig{
		1: {Tick: 5, MinQuantity: 1},
	}))

	err := eng.SetItemConfigs(map[uint64]engine.ItemConfig{
		1: {Tick: 7, MinQuantity: 1},
		2: {Tick: 1, MinQuantity: 1},
	})
	assert.ErrorIs(t, err, ErrTickCannotBeChanged)

	_, ok := eng.ItemConfig(2)
	assert.False(t, ok, "item 2 must not be registered when the batch aborts")
}

func TestSetMaxOrdersPerPrice_MustBePositiveMultipleOfK(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	assert.ErrorIs(t, eng.SetMaxOrdersPerPrice(0), ErrMaxOrdersNotMultiple)
	assert.ErrorIs(t, eng.SetMaxOrdersPerPrice(-4), ErrMaxOrdersNotMultiple)
	assert.ErrorIs(t, eng.SetMaxOrdersPerPrice(5), ErrMaxOrdersNotMultiple)

	require.NoError(t, eng.SetMaxOrdersPerPrice(8))
	assert.Equal(t, 8, eng.MaxOrdersPerPrice())
}

func TestSetFees_DevRateNeedsRecipient(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	assert.ErrorIs(t, eng.SetFees(100, 0, ""), ErrDevFeeZeroAddress)
	assert.NoError(t, eng.SetFees(0, 50, ""))
	assert.NoError(t, eng.SetFees(100, 0, "dev-wallet"))

	fees := eng.Fees()
	assert.Equal(t, uint16(100), fees.DevRate)
	assert.Equal(t, "dev-wallet", fees.DevRecipient)
}

func TestUpdateRoyaltyFee_CachesRateFromOracleSample(t *testing.T) {
	eng, _, _, royalty := newTestEngine(t)
	royalty.SetRoyalty(1, "creator", 250) // 2.5%

	require.NoError(t, eng.UpdateRoyaltyFee(1, 10_000))

	fees := eng.Fees()
	assert.Equal(t, uint16(250), fees.RoyaltyRate)
	assert.Equal(t, "creator", fees.RoyaltyRecipient)
}

func TestUpdateRoyaltyFee_ZeroSampleOnlyRefreshesRecipient(t *testing.T) {
	eng, _, _, royalty := newTestEngine(t)
	royalty.SetRoyalty(1, "creator", 250)

	require.NoError(t, eng.UpdateRoyaltyFee(1, 0))

	fees := eng.Fees()
	assert.Equal(t, "creator", fees.RoyaltyRecipient)
	assert.Equal(t, uint16(0), fees.RoyaltyRate)
}
