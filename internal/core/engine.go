// Package core is the top-level engine: it owns every item id's order
// book, the global admin configuration (item configs, fee schedule, max
// orders per price), the maker and claimable ledgers, and the external
// collaborators (coin ledger, item custody, royalty oracle). It is the
// single critical section spec §5 requires — one *Engine method call runs
// to completion, under one mutex, before the next observes state.
package core

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"fenrir-lob/internal/engine"
	"fenrir-lob/internal/metrics"
)

// DefaultMaxOrdersPerPrice is the engine's starting cap on resting orders at
// a single price level; must stay a multiple of book.K.
const DefaultMaxOrdersPerPrice = 100

// MaxClaimOrders bounds a single claim_coins/claim_items call (spec §4.4).
const MaxClaimOrders = 200

// Engine is the top-level matching engine across every item id.
type Engine struct {
	mu     sync.Mutex
	logger zerolog.Logger

	books       map[uint64]*engine.OrderBook
	itemConfigs map[uint64]engine.ItemConfig

	makerOf        map[uint64]string
	coinsClaimable map[uint64]uint64
	itemsClaimable map[uint64]map[uint64]uint64

	nextOrderID       uint64
	maxOrdersPerPrice int
	fees              engine.FeeConfig

	coins   CoinLedger
	items   ItemCustody
	royalty RoyaltyOracle

	metrics *metrics.Registry
}

// New constructs an engine with the given external collaborators. The
// logger defaults to zerolog's disabled logger so an embedded engine stays
// silent unless a caller wires one in via SetLogger.
func New(coins CoinLedger, items ItemCustody, royalty RoyaltyOracle) *Engine {
	return &Engine{
		logger:            zerolog.Nop(),
		books:             make(map[uint64]*engine.OrderBook),
		itemConfigs:       make(map[uint64]engine.ItemConfig),
		makerOf:           make(map[uint64]string),
		coinsClaimable:    make(map[uint64]uint64),
		itemsClaimable:    make(map[uint64]map[uint64]uint64),
		nextOrderID:       1,
		maxOrdersPerPrice: DefaultMaxOrdersPerPrice,
		coins:             coins,
		items:             items,
		royalty:           royalty,
	}
}

// SetLogger replaces the engine's structured logger.
func (e *Engine) SetLogger(logger zerolog.Logger) {
	e.logger = logger
}

// SetMetrics wires a Prometheus registry; nil (the default) disables
// instrumentation entirely rather than requiring callers to stub one out.
func (e *Engine) SetMetrics(reg *metrics.Registry) {
	e.metrics = reg
}

// bookFor returns (creating if necessary) the order book for an item id.
// Callers must already hold e.mu.
func (e *Engine) bookFor(itemID uint64) *engine.OrderBook {
	ob, ok := e.books[itemID]
	if !ok {
		ob = engine.NewOrderBook(itemID)
		e.books[itemID] = ob
	}
	return ob
}

// creditCoins adds to an order's claimable coin balance.
func (e *Engine) creditCoins(orderID, amount uint64) {
	e.coinsClaimable[orderID] += amount
}

// creditItems adds to an order's claimable item balance for itemID.
func (e *Engine) creditItems(orderID, itemID, amount uint64) {
	if e.itemsClaimable[orderID] == nil {
		e.itemsClaimable[orderID] = make(map[uint64]uint64)
	}
	e.itemsClaimable[orderID][itemID] += amount
}

// reportBookDepth updates the book_depth gauge with the resting order count
// at itemID's current best bid and best ask. Callers must already hold e.mu.
func (e *Engine) reportBookDepth(itemID uint64) {
	if e.metrics == nil {
		return
	}
	ob, ok := e.books[itemID]
	if !ok {
		return
	}
	idLabel := strconv.FormatUint(itemID, 10)
	if price, found := ob.HighestBid(); found {
		slots, _ := ob.AllOrdersAtPrice(engine.Bid, price)
		e.metrics.BookDepth.WithLabelValues(idLabel, "bid").Set(float64(len(slots)))
	}
	if price, found := ob.LowestAsk(); found {
		slots, _ := ob.AllOrdersAtPrice(engine.Ask, price)
		e.metrics.BookDepth.WithLabelValues(idLabel, "ask").Set(float64(len(slots)))
	}
}
