package core

import (
	"fenrir-lob/internal/book"
	"fenrir-lob/internal/engine"
)

// LimitOrderInput is one order within a limit_orders batch (spec §6).
type LimitOrderInput struct {
	Side     engine.Side
	ItemID   uint64
	Price    uint64
	Quantity uint64
}

// FailedToAddEvent reports the non-fatal quantity-remaining-too-low signal:
// a residual too small to rest was simply dropped, matched portion stands.
type FailedToAddEvent struct {
	Maker    string
	Side     engine.Side
	ItemID   uint64
	Price    uint64
	Quantity uint64
}

// LimitOrderOutcome is the per-order result of a limit_orders call. OrderID
// is zero if nothing ended up resting (fully matched, or residual rejected).
type LimitOrderOutcome struct {
	OrderID     uint64
	RestedPrice uint64
	Residual    uint64
	Cost        uint64
	Matches     []engine.Match
	FailedToAdd *FailedToAddEvent
}

// LimitOrders processes a batch of orders as one atomic call: every
// validation error aborts the whole batch with no state change; hitting
// MaxMatchesPerCall on any order aborts the whole batch the same way.
// quantity-remaining-too-low is the only per-order, non-fatal outcome.
func (e *Engine) LimitOrders(maker string, orders []LimitOrderInput) ([]LimitOrderOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range orders {
		if err := e.validateLimitOrder(o); err != nil {
			return nil, err
		}
	}

	clones := make(map[uint64]*engine.OrderBook)
	for _, o := range orders {
		if _, ok := clones[o.ItemID]; !ok {
			clones[o.ItemID] = e.bookFor(o.ItemID).Clone()
		}
	}

	type pendingSettlement struct {
		outcome LimitOrderOutcome
		side    engine.Side
		itemID  uint64
		price   uint64
		rested  bool
	}

	startingNextOrderID := e.nextOrderID
	stagedMakerOf := make(map[uint64]string)
	stagedCoins := make(map[uint64]uint64)
	stagedItems := make(map[uint64]map[uint64]uint64)
	outcomes := make([]LimitOrderOutcome, 0, len(orders))
	var settlements []pendingSettlement

	for _, o := range orders {
		ob := clones[o.ItemID]
		cfg := e.itemConfigs[o.ItemID]

		var result engine.MatchResult
		var err error
		if o.Side == engine.Bid {
			result, err = ob.TakeBuy(o.Price, o.Quantity)
		} else {
			result, err = ob.TakeSell(o.Price, o.Quantity)
		}
		if err != nil {
			if err == engine.ErrTooManyOrdersHit && e.metrics != nil {
				e.metrics.TooManyOrdersHit.Inc()
			}
			return nil, err
		}
		if e.metrics != nil {
			sideLabel := "bid"
			if o.Side == engine.Ask {
				sideLabel = "ask"
			}
			e.metrics.OrdersSubmitted.WithLabelValues(sideLabel).Inc()
			if len(result.Matches) > 0 {
				e.metrics.MatchesExecuted.Add(float64(len(result.Matches)))
			}
		}

		for _, m := range result.Matches {
			if o.Side == engine.Bid {
				stagedCoins[m.OrderID] += m.Quantity * m.Price
			} else {
				if stagedItems[m.OrderID] == nil {
					stagedItems[m.OrderID] = make(map[uint64]uint64)
				}
				stagedItems[m.OrderID][o.ItemID] += m.Quantity
			}
			if e.metrics != nil {
				e.metrics.MatchedQuantity.Add(float64(m.Quantity))
			}
		}

		outcome := LimitOrderOutcome{Residual: result.Residual, Cost: result.Cost, Matches: result.Matches}
		rested := false

		if result.Residual > 0 {
			if result.Residual < cfg.MinQuantity {
				outcome.FailedToAdd = &FailedToAddEvent{
					Maker: maker, Side: o.Side, ItemID: o.ItemID, Price: o.Price, Quantity: result.Residual,
				}
			} else {
				id := startingNextOrderID
				startingNextOrderID++
				stagedMakerOf[id] = maker
				restPrice, restErr := ob.Rest(o.Side, id, result.Residual, o.Price, cfg.Tick, e.maxOrdersPerPrice)
				if restErr != nil {
					return nil, restErr
				}
				outcome.OrderID = id
				outcome.RestedPrice = restPrice
				rested = true
			}
		}

		outcomes = append(outcomes, outcome)
		settlements = append(settlements, pendingSettlement{outcome: outcome, side: o.Side, itemID: o.ItemID, price: o.Price, rested: rested})
	}

	for itemID, ob := range clones {
		e.books[itemID] = ob
	}
	for itemID := range clones {
		e.reportBookDepth(itemID)
	}
	e.nextOrderID = startingNextOrderID
	for id, who := range stagedMakerOf {
		e.makerOf[id] = who
	}
	for id, amt := range stagedCoins {
		e.creditCoins(id, amt)
	}
	for id, byItem := range stagedItems {
		for itemID, amt := range byItem {
			e.creditItems(id, itemID, amt)
		}
	}

	for _, s := range settlements {
		if err := e.settleLimitOrder(maker, s.side, s.itemID, s.price, s.rested, s.outcome); err != nil {
			return outcomes, err
		}
	}

	return outcomes, nil
}

// validateLimitOrder runs the pure, book-independent checks from spec §7
// that must abort the whole batch before any mutation is attempted.
func (e *Engine) validateLimitOrder(o LimitOrderInput) error {
	if o.Quantity == 0 {
		return engine.ErrNoQuantity
	}
	if o.Price == 0 {
		return engine.ErrPriceZero
	}
	cfg, ok := e.itemConfigs[o.ItemID]
	if !ok || !cfg.Registered() {
		return engine.ErrTokenDoesNotExist
	}
	if o.Price%cfg.Tick != 0 {
		return engine.ErrPriceNotMultipleOfTick
	}
	return nil
}

// settleLimitOrder invokes the external collaborators for one order's
// outcome, strictly after every book mutation in the batch has already been
// committed (spec §5's reentrancy-hazard rule).
func (e *Engine) settleLimitOrder(maker string, side engine.Side, itemID, price uint64, rested bool, outcome LimitOrderOutcome) error {
	split := e.fees.Split(outcome.Cost)
	matchedQty := uint64(0)
	for _, m := range outcome.Matches {
		matchedQty += m.Quantity
	}

	if side == engine.Bid {
		escrow := outcome.Cost + split.Total()
		if rested {
			escrow += price * outcome.Residual
		}
		if escrow > 0 {
			if err := e.coins.TransferToCore(maker, escrow); err != nil {
				return err
			}
		}
		if err := e.payFees(split); err != nil {
			return err
		}
		if matchedQty > 0 {
			if err := e.items.TransferBatchFromCore(maker, []uint64{itemID}, []uint64{matchedQty}); err != nil {
				return err
			}
		}
		return nil
	}

	deposit := matchedQty
	if rested {
		deposit += outcome.Residual
	}
	if deposit > 0 {
		if err := e.items.TransferBatchToCore(maker, []uint64{itemID}, []uint64{deposit}); err != nil {
			return err
		}
	}
	net := outcome.Cost - split.Total()
	if net > 0 {
		if err := e.coins.TransferFromCore(maker, net); err != nil {
			return err
		}
	}
	return e.payFees(split)
}

// payFees routes a fee split to the dev and royalty recipients and burns the
// burn share. Zero-amount legs are skipped so collaborators never see
// no-op transfers.
func (e *Engine) payFees(split engine.FeeSplit) error {
	if split.Dev > 0 {
		if err := e.coins.TransferFromCore(e.fees.DevRecipient, split.Dev); err != nil {
			return err
		}
	}
	if split.Royalty > 0 {
		if err := e.coins.TransferFromCore(e.fees.RoyaltyRecipient, split.Royalty); err != nil {
			return err
		}
	}
	if split.Burn > 0 {
		if err := e.coins.Burn(split.Burn); err != nil {
			return err
		}
	}
	return nil
}

// CancelInput is one entry of a cancel_orders batch: the order's claimed
// resting location, required since cancellation is keyed by (side, item,
// price) rather than a global index over ids.
type CancelInput struct {
	OrderID uint64
	Side    engine.Side
	ItemID  uint64
	Price   uint64
}

// CancelOrders cancels a batch of resting orders atomically: every entry is
// validated (ownership, existence) before any of them is applied, so a
// single not-maker or order-not-found failure leaves the whole call without
// effect.
func (e *Engine) CancelOrders(caller string, cancels []CancelInput) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[uint64]bool, len(cancels))
	for _, c := range cancels {
		if e.makerOf[c.OrderID] != caller {
			return ErrNotMaker
		}
		ob, ok := e.books[c.ItemID]
		if !ok {
			return book.ErrOrderNotFoundInTree
		}
		if _, found := ob.Lookup(c.Side, c.OrderID, c.Price); !found || seen[c.OrderID] {
			return book.ErrOrderNotFound
		}
		seen[c.OrderID] = true
	}

	type refund struct {
		maker  string
		side   engine.Side
		itemID uint64
		price  uint64
		qty    uint64
	}
	refunds := make([]refund, 0, len(cancels))

	for _, c := range cancels {
		ob := e.books[c.ItemID]
		qty, err := ob.Cancel(c.Side, c.OrderID, c.Price)
		if err != nil {
			return err
		}
		refunds = append(refunds, refund{maker: caller, side: c.Side, itemID: c.ItemID, price: c.Price, qty: qty})
	}

	for _, r := range refunds {
		if r.side == engine.Bid {
			if err := e.coins.TransferFromCore(r.maker, r.qty*r.price); err != nil {
				return err
			}
			continue
		}
		if err := e.items.TransferBatchFromCore(r.maker, []uint64{r.itemID}, []uint64{r.qty}); err != nil {
			return err
		}
	}
	if e.metrics != nil {
		e.metrics.OrdersCanceled.Add(float64(len(cancels)))
	}
	touched := make(map[uint64]struct{}, len(cancels))
	for _, c := range cancels {
		touched[c.ItemID] = struct{}{}
	}
	for itemID := range touched {
		e.reportBookDepth(itemID)
	}
	return nil
}

// ClaimCoins sums and zeros the claimable coin balance of every given order
// id, applies the current fee split, and pays the net remainder to caller.
// Every id must be owned by caller and have a non-zero balance, or the whole
// call fails with no state change.
func (e *Engine) ClaimCoins(caller string, orderIDs []uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(orderIDs) > MaxClaimOrders {
		return 0, ErrTooManyClaimOrders
	}

	var gross uint64
	seen := make(map[uint64]bool, len(orderIDs))
	for _, id := range orderIDs {
		if e.makerOf[id] != caller {
			return 0, ErrNotMaker
		}
		amt := e.coinsClaimable[id]
		if amt == 0 || seen[id] {
			return 0, ErrNothingToClaim
		}
		seen[id] = true
		gross += amt
	}

	for _, id := range orderIDs {
		delete(e.coinsClaimable, id)
	}

	split := e.fees.Split(gross)
	net := gross - split.Total()
	if net > 0 {
		if err := e.coins.TransferFromCore(caller, net); err != nil {
			return 0, err
		}
	}
	if err := e.payFees(split); err != nil {
		return 0, err
	}
	if e.metrics != nil {
		e.metrics.CoinsClaimed.Add(float64(net))
	}
	return net, nil
}

// ClaimItems sums and zeros the claimable balance of orderIDs[i]/itemIDs[i]
// pairs, paying out each item id's total raw quantity (items carry no fee
// split; fees only ever apply to coin-denominated proceeds). orderIDs and
// itemIDs are parallel arrays: entry i claims the itemIDs[i] balance credited
// to order orderIDs[i]. An order is only ever credited the item id of the
// book it rested in, so every other pairing has nothing to claim.
func (e *Engine) ClaimItems(caller string, orderIDs, itemIDs []uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(orderIDs) != len(itemIDs) {
		return 0, ErrLengthMismatch
	}
	if len(orderIDs) > MaxClaimOrders {
		return 0, ErrTooManyClaimOrders
	}

	var total uint64
	seen := make(map[[2]uint64]bool, len(orderIDs))
	for i, id := range orderIDs {
		if e.makerOf[id] != caller {
			return 0, ErrNotMaker
		}
		pair := [2]uint64{id, itemIDs[i]}
		amt := e.itemsClaimable[id][itemIDs[i]]
		if amt == 0 || seen[pair] {
			return 0, ErrNothingToClaim
		}
		seen[pair] = true
		total += amt
	}

	payoutItemIDs := make([]uint64, 0, len(itemIDs))
	payoutAmounts := make([]uint64, 0, len(itemIDs))
	for i, id := range orderIDs {
		itemID := itemIDs[i]
		payoutItemIDs = append(payoutItemIDs, itemID)
		payoutAmounts = append(payoutAmounts, e.itemsClaimable[id][itemID])
		delete(e.itemsClaimable[id], itemID)
		if len(e.itemsClaimable[id]) == 0 {
			delete(e.itemsClaimable, id)
		}
	}

	if err := e.items.TransferBatchFromCore(caller, payoutItemIDs, payoutAmounts); err != nil {
		return 0, err
	}
	if e.metrics != nil {
		e.metrics.ItemsClaimed.Add(float64(total))
	}
	return total, nil
}

// ClaimAll is a convenience composition: claim coins for coinIDs, then items
// for each (itemOrderIDs[i], itemIDs[i]) pair, per spec's
// claim_all(coin_ids, item_order_ids, item_ids).
func (e *Engine) ClaimAll(caller string, coinIDs, itemOrderIDs, itemIDs []uint64) (coins uint64, items uint64, err error) {
	coins, err = e.ClaimCoins(caller, coinIDs)
	if err != nil {
		return 0, 0, err
	}
	items, err = e.ClaimItems(caller, itemOrderIDs, itemIDs)
	if err != nil {
		if err == ErrNothingToClaim {
			return coins, 0, nil
		}
		return coins, 0, err
	}
	return coins, items, nil
}

// SetItemConfigs registers or updates item configs. Tick is immutable once
// set: changing it on an already-registered item fails the whole call.
func (e *Engine) SetItemConfigs(configs map[uint64]engine.ItemConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for itemID, cfg := range configs {
		if existing, ok := e.itemConfigs[itemID]; ok && existing.Registered() && existing.Tick != cfg.Tick {
			return ErrTickCannotBeChanged
		}
	}
	for itemID, cfg := range configs {
		e.itemConfigs[itemID] = cfg
	}
	return nil
}

// SetMaxOrdersPerPrice changes the per-level occupancy cap. Must stay a
// multiple of book.K so the packed segment invariants keep holding.
func (e *Engine) SetMaxOrdersPerPrice(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n <= 0 || n%book.K != 0 {
		return ErrMaxOrdersNotMultiple
	}
	e.maxOrdersPerPrice = n
	return nil
}

// SetFees updates the dev and burn rate and dev recipient. Royalty rate and
// recipient are only ever refreshed via UpdateRoyaltyFee, from the oracle.
func (e *Engine) SetFees(devRate, burnRate uint16, devRecipient string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if devRate > 255 {
		return ErrDevFeeTooHigh
	}
	if devRate > 0 && devRecipient == "" {
		return ErrDevFeeZeroAddress
	}
	e.fees.DevRate = devRate
	e.fees.BurnRate = burnRate
	e.fees.DevRecipient = devRecipient
	return nil
}

// UpdateRoyaltyFee re-queries the royalty oracle for itemID and caches the
// result; per-trade royalty fees use this cached rate, not a live oracle
// call on every match.
func (e *Engine) UpdateRoyaltyFee(itemID, sampleGross uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	recipient, amount, err := e.royalty.Info(itemID, sampleGross)
	if err != nil {
		return err
	}
	if sampleGross == 0 {
		e.fees.RoyaltyRecipient = recipient
		return nil
	}
	rate := amount * engine.FeeBasis / sampleGross
	if rate > 0xFFFF {
		rate = 0xFFFF
	}
	e.fees.RoyaltyRate = uint16(rate)
	e.fees.RoyaltyRecipient = recipient
	return nil
}
