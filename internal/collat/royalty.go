package collat

import "sync"

// RoyaltyOracle is a map-backed stand-in for an on-chain or third-party
// royalty registry: a fixed recipient and basis-point rate per item id,
// queried by internal/core.Engine.UpdateRoyaltyFee to refresh its cached
// fee schedule.
type RoyaltyOracle struct {
	mu      sync.Mutex
	entries map[uint64]royaltyEntry
}

type royaltyEntry struct {
	recipient string
	rateBps   uint64
}

func NewRoyaltyOracle() *RoyaltyOracle {
	return &RoyaltyOracle{entries: make(map[uint64]royaltyEntry)}
}

// SetRoyalty registers itemID's royalty recipient and basis-point rate.
func (r *RoyaltyOracle) SetRoyalty(itemID uint64, recipient string, rateBps uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[itemID] = royaltyEntry{recipient: recipient, rateBps: rateBps}
}

// Info computes the royalty owed on a gross amount at the registered rate.
// Unregistered items have no royalty.
func (r *RoyaltyOracle) Info(itemID, gross uint64) (string, uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[itemID]
	if !ok {
		return "", 0, nil
	}
	return entry.recipient, gross * entry.rateBps / 10000, nil
}
