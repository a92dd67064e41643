package collat

import "sync"

// ItemCustody is a map-backed per-(account, item id) item balance ledger,
// mirroring CoinLedger's core-account pattern: batch transfers move
// quantities into and out of a reserved "core" holding rather than
// fabricating or destroying them.
type ItemCustody struct {
	mu       sync.Mutex
	balances map[string]map[uint64]uint64
}

func NewItemCustody() *ItemCustody {
	return &ItemCustody{balances: make(map[string]map[uint64]uint64)}
}

func (c *ItemCustody) Credit(account string, itemID, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creditLocked(account, itemID, amount)
}

func (c *ItemCustody) creditLocked(account string, itemID, amount uint64) {
	if c.balances[account] == nil {
		c.balances[account] = make(map[uint64]uint64)
	}
	c.balances[account][itemID] += amount
}

func (c *ItemCustody) Balance(account string, itemID uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[account][itemID]
}

func (c *ItemCustody) TransferBatchToCore(from string, itemIDs, amounts []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(itemIDs) != len(amounts) {
		return ErrInsufficientBalance
	}
	for i, itemID := range itemIDs {
		if c.balances[from][itemID] < amounts[i] {
			return ErrInsufficientBalance
		}
	}
	for i, itemID := range itemIDs {
		c.balances[from][itemID] -= amounts[i]
		c.creditLocked("core", itemID, amounts[i])
	}
	return nil
}

func (c *ItemCustody) TransferBatchFromCore(to string, itemIDs, amounts []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(itemIDs) != len(amounts) {
		return ErrInsufficientBalance
	}
	for i, itemID := range itemIDs {
		if c.balances["core"][itemID] < amounts[i] {
			return ErrInsufficientBalance
		}
	}
	for i, itemID := range itemIDs {
		c.balances["core"][itemID] -= amounts[i]
		c.creditLocked(to, itemID, amounts[i])
	}
	return nil
}
