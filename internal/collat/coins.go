// Package collat provides simple in-memory reference implementations of
// internal/core's external collaborators (coin ledger, item custody,
// royalty oracle), suitable for running the server standalone and for
// integration tests. A real deployment backs these with an actual custody
// system; the interfaces in internal/core are what matters.
package collat

import (
	"errors"
	"sync"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// CoinLedger is a map-backed ledger tracking a coin balance per account,
// plus a running total burned. TransferToCore/TransferFromCore move
// balance into and out of a reserved "core" account rather than deleting
// or conjuring value, so total supply (live balances + burned) is
// invariant across every operation.
type CoinLedger struct {
	mu       sync.Mutex
	balances map[string]uint64
	burned   uint64
}

func NewCoinLedger() *CoinLedger {
	return &CoinLedger{balances: make(map[string]uint64)}
}

// Credit gives an account an initial balance, for test/demo setup.
func (l *CoinLedger) Credit(account string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

func (l *CoinLedger) Balance(account string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func (l *CoinLedger) TransferToCore(from string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.balances["core"] += amount
	return nil
}

func (l *CoinLedger) TransferFromCore(to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances["core"] < amount {
		return ErrInsufficientBalance
	}
	l.balances["core"] -= amount
	l.balances[to] += amount
	return nil
}

func (l *CoinLedger) Burn(amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances["core"] < amount {
		return ErrInsufficientBalance
	}
	l.balances["core"] -= amount
	l.burned += amount
	return nil
}

func (l *CoinLedger) Burned() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burned
}
