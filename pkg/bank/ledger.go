// Package bank is the native-currency value transfer primitive the
// marketplace settles ether-priced orders with.
package bank

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger tracks native-currency balances in integer base units
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]int64
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]int64)}
}

// Deposit credits an account. Devnet faucet; a production deployment
// would credit from a bridge instead.
func (l *Ledger) Deposit(addr common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += amount
	return nil
}

// BalanceOf returns an account's balance
func (l *Ledger) BalanceOf(addr common.Address) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr]
}

// Transfer moves an exact amount between accounts, failing on
// insufficient funds
func (l *Ledger) Transfer(from, to common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("%s has %d, need %d: %w", from.Hex(), l.balances[from], amount, ErrInsufficientFunds)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
