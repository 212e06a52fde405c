// Package token implements the fungible payment tokens accepted by the
// marketplace as alternative settlement currencies: balances, allowances,
// and delegated transfers.
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotAdmin              = errors.New("caller is not the token admin")
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient token allowance")
)

// Token is a fungible balance ledger with allowance-gated delegated
// transfers. Amounts are integer base units, no implicit decimals.
type Token struct {
	mu sync.RWMutex

	address common.Address
	name    string
	symbol  string
	admin   common.Address

	supply     int64
	balances   map[common.Address]int64
	allowances map[common.Address]map[common.Address]int64 // owner → spender → amount
}

// New creates a token with zero supply at the given address
func New(address common.Address, name, symbol string, admin common.Address) *Token {
	return &Token{
		address:    address,
		name:       name,
		symbol:     symbol,
		admin:      admin,
		balances:   make(map[common.Address]int64),
		allowances: make(map[common.Address]map[common.Address]int64),
	}
}

// Address returns the token's registry address
func (t *Token) Address() common.Address { return t.address }

// Name returns the token name
func (t *Token) Name() string { return t.name }

// Symbol returns the token ticker
func (t *Token) Symbol() string { return t.symbol }

// TotalSupply returns the minted supply
func (t *Token) TotalSupply() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

// Mint credits newly issued units to an account. Admin-only.
func (t *Token) Mint(caller, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if caller != t.admin {
		return fmt.Errorf("mint: %w", ErrNotAdmin)
	}
	t.balances[to] += amount
	t.supply += amount
	return nil
}

// BalanceOf returns an account's balance
func (t *Token) BalanceOf(addr common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[addr]
}

// Transfer moves amount between accounts, failing on insufficient balance
func (t *Token) Transfer(from, to common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(from, to, amount)
}

func (t *Token) transferLocked(from, to common.Address, amount int64) error {
	if t.balances[from] < amount {
		return fmt.Errorf("%s has %d, need %d: %w", from.Hex(), t.balances[from], amount, ErrInsufficientBalance)
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}

// Approve grants spender the right to move up to amount of owner's units
func (t *Token) Approve(owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("allowance cannot be negative: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	grants, ok := t.allowances[owner]
	if !ok {
		grants = make(map[common.Address]int64)
		t.allowances[owner] = grants
	}
	grants[spender] = amount
	return nil
}

// Allowance returns what spender may still move on owner's behalf
func (t *Token) Allowance(owner, spender common.Address) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

// TransferFrom moves amount from 'from' to 'to', spending the allowance
// granted to spender. Fails on insufficient balance or allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("transfer amount cannot be negative: %d", amount)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[from][spender]
	if allowed < amount {
		return fmt.Errorf("%s allowed %d for %s, need %d: %w", from.Hex(), allowed, spender.Hex(), amount, ErrInsufficientAllowance)
	}
	if err := t.transferLocked(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = allowed - amount
	return nil
}

// Directory maps token addresses to live tokens, backing the engine's
// capability lookup for registered payment tokens.
type Directory struct {
	mu     sync.RWMutex
	tokens map[common.Address]*Token
}

// NewDirectory creates an empty token directory
func NewDirectory() *Directory {
	return &Directory{tokens: make(map[common.Address]*Token)}
}

// Register adds a token under its own address
func (d *Directory) Register(t *Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens[t.Address()] = t
}

// Get returns the token at an address
func (d *Directory) Get(addr common.Address) (*Token, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tokens[addr]
	return t, ok
}
