package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	admin    = common.HexToAddress("0xA100000000000000000000000000000000000000")
	alice    = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob      = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	spender  = common.HexToAddress("0xA200000000000000000000000000000000000000")
	goldAddr = common.HexToAddress("0x000000000000000000000000000000000000601D")
)

func newGold(t *testing.T) *Token {
	t.Helper()
	return New(goldAddr, "Gold", "GLD", admin)
}

func TestMintAdminOnly(t *testing.T) {
	gold := newGold(t)

	if err := gold.Mint(alice, alice, 100); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("err = %v, want ErrNotAdmin", err)
	}
	if err := gold.Mint(admin, alice, 100); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := gold.BalanceOf(alice); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}
	if got := gold.TotalSupply(); got != 100 {
		t.Errorf("supply = %d, want 100", got)
	}
}

func TestTransfer(t *testing.T) {
	gold := newGold(t)
	gold.Mint(admin, alice, 100)

	if err := gold.Transfer(alice, bob, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := gold.BalanceOf(alice); got != 60 {
		t.Errorf("alice = %d, want 60", got)
	}
	if got := gold.BalanceOf(bob); got != 40 {
		t.Errorf("bob = %d, want 40", got)
	}

	if err := gold.Transfer(alice, bob, 61); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	gold := newGold(t)
	gold.Mint(admin, alice, 100)

	if err := gold.TransferFrom(spender, alice, bob, 30); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("err = %v, want ErrInsufficientAllowance", err)
	}

	if err := gold.Approve(alice, spender, 50); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := gold.Allowance(alice, spender); got != 50 {
		t.Errorf("allowance = %d, want 50", got)
	}

	if err := gold.TransferFrom(spender, alice, bob, 30); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := gold.BalanceOf(bob); got != 30 {
		t.Errorf("bob = %d, want 30", got)
	}
	if got := gold.Allowance(alice, spender); got != 20 {
		t.Errorf("allowance = %d, want 20", got)
	}

	if err := gold.TransferFrom(spender, alice, bob, 21); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("err = %v, want ErrInsufficientAllowance", err)
	}
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	gold := newGold(t)
	gold.Mint(admin, alice, 10)
	gold.Approve(alice, spender, 100)

	if err := gold.TransferFrom(spender, alice, bob, 50); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	// Allowance untouched on a failed spend
	if got := gold.Allowance(alice, spender); got != 100 {
		t.Errorf("allowance = %d, want 100", got)
	}
}

func TestDirectory(t *testing.T) {
	d := NewDirectory()
	gold := newGold(t)
	d.Register(gold)

	got, ok := d.Get(goldAddr)
	if !ok || got != gold {
		t.Errorf("get(gold) = %v, %v", got, ok)
	}
	if _, ok := d.Get(alice); ok {
		t.Error("get(unregistered) = true")
	}
}
