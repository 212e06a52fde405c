package bank

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func TestDeposit(t *testing.T) {
	l := NewLedger()

	if err := l.Deposit(alice, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := l.BalanceOf(alice); got != 100 {
		t.Errorf("balance = %d, want 100", got)
	}

	if err := l.Deposit(alice, 0); err == nil {
		t.Error("zero deposit accepted")
	}
	if err := l.Deposit(alice, -5); err == nil {
		t.Error("negative deposit accepted")
	}
}

func TestTransfer(t *testing.T) {
	l := NewLedger()
	l.Deposit(alice, 100)

	if err := l.Transfer(alice, bob, 60); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := l.BalanceOf(alice); got != 40 {
		t.Errorf("alice = %d, want 40", got)
	}
	if got := l.BalanceOf(bob); got != 60 {
		t.Errorf("bob = %d, want 60", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	l := NewLedger()
	l.Deposit(alice, 10)

	err := l.Transfer(alice, bob, 50)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := l.BalanceOf(alice); got != 10 {
		t.Errorf("alice = %d, want 10", got)
	}
	if got := l.BalanceOf(bob); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
}
