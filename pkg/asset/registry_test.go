package asset

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	admin       = common.HexToAddress("0xA100000000000000000000000000000000000000")
	marketplace = common.HexToAddress("0xA200000000000000000000000000000000000000")
	alice       = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob         = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func TestMintAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry(admin)

	first := r.Mint(alice, "1.json")
	second := r.Mint(bob, "2.json")
	if second != first+1 {
		t.Errorf("ids %d, %d not sequential", first, second)
	}
	if r.Count() != 2 {
		t.Errorf("count = %d, want 2", r.Count())
	}

	got, err := r.OwnerOf(first)
	if err != nil {
		t.Fatalf("ownerOf: %v", err)
	}
	if got != alice {
		t.Errorf("owner = %s, want alice", got.Hex())
	}
}

func TestOwnerOfMissingAsset(t *testing.T) {
	r := NewRegistry(admin)

	if _, err := r.OwnerOf(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if r.Exists(1) {
		t.Error("exists(1) = true for empty registry")
	}
}

func TestTokenURIUsesBaseURI(t *testing.T) {
	r := NewRegistry(admin)
	id := r.Mint(alice, "1.json")

	if err := r.SetBaseURI(bob, "ipfs://x/"); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("non-admin setBaseURI err = %v, want ErrNotAdmin", err)
	}
	if err := r.SetBaseURI(admin, "ipfs://x/"); err != nil {
		t.Fatalf("setBaseURI: %v", err)
	}

	uri, err := r.TokenURI(id)
	if err != nil {
		t.Fatalf("tokenURI: %v", err)
	}
	if uri != "ipfs://x/1.json" {
		t.Errorf("uri = %q, want ipfs://x/1.json", uri)
	}
}

func TestTransferByOwner(t *testing.T) {
	r := NewRegistry(admin)
	id := r.Mint(alice, "1.json")

	if err := r.Transfer(id, alice, bob, alice); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, _ := r.OwnerOf(id)
	if got != bob {
		t.Errorf("owner = %s, want bob", got.Hex())
	}
}

func TestTransferWrongOwner(t *testing.T) {
	r := NewRegistry(admin)
	id := r.Mint(alice, "1.json")

	if err := r.Transfer(id, bob, admin, bob); !errors.Is(err, ErrWrongOwner) {
		t.Errorf("err = %v, want ErrWrongOwner", err)
	}
}

func TestTransferByMarketplaceOperator(t *testing.T) {
	r := NewRegistry(admin)
	id := r.Mint(alice, "1.json")

	// Unapproved operator cannot move the asset
	if err := r.Transfer(id, alice, marketplace, marketplace); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("err = %v, want ErrNotAuthorized", err)
	}

	if err := r.SetMarketplace(bob, marketplace); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("non-admin setMarketplace err = %v, want ErrNotAdmin", err)
	}
	if err := r.SetMarketplace(admin, marketplace); err != nil {
		t.Fatalf("setMarketplace: %v", err)
	}
	if r.Marketplace() != marketplace {
		t.Errorf("marketplace = %s", r.Marketplace().Hex())
	}

	if err := r.Transfer(id, alice, marketplace, marketplace); err != nil {
		t.Fatalf("operator transfer: %v", err)
	}
	got, _ := r.OwnerOf(id)
	if got != marketplace {
		t.Errorf("owner = %s, want marketplace", got.Hex())
	}
}

func TestSetMarketplaceRevokesPrevious(t *testing.T) {
	r := NewRegistry(admin)
	id := r.Mint(alice, "1.json")

	if err := r.SetMarketplace(admin, marketplace); err != nil {
		t.Fatalf("setMarketplace: %v", err)
	}
	next := common.HexToAddress("0xA300000000000000000000000000000000000000")
	if err := r.SetMarketplace(admin, next); err != nil {
		t.Fatalf("setMarketplace next: %v", err)
	}

	// Old grant no longer authorizes transfers
	if err := r.Transfer(id, alice, marketplace, marketplace); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("err = %v, want ErrNotAuthorized", err)
	}
	if err := r.Transfer(id, alice, next, next); err != nil {
		t.Fatalf("new operator transfer: %v", err)
	}
}
