// Package asset implements the unique-asset registry the marketplace
// escrows against: minting, ownership queries, and custody transfers
// gated on an approved marketplace operator.
package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotFound      = errors.New("asset does not exist")
	ErrNotAdmin      = errors.New("caller is not the registry admin")
	ErrWrongOwner    = errors.New("transfer from account that does not own the asset")
	ErrNotAuthorized = errors.New("operator not authorized to transfer the asset")
)

type record struct {
	owner common.Address
	uri   string
}

// Registry tracks ownership of unique assets. Token IDs are monotonically
// increasing and never reused. Transfers require the operator to be the
// current owner or the approved marketplace.
type Registry struct {
	mu sync.RWMutex

	admin       common.Address
	marketplace common.Address // approved operator, zero until granted
	baseURI     string

	nextID uint64
	assets map[uint64]*record
}

// NewRegistry creates an empty registry administered by admin
func NewRegistry(admin common.Address) *Registry {
	return &Registry{
		admin:  admin,
		nextID: 1,
		assets: make(map[uint64]*record),
	}
}

// Mint creates a new asset owned by owner and returns its ID
func (r *Registry) Mint(owner common.Address, tokenURI string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.assets[id] = &record{owner: owner, uri: tokenURI}
	return id
}

// OwnerOf returns the current owner of an asset
func (r *Registry) OwnerOf(assetID uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.assets[assetID]
	if !ok {
		return common.Address{}, fmt.Errorf("asset %d: %w", assetID, ErrNotFound)
	}
	return rec.owner, nil
}

// Exists reports whether an asset has been minted
func (r *Registry) Exists(assetID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.assets[assetID]
	return ok
}

// TokenURI returns the asset's metadata URI, prefixed with the base URI
func (r *Registry) TokenURI(assetID uint64) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.assets[assetID]
	if !ok {
		return "", fmt.Errorf("asset %d: %w", assetID, ErrNotFound)
	}
	return r.baseURI + rec.uri, nil
}

// SetBaseURI sets the metadata URI prefix. Admin-only.
func (r *Registry) SetBaseURI(caller common.Address, baseURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return fmt.Errorf("set base uri: %w", ErrNotAdmin)
	}
	r.baseURI = baseURI
	return nil
}

// SetMarketplace grants a marketplace transfer authority over every asset
// in the registry. Admin-only. Granting a new marketplace revokes the
// previous one.
func (r *Registry) SetMarketplace(caller, marketplace common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return fmt.Errorf("set marketplace: %w", ErrNotAdmin)
	}
	r.marketplace = marketplace
	return nil
}

// Marketplace returns the approved marketplace operator
func (r *Registry) Marketplace() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.marketplace
}

// Transfer moves an asset from its current owner to another account.
// Fails when 'from' does not own the asset, or when the operator is
// neither 'from' nor the approved marketplace.
func (r *Registry) Transfer(assetID uint64, from, to, operator common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.assets[assetID]
	if !ok {
		return fmt.Errorf("asset %d: %w", assetID, ErrNotFound)
	}
	if rec.owner != from {
		return fmt.Errorf("asset %d owned by %s, not %s: %w", assetID, rec.owner.Hex(), from.Hex(), ErrWrongOwner)
	}
	if operator != from && (r.marketplace == common.Address{} || operator != r.marketplace) {
		return fmt.Errorf("asset %d: operator %s: %w", assetID, operator.Hex(), ErrNotAuthorized)
	}

	rec.owner = to
	return nil
}

// Count returns the number of minted assets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
