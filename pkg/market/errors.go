package market

import "errors"

// Every precondition violation is a distinguishable sentinel so callers can
// branch with errors.Is. Reject reasons are part of the observable contract:
// the strings are stable and never merged into a generic failure.
var (
	// Not found
	ErrOrderNotFound = errors.New("order does not exist")

	// Authorization
	ErrNotOwner      = errors.New("caller is not the marketplace owner")
	ErrNotSeller     = errors.New("caller is not the order seller")
	ErrNotAssetOwner = errors.New("caller does not own the asset")

	// State
	ErrOrderNotActive = errors.New("order is not active")

	// Validation
	ErrInvalidPrice       = errors.New("price must be a positive integer")
	ErrInvalidRate        = errors.New("commission rate must be between 0 and 100")
	ErrInvalidToken       = errors.New("payment token address must be non-zero")
	ErrInvalidTokenRate   = errors.New("token rate must be a positive integer")
	ErrTokenNotRegistered = errors.New("payment token is not registered")
	ErrTokenMismatch      = errors.New("payment token does not match order")
	ErrNotNativeSale      = errors.New("order is not payable in native currency")
	ErrPriceMismatch      = errors.New("price has changed")
	ErrSameParty          = errors.New("seller must be different than buyer")
)
