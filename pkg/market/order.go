package market

import (
	"github.com/ethereum/go-ethereum/common"
)

// NativeCurrency is the zero-address sentinel used as an order's payment token
// when the sale settles in the native currency instead of a registered token.
var NativeCurrency = common.Address{}

// OrderStatus represents the lifecycle state of a sale order
type OrderStatus int8

const (
	OrderActive OrderStatus = iota
	OrderCancelled
	OrderExecuted
)

func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "active"
	case OrderCancelled:
		return "cancelled"
	case OrderExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Order represents a sale listing held in escrow by the marketplace.
// While an order is Active the marketplace account holds custody of the
// asset; custody returns to the seller on cancel and moves to the buyer
// on execution. Cancelled and Executed are terminal.
type Order struct {
	ID      uint64         `json:"id"`      // Monotonically increasing, never reused
	AssetID uint64         `json:"assetId"` // Asset registry token ID
	Seller  common.Address `json:"seller"`  // Account that created the order

	// Price in base units: native wei-equivalents for native sales,
	// token base units for token sales. No implicit decimals.
	Price int64 `json:"price"`

	// PaymentToken is the registered token the sale settles in,
	// or NativeCurrency (zero address) for native-currency sales.
	PaymentToken common.Address `json:"paymentToken"`

	Status OrderStatus `json:"status"`

	// Timestamps (Unix milliseconds)
	CreatedAt  int64 `json:"createdAt"`
	ResolvedAt int64 `json:"resolvedAt,omitempty"` // Set when cancelled or executed
}

// IsNativeSale returns true if the order settles in the native currency
func (o *Order) IsNativeSale() bool {
	return o.PaymentToken == NativeCurrency
}

// IsClosed returns true if the order reached a terminal state
func (o *Order) IsClosed() bool {
	return o.Status != OrderActive
}
