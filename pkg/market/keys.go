package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema:
//
//   ord:<orderID>        → Order (orderID zero-padded for ordered scans)
//   ptok:<address>       → PaymentToken
//   cfg:commission       → CommissionConfig
//   meta:next_order_id   → next order ID counter

const (
	prefixOrder        = "ord:"
	prefixPaymentToken = "ptok:"
	keyCommission      = "cfg:commission"
	keyNextOrderID     = "meta:next_order_id"
)

// orderKey returns the key for an order
// Format: "ord:{id}" with the ID zero-padded to 20 digits so that
// lexicographic order matches numeric order
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// paymentTokenKey returns the key for a payment token registry entry
// Format: "ptok:{address}"
func paymentTokenKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixPaymentToken, addr.Hex()))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
