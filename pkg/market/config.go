package market

import (
	"github.com/ethereum/go-ethereum/common"
)

// CommissionConfig controls the commission split applied at execution time.
// Mutable only by the marketplace owner; the rate in effect when an order
// executes is the one applied, regardless of when the order was created.
type CommissionConfig struct {
	// Rate is an integer percentage, 0-100
	Rate int64 `json:"rate"`

	// Beneficiary receives the commission. Zero address disables commission.
	Beneficiary common.Address `json:"beneficiary"`

	// OnTokenSales extends the commission split to token-settled sales.
	// Default false: token sales pay the full price to the seller.
	OnTokenSales bool `json:"onTokenSales"`
}

// Enabled returns true if a non-zero commission would be deducted
func (c CommissionConfig) Enabled() bool {
	return c.Rate > 0 && c.Beneficiary != (common.Address{})
}

// Split divides a sale price into commission and seller payout.
// Commission = price * rate / 100 with integer division truncating
// toward zero; zero when the rate is zero or no beneficiary is set.
func (c CommissionConfig) Split(price int64) (commission, payout int64) {
	if c.Enabled() {
		commission = price * c.Rate / 100
	}
	return commission, price - commission
}

// PaymentToken is a registry entry for an accepted settlement token.
// The rate is acceptance metadata only; it does not enter settlement math.
type PaymentToken struct {
	Address common.Address `json:"address"`
	Rate    int64          `json:"rate"`
}
