package api

// Request and response types for the REST endpoints

// ==============================
// Requests
// ==============================

// AddOrderRequest lists an asset for sale
type AddOrderRequest struct {
	Seller       string `json:"seller"`
	AssetID      uint64 `json:"assetId"`
	Price        int64  `json:"price"`
	PaymentToken string `json:"paymentToken,omitempty"` // empty or zero address = native currency
}

// CancelOrderRequest cancels an active order
type CancelOrderRequest struct {
	Caller string `json:"caller"`
}

// ExecuteOrderRequest settles a native-currency order
type ExecuteOrderRequest struct {
	Buyer string `json:"buyer"`
	Value int64  `json:"value"` // must exactly equal the order price
}

// ExecuteOrderTokenRequest settles a token-priced order
type ExecuteOrderTokenRequest struct {
	Buyer        string `json:"buyer"`
	Price        int64  `json:"price"`
	PaymentToken string `json:"paymentToken"`
}

// AddPaymentTokenRequest registers an accepted settlement token
type AddPaymentTokenRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
	Rate    int64  `json:"rate"`
}

// SetCommissionRateRequest updates the commission percentage
type SetCommissionRateRequest struct {
	Caller string `json:"caller"`
	Rate   int64  `json:"rate"`
}

// SetCommissionBeneficiaryRequest updates the commission recipient
type SetCommissionBeneficiaryRequest struct {
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
}

// MintAssetRequest mints a new asset in the registry
type MintAssetRequest struct {
	Owner    string `json:"owner"`
	TokenURI string `json:"tokenURI"`
}

// DepositRequest credits native currency to an account (devnet faucet)
type DepositRequest struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// ==============================
// Responses
// ==============================

// OrderInfo is the REST view of an order
type OrderInfo struct {
	ID           uint64 `json:"id"`
	AssetID      uint64 `json:"assetId"`
	Seller       string `json:"seller"`
	Price        int64  `json:"price"`
	PaymentToken string `json:"paymentToken"`
	Native       bool   `json:"native"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"createdAt"`
	ResolvedAt   int64  `json:"resolvedAt,omitempty"`
}

// AddOrderResponse returns the allocated order ID
type AddOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

// PaymentTokenInfo is the REST view of a registry entry
type PaymentTokenInfo struct {
	Address string `json:"address"`
	Rate    int64  `json:"rate"`
}

// CommissionInfo is the REST view of the commission config
type CommissionInfo struct {
	Rate         int64  `json:"rate"`
	Beneficiary  string `json:"beneficiary"`
	OnTokenSales bool   `json:"onTokenSales"`
}

// AssetInfo is the REST view of a registry asset
type AssetInfo struct {
	ID       uint64 `json:"id"`
	Owner    string `json:"owner"`
	TokenURI string `json:"tokenURI"`
}

// MintAssetResponse returns the minted asset ID
type MintAssetResponse struct {
	AssetID uint64 `json:"assetId"`
}

// BalanceInfo is the REST view of a native-currency balance
type BalanceInfo struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// ErrorResponse carries a failure reason
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
