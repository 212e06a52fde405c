package market

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// AssetRegistry is the collaborator owning unique assets. Transfer fails
// when 'from' is not the current owner or the operator has no authority
// over the asset.
type AssetRegistry interface {
	OwnerOf(assetID uint64) (common.Address, error)
	Transfer(assetID uint64, from, to, operator common.Address) error
}

// NativeLedger is the native-currency value transfer primitive.
// Transfer fails on insufficient funds.
type NativeLedger interface {
	BalanceOf(addr common.Address) int64
	Transfer(from, to common.Address, amount int64) error
}

// TokenTransferer is the per-token transfer capability obtained from a
// TokenResolver for a registered payment token.
type TokenTransferer interface {
	// TransferFrom moves amount from 'from' to 'to', spending the
	// allowance that 'from' granted to 'spender'. Fails on insufficient
	// balance or allowance.
	TransferFrom(spender, from, to common.Address, amount int64) error

	// Transfer moves amount without an allowance check. The engine uses
	// it only to unwind a partial settlement.
	Transfer(from, to common.Address, amount int64) error
}

// TokenResolver resolves a token address to its transfer capability.
// Unknown addresses return ok=false rather than a silent default.
type TokenResolver interface {
	Resolve(addr common.Address) (TokenTransferer, bool)
}

// TokenResolverFunc adapts a plain function to the TokenResolver interface
type TokenResolverFunc func(addr common.Address) (TokenTransferer, bool)

func (f TokenResolverFunc) Resolve(addr common.Address) (TokenTransferer, bool) {
	return f(addr)
}

// Params configures a marketplace engine
type Params struct {
	// Owner may mutate the payment token registry and commission config
	Owner common.Address

	// Escrow is the marketplace's own account: it holds asset custody
	// for the lifetime of every Active order
	Escrow common.Address
}

// Engine is the order book / escrow engine. It owns the order mapping,
// the accepted payment token registry, and the commission config, and
// calls out to the asset registry, the native ledger, and payment token
// capabilities for settlement.
//
// Every public operation is one atomic unit of work guarded by a single
// mutex: it either fully applies or leaves no trace. Order state reaches
// its terminal value before any external transfer runs, and a failing
// transfer unwinds the ones before it.
type Engine struct {
	mu sync.Mutex

	owner  common.Address
	escrow common.Address

	assets AssetRegistry
	bank   NativeLedger
	tokens TokenResolver

	orders     map[uint64]*Order
	nextID     uint64
	registered map[common.Address]int64 // token address → rate (acceptance metadata)
	commission CommissionConfig

	store *Store // nil = in-memory only
	log   *zap.SugaredLogger
	bus   eventBus
}

// NewEngine creates a marketplace engine, rehydrating orders, the token
// registry, and the commission config from the store when one is given.
func NewEngine(p Params, assets AssetRegistry, bank NativeLedger, tokens TokenResolver, store *Store, logger *zap.SugaredLogger) (*Engine, error) {
	if assets == nil {
		return nil, fmt.Errorf("nil asset registry")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	e := &Engine{
		owner:      p.Owner,
		escrow:     p.Escrow,
		assets:     assets,
		bank:       bank,
		tokens:     tokens,
		orders:     make(map[uint64]*Order),
		nextID:     1,
		registered: make(map[common.Address]int64),
		store:      store,
		log:        logger,
	}

	if store != nil {
		if err := e.rehydrate(); err != nil {
			return nil, fmt.Errorf("rehydrate engine state: %w", err)
		}
	}

	return e, nil
}

func (e *Engine) rehydrate() error {
	orders, err := e.store.LoadAllOrders()
	if err != nil {
		return err
	}
	for _, o := range orders {
		e.orders[o.ID] = o
	}

	next, err := e.store.LoadNextOrderID()
	if err != nil {
		return err
	}
	if next > e.nextID {
		e.nextID = next
	}

	tokens, err := e.store.LoadPaymentTokens()
	if err != nil {
		return err
	}
	e.registered = tokens

	cfg, err := e.store.LoadCommission()
	if err != nil {
		return err
	}
	if cfg != nil {
		e.commission = *cfg
	}

	e.log.Infow("engine_rehydrated",
		"orders", len(e.orders),
		"next_order_id", e.nextID,
		"payment_tokens", len(e.registered))
	return nil
}

// Subscribe returns a channel receiving every marketplace event.
// Events are emitted exactly once per successful state transition.
func (e *Engine) Subscribe() <-chan Event {
	return e.bus.Subscribe()
}

// Owner returns the config admin account
func (e *Engine) Owner() common.Address { return e.owner }

// EscrowAddress returns the marketplace's custody account
func (e *Engine) EscrowAddress() common.Address { return e.escrow }

// ==============================
// Order lifecycle
// ==============================

// AddOrder lists an asset for sale and escrows it with the marketplace.
// The seller must own the asset and the asset registry must already have
// granted this marketplace transfer authority over it; paymentToken is
// either NativeCurrency or a registered token. Returns the new order ID.
func (e *Engine) AddOrder(seller common.Address, assetID uint64, price int64, paymentToken common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if price <= 0 {
		return 0, fmt.Errorf("add order: price %d: %w", price, ErrInvalidPrice)
	}
	if paymentToken != NativeCurrency {
		if _, ok := e.registered[paymentToken]; !ok {
			return 0, fmt.Errorf("add order: token %s: %w", paymentToken.Hex(), ErrTokenNotRegistered)
		}
	}

	owner, err := e.assets.OwnerOf(assetID)
	if err != nil {
		return 0, fmt.Errorf("add order: asset %d: %w", assetID, err)
	}
	if owner != seller {
		return 0, fmt.Errorf("add order: asset %d owned by %s: %w", assetID, owner.Hex(), ErrNotAssetOwner)
	}

	// Escrow custody. Fails when the registry has not approved this
	// marketplace as operator, which also enforces at most one Active
	// order per asset: an escrowed asset is no longer owned by a
	// would-be second seller.
	if err := e.assets.Transfer(assetID, seller, e.escrow, e.escrow); err != nil {
		return 0, fmt.Errorf("escrow asset %d: %w", assetID, err)
	}

	o := &Order{
		ID:           e.nextID,
		AssetID:      assetID,
		Seller:       seller,
		Price:        price,
		PaymentToken: paymentToken,
		Status:       OrderActive,
		CreatedAt:    time.Now().UnixMilli(),
	}

	if err := e.persistNewOrder(o); err != nil {
		// Return custody before reporting failure
		if terr := e.assets.Transfer(assetID, e.escrow, seller, e.escrow); terr != nil {
			e.log.Errorw("escrow_unwind_failed", "asset_id", assetID, "err", terr)
		}
		return 0, fmt.Errorf("add order: %w", err)
	}

	e.orders[o.ID] = o
	e.nextID = o.ID + 1

	e.bus.publish(newOrderAddedEvent(o))
	e.log.Infow("order_added",
		"order_id", o.ID,
		"asset_id", assetID,
		"seller", seller.Hex(),
		"price", price,
		"payment_token", paymentToken.Hex())
	return o.ID, nil
}

// persistNewOrder commits the order and the advanced ID counter atomically
func (e *Engine) persistNewOrder(o *Order) error {
	if e.store == nil {
		return nil
	}

	b := e.store.NewBatch()
	defer b.Close()

	if err := b.SaveOrder(o); err != nil {
		return fmt.Errorf("batch order: %w", err)
	}
	if err := b.SaveNextOrderID(o.ID + 1); err != nil {
		return fmt.Errorf("batch order counter: %w", err)
	}
	return b.Commit()
}

// CancelOrder returns custody of the asset to the seller and closes the
// order. Only the seller of an Active order may cancel it.
func (e *Engine) CancelOrder(caller common.Address, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel order %d: %w", orderID, ErrOrderNotFound)
	}
	if o.Status != OrderActive {
		return fmt.Errorf("cancel order %d (%s): %w", orderID, o.Status, ErrOrderNotActive)
	}
	if caller != o.Seller {
		return fmt.Errorf("cancel order %d: %w", orderID, ErrNotSeller)
	}

	if err := e.markResolved(o, OrderCancelled); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	if err := e.assets.Transfer(o.AssetID, e.escrow, o.Seller, e.escrow); err != nil {
		e.reopen(o)
		return fmt.Errorf("return asset %d to seller: %w", o.AssetID, err)
	}

	e.bus.publish(newOrderCancelledEvent(o))
	e.log.Infow("order_cancelled", "order_id", o.ID, "asset_id", o.AssetID)
	return nil
}

// ExecuteOrderWithEther settles a native-currency order. The supplied
// value must exactly equal the order price; both shortfall and excess are
// rejected. The commission split in effect at execution time applies.
func (e *Engine) ExecuteOrderWithEther(buyer common.Address, orderID uint64, value int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("execute order %d: %w", orderID, ErrOrderNotFound)
	}
	if o.Status != OrderActive {
		return fmt.Errorf("execute order %d (%s): %w", orderID, o.Status, ErrOrderNotActive)
	}
	if !o.IsNativeSale() {
		return fmt.Errorf("execute order %d: %w", orderID, ErrNotNativeSale)
	}
	if buyer == o.Seller {
		return fmt.Errorf("execute order %d: %w", orderID, ErrSameParty)
	}
	if value != o.Price {
		return fmt.Errorf("execute order %d: sent %d, price %d: %w", orderID, value, o.Price, ErrPriceMismatch)
	}

	commission, payout := e.commission.Split(o.Price)
	beneficiary := e.commission.Beneficiary

	// Effects before interactions: the order reaches its terminal state
	// before any external transfer runs
	if err := e.markResolved(o, OrderExecuted); err != nil {
		return fmt.Errorf("execute order %d: %w", orderID, err)
	}

	// Interactions, unwound as a unit on failure
	if err := e.assets.Transfer(o.AssetID, e.escrow, buyer, e.escrow); err != nil {
		e.reopen(o)
		return fmt.Errorf("transfer asset %d to buyer: %w", o.AssetID, err)
	}
	if commission > 0 {
		if err := e.bank.Transfer(buyer, beneficiary, commission); err != nil {
			e.unwindAsset(o, buyer)
			e.reopen(o)
			return fmt.Errorf("pay commission for order %d: %w", orderID, err)
		}
	}
	if err := e.bank.Transfer(buyer, o.Seller, payout); err != nil {
		if commission > 0 {
			if terr := e.bank.Transfer(beneficiary, buyer, commission); terr != nil {
				e.log.Errorw("commission_unwind_failed", "order_id", o.ID, "err", terr)
			}
		}
		e.unwindAsset(o, buyer)
		e.reopen(o)
		return fmt.Errorf("pay seller for order %d: %w", orderID, err)
	}

	e.bus.publish(newOrderExecutedEvent(o, buyer))
	e.log.Infow("order_executed",
		"order_id", o.ID,
		"asset_id", o.AssetID,
		"seller", o.Seller.Hex(),
		"buyer", buyer.Hex(),
		"price", o.Price,
		"commission", commission)
	return nil
}

// ExecuteOrderWithPaymentToken settles a token-priced order by moving the
// price from the buyer to the seller through a registered payment token.
// The buyer must have pre-authorized the marketplace for at least the
// price; a transfer rejected by the token (insufficient balance or
// allowance) propagates unchanged and leaves the order Active.
func (e *Engine) ExecuteOrderWithPaymentToken(buyer common.Address, orderID uint64, price int64, tokenAddr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("execute order %d: %w", orderID, ErrOrderNotFound)
	}
	if o.Status != OrderActive {
		return fmt.Errorf("execute order %d (%s): %w", orderID, o.Status, ErrOrderNotActive)
	}
	if o.IsNativeSale() || tokenAddr != o.PaymentToken {
		return fmt.Errorf("execute order %d: token %s: %w", orderID, tokenAddr.Hex(), ErrTokenMismatch)
	}
	if _, ok := e.registered[tokenAddr]; !ok {
		return fmt.Errorf("execute order %d: token %s: %w", orderID, tokenAddr.Hex(), ErrTokenNotRegistered)
	}
	if price != o.Price {
		return fmt.Errorf("execute order %d: offered %d, price %d: %w", orderID, price, o.Price, ErrPriceMismatch)
	}
	if buyer == o.Seller {
		return fmt.Errorf("execute order %d: %w", orderID, ErrSameParty)
	}

	tok, ok := e.tokens.Resolve(tokenAddr)
	if !ok {
		return fmt.Errorf("execute order %d: token %s: %w", orderID, tokenAddr.Hex(), ErrTokenNotRegistered)
	}

	commission, payout := int64(0), o.Price
	if e.commission.OnTokenSales {
		commission, payout = e.commission.Split(o.Price)
	}
	beneficiary := e.commission.Beneficiary

	if err := e.markResolved(o, OrderExecuted); err != nil {
		return fmt.Errorf("execute order %d: %w", orderID, err)
	}

	if err := e.assets.Transfer(o.AssetID, e.escrow, buyer, e.escrow); err != nil {
		e.reopen(o)
		return fmt.Errorf("transfer asset %d to buyer: %w", o.AssetID, err)
	}
	if commission > 0 {
		if err := tok.TransferFrom(e.escrow, buyer, beneficiary, commission); err != nil {
			e.unwindAsset(o, buyer)
			e.reopen(o)
			return fmt.Errorf("pay token commission for order %d: %w", orderID, err)
		}
	}
	if err := tok.TransferFrom(e.escrow, buyer, o.Seller, payout); err != nil {
		if commission > 0 {
			if terr := tok.Transfer(beneficiary, buyer, commission); terr != nil {
				e.log.Errorw("commission_unwind_failed", "order_id", o.ID, "err", terr)
			}
		}
		e.unwindAsset(o, buyer)
		e.reopen(o)
		return fmt.Errorf("pay seller for order %d: %w", orderID, err)
	}

	e.bus.publish(newOrderExecutedEvent(o, buyer))
	e.log.Infow("order_executed",
		"order_id", o.ID,
		"asset_id", o.AssetID,
		"seller", o.Seller.Hex(),
		"buyer", buyer.Hex(),
		"price", o.Price,
		"payment_token", tokenAddr.Hex(),
		"commission", commission)
	return nil
}

// markResolved commits a terminal status before any external transfer
func (e *Engine) markResolved(o *Order, status OrderStatus) error {
	o.Status = status
	o.ResolvedAt = time.Now().UnixMilli()
	if e.store != nil {
		if err := e.store.SaveOrder(o); err != nil {
			o.Status = OrderActive
			o.ResolvedAt = 0
			return err
		}
	}
	return nil
}

// reopen restores an order to Active after a failed settlement
func (e *Engine) reopen(o *Order) {
	o.Status = OrderActive
	o.ResolvedAt = 0
	if e.store != nil {
		if err := e.store.SaveOrder(o); err != nil {
			e.log.Errorw("reopen_persist_failed", "order_id", o.ID, "err", err)
		}
	}
}

// unwindAsset returns custody from a buyer back to escrow
func (e *Engine) unwindAsset(o *Order, buyer common.Address) {
	if err := e.assets.Transfer(o.AssetID, buyer, e.escrow, e.escrow); err != nil {
		e.log.Errorw("asset_unwind_failed", "order_id", o.ID, "asset_id", o.AssetID, "err", err)
	}
}

// ==============================
// Payment token registry
// ==============================

// AddPaymentToken registers a token as an accepted settlement currency.
// Owner-only. Re-adding an existing token updates its rate.
func (e *Engine) AddPaymentToken(caller, addr common.Address, rate int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return fmt.Errorf("add payment token: %w", ErrNotOwner)
	}
	if addr == NativeCurrency {
		return fmt.Errorf("add payment token: %w", ErrInvalidToken)
	}
	if rate <= 0 {
		return fmt.Errorf("add payment token: rate %d: %w", rate, ErrInvalidTokenRate)
	}
	if e.tokens == nil {
		return fmt.Errorf("add payment token %s: no token resolver: %w", addr.Hex(), ErrTokenNotRegistered)
	}
	if _, ok := e.tokens.Resolve(addr); !ok {
		return fmt.Errorf("add payment token %s: no transfer capability: %w", addr.Hex(), ErrTokenNotRegistered)
	}

	prev, had := e.registered[addr]
	e.registered[addr] = rate
	if e.store != nil {
		if err := e.store.SavePaymentToken(PaymentToken{Address: addr, Rate: rate}); err != nil {
			if had {
				e.registered[addr] = prev
			} else {
				delete(e.registered, addr)
			}
			return fmt.Errorf("add payment token: %w", err)
		}
	}

	e.log.Infow("payment_token_added", "token", addr.Hex(), "rate", rate)
	return nil
}

// RemovePaymentToken drops a token from the accepted set. Owner-only;
// removing an unregistered token fails with ErrTokenNotRegistered.
func (e *Engine) RemovePaymentToken(caller, addr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return fmt.Errorf("remove payment token: %w", ErrNotOwner)
	}
	rate, ok := e.registered[addr]
	if !ok {
		return fmt.Errorf("remove payment token %s: %w", addr.Hex(), ErrTokenNotRegistered)
	}

	delete(e.registered, addr)
	if e.store != nil {
		if err := e.store.DeletePaymentToken(addr); err != nil {
			e.registered[addr] = rate
			return fmt.Errorf("remove payment token: %w", err)
		}
	}

	e.log.Infow("payment_token_removed", "token", addr.Hex())
	return nil
}

// PaymentTokens returns the accepted token registry, ascending by address
func (e *Engine) PaymentTokens() []PaymentToken {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]PaymentToken, 0, len(e.registered))
	for addr, rate := range e.registered {
		out = append(out, PaymentToken{Address: addr, Rate: rate})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out
}

// ==============================
// Commission configuration
// ==============================

// SetCommissionRate sets the commission percentage (0-100). Owner-only;
// applies to orders executed after the change, not retroactively.
func (e *Engine) SetCommissionRate(caller common.Address, rate int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return fmt.Errorf("set commission rate: %w", ErrNotOwner)
	}
	if rate < 0 || rate > 100 {
		return fmt.Errorf("set commission rate: %d: %w", rate, ErrInvalidRate)
	}

	cfg := e.commission
	cfg.Rate = rate
	return e.saveCommission(cfg, "commission_rate_set")
}

// SetCommissionBeneficiary sets the commission recipient. Owner-only.
// The zero address disables commission.
func (e *Engine) SetCommissionBeneficiary(caller, beneficiary common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return fmt.Errorf("set commission beneficiary: %w", ErrNotOwner)
	}

	cfg := e.commission
	cfg.Beneficiary = beneficiary
	return e.saveCommission(cfg, "commission_beneficiary_set")
}

// SetCommissionOnTokenSales toggles the commission split for token-settled
// sales. Owner-only. Off by default: token sales pay the seller in full.
func (e *Engine) SetCommissionOnTokenSales(caller common.Address, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.owner {
		return fmt.Errorf("set commission on token sales: %w", ErrNotOwner)
	}

	cfg := e.commission
	cfg.OnTokenSales = enabled
	return e.saveCommission(cfg, "commission_token_sales_set")
}

func (e *Engine) saveCommission(cfg CommissionConfig, logMsg string) error {
	prev := e.commission
	e.commission = cfg
	if e.store != nil {
		if err := e.store.SaveCommission(cfg); err != nil {
			e.commission = prev
			return fmt.Errorf("save commission config: %w", err)
		}
	}

	e.log.Infow(logMsg,
		"rate", cfg.Rate,
		"beneficiary", cfg.Beneficiary.Hex(),
		"on_token_sales", cfg.OnTokenSales)
	return nil
}

// Commission returns the commission config in effect
func (e *Engine) Commission() CommissionConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commission
}

// ==============================
// Queries
// ==============================

// GetOrder returns a copy of an order
func (e *Engine) GetOrder(orderID uint64) (Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("get order %d: %w", orderID, ErrOrderNotFound)
	}
	return *o, nil
}

// ListOrders returns all orders, ascending by ID
func (e *Engine) ListOrders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListActiveOrders returns only orders still open for sale
func (e *Engine) ListActiveOrders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Order, 0)
	for _, o := range e.orders {
		if o.Status == OrderActive {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NextOrderID returns the ID the next order will receive
func (e *Engine) NextOrderID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextID
}
