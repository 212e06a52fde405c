package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/parkjw-dev/nftmarket/pkg/asset"
	"github.com/parkjw-dev/nftmarket/pkg/bank"
	"github.com/parkjw-dev/nftmarket/pkg/market"
	"github.com/parkjw-dev/nftmarket/pkg/token"
)

// Server exposes the marketplace over REST and streams its events over
// WebSocket
type Server struct {
	engine *market.Engine
	assets *asset.Registry
	tokens *token.Directory
	bank   *bank.Ledger

	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer creates an API server around a marketplace engine and its
// collaborators
func NewServer(engine *market.Engine, assets *asset.Registry, tokens *token.Directory, ledger *bank.Ledger, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		engine: engine,
		assets: assets,
		tokens: tokens,
		bank:   ledger,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		log:    logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order lifecycle
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders", s.handleAddOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/execute", s.handleExecuteOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/execute-token", s.handleExecuteOrderToken).Methods("POST")

	// Payment token registry (owner-only mutations)
	api.HandleFunc("/payment-tokens", s.handleListPaymentTokens).Methods("GET")
	api.HandleFunc("/payment-tokens", s.handleAddPaymentToken).Methods("POST")
	api.HandleFunc("/payment-tokens/{address}", s.handleRemovePaymentToken).Methods("DELETE")

	// Commission config (owner-only mutations)
	api.HandleFunc("/commission", s.handleGetCommission).Methods("GET")
	api.HandleFunc("/commission/rate", s.handleSetCommissionRate).Methods("POST")
	api.HandleFunc("/commission/beneficiary", s.handleSetCommissionBeneficiary).Methods("POST")

	// Asset registry
	api.HandleFunc("/assets", s.handleMintAsset).Methods("POST")
	api.HandleFunc("/assets/{id:[0-9]+}", s.handleGetAsset).Methods("GET")

	// Native currency (devnet faucet + balances)
	api.HandleFunc("/bank/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/bank/{address}", s.handleGetBalance).Methods("GET")

	// Event stream
	s.router.HandleFunc("/ws", s.hub.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub, the event pump, and the HTTP listener. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	go s.pumpEvents()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Handler returns the routed handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// pumpEvents forwards marketplace events to WebSocket clients
func (s *Server) pumpEvents() {
	for ev := range s.engine.Subscribe() {
		data, err := json.Marshal(ev)
		if err != nil {
			s.log.Errorw("event_marshal_failed", "err", err)
			continue
		}
		s.hub.Broadcast(data)
	}
}

// ==============================
// Order handlers
// ==============================

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var orders []market.Order
	if r.URL.Query().Get("status") == "active" {
		orders = s.engine.ListActiveOrders()
	} else {
		orders = s.engine.ListOrders()
	}

	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(o)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}

	o, err := s.engine.GetOrder(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(o))
}

func (s *Server) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var req AddOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	seller, ok := s.address(w, req.Seller, "seller")
	if !ok {
		return
	}

	payToken := market.NativeCurrency
	if req.PaymentToken != "" {
		payToken, ok = s.address(w, req.PaymentToken, "paymentToken")
		if !ok {
			return
		}
	}

	id, err := s.engine.AddOrder(seller, req.AssetID, req.Price, payToken)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, AddOrderResponse{OrderID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := s.address(w, req.Caller, "caller")
	if !ok {
		return
	}

	if err := s.engine.CancelOrder(caller, id); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}

	var req ExecuteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	buyer, ok := s.address(w, req.Buyer, "buyer")
	if !ok {
		return
	}

	if err := s.engine.ExecuteOrderWithEther(buyer, id, req.Value); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "executed"})
}

func (s *Server) handleExecuteOrderToken(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}

	var req ExecuteOrderTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	buyer, ok := s.address(w, req.Buyer, "buyer")
	if !ok {
		return
	}
	payToken, ok := s.address(w, req.PaymentToken, "paymentToken")
	if !ok {
		return
	}

	if err := s.engine.ExecuteOrderWithPaymentToken(buyer, id, req.Price, payToken); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "executed"})
}

// ==============================
// Payment token handlers
// ==============================

func (s *Server) handleListPaymentTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.engine.PaymentTokens()
	out := make([]PaymentTokenInfo, len(tokens))
	for i, pt := range tokens {
		out[i] = PaymentTokenInfo{Address: pt.Address.Hex(), Rate: pt.Rate}
	}
	respondJSON(w, out)
}

func (s *Server) handleAddPaymentToken(w http.ResponseWriter, r *http.Request) {
	var req AddPaymentTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := s.address(w, req.Caller, "caller")
	if !ok {
		return
	}
	addr, ok := s.address(w, req.Address, "address")
	if !ok {
		return
	}

	if err := s.engine.AddPaymentToken(caller, addr, req.Rate); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "registered"})
}

func (s *Server) handleRemovePaymentToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, mux.Vars(r)["address"], "address")
	if !ok {
		return
	}
	caller, ok := s.address(w, r.URL.Query().Get("caller"), "caller")
	if !ok {
		return
	}

	if err := s.engine.RemovePaymentToken(caller, addr); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "removed"})
}

// ==============================
// Commission handlers
// ==============================

func (s *Server) handleGetCommission(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Commission()
	respondJSON(w, CommissionInfo{
		Rate:         cfg.Rate,
		Beneficiary:  cfg.Beneficiary.Hex(),
		OnTokenSales: cfg.OnTokenSales,
	})
}

func (s *Server) handleSetCommissionRate(w http.ResponseWriter, r *http.Request) {
	var req SetCommissionRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := s.address(w, req.Caller, "caller")
	if !ok {
		return
	}

	if err := s.engine.SetCommissionRate(caller, req.Rate); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "updated"})
}

func (s *Server) handleSetCommissionBeneficiary(w http.ResponseWriter, r *http.Request) {
	var req SetCommissionBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := s.address(w, req.Caller, "caller")
	if !ok {
		return
	}
	beneficiary, ok := s.address(w, req.Beneficiary, "beneficiary")
	if !ok {
		return
	}

	if err := s.engine.SetCommissionBeneficiary(caller, beneficiary); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "updated"})
}

// ==============================
// Asset and bank handlers
// ==============================

func (s *Server) handleMintAsset(w http.ResponseWriter, r *http.Request) {
	var req MintAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	owner, ok := s.address(w, req.Owner, "owner")
	if !ok {
		return
	}

	id := s.assets.Mint(owner, req.TokenURI)
	s.log.Infow("asset_minted", "asset_id", id, "owner", owner.Hex())
	respondJSON(w, MintAssetResponse{AssetID: id})
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid asset id", err.Error())
		return
	}

	owner, err := s.assets.OwnerOf(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	uri, err := s.assets.TokenURI(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, AssetInfo{ID: id, Owner: owner.Hex(), TokenURI: uri})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	addr, ok := s.address(w, req.Address, "address")
	if !ok {
		return
	}

	if err := s.bank.Deposit(addr, req.Amount); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{Address: addr.Hex(), Balance: s.bank.BalanceOf(addr)})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, mux.Vars(r)["address"], "address")
	if !ok {
		return
	}
	respondJSON(w, BalanceInfo{Address: addr.Hex(), Balance: s.bank.BalanceOf(addr)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func orderInfo(o market.Order) OrderInfo {
	return OrderInfo{
		ID:           o.ID,
		AssetID:      o.AssetID,
		Seller:       o.Seller.Hex(),
		Price:        o.Price,
		PaymentToken: o.PaymentToken.Hex(),
		Native:       o.IsNativeSale(),
		Status:       o.Status.String(),
		CreatedAt:    o.CreatedAt,
		ResolvedAt:   o.ResolvedAt,
	}
}

func (s *Server) orderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return 0, false
	}
	return id, true
}

func (s *Server) address(w http.ResponseWriter, raw, field string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		respondError(w, http.StatusBadRequest, "invalid "+field+" address", raw)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// respondEngineError maps the error taxonomy onto HTTP statuses.
// Reject reasons stay intact in the response body.
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest // validation errors and anything unclassified

	switch {
	case errors.Is(err, market.ErrOrderNotFound),
		errors.Is(err, asset.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotSeller),
		errors.Is(err, market.ErrNotAssetOwner),
		errors.Is(err, asset.ErrNotAdmin),
		errors.Is(err, asset.ErrNotAuthorized),
		errors.Is(err, token.ErrNotAdmin):
		status = http.StatusForbidden
	case errors.Is(err, market.ErrOrderNotActive):
		status = http.StatusConflict
	case errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		status = http.StatusPaymentRequired
	}

	respondError(w, status, err.Error(), "")
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
