package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parkjw-dev/nftmarket/pkg/asset"
	"github.com/parkjw-dev/nftmarket/pkg/bank"
	"github.com/parkjw-dev/nftmarket/pkg/market"
	"github.com/parkjw-dev/nftmarket/pkg/token"
)

var (
	owner      = common.HexToAddress("0xA100000000000000000000000000000000000000")
	escrowAddr = common.HexToAddress("0xA200000000000000000000000000000000000000")
	alice      = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob        = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

type testServer struct {
	server *Server
	assets *asset.Registry
	ledger *bank.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	assets := asset.NewRegistry(owner)
	ledger := bank.NewLedger()
	directory := token.NewDirectory()

	resolver := market.TokenResolverFunc(func(addr common.Address) (market.TokenTransferer, bool) {
		tok, ok := directory.Get(addr)
		if !ok {
			return nil, false
		}
		return tok, true
	})

	engine, err := market.NewEngine(market.Params{Owner: owner, Escrow: escrowAddr}, assets, ledger, resolver, nil, nil)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := assets.SetMarketplace(owner, escrowAddr); err != nil {
		t.Fatalf("failed to approve marketplace: %v", err)
	}

	return &testServer{
		server: NewServer(engine, assets, directory, ledger, nil),
		assets: assets,
		ledger: ledger,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestOrderLifecycleOverREST(t *testing.T) {
	ts := newTestServer(t)

	// Mint an asset for alice
	rec := ts.do(t, "POST", "/api/v1/assets", MintAssetRequest{Owner: alice.Hex(), TokenURI: "1.json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("mint status = %d: %s", rec.Code, rec.Body.String())
	}
	var minted MintAssetResponse
	decode(t, rec, &minted)

	// List it
	rec = ts.do(t, "POST", "/api/v1/orders", AddOrderRequest{
		Seller:  alice.Hex(),
		AssetID: minted.AssetID,
		Price:   100,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("addOrder status = %d: %s", rec.Code, rec.Body.String())
	}
	var added AddOrderResponse
	decode(t, rec, &added)
	if added.OrderID == 0 {
		t.Fatal("order id missing")
	}

	// Fund the buyer and execute
	rec = ts.do(t, "POST", "/api/v1/bank/deposit", DepositRequest{Address: bob.Hex(), Amount: 500})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, "POST", fmt.Sprintf("/api/v1/orders/%d/execute", added.OrderID), ExecuteOrderRequest{
		Buyer: bob.Hex(),
		Value: 100,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d: %s", rec.Code, rec.Body.String())
	}

	// Custody and balances settled
	got, err := ts.assets.OwnerOf(minted.AssetID)
	if err != nil || got != bob {
		t.Errorf("asset owner = %s, %v, want bob", got.Hex(), err)
	}
	if bal := ts.ledger.BalanceOf(alice); bal != 100 {
		t.Errorf("seller balance = %d, want 100", bal)
	}

	rec = ts.do(t, "GET", fmt.Sprintf("/api/v1/orders/%d", added.OrderID), nil)
	var info OrderInfo
	decode(t, rec, &info)
	if info.Status != "executed" {
		t.Errorf("order status = %q, want executed", info.Status)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/api/v1/orders/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCancelByNonSellerForbidden(t *testing.T) {
	ts := newTestServer(t)

	id := ts.assets.Mint(alice, "1.json")
	rec := ts.do(t, "POST", "/api/v1/orders", AddOrderRequest{Seller: alice.Hex(), AssetID: id, Price: 100})
	var added AddOrderResponse
	decode(t, rec, &added)

	rec = ts.do(t, "POST", fmt.Sprintf("/api/v1/orders/%d/cancel", added.OrderID), CancelOrderRequest{Caller: bob.Hex()})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	rec = ts.do(t, "POST", fmt.Sprintf("/api/v1/orders/%d/cancel", added.OrderID), CancelOrderRequest{Caller: alice.Hex()})
	if rec.Code != http.StatusOK {
		t.Errorf("seller cancel status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExecuteValueMismatchBadRequest(t *testing.T) {
	ts := newTestServer(t)

	id := ts.assets.Mint(alice, "1.json")
	rec := ts.do(t, "POST", "/api/v1/orders", AddOrderRequest{Seller: alice.Hex(), AssetID: id, Price: 100})
	var added AddOrderResponse
	decode(t, rec, &added)
	ts.ledger.Deposit(bob, 500)

	rec = ts.do(t, "POST", fmt.Sprintf("/api/v1/orders/%d/execute", added.OrderID), ExecuteOrderRequest{
		Buyer: bob.Hex(),
		Value: 99,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var errResp ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Error == "" {
		t.Error("error body missing reject reason")
	}
}

func TestExecuteUnderfundedPaymentRequired(t *testing.T) {
	ts := newTestServer(t)

	id := ts.assets.Mint(alice, "1.json")
	rec := ts.do(t, "POST", "/api/v1/orders", AddOrderRequest{Seller: alice.Hex(), AssetID: id, Price: 100})
	var added AddOrderResponse
	decode(t, rec, &added)

	rec = ts.do(t, "POST", fmt.Sprintf("/api/v1/orders/%d/execute", added.OrderID), ExecuteOrderRequest{
		Buyer: bob.Hex(),
		Value: 100,
	})
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", rec.Code)
	}
}

func TestPaymentTokenRegistryOverREST(t *testing.T) {
	ts := newTestServer(t)
	goldHex := "0x000000000000000000000000000000000000601D"

	// Non-owner rejected
	rec := ts.do(t, "POST", "/api/v1/payment-tokens", AddPaymentTokenRequest{
		Caller: alice.Hex(), Address: goldHex, Rate: 1000,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner status = %d, want 403", rec.Code)
	}

	// Owner registers an unresolvable token address
	rec = ts.do(t, "POST", "/api/v1/payment-tokens", AddPaymentTokenRequest{
		Caller: owner.Hex(), Address: goldHex, Rate: 1000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unresolvable token status = %d: %s", rec.Code, rec.Body.String())
	}

	// Removing an unregistered token fails
	rec = ts.do(t, "DELETE", "/api/v1/payment-tokens/"+goldHex+"?caller="+owner.Hex(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("remove absent status = %d, want 400", rec.Code)
	}
}

func TestCommissionConfigOverREST(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/v1/commission/rate", SetCommissionRateRequest{Caller: alice.Hex(), Rate: 5})
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner status = %d, want 403", rec.Code)
	}

	rec = ts.do(t, "POST", "/api/v1/commission/rate", SetCommissionRateRequest{Caller: owner.Hex(), Rate: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("set rate status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = ts.do(t, "POST", "/api/v1/commission/beneficiary", SetCommissionBeneficiaryRequest{
		Caller: owner.Hex(), Beneficiary: bob.Hex(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set beneficiary status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/v1/commission", nil)
	var info CommissionInfo
	decode(t, rec, &info)
	if info.Rate != 5 || info.Beneficiary != bob.Hex() {
		t.Errorf("commission = %+v", info)
	}
}

func TestAddOrderInvalidAddress(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/v1/orders", AddOrderRequest{Seller: "not-an-address", AssetID: 1, Price: 100})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
