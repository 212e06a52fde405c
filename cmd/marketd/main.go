package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/parkjw-dev/nftmarket/params"
	"github.com/parkjw-dev/nftmarket/pkg/api"
	"github.com/parkjw-dev/nftmarket/pkg/asset"
	"github.com/parkjw-dev/nftmarket/pkg/bank"
	"github.com/parkjw-dev/nftmarket/pkg/market"
	"github.com/parkjw-dev/nftmarket/pkg/token"
	"github.com/parkjw-dev/nftmarket/pkg/util"
)

// Demo payment token registered when devnet seeding is enabled
var goldTokenAddr = common.HexToAddress("0x000000000000000000000000000000000000601d")

const goldTokenRate = 1000

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Collaborators ----
	assets := asset.NewRegistry(cfg.Marketplace.Owner)
	ledger := bank.NewLedger()
	directory := token.NewDirectory()

	resolver := market.TokenResolverFunc(func(addr common.Address) (market.TokenTransferer, bool) {
		t, ok := directory.Get(addr)
		if !ok {
			return nil, false
		}
		return t, true
	})

	// ---- Engine ----
	store, err := market.NewStore(cfg.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.DBPath, "err", err)
	}
	defer store.Close()

	engine, err := market.NewEngine(market.Params{
		Owner:  cfg.Marketplace.Owner,
		Escrow: cfg.Marketplace.Escrow,
	}, assets, ledger, resolver, store, sugar)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	// Grant the marketplace transfer authority over registry assets.
	// Without this every AddOrder fails at the escrow step.
	if err := assets.SetMarketplace(cfg.Marketplace.Owner, cfg.Marketplace.Escrow); err != nil {
		sugar.Fatalw("marketplace_approval_failed", "err", err)
	}

	if cfg.DevnetSeed {
		seedDevnet(cfg, engine, directory, sugar)
	}

	if cfg.Marketplace.CommissionRate > 0 {
		if err := engine.SetCommissionRate(cfg.Marketplace.Owner, cfg.Marketplace.CommissionRate); err != nil {
			sugar.Fatalw("commission_rate_init_failed", "err", err)
		}
	}
	if cfg.Marketplace.CommissionBeneficiary != (common.Address{}) {
		if err := engine.SetCommissionBeneficiary(cfg.Marketplace.Owner, cfg.Marketplace.CommissionBeneficiary); err != nil {
			sugar.Fatalw("commission_beneficiary_init_failed", "err", err)
		}
	}

	// ---- API ----
	server := api.NewServer(engine, assets, directory, ledger, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("marketd_started",
		"api_addr", cfg.API.Addr,
		"owner", cfg.Marketplace.Owner.Hex(),
		"escrow", cfg.Marketplace.Escrow.Hex(),
		"next_order_id", engine.NextOrderID())

	<-ctx.Done()
	sugar.Info("shutting down")
}

// seedDevnet registers the demo gold token so token-priced orders work
// out of the box
func seedDevnet(cfg params.Config, engine *market.Engine, directory *token.Directory, sugar *zap.SugaredLogger) {
	gold := token.New(goldTokenAddr, "Gold", "GLD", cfg.Marketplace.Owner)
	directory.Register(gold)

	if err := engine.AddPaymentToken(cfg.Marketplace.Owner, goldTokenAddr, goldTokenRate); err != nil {
		sugar.Warnw("devnet_seed_token_failed", "err", err)
		return
	}
	sugar.Infow("devnet_seeded", "gold_token", goldTokenAddr.Hex(), "rate", goldTokenRate)
}
