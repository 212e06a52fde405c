package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// API holds the HTTP listener settings
type API struct {
	Addr string
}

// Marketplace holds the engine's accounts and initial commission split
type Marketplace struct {
	// Owner may mutate the payment token registry and commission config
	Owner common.Address

	// Escrow is the engine's custody account for listed assets
	Escrow common.Address

	CommissionRate        int64
	CommissionBeneficiary common.Address
}

type Config struct {
	API         API
	Marketplace Marketplace

	DBPath  string
	LogFile string

	// DevnetSeed registers the demo payment token and grants the
	// marketplace operator rights on startup
	DevnetSeed bool
}

func Default() Config {
	return Config{
		API: API{Addr: ":8080"},
		Marketplace: Marketplace{
			Owner:  common.HexToAddress("0x0000000000000000000000000000000000000A01"),
			Escrow: common.HexToAddress("0x0000000000000000000000000000000000000A02"),
		},
		DBPath:     "data/market.db",
		LogFile:    "data/market.log",
		DevnetSeed: true,
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("MARKET_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
	if v := os.Getenv("MARKET_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MARKET_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("MARKET_OWNER"); common.IsHexAddress(v) {
		cfg.Marketplace.Owner = common.HexToAddress(v)
	}
	if v := os.Getenv("MARKET_ESCROW"); common.IsHexAddress(v) {
		cfg.Marketplace.Escrow = common.HexToAddress(v)
	}
	if v := os.Getenv("MARKET_COMMISSION_RATE"); v != "" {
		if rate, err := strconv.ParseInt(v, 10, 64); err == nil && rate >= 0 && rate <= 100 {
			cfg.Marketplace.CommissionRate = rate
		}
	}
	if v := os.Getenv("MARKET_COMMISSION_BENEFICIARY"); common.IsHexAddress(v) {
		cfg.Marketplace.CommissionBeneficiary = common.HexToAddress(v)
	}
	if v := os.Getenv("MARKET_DEVNET_SEED"); v != "" {
		cfg.DevnetSeed = v == "true"
	}

	return cfg
}
