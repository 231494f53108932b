// Package app wires configuration, storage, clients, and services into
// one runnable application core.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/folio/internal/clients/coingecko"
	"github.com/bobmcallan/folio/internal/clients/eodhd"
	"github.com/bobmcallan/folio/internal/clients/stooq"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/ratecache"
	"github.com/bobmcallan/folio/internal/services/ledger"
	"github.com/bobmcallan/folio/internal/services/marketdata"
	"github.com/bobmcallan/folio/internal/services/valuation"
	"github.com/bobmcallan/folio/internal/storage"
)

// App holds all initialized services and shared infrastructure. It is
// the core used by cmd/folio-server.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	RateCache        *ratecache.Cache
	MarketService    interfaces.MarketDataService
	LedgerService    interfaces.LedgerService
	ValuationService interfaces.ValuationService
	StartupTime      time.Time

	refreshCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, the rate cache, the provider chain, and
// all services. configPath may be empty, in which case the default
// resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Config resolution: explicit path, FOLIO_CONFIG, binary dir, dev fallback
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to the binary directory
	if config.Storage.Ledger.Path != "" && !filepath.IsAbs(config.Storage.Ledger.Path) {
		config.Storage.Ledger.Path = filepath.Join(binDir, config.Storage.Ledger.Path)
	}
	if config.Storage.Cache.Path != "" && !filepath.IsAbs(config.Storage.Cache.Path) {
		config.Storage.Cache.Path = filepath.Join(binDir, config.Storage.Cache.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cache := ratecache.New(storageManager.CacheStore(), logger)
	cache.Warm(context.Background())

	providers, fundamentals := buildProviderChain(config, logger)
	if len(providers) == 0 {
		logger.Warn().Msg("No market data providers configured - quotes will come from cache only")
	}

	marketService := marketdata.NewService(providers, fundamentals, cache, logger)
	ledgerService := ledger.NewService(storageManager.LedgerStore(), logger)
	valuationService := valuation.NewService(ledgerService, marketService, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		RateCache:        cache,
		MarketService:    marketService,
		LedgerService:    ledgerService,
		ValuationService: valuationService,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// buildProviderChain assembles the fallback chain in configured order.
// EODHD is skipped without an API key; the free providers need none.
// EODHD doubles as the fundamentals source when present.
func buildProviderChain(config *common.Config, logger *common.Logger) ([]interfaces.MarketDataProvider, interfaces.FundamentalsProvider) {
	var providers []interfaces.MarketDataProvider
	var fundamentals interfaces.FundamentalsProvider

	for _, name := range config.Clients.Chain {
		switch name {
		case "eodhd":
			if config.Clients.EODHD.APIKey == "" {
				logger.Warn().Msg("EODHD API key not configured, skipping provider")
				continue
			}
			c := eodhd.NewClient(config.Clients.EODHD.APIKey,
				eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
				eodhd.WithLogger(logger),
				eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
				eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
			)
			providers = append(providers, c)
			fundamentals = c
		case "stooq":
			providers = append(providers, stooq.NewClient(
				stooq.WithBaseURL(config.Clients.Stooq.BaseURL),
				stooq.WithLogger(logger),
				stooq.WithRateLimit(config.Clients.Stooq.RateLimit),
				stooq.WithTimeout(config.Clients.Stooq.GetTimeout()),
			))
		case "coingecko":
			providers = append(providers, coingecko.NewClient(
				coingecko.WithBaseURL(config.Clients.CoinGecko.BaseURL),
				coingecko.WithLogger(logger),
				coingecko.WithRateLimit(config.Clients.CoinGecko.RateLimit),
			))
		default:
			logger.Warn().Str("provider", name).Msg("Unknown provider in chain, skipping")
		}
	}

	return providers, fundamentals
}

// Close releases all resources held by the App.
// Shutdown order: cancel the refresh scheduler, close storage.
func (a *App) Close() {
	if a.refreshCancel != nil {
		a.refreshCancel()
		a.refreshCancel = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

// StartQuoteScheduler launches the background quote refresh goroutine.
func (a *App) StartQuoteScheduler() {
	ctx, cancel := context.WithCancel(context.Background())
	a.refreshCancel = cancel
	go runQuoteScheduler(ctx, a.LedgerService, a.MarketService, a.Logger, common.FreshnessCurrentPrice)
}
