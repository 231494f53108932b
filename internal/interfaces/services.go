// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

// MarketDataService is the gateway for externally-sourced price/FX data,
// fronted by the TTL rate cache with a stale-fallback contract.
type MarketDataService interface {
	// FetchCurrentPrice returns a quote, from cache when fresh. On total
	// provider failure the last cached quote is returned flagged
	// FromCache/Stale; with no cache at all it fails with
	// models.ErrNoDataAvailable.
	FetchCurrentPrice(ctx context.Context, symbol string) (*models.Quote, error)

	// FetchHistoricalBars returns daily bars for the range, cached for 24h.
	FetchHistoricalBars(ctx context.Context, symbol string, rng models.BarRange) ([]models.Bar, error)

	// FetchFxRate returns a cross-rate, synthesizing via USD when the
	// direct pair is unavailable. Never a hard error: the final fallback
	// is rate 1.0 with Degraded set.
	FetchFxRate(ctx context.Context, from, to string) (models.FxRateSnapshot, error)

	// RefreshQuotes fans out per-symbol fetches. Individual failures do
	// not abort the batch; each failed symbol keeps its previous quote.
	RefreshQuotes(ctx context.Context, symbols []string) error

	// Quote returns the in-memory quote map entry for a symbol, if any.
	Quote(symbol string) (*models.Quote, bool)

	// RateTable snapshots all cached FX rates for the currency normalizer.
	RateTable() map[string]float64
}

// LedgerService owns all mutations of the lot ledger and cash state.
// Every mutation persists the full ledger record before returning.
type LedgerService interface {
	CreatePortfolio(ctx context.Context, name, baseCurrency string) (*models.Portfolio, error)
	GetPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)

	AddLot(ctx context.Context, portfolioID, symbol string, holding models.Holding, lot models.Lot) (*models.Lot, error)
	UpdateLot(ctx context.Context, portfolioID, symbol, lotID string, patch models.LotPatch) error
	RemoveLot(ctx context.Context, portfolioID, symbol, lotID string) error

	RecordCashEvent(ctx context.Context, portfolioID string, when time.Time, amount decimal.Decimal, note string) error
	SetCashBalance(ctx context.Context, portfolioID string, balance decimal.Decimal) error

	Watchlist(ctx context.Context, name string) ([]string, error)
	SetWatchlist(ctx context.Context, name string, symbols []string) error
}

// ValuationService computes consumer-facing valuation output: per-row
// P&L, currency-normalized totals, and the charted value series.
type ValuationService interface {
	ValuePortfolio(ctx context.Context, portfolioID, displayCurrency string) (*models.PortfolioValuation, error)
	Series(ctx context.Context, portfolioIDs []string, displayCurrency string) ([]models.SeriesPoint, error)
}
