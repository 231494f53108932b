// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// MarketDataProvider abstracts one external price/FX source. The engine
// is provider-agnostic; the gateway walks a configured chain of these.
type MarketDataProvider interface {
	// Name identifies the provider in config, logs, and quote sources.
	Name() string

	// GetQuote retrieves the current price state for a symbol.
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// GetBars retrieves daily OHLCV history for a symbol.
	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)

	// GetFxRate retrieves the direct cross-rate for a currency pair:
	// 1 unit of from = rate units of to.
	GetFxRate(ctx context.Context, from, to string) (float64, error)
}

// FundamentalsProvider is implemented by providers that can also supply
// company metadata. Fundamentals are enriched opportunistically; a
// fetch failure never fails the calling operation.
type FundamentalsProvider interface {
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}
