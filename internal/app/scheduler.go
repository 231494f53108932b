package app

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// runQuoteScheduler refreshes current prices for all held symbols on a
// fixed interval, keeping the rate cache warm between API calls.
func runQuoteScheduler(ctx context.Context, ledgerService interfaces.LedgerService, marketService interfaces.MarketDataService, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Quote scheduler: stopped")
			return
		case <-ticker.C:
			refreshHeldSymbols(ctx, ledgerService, marketService, logger)
		}
	}
}

func refreshHeldSymbols(ctx context.Context, ledgerService interfaces.LedgerService, marketService interfaces.MarketDataService, logger *common.Logger) {
	start := time.Now()

	portfolios, err := ledgerService.ListPortfolios(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Quote refresh: failed to list portfolios")
		return
	}

	seen := make(map[string]bool)
	symbols := make([]string, 0)
	for _, p := range portfolios {
		for _, symbol := range p.Symbols() {
			if seen[symbol] {
				continue
			}
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}

	if len(symbols) == 0 {
		return
	}

	if err := marketService.RefreshQuotes(ctx, symbols); err != nil {
		logger.Warn().Err(err).Msg("Quote refresh: completed with errors")
	}

	logger.Info().
		Int("symbols", len(symbols)).
		Dur("elapsed", time.Since(start)).
		Msg("Quote refresh: complete")
}
