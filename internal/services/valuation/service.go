package valuation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Service implements ValuationService on top of the ledger and the
// market data gateway.
type Service struct {
	ledger interfaces.LedgerService
	market interfaces.MarketDataService
	logger *common.Logger
	now    func() time.Time // injectable clock for testing
}

// NewService creates a valuation service.
func NewService(ledger interfaces.LedgerService, market interfaces.MarketDataService, logger *common.Logger) *Service {
	return &Service{
		ledger: ledger,
		market: market,
		logger: logger,
		now:    time.Now,
	}
}

// ValuePortfolio computes per-holding P&L rows and totals in the
// requested display currency. A holding with no obtainable price gets a
// zero market value and flags the row approximate rather than failing
// the whole valuation; the same goes for degraded FX.
func (s *Service) ValuePortfolio(ctx context.Context, portfolioID, displayCurrency string) (*models.PortfolioValuation, error) {
	p, err := s.ledger.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if displayCurrency == "" {
		displayCurrency = p.BaseCurrency
	}

	valuation := &models.PortfolioValuation{
		PortfolioID:     p.ID,
		Name:            p.Name,
		BaseCurrency:    p.BaseCurrency,
		DisplayCurrency: displayCurrency,
		AsOf:            s.now(),
	}

	symbols := p.Symbols()
	sort.Strings(symbols)

	for _, symbol := range symbols {
		h := p.Holding(symbol)
		row := s.valueHolding(ctx, h, displayCurrency)
		valuation.Holdings = append(valuation.Holdings, row)

		valuation.TotalValue += row.MarketValueBase
		valuation.TotalRealized += row.PnL.Realized
		valuation.TotalUnrealized += row.PnL.Unrealized
		if row.Approximate {
			valuation.Approximate = true
		}
	}

	cash, _ := p.CashBalance.Float64()
	cashConverted, ok := s.convert(ctx, cash, p.BaseCurrency, displayCurrency)
	if !ok {
		valuation.Approximate = true
	}
	valuation.CashBalance = cashConverted
	valuation.TotalValue += cashConverted

	return valuation, nil
}

// valueHolding builds one row. Realized/unrealized stay in the native
// currency; market value is additionally converted to display.
func (s *Service) valueHolding(ctx context.Context, h *models.Holding, displayCurrency string) models.HoldingValuation {
	row := models.HoldingValuation{
		Symbol:         h.Symbol,
		DisplayName:    h.DisplayName,
		NativeCurrency: h.NativeCurrency,
	}

	quote, err := s.market.FetchCurrentPrice(ctx, h.Symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", h.Symbol).Msg("No price for holding, valuing at zero")
		row.PnL = ComputePnL(h.Lots, 0)
		row.Approximate = true
		return row
	}

	row.CurrentPrice = quote.Last
	row.PriceFromCache = quote.FromCache
	row.PriceStale = quote.Stale
	row.PnL = ComputePnL(h.Lots, quote.Last)
	row.MarketValue = row.PnL.NetQty * quote.Last

	converted, ok := s.convert(ctx, row.MarketValue, h.NativeCurrency, displayCurrency)
	row.MarketValueBase = converted
	if !ok || quote.Stale {
		row.Approximate = true
	}
	return row
}

// convert goes through the gateway so rates land in the shared cache.
// The degraded identity fallback reports ok false.
func (s *Service) convert(ctx context.Context, amount float64, from, to string) (float64, bool) {
	if from == to || amount == 0 {
		return amount, true
	}
	snap, err := s.market.FetchFxRate(ctx, from, to)
	if err != nil {
		return amount, false
	}
	return amount * snap.Rate, !snap.Degraded
}

// Series reconstructs the combined daily value of one or more
// portfolios in the display currency. Bars are fetched per held symbol
// with a range wide enough to cover the earliest lot; FX uses today's
// rates across the whole series.
func (s *Service) Series(ctx context.Context, portfolioIDs []string, displayCurrency string) ([]models.SeriesPoint, error) {
	if len(portfolioIDs) == 0 {
		return nil, fmt.Errorf("at least one portfolio is required")
	}

	portfolios := make([]*models.Portfolio, 0, len(portfolioIDs))
	for _, id := range portfolioIDs {
		p, err := s.ledger.GetPortfolio(ctx, id)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}
	if displayCurrency == "" {
		displayCurrency = portfolios[0].BaseCurrency
	}

	now := s.now()
	earliest := earliestEventDate(portfolios, true)
	rng := rangeCovering(earliest, now)

	bars := make(map[string][]models.Bar)
	currencies := make(map[string]bool)
	for _, p := range portfolios {
		currencies[p.BaseCurrency] = true
		for _, h := range p.Holdings {
			currencies[h.NativeCurrency] = true
			if len(h.Lots) == 0 {
				continue
			}
			if _, done := bars[h.Symbol]; done {
				continue
			}
			b, err := s.market.FetchHistoricalBars(ctx, h.Symbol, rng)
			if err != nil {
				s.logger.Warn().Err(err).Str("symbol", h.Symbol).Msg("No bars for series, holding will be skipped")
				continue
			}
			bars[h.Symbol] = b
		}
	}

	rates := make(RateTable)
	for ccy := range currencies {
		if ccy == displayCurrency {
			continue
		}
		snap, err := s.market.FetchFxRate(ctx, ccy, displayCurrency)
		if err != nil || snap.Degraded {
			continue
		}
		rates[snap.Pair()] = snap.Rate
	}

	points := ReconstructSeries(SeriesInput{
		Portfolios:      portfolios,
		Bars:            bars,
		Rates:           rates,
		DisplayCurrency: displayCurrency,
		Now:             now,
	}, SeriesOptions{IncludeCash: true})

	s.logger.Info().
		Int("portfolios", len(portfolios)).
		Int("points", len(points)).
		Str("display_currency", displayCurrency).
		Msg("Series reconstructed")

	return points, nil
}

// rangeCovering picks the smallest bar range that reaches back to the
// earliest event.
func rangeCovering(earliest, now time.Time) models.BarRange {
	if earliest.IsZero() {
		return models.RangeYear
	}
	for _, r := range []models.BarRange{models.RangeMonth, models.RangeQuarter, models.RangeYear, models.RangeTwoYears} {
		if !r.Start(now).After(earliest) {
			return r
		}
	}
	return models.RangeMax
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Ensure Service implements ValuationService
var _ interfaces.ValuationService = (*Service)(nil)
