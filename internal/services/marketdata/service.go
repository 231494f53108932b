// Package marketdata provides the gateway for externally-sourced market
// data: a provider fallback chain fronted by the TTL rate cache.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/ratecache"
)

// Service implements MarketDataService. Providers are tried in chain
// order; the first success wins and later providers are not consulted.
type Service struct {
	providers    []interfaces.MarketDataProvider
	fundamentals interfaces.FundamentalsProvider // optional enrichment source
	cache        *ratecache.Cache
	logger       *common.Logger
	now          func() time.Time // injectable clock for testing

	mu       sync.RWMutex
	quotes   map[string]*models.Quote
	quoteGen map[string]uint64
	rates    map[string]models.FxRateSnapshot
	gen      uint64 // batch generation, guarded by mu
}

// NewService creates the gateway. fundamentals may be nil, in which case
// bar fetches skip metadata enrichment.
func NewService(providers []interfaces.MarketDataProvider, fundamentals interfaces.FundamentalsProvider, cache *ratecache.Cache, logger *common.Logger) *Service {
	return &Service{
		providers:    providers,
		fundamentals: fundamentals,
		cache:        cache,
		logger:       logger,
		now:          time.Now,
		quotes:       make(map[string]*models.Quote),
		quoteGen:     make(map[string]uint64),
		rates:        make(map[string]models.FxRateSnapshot),
	}
}

// FetchCurrentPrice returns the current quote for a symbol. A fresh
// cache entry short-circuits the provider chain entirely. When every
// provider fails, the last cached quote is served flagged stale; with
// no cache at all the call fails with ErrNoDataAvailable.
func (s *Service) FetchCurrentPrice(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = normalizeSymbol(symbol)
	var cached models.Quote
	found, fresh := s.cache.GetJSON(models.TTLCurrentPrice, symbol, &cached)
	if found && fresh {
		cached.FromCache = true
		s.storeQuote(&cached, 0)
		return &cached, nil
	}

	quote, err := s.quoteFromChain(ctx, symbol)
	if err == nil {
		if cacheErr := s.cache.Put(ctx, models.TTLCurrentPrice, symbol, quote); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Str("symbol", symbol).Msg("Failed to cache quote")
		}
		s.storeQuote(quote, 0)
		return quote, nil
	}

	if found {
		s.logger.Warn().
			Err(err).
			Str("symbol", symbol).
			Time("fetched_at", cached.AsOf).
			Msg("All providers failed, serving stale cached quote")
		cached.FromCache = true
		cached.Stale = true
		return &cached, nil
	}

	return nil, fmt.Errorf("%w: no provider or cache could serve %s: %v", models.ErrNoDataAvailable, symbol, err)
}

// quoteFromChain walks the provider chain until one succeeds.
func (s *Service) quoteFromChain(ctx context.Context, symbol string) (*models.Quote, error) {
	var errs []error
	for _, p := range s.providers {
		quote, err := p.GetQuote(ctx, symbol)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("provider", p.Name()).
				Str("symbol", symbol).
				Msg("Provider quote fetch failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		return quote, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", models.ErrProviderUnavailable)
	}
	return nil, errors.Join(errs...)
}

// FetchHistoricalBars returns daily bars for the range, cached for 24
// hours per (symbol, range). A successful fetch opportunistically
// refreshes fundamentals in the background; that enrichment can never
// fail the bar fetch.
func (s *Service) FetchHistoricalBars(ctx context.Context, symbol string, rng models.BarRange) ([]models.Bar, error) {
	symbol = normalizeSymbol(symbol)
	key := symbol + "_" + string(rng)

	var cached []models.Bar
	found, fresh := s.cache.GetJSON(models.TTLHistoricalBars, key, &cached)
	if found && fresh {
		return cached, nil
	}

	now := s.now()
	bars, err := s.barsFromChain(ctx, symbol, rng.Start(now), now)
	if err != nil {
		if found {
			s.logger.Warn().
				Err(err).
				Str("symbol", symbol).
				Msg("All providers failed, serving stale cached bars")
			return cached, nil
		}
		return nil, fmt.Errorf("%w: no provider or cache could serve bars for %s: %v", models.ErrNoDataAvailable, symbol, err)
	}

	if cacheErr := s.cache.Put(ctx, models.TTLHistoricalBars, key, bars); cacheErr != nil {
		s.logger.Warn().Err(cacheErr).Str("symbol", symbol).Msg("Failed to cache bars")
	}

	s.refreshFundamentals(ctx, symbol)
	s.attachSparkline(symbol, bars)

	return bars, nil
}

// attachSparkline copies the most recent closes onto the in-memory
// quote for sparkline rendering.
func (s *Service) attachSparkline(symbol string, bars []models.Bar) {
	const sparklinePoints = 30

	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return
	}
	start := 0
	if len(bars) > sparklinePoints {
		start = len(bars) - sparklinePoints
	}
	line := make([]float64, 0, len(bars)-start)
	for _, b := range bars[start:] {
		line = append(line, b.Close)
	}
	q.Line = line
}

func (s *Service) barsFromChain(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	var errs []error
	for _, p := range s.providers {
		bars, err := p.GetBars(ctx, symbol, from, to)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("provider", p.Name()).
				Str("symbol", symbol).
				Msg("Provider bar fetch failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		return bars, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", models.ErrProviderUnavailable)
	}
	return nil, errors.Join(errs...)
}

// refreshFundamentals fetches company metadata in the background when a
// fundamentals provider is wired and the cached copy has gone stale.
func (s *Service) refreshFundamentals(ctx context.Context, symbol string) {
	if s.fundamentals == nil {
		return
	}

	var cached models.Fundamentals
	found, _ := s.cache.GetJSON(models.TTLHistoricalBars, "fundamentals_"+symbol, &cached)
	if found && common.IsFreshAt(s.now(), cached.LastUpdated, common.FreshnessFundamentals) {
		return
	}

	go func() {
		bg := context.WithoutCancel(ctx)
		f, err := s.fundamentals.GetFundamentals(bg, symbol)
		if err != nil {
			s.logger.Debug().Err(err).Str("symbol", symbol).Msg("Fundamentals enrichment failed")
			return
		}
		if err := s.cache.Put(bg, models.TTLHistoricalBars, "fundamentals_"+symbol, f); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache fundamentals")
		}
	}()
}

// normalizeSymbol canonicalizes a ticker for cache keys and the quote
// map. The ledger stores symbols the same way.
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote returns the in-memory quote for a symbol, if one has been
// fetched this process lifetime.
func (s *Service) Quote(symbol string) (*models.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[normalizeSymbol(symbol)]
	return q, ok
}

// storeQuote records a fetched quote in the in-memory map. gen carries
// the refresh batch generation; a quote from an older batch never
// replaces one already stored by a newer batch. gen 0 marks a direct
// fetch, which always wins.
func (s *Service) storeQuote(quote *models.Quote, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != 0 && s.quoteGen[quote.Symbol] > gen {
		return
	}
	s.quotes[quote.Symbol] = quote
	if gen != 0 {
		s.quoteGen[quote.Symbol] = gen
	} else {
		s.quoteGen[quote.Symbol] = s.gen
	}
}

// SetClock overrides the service clock. Test hook.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Ensure Service implements MarketDataService
var _ interfaces.MarketDataService = (*Service)(nil)
