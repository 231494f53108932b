package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bobmcallan/folio/internal/models"
)

// maxConcurrentFetches bounds the per-batch provider fan-out.
const maxConcurrentFetches = 5

// RefreshQuotes fetches current prices for a batch of symbols
// concurrently. A failed symbol keeps its previous in-memory quote and
// does not abort the rest of the batch; the joined per-symbol errors
// come back to the caller. Quotes landing from an older batch never
// overwrite those stored by a newer one.
func (s *Service) RefreshQuotes(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	sem := make(chan struct{}, maxConcurrentFetches)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, symbol := range symbols {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			quote, err := s.fetchForBatch(ctx, symbol)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
				mu.Unlock()
				return
			}
			s.storeQuote(quote, gen)
		}(symbol)
	}

	wg.Wait()

	if len(errs) > 0 {
		s.logger.Warn().
			Int("failed", len(errs)).
			Int("total", len(symbols)).
			Msg("Quote refresh completed with errors")
		return errors.Join(errs...)
	}

	return nil
}

// fetchForBatch resolves one symbol for a refresh batch: fresh cache,
// then chain, then stale cache.
func (s *Service) fetchForBatch(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = normalizeSymbol(symbol)
	var cached models.Quote
	found, fresh := s.cache.GetJSON(models.TTLCurrentPrice, symbol, &cached)
	if found && fresh {
		cached.FromCache = true
		return &cached, nil
	}

	quote, err := s.quoteFromChain(ctx, symbol)
	if err == nil {
		if cacheErr := s.cache.Put(ctx, models.TTLCurrentPrice, symbol, quote); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Str("symbol", symbol).Msg("Failed to cache quote")
		}
		return quote, nil
	}

	if found {
		cached.FromCache = true
		cached.Stale = true
		return &cached, nil
	}

	return nil, fmt.Errorf("%w: %v", models.ErrNoDataAvailable, err)
}
