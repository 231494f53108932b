package marketdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/models"
)

// pivotCurrency is the intermediate for synthesized cross-rates when no
// provider quotes the direct pair.
const pivotCurrency = "USD"

// FetchFxRate returns the cross-rate from one currency to another.
// Resolution order: identity, fresh cache, direct pair from the chain,
// two-hop synthesis via USD, and finally a degraded identity rate. The
// degraded fallback is never cached so the next call retries properly.
func (s *Service) FetchFxRate(ctx context.Context, from, to string) (models.FxRateSnapshot, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return models.FxRateSnapshot{From: from, To: to, Rate: 1.0, FetchedAt: s.now()}, nil
	}

	pair := from + "_" + to

	var cached models.FxRateSnapshot
	found, fresh := s.cache.GetJSON(models.TTLFxRate, pair, &cached)
	if found && fresh {
		cached.FromCache = true
		s.storeRate(cached)
		return cached, nil
	}

	if rate, err := s.rateFromChain(ctx, from, to); err == nil {
		snap := models.FxRateSnapshot{From: from, To: to, Rate: rate, FetchedAt: s.now()}
		s.putRate(ctx, snap)
		return snap, nil
	}

	if rate, err := s.synthesizeRate(ctx, from, to); err == nil {
		snap := models.FxRateSnapshot{From: from, To: to, Rate: rate, FetchedAt: s.now()}
		s.putRate(ctx, snap)
		return snap, nil
	}

	if found {
		s.logger.Warn().
			Str("pair", pair).
			Time("fetched_at", cached.FetchedAt).
			Msg("All FX sources failed, serving stale cached rate")
		cached.FromCache = true
		s.storeRate(cached)
		return cached, nil
	}

	s.logger.Warn().
		Str("pair", pair).
		Msg("No FX rate available, degrading to identity")
	return models.FxRateSnapshot{From: from, To: to, Rate: 1.0, FetchedAt: s.now(), Degraded: true}, nil
}

// rateFromChain asks each provider for the direct pair.
func (s *Service) rateFromChain(ctx context.Context, from, to string) (float64, error) {
	var lastErr error
	for _, p := range s.providers {
		rate, err := p.GetFxRate(ctx, from, to)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("provider", p.Name()).
				Str("pair", from+"_"+to).
				Msg("Provider FX fetch failed, trying next")
			lastErr = err
			continue
		}
		return rate, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no providers configured", models.ErrProviderUnavailable)
	}
	return 0, lastErr
}

// synthesizeRate builds from->to as from->USD times USD->to. Each hop
// checks the cache before hitting the chain. The product is cached by
// the caller under the original pair.
func (s *Service) synthesizeRate(ctx context.Context, from, to string) (float64, error) {
	if from == pivotCurrency || to == pivotCurrency {
		return 0, fmt.Errorf("%w: direct pivot pair already failed", models.ErrConversionUnavailable)
	}

	hop1, err := s.hopRate(ctx, from, pivotCurrency)
	if err != nil {
		return 0, fmt.Errorf("%w: %s->%s leg: %v", models.ErrConversionUnavailable, from, pivotCurrency, err)
	}
	hop2, err := s.hopRate(ctx, pivotCurrency, to)
	if err != nil {
		return 0, fmt.Errorf("%w: %s->%s leg: %v", models.ErrConversionUnavailable, pivotCurrency, to, err)
	}

	rate := hop1 * hop2
	s.logger.Info().
		Str("pair", from+"_"+to).
		Float64("rate", rate).
		Msg("Synthesized FX rate via USD")
	return rate, nil
}

// hopRate resolves one leg of a synthesis, cache first.
func (s *Service) hopRate(ctx context.Context, from, to string) (float64, error) {
	var cached models.FxRateSnapshot
	found, fresh := s.cache.GetJSON(models.TTLFxRate, from+"_"+to, &cached)
	if found && fresh {
		return cached.Rate, nil
	}

	rate, err := s.rateFromChain(ctx, from, to)
	if err != nil {
		return 0, err
	}
	s.putRate(ctx, models.FxRateSnapshot{From: from, To: to, Rate: rate, FetchedAt: s.now()})
	return rate, nil
}

// putRate caches a snapshot and records it in the in-memory rate table.
func (s *Service) putRate(ctx context.Context, snap models.FxRateSnapshot) {
	if err := s.cache.Put(ctx, models.TTLFxRate, snap.Pair(), snap); err != nil {
		s.logger.Warn().Err(err).Str("pair", snap.Pair()).Msg("Failed to cache FX rate")
	}
	s.storeRate(snap)
}

func (s *Service) storeRate(snap models.FxRateSnapshot) {
	s.mu.Lock()
	s.rates[snap.Pair()] = snap
	s.mu.Unlock()
}

// RateTable snapshots every FX rate seen this process lifetime, keyed
// by "FROM_TO". Degraded identity rates never appear here.
func (s *Service) RateTable() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table := make(map[string]float64, len(s.rates))
	for pair, snap := range s.rates {
		table[pair] = snap.Rate
	}
	return table
}
