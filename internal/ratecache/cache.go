// Package ratecache provides the TTL-tiered cache fronting all
// externally-sourced price and FX data.
package ratecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// TTLFor returns the freshness window for a data class.
func TTLFor(class models.TTLClass) time.Duration {
	switch class {
	case models.TTLCurrentPrice:
		return common.FreshnessCurrentPrice
	case models.TTLFxRate:
		return common.FreshnessFxRate
	case models.TTLHistoricalBars:
		return common.FreshnessHistoricalBars
	default:
		return common.FreshnessCurrentPrice
	}
}

// EntryKey builds the deterministic physical key for a (class, key)
// pair so multiple logical caches share one store without collision.
func EntryKey(class models.TTLClass, key string) string {
	return string(class) + ":" + key
}

// Cache is the in-memory rate cache with durable spill. Reads never
// touch the durable store; it is consulted once via Warm at startup and
// written through asynchronously on Put. The cache itself never decides
// to serve stale data; freshness is reported and the gateway fallback
// policy does the rest.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*models.CacheEntry

	store  interfaces.CacheStore // nil for memory-only operation
	logger *common.Logger
	now    func() time.Time // injectable clock for testing
}

// New creates a cache. store may be nil, in which case entries live only
// in process memory.
func New(store interfaces.CacheStore, logger *common.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*models.CacheEntry),
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Warm loads all durable entries into memory. Called once at process
// start; load failures are logged and leave the cache cold rather than
// failing startup.
func (c *Cache) Warm(ctx context.Context) {
	if c.store == nil {
		return
	}

	start := c.now()
	entries, err := c.store.List(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Rate cache warm failed, starting cold")
		return
	}

	c.mu.Lock()
	for _, e := range entries {
		c.entries[EntryKey(e.Class, e.Key)] = e
	}
	c.mu.Unlock()

	c.logger.Info().
		Int("entries", len(entries)).
		Dur("elapsed", time.Since(start)).
		Msg("Rate cache warmed")
}

// Get returns the entry for (class, key) regardless of freshness.
func (c *Cache) Get(class models.TTLClass, key string) (*models.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[EntryKey(class, key)]
	return e, ok
}

// GetJSON unmarshals the cached payload for (class, key) into v and
// reports whether the entry existed and whether it is fresh.
func (c *Cache) GetJSON(class models.TTLClass, key string, v interface{}) (found, fresh bool) {
	e, ok := c.Get(class, key)
	if !ok {
		return false, false
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Corrupt cache payload, treating as miss")
		return false, false
	}
	return true, c.Fresh(e)
}

// Put stores payload under (class, key), stamping FetchedAt now. The
// durable write happens on a separate goroutine so it cannot block the
// read path.
func (c *Cache) Put(ctx context.Context, class models.TTLClass, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload for %s: %w", key, err)
	}

	entry := &models.CacheEntry{
		Class:     class,
		Key:       key,
		Payload:   data,
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	c.entries[EntryKey(class, key)] = entry
	c.mu.Unlock()

	if c.store != nil {
		go func() {
			if err := c.store.Put(context.WithoutCancel(ctx), entry); err != nil {
				c.logger.Warn().Err(err).Str("key", key).Msg("Durable cache write failed")
			}
		}()
	}

	return nil
}

// Fresh reports whether the entry is within its class TTL.
func (c *Cache) Fresh(entry *models.CacheEntry) bool {
	if entry == nil {
		return false
	}
	return common.IsFreshAt(c.now(), entry.FetchedAt, TTLFor(entry.Class))
}

// Age returns how long ago the entry was fetched.
func (c *Cache) Age(entry *models.CacheEntry) time.Duration {
	if entry == nil || entry.FetchedAt.IsZero() {
		return 0
	}
	return c.now().Sub(entry.FetchedAt)
}

// Clear drops every entry of the given class from memory and the
// durable store. Returns the in-memory count removed.
func (c *Cache) Clear(ctx context.Context, class models.TTLClass) int {
	c.mu.Lock()
	removed := 0
	for k, e := range c.entries {
		if e.Class == class {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		if _, err := c.store.DeleteClass(ctx, class); err != nil {
			c.logger.Warn().Err(err).Str("class", string(class)).Msg("Durable cache class eviction failed")
		}
	}

	c.logger.Info().Str("class", string(class)).Int("removed", removed).Msg("Rate cache class cleared")
	return removed
}

// SetClock overrides the cache clock. Test hook.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}
