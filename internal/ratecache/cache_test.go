package ratecache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// memCacheStore is an in-memory CacheStore for testing durable behavior.
type memCacheStore struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
}

func newMemCacheStore() *memCacheStore {
	return &memCacheStore{entries: make(map[string]*models.CacheEntry)}
}

func (s *memCacheStore) Get(_ context.Context, class models.TTLClass, key string) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[EntryKey(class, key)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return e, nil
}

func (s *memCacheStore) Put(_ context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[EntryKey(entry.Class, entry.Key)] = entry
	return nil
}

func (s *memCacheStore) List(_ context.Context) ([]*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.CacheEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

func (s *memCacheStore) DeleteClass(_ context.Context, class models.TTLClass) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.Class == class {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(nil, common.NewSilentLogger())
	c.SetClock(func() time.Time { return now })
	return c, &now
}

func TestCache_FreshAfterPut_StaleAfterTTL(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, models.TTLCurrentPrice, "BHP.AU", 42.5); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, ok := c.Get(models.TTLCurrentPrice, "BHP.AU")
	if !ok {
		t.Fatal("Get missed immediately after Put")
	}
	if !c.Fresh(entry) {
		t.Error("entry stale immediately after Put, want fresh")
	}

	// advance past the 5 minute price TTL
	*now = now.Add(6 * time.Minute)
	if c.Fresh(entry) {
		t.Error("entry fresh after TTL elapsed, want stale")
	}
}

func TestCache_TTLPerClass(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, models.TTLCurrentPrice, "k", 1.0)
	c.Put(ctx, models.TTLFxRate, "k", 1.0)
	c.Put(ctx, models.TTLHistoricalBars, "k", 1.0)

	*now = now.Add(30 * time.Minute)

	price, _ := c.Get(models.TTLCurrentPrice, "k")
	fx, _ := c.Get(models.TTLFxRate, "k")
	bars, _ := c.Get(models.TTLHistoricalBars, "k")

	if c.Fresh(price) {
		t.Error("price entry fresh after 30m, want stale (5m TTL)")
	}
	if !c.Fresh(fx) {
		t.Error("fx entry stale after 30m, want fresh (1h TTL)")
	}
	if !c.Fresh(bars) {
		t.Error("bars entry stale after 30m, want fresh (24h TTL)")
	}
}

func TestCache_KeysDoNotCollideAcrossClasses(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, models.TTLCurrentPrice, "EUR_USD", 1.0)
	c.Put(ctx, models.TTLFxRate, "EUR_USD", 1.08)

	var rate float64
	found, _ := c.GetJSON(models.TTLFxRate, "EUR_USD", &rate)
	if !found {
		t.Fatal("fx entry missing")
	}
	if rate != 1.08 {
		t.Errorf("fx payload = %v, want 1.08 (price class entry must not shadow it)", rate)
	}
}

func TestCache_GetJSONRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	in := models.Quote{Symbol: "AAPL.US", Last: 210.55, Source: "eodhd"}
	if err := c.Put(ctx, models.TTLCurrentPrice, "AAPL.US", in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var out models.Quote
	found, fresh := c.GetJSON(models.TTLCurrentPrice, "AAPL.US", &out)
	if !found || !fresh {
		t.Fatalf("GetJSON found=%v fresh=%v, want true/true", found, fresh)
	}
	if out.Last != 210.55 || out.Symbol != "AAPL.US" {
		t.Errorf("round-trip quote = %+v", out)
	}
}

func TestCache_WarmLoadsDurableEntries(t *testing.T) {
	store := newMemCacheStore()
	store.Put(context.Background(), &models.CacheEntry{
		Class:     models.TTLFxRate,
		Key:       "SGD_USD",
		Payload:   []byte(`0.74`),
		FetchedAt: time.Now(),
	})

	c := New(store, common.NewSilentLogger())
	c.Warm(context.Background())

	var rate float64
	found, _ := c.GetJSON(models.TTLFxRate, "SGD_USD", &rate)
	if !found {
		t.Fatal("warmed entry missing from memory")
	}
	if rate != 0.74 {
		t.Errorf("warmed rate = %v, want 0.74", rate)
	}
}

func TestCache_ClearByClass(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Put(ctx, models.TTLFxRate, "EUR_USD", 1.08)
	c.Put(ctx, models.TTLFxRate, "SGD_USD", 0.74)
	c.Put(ctx, models.TTLCurrentPrice, "BHP.AU", 45.0)

	removed := c.Clear(ctx, models.TTLFxRate)
	if removed != 2 {
		t.Errorf("Clear removed %d entries, want 2", removed)
	}

	if _, ok := c.Get(models.TTLFxRate, "EUR_USD"); ok {
		t.Error("fx entry survived Clear")
	}
	if _, ok := c.Get(models.TTLCurrentPrice, "BHP.AU"); !ok {
		t.Error("price entry removed by fx Clear")
	}
}
