package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// cacheDoc is one durable rate-cache entry, keyed by "<class>:<key>".
type cacheDoc struct {
	Key       string `badgerhold:"key"`
	Class     string `badgerholdIndex:"Class"`
	EntryKey  string
	Payload   []byte
	FetchedAt time.Time
}

type cacheStore struct {
	store  *Store
	logger *common.Logger
}

// NewCacheStore creates a CacheStore backed by BadgerHold.
func NewCacheStore(store *Store, logger *common.Logger) *cacheStore {
	return &cacheStore{store: store, logger: logger}
}

func cacheDocKey(class models.TTLClass, key string) string {
	return string(class) + ":" + key
}

func (s *cacheStore) Get(_ context.Context, class models.TTLClass, key string) (*models.CacheEntry, error) {
	var doc cacheDoc
	err := s.store.db.Get(cacheDocKey(class, key), &doc)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cache entry '%s': %w", key, err)
	}
	return docToEntry(&doc), nil
}

func (s *cacheStore) Put(_ context.Context, entry *models.CacheEntry) error {
	doc := cacheDoc{
		Key:       cacheDocKey(entry.Class, entry.Key),
		Class:     string(entry.Class),
		EntryKey:  entry.Key,
		Payload:   entry.Payload,
		FetchedAt: entry.FetchedAt,
	}
	if err := s.store.db.Upsert(doc.Key, &doc); err != nil {
		return fmt.Errorf("failed to put cache entry '%s': %w", entry.Key, err)
	}
	return nil
}

func (s *cacheStore) List(_ context.Context) ([]*models.CacheEntry, error) {
	var docs []cacheDoc
	if err := s.store.db.Find(&docs, nil); err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}

	entries := make([]*models.CacheEntry, len(docs))
	for i := range docs {
		entries[i] = docToEntry(&docs[i])
	}
	return entries, nil
}

// DeleteClass evicts every entry of a data class, leaving other classes
// and the ledger untouched.
func (s *cacheStore) DeleteClass(_ context.Context, class models.TTLClass) (int, error) {
	var docs []cacheDoc
	query := badgerhold.Where("Class").Eq(string(class))
	if err := s.store.db.Find(&docs, query); err != nil {
		return 0, fmt.Errorf("failed to find cache entries for class '%s': %w", class, err)
	}

	deleted := 0
	for i := range docs {
		if err := s.store.db.Delete(docs[i].Key, cacheDoc{}); err != nil && err != badgerhold.ErrNotFound {
			return deleted, fmt.Errorf("failed to delete cache entry '%s': %w", docs[i].Key, err)
		}
		deleted++
	}
	return deleted, nil
}

func docToEntry(doc *cacheDoc) *models.CacheEntry {
	return &models.CacheEntry{
		Class:     models.TTLClass(doc.Class),
		Key:       doc.EntryKey,
		Payload:   doc.Payload,
		FetchedAt: doc.FetchedAt,
	}
}
