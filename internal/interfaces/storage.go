// Package interfaces defines service contracts for Folio
package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// StorageManager coordinates the durable storage backends.
type StorageManager interface {
	LedgerStore() LedgerStore
	CacheStore() CacheStore

	// Lifecycle
	Close() error
}

// LedgerStore persists the single ledger record, the source of truth
// for holdings, portfolios, and cash state. Save rewrites the whole
// record; no partial patch format is assumed.
type LedgerStore interface {
	// Load returns the persisted record. A missing record yields an
	// empty one, nil error. A corrupt record yields an empty one plus
	// an error wrapping models.ErrMalformedLedgerState.
	Load(ctx context.Context) (*models.LedgerRecord, error)

	Save(ctx context.Context, record *models.LedgerRecord) error
}

// CacheStore is the durable spill for the rate cache. One entry per
// (class, key) pair, evictable by data class without touching the
// ledger.
type CacheStore interface {
	Get(ctx context.Context, class models.TTLClass, key string) (*models.CacheEntry, error)
	Put(ctx context.Context, entry *models.CacheEntry) error
	List(ctx context.Context) ([]*models.CacheEntry, error)
	DeleteClass(ctx context.Context, class models.TTLClass) (int, error)
}
