// Package storage wires the durable backends behind the StorageManager
// contract.
package storage

import (
	"fmt"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/storage/badger"
)

// Manager owns the BadgerHold stores for the ledger record and the rate
// cache spill. The two live in separate directories so the cache can be
// wiped without touching ledger truth.
type Manager struct {
	ledgerDB *badger.Store
	cacheDB  *badger.Store

	ledgerStore interfaces.LedgerStore
	cacheStore  interfaces.CacheStore

	logger *common.Logger
}

// NewStorageManager opens both storage areas per config.
func NewStorageManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ledgerDB, err := badger.NewStore(logger, config.Storage.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger storage: %w", err)
	}

	cacheDB, err := badger.NewStore(logger, config.Storage.Cache.Path)
	if err != nil {
		ledgerDB.Close()
		return nil, fmt.Errorf("failed to open cache storage: %w", err)
	}

	return &Manager{
		ledgerDB:    ledgerDB,
		cacheDB:     cacheDB,
		ledgerStore: badger.NewLedgerStore(ledgerDB, logger),
		cacheStore:  badger.NewCacheStore(cacheDB, logger),
		logger:      logger,
	}, nil
}

// LedgerStore returns the durable ledger record store.
func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.ledgerStore
}

// CacheStore returns the durable rate cache store.
func (m *Manager) CacheStore() interfaces.CacheStore {
	return m.cacheStore
}

// Close closes both databases.
func (m *Manager) Close() error {
	var firstErr error
	if err := m.ledgerDB.Close(); err != nil {
		firstErr = err
	}
	if err := m.cacheDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Ensure Manager implements StorageManager
var _ interfaces.StorageManager = (*Manager)(nil)
