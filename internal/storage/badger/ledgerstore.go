package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// ledgerDoc is the stored row: the whole ledger record JSON under a
// versioned key. Storing JSON rather than the struct keeps old schema
// rows readable enough to detect corruption explicitly.
type ledgerDoc struct {
	Key       string `badgerhold:"key"`
	Data      []byte
	UpdatedAt time.Time
}

func ledgerKey() string {
	return fmt.Sprintf("ledger:v%d", models.LedgerSchemaVersion)
}

type ledgerStore struct {
	store  *Store
	logger *common.Logger
}

// NewLedgerStore creates a LedgerStore backed by BadgerHold.
func NewLedgerStore(store *Store, logger *common.Logger) *ledgerStore {
	return &ledgerStore{store: store, logger: logger}
}

// Load reads the persisted ledger record. Missing records yield an empty
// ledger. A record that fails to decode also yields an empty ledger, but
// with an error wrapping models.ErrMalformedLedgerState so the caller
// can report the condition instead of crashing startup.
func (s *ledgerStore) Load(_ context.Context) (*models.LedgerRecord, error) {
	var doc ledgerDoc
	err := s.store.db.Get(ledgerKey(), &doc)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return models.NewLedgerRecord(), nil
		}
		return models.NewLedgerRecord(), fmt.Errorf("failed to load ledger record: %w", err)
	}

	var record models.LedgerRecord
	if err := json.Unmarshal(doc.Data, &record); err != nil {
		s.logger.Error().Err(err).Str("key", doc.Key).Msg("Ledger record corrupt, recovering to empty state")
		return models.NewLedgerRecord(), fmt.Errorf("%w: %v", models.ErrMalformedLedgerState, err)
	}

	if record.Portfolios == nil {
		record.Portfolios = make(map[string]*models.Portfolio)
	}
	if record.Watchlists == nil {
		record.Watchlists = make(map[string][]string)
	}

	return &record, nil
}

// Save rewrites the whole ledger record.
func (s *ledgerStore) Save(_ context.Context, record *models.LedgerRecord) error {
	record.UpdatedAt = time.Now()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	doc := ledgerDoc{
		Key:       ledgerKey(),
		Data:      data,
		UpdatedAt: record.UpdatedAt,
	}
	if err := s.store.db.Upsert(doc.Key, &doc); err != nil {
		return fmt.Errorf("failed to save ledger record: %w", err)
	}
	return nil
}
