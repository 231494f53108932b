// Package models defines data structures for Folio
package models

import (
	"encoding/json"
	"time"
)

// LedgerSchemaVersion is embedded in the durable ledger key. Bumping it
// orphans old records rather than risking a partial migration read.
const LedgerSchemaVersion = 2

// LedgerRecord is the single durable document holding all ledger truth:
// holdings, portfolios, and watchlists. It is rewritten whole on every
// mutating call.
type LedgerRecord struct {
	Version    int                   `json:"version"`
	Portfolios map[string]*Portfolio `json:"portfolios"`
	Watchlists map[string][]string   `json:"watchlists,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// NewLedgerRecord returns an empty record at the current schema version.
func NewLedgerRecord() *LedgerRecord {
	return &LedgerRecord{
		Version:    LedgerSchemaVersion,
		Portfolios: make(map[string]*Portfolio),
		Watchlists: make(map[string][]string),
	}
}

// Portfolio returns the portfolio with the given ID, or nil.
func (r *LedgerRecord) Portfolio(id string) *Portfolio {
	if r.Portfolios == nil {
		return nil
	}
	return r.Portfolios[id]
}

// TTLClass identifies the staleness tier of a cached payload.
type TTLClass string

const (
	TTLCurrentPrice   TTLClass = "current_price"
	TTLFxRate         TTLClass = "fx_rate"
	TTLHistoricalBars TTLClass = "historical_bars"
)

// CacheEntry is one cached payload plus the metadata needed for TTL
// decisions. Payload is the JSON encoding of the cached value so one
// physical store can carry quotes, bars, and FX rates without collision.
type CacheEntry struct {
	Class     TTLClass        `json:"class"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}
