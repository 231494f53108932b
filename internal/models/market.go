// Package models defines data structures for Folio
package models

import (
	"time"
)

// Quote holds the latest known market state for a symbol. Ephemeral:
// held in process memory plus the rate cache, never persisted as ledger
// truth.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Last      float64   `json:"last"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
	AsOf      time.Time `json:"as_of"`
	Line      []float64 `json:"line,omitempty"` // short recent closes for sparkline use
	Bars      []Bar     `json:"bars,omitempty"`
	Source    string    `json:"source,omitempty"`
	FromCache bool      `json:"from_cache,omitempty"`
	Stale     bool      `json:"stale,omitempty"`
}

// Bar represents a single day's OHLCV price data.
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// BarRange selects how much daily history to fetch.
type BarRange string

const (
	RangeMonth    BarRange = "1m"
	RangeQuarter  BarRange = "3m"
	RangeYear     BarRange = "1y"
	RangeTwoYears BarRange = "2y"
	RangeMax      BarRange = "max"
)

// Start returns the inclusive start date for the range relative to now.
func (r BarRange) Start(now time.Time) time.Time {
	switch r {
	case RangeMonth:
		return now.AddDate(0, -1, 0)
	case RangeQuarter:
		return now.AddDate(0, -3, 0)
	case RangeYear:
		return now.AddDate(-1, 0, 0)
	case RangeTwoYears:
		return now.AddDate(-2, 0, 0)
	default:
		return now.AddDate(-10, 0, 0)
	}
}

// FxRateSnapshot records one fetched FX cross-rate: 1 unit of From buys
// Rate units of To.
type FxRateSnapshot struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rate      float64   `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
	Degraded  bool      `json:"degraded,omitempty"` // identity fallback, not a real market rate
	FromCache bool      `json:"from_cache,omitempty"`
}

// Pair returns the canonical "FROM_TO" pair key.
func (s FxRateSnapshot) Pair() string {
	return s.From + "_" + s.To
}

// Fundamentals carries opportunistically-fetched company metadata. A
// failed fundamentals fetch never fails the bar fetch that triggered it.
type Fundamentals struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Sector        string    `json:"sector,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	MarketCap     float64   `json:"market_cap,omitempty"`
	PE            float64   `json:"pe_ratio,omitempty"`
	DividendYield float64   `json:"dividend_yield,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}
