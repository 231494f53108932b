// Package models defines data structures for Folio
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentClass categorizes a held instrument.
type InstrumentClass string

const (
	ClassEquity InstrumentClass = "equity"
	ClassBond   InstrumentClass = "bond"
	ClassCrypto InstrumentClass = "crypto"
	ClassFund   InstrumentClass = "fund"
	ClassETF    InstrumentClass = "etf"
)

// validInstrumentClasses lists all accepted instrument classes.
var validInstrumentClasses = map[InstrumentClass]bool{
	ClassEquity: true,
	ClassBond:   true,
	ClassCrypto: true,
	ClassFund:   true,
	ClassETF:    true,
}

// ValidInstrumentClass returns true if c is a valid instrument class.
func ValidInstrumentClass(c InstrumentClass) bool {
	return validInstrumentClasses[c]
}

// Holding represents all lots for one instrument inside one portfolio.
// Lots are kept in ledger insertion order; callers sort by timestamp
// before computing cost basis.
type Holding struct {
	Symbol         string          `json:"symbol"`
	DisplayName    string          `json:"display_name"`
	Class          InstrumentClass `json:"instrument_class"`
	NativeCurrency string          `json:"native_currency"`
	Lots           []Lot           `json:"lots"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NetQuantity returns the signed sum of buy minus sell quantities.
func (h *Holding) NetQuantity() decimal.Decimal {
	net := decimal.Zero
	for _, l := range h.Lots {
		net = net.Add(l.SignedQuantity())
	}
	return net
}

// SortedLots returns the holding's lots ordered by timestamp ascending,
// ties broken by insertion order.
func (h *Holding) SortedLots() []Lot {
	return SortLotsByTimestamp(h.Lots)
}

// FindLot returns the index of the lot with the given ID, or -1.
func (h *Holding) FindLot(lotID string) int {
	for i := range h.Lots {
		if h.Lots[i].ID == lotID {
			return i
		}
	}
	return -1
}

// QuantityAsOf returns the signed net quantity of lots executed at or
// before the cutoff date.
func (h *Holding) QuantityAsOf(cutoff time.Time) decimal.Decimal {
	net := decimal.Zero
	for _, l := range h.Lots {
		if l.Timestamp.After(cutoff) {
			continue
		}
		net = net.Add(l.SignedQuantity())
	}
	return net
}

// CashEvent is one signed cash movement: deposits positive, withdrawals
// negative. Used by the time-series reconstructor only; CashBalance is
// the authoritative point-in-time figure.
type CashEvent struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Portfolio owns a set of holdings plus cash state, denominated in one
// base currency.
type Portfolio struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	BaseCurrency string              `json:"base_currency"`
	CashBalance  decimal.Decimal     `json:"cash_balance"`
	CashEvents   []CashEvent         `json:"cash_events,omitempty"`
	Holdings     map[string]*Holding `json:"holdings"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Holding returns the holding for symbol, or nil.
func (p *Portfolio) Holding(symbol string) *Holding {
	if p.Holdings == nil {
		return nil
	}
	return p.Holdings[symbol]
}

// Symbols returns all held symbols, including zero-quantity holdings.
func (p *Portfolio) Symbols() []string {
	symbols := make([]string, 0, len(p.Holdings))
	for s := range p.Holdings {
		symbols = append(symbols, s)
	}
	return symbols
}

// PnL holds cost-basis and profit/loss figures for one holding, in the
// instrument's native currency.
type PnL struct {
	NetQty     float64 `json:"net_qty"`
	AvgCost    float64 `json:"avg_cost"`
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
}

// HoldingValuation is one computed row for consumers: P&L plus the
// market value converted into the portfolio base currency.
type HoldingValuation struct {
	Symbol          string  `json:"symbol"`
	DisplayName     string  `json:"display_name"`
	NativeCurrency  string  `json:"native_currency"`
	CurrentPrice    float64 `json:"current_price"`
	PriceFromCache  bool    `json:"price_from_cache,omitempty"`
	PriceStale      bool    `json:"price_stale,omitempty"`
	PnL             PnL     `json:"pnl"`
	MarketValue     float64 `json:"market_value"`      // native currency
	MarketValueBase float64 `json:"market_value_base"` // portfolio base currency
	Approximate     bool    `json:"approximate,omitempty"`
}

// PortfolioValuation aggregates holding rows into portfolio totals in
// the requested display currency.
type PortfolioValuation struct {
	PortfolioID     string             `json:"portfolio_id"`
	Name            string             `json:"name"`
	BaseCurrency    string             `json:"base_currency"`
	DisplayCurrency string             `json:"display_currency"`
	Holdings        []HoldingValuation `json:"holdings"`
	TotalValue      float64            `json:"total_value"`
	TotalRealized   float64            `json:"total_realized"`
	TotalUnrealized float64            `json:"total_unrealized"`
	CashBalance     float64            `json:"cash_balance"`
	Approximate     bool               `json:"approximate,omitempty"` // any FX conversion degraded
	AsOf            time.Time          `json:"as_of"`
}

// SeriesPoint is one charted day of reconstructed portfolio value.
type SeriesPoint struct {
	Date       time.Time `json:"date"`
	TotalValue float64   `json:"total_value"`
}
