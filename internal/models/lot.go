// Package models defines data structures for Folio
package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LotSide indicates whether a lot is a buy or a sell execution.
type LotSide string

const (
	LotBuy  LotSide = "buy"
	LotSell LotSide = "sell"
)

// ValidLotSide returns true if s is a recognised lot side.
func ValidLotSide(s LotSide) bool {
	return s == LotBuy || s == LotSell
}

// Lot represents one executed buy or sell transaction.
// Price and Fee are denominated in the holding's native currency, per unit
// and absolute respectively.
type Lot struct {
	ID        string          `json:"id"`
	Side      LotSide         `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SignedQuantity returns the quantity with buy positive and sell negative.
func (l Lot) SignedQuantity() decimal.Decimal {
	if l.Side == LotSell {
		return l.Quantity.Neg()
	}
	return l.Quantity
}

// LotPatch carries optional field updates for UpdateLot. Nil fields are
// left unchanged.
type LotPatch struct {
	Side      *LotSide
	Quantity  *decimal.Decimal
	Price     *decimal.Decimal
	Fee       *decimal.Decimal
	Timestamp *time.Time
}

// Apply copies the non-nil patch fields onto the lot and stamps UpdatedAt.
func (p LotPatch) Apply(l *Lot, now time.Time) {
	if p.Side != nil {
		l.Side = *p.Side
	}
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Fee != nil {
		l.Fee = *p.Fee
	}
	if p.Timestamp != nil {
		l.Timestamp = *p.Timestamp
	}
	l.UpdatedAt = now
}

// SortLotsByTimestamp returns a copy of lots ordered by execution time
// ascending. The sort is stable so same-timestamp lots keep their ledger
// insertion order.
func SortLotsByTimestamp(lots []Lot) []Lot {
	sorted := make([]Lot, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
