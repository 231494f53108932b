// Package valuation computes consumer-facing portfolio output: per-row
// cost basis and P&L, currency-normalized totals, and the charted value
// series. Nothing here is persisted; it is all derived from ledger
// truth plus market data on demand.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

// basisState tracks moving-average replay over time-sorted lots.
// Quantity and cost stay decimal until the final float conversion so
// repeated small-fee arithmetic cannot drift.
type basisState struct {
	qty       decimal.Decimal
	totalCost decimal.Decimal
	realized  decimal.Decimal
}

// avgCost returns cost per unit, zero for empty or short positions.
func (b *basisState) avgCost() decimal.Decimal {
	if b.qty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return b.totalCost.Div(b.qty)
}

// applyBuy folds a purchase into the running average. Fees are
// capitalized into cost.
func (b *basisState) applyBuy(lot models.Lot) {
	b.totalCost = b.totalCost.Add(lot.Quantity.Mul(lot.Price)).Add(lot.Fee)
	b.qty = b.qty.Add(lot.Quantity)
}

// applySell realizes P&L against the current average cost and relieves
// basis for the full sold quantity, even past zero. An oversold
// position carries negative quantity and negative cost until a later
// buy restores it; nothing is clamped.
func (b *basisState) applySell(lot models.Lot) {
	avg := b.avgCost()
	b.realized = b.realized.
		Add(lot.Quantity.Mul(lot.Price.Sub(avg))).
		Sub(lot.Fee)
	b.totalCost = b.totalCost.Sub(lot.Quantity.Mul(avg))
	b.qty = b.qty.Sub(lot.Quantity)
}

// ComputePnL replays a holding's lots in timestamp order under the
// moving-average cost method and marks the result against currentPrice.
// All figures are in the holding's native currency.
func ComputePnL(lots []models.Lot, currentPrice float64) models.PnL {
	state := &basisState{
		qty:       decimal.Zero,
		totalCost: decimal.Zero,
		realized:  decimal.Zero,
	}

	for _, lot := range models.SortLotsByTimestamp(lots) {
		switch lot.Side {
		case models.LotBuy:
			state.applyBuy(lot)
		case models.LotSell:
			state.applySell(lot)
		}
	}

	avg := state.avgCost()
	price := decimal.NewFromFloat(currentPrice)

	unrealized := decimal.Zero
	if !state.qty.IsZero() {
		unrealized = state.qty.Mul(price.Sub(avg))
	}

	netQty, _ := state.qty.Float64()
	avgCost, _ := avg.Float64()
	realized, _ := state.realized.Float64()
	unreal, _ := unrealized.Float64()

	return models.PnL{
		NetQty:     netQty,
		AvgCost:    avgCost,
		Realized:   realized,
		Unrealized: unreal,
	}
}
