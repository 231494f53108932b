package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLot_SignedQuantity(t *testing.T) {
	buy := Lot{Side: LotBuy, Quantity: d("10")}
	if !buy.SignedQuantity().Equal(d("10")) {
		t.Errorf("buy SignedQuantity = %s, want 10", buy.SignedQuantity())
	}

	sell := Lot{Side: LotSell, Quantity: d("4")}
	if !sell.SignedQuantity().Equal(d("-4")) {
		t.Errorf("sell SignedQuantity = %s, want -4", sell.SignedQuantity())
	}
}

func TestSortLotsByTimestamp_StableOnTies(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	lots := []Lot{
		{ID: "c", Timestamp: ts.Add(time.Hour)},
		{ID: "a", Timestamp: ts},
		{ID: "b", Timestamp: ts}, // same instant as "a", entered later
	}

	sorted := SortLotsByTimestamp(lots)

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Errorf("sorted[%d].ID = %q, want %q", i, sorted[i].ID, id)
		}
	}

	// input must be untouched
	if lots[0].ID != "c" {
		t.Error("SortLotsByTimestamp mutated its input")
	}
}

func TestLotPatch_Apply(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	lot := Lot{ID: "x", Side: LotBuy, Quantity: d("10"), Price: d("5")}

	qty := d("12")
	side := LotSell
	patch := LotPatch{Quantity: &qty, Side: &side}
	patch.Apply(&lot, now)

	if !lot.Quantity.Equal(d("12")) {
		t.Errorf("Quantity = %s after patch, want 12", lot.Quantity)
	}
	if lot.Side != LotSell {
		t.Errorf("Side = %q after patch, want sell", lot.Side)
	}
	if !lot.Price.Equal(d("5")) {
		t.Errorf("Price = %s after patch, want 5 (unchanged)", lot.Price)
	}
	if !lot.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", lot.UpdatedAt, now)
	}
}

func TestHolding_NetQuantity(t *testing.T) {
	h := &Holding{
		Symbol: "BHP.AU",
		Lots: []Lot{
			{Side: LotBuy, Quantity: d("10")},
			{Side: LotSell, Quantity: d("4")},
			{Side: LotBuy, Quantity: d("2")},
		},
	}
	if !h.NetQuantity().Equal(d("8")) {
		t.Errorf("NetQuantity = %s, want 8", h.NetQuantity())
	}
}

func TestHolding_QuantityAsOf(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &Holding{
		Lots: []Lot{
			{Side: LotBuy, Quantity: d("10"), Timestamp: base},
			{Side: LotSell, Quantity: d("4"), Timestamp: base.AddDate(0, 1, 0)},
		},
	}

	if got := h.QuantityAsOf(base); !got.Equal(d("10")) {
		t.Errorf("QuantityAsOf(base) = %s, want 10", got)
	}
	if got := h.QuantityAsOf(base.AddDate(0, 2, 0)); !got.Equal(d("6")) {
		t.Errorf("QuantityAsOf(+2m) = %s, want 6", got)
	}
	if got := h.QuantityAsOf(base.AddDate(0, 0, -1)); !got.IsZero() {
		t.Errorf("QuantityAsOf(before first lot) = %s, want 0", got)
	}
}

func TestBarRange_Start(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if got := RangeYear.Start(now); got != now.AddDate(-1, 0, 0) {
		t.Errorf("RangeYear.Start = %v, want one year back", got)
	}
	if got := RangeMax.Start(now); got != now.AddDate(-10, 0, 0) {
		t.Errorf("RangeMax.Start = %v, want ten years back", got)
	}
}

func TestNewLedgerRecord(t *testing.T) {
	r := NewLedgerRecord()
	if r.Version != LedgerSchemaVersion {
		t.Errorf("Version = %d, want %d", r.Version, LedgerSchemaVersion)
	}
	if r.Portfolios == nil {
		t.Error("Portfolios map not initialized")
	}
	if r.Portfolio("missing") != nil {
		t.Error("Portfolio(missing) != nil")
	}
}
