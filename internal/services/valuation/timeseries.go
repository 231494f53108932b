package valuation

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

// maxSeriesPoints caps the charted series length. Older points are
// dropped from the front.
const maxSeriesPoints = 520

// priceJumpRatio is the day-over-day multiple beyond which a bar close
// is treated as corrupt and the prior price carried forward.
const priceJumpRatio = 5.0

// SeriesOptions tunes series reconstruction.
type SeriesOptions struct {
	// IncludeCash folds the replayed cash-event balance into each point.
	IncludeCash bool
	// MaxPoints overrides the default cap when positive.
	MaxPoints int
}

// SeriesInput carries everything the reconstructor needs, so the replay
// itself touches no service and no clock.
type SeriesInput struct {
	Portfolios      []*models.Portfolio
	Bars            map[string][]models.Bar // per symbol, date ascending
	Rates           RateTable               // present-day rates, applied across the whole series
	DisplayCurrency string
	Now             time.Time
}

// holdingSeriesState replays one holding's lots and price history with
// cursors that only move forward as dates advance.
type holdingSeriesState struct {
	symbol   string
	currency string

	lots      []models.Lot
	lotCursor int
	qty       decimal.Decimal

	bars      []models.Bar
	barCursor int
	lastPrice float64
}

// advanceTo moves both cursors through the cutoff date and returns the
// holding's value in its native currency. Zero before the first bar:
// prices are never back-filled.
func (h *holdingSeriesState) advanceTo(cutoff time.Time) float64 {
	for h.lotCursor < len(h.lots) && !h.lots[h.lotCursor].Timestamp.After(cutoff) {
		h.qty = h.qty.Add(h.lots[h.lotCursor].SignedQuantity())
		h.lotCursor++
	}

	for h.barCursor < len(h.bars) && !h.bars[h.barCursor].Date.After(cutoff) {
		close := h.bars[h.barCursor].Close
		h.barCursor++
		if close <= 0 || math.IsNaN(close) || math.IsInf(close, 0) {
			continue
		}
		if h.lastPrice > 0 && (close > h.lastPrice*priceJumpRatio || close < h.lastPrice/priceJumpRatio) {
			continue
		}
		h.lastPrice = close
	}

	if h.lastPrice <= 0 || h.qty.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	qty, _ := h.qty.Float64()
	return qty * h.lastPrice
}

// cashSeriesState replays one portfolio's cash events.
type cashSeriesState struct {
	currency string
	events   []models.CashEvent
	cursor   int
	balance  decimal.Decimal
}

func (c *cashSeriesState) advanceTo(cutoff time.Time) float64 {
	for c.cursor < len(c.events) && !c.events[c.cursor].Timestamp.After(cutoff) {
		c.balance = c.balance.Add(c.events[c.cursor].Amount)
		c.cursor++
	}
	balance, _ := c.balance.Float64()
	return balance
}

// ReconstructSeries rebuilds daily portfolio value from lot replay and
// historical bars, one point per calendar day from the earliest lot to
// now. Today's FX rates apply across the whole series; historical FX is
// out of reach of the cached rate table.
func ReconstructSeries(in SeriesInput, opts SeriesOptions) []models.SeriesPoint {
	start := earliestEventDate(in.Portfolios, opts.IncludeCash)
	if start.IsZero() {
		return nil
	}

	end := in.Now.UTC().Truncate(24 * time.Hour)
	dates := generateCalendarDates(start.UTC(), end)
	if len(dates) == 0 {
		return nil
	}

	var holdings []*holdingSeriesState
	var cash []*cashSeriesState
	for _, p := range in.Portfolios {
		for _, h := range p.Holdings {
			if len(h.Lots) == 0 {
				continue
			}
			holdings = append(holdings, &holdingSeriesState{
				symbol:   h.Symbol,
				currency: h.NativeCurrency,
				lots:     models.SortLotsByTimestamp(h.Lots),
				qty:      decimal.Zero,
				bars:     in.Bars[h.Symbol],
			})
		}
		if opts.IncludeCash && len(p.CashEvents) > 0 {
			cash = append(cash, &cashSeriesState{
				currency: p.BaseCurrency,
				events:   sortedCashEvents(p.CashEvents),
				balance:  decimal.Zero,
			})
		}
	}

	points := make([]models.SeriesPoint, 0, len(dates))
	for _, date := range dates {
		cutoff := date.AddDate(0, 0, 1).Add(-time.Nanosecond) // end of day

		total := 0.0
		for _, h := range holdings {
			native := h.advanceTo(cutoff)
			if native == 0 {
				continue
			}
			converted, _ := Convert(native, h.currency, in.DisplayCurrency, in.Rates)
			total += converted
		}
		for _, c := range cash {
			balance := c.advanceTo(cutoff)
			converted, _ := Convert(balance, c.currency, in.DisplayCurrency, in.Rates)
			total += converted
		}

		if total == 0 && len(points) == 0 {
			continue // nothing valued yet, skip leading flatline
		}

		points = append(points, models.SeriesPoint{Date: date, TotalValue: total})
	}

	max := opts.MaxPoints
	if max <= 0 {
		max = maxSeriesPoints
	}
	if len(points) > max {
		points = points[len(points)-max:]
	}
	return points
}

// earliestEventDate scans for the oldest lot (and optionally cash
// event) timestamp across all portfolios.
func earliestEventDate(portfolios []*models.Portfolio, includeCash bool) time.Time {
	var earliest time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}

	for _, p := range portfolios {
		for _, h := range p.Holdings {
			for _, l := range h.Lots {
				consider(l.Timestamp)
			}
		}
		if includeCash {
			for _, e := range p.CashEvents {
				consider(e.Timestamp)
			}
		}
	}
	return earliest
}

// generateCalendarDates produces one date per day from start to end
// inclusive.
func generateCalendarDates(start, end time.Time) []time.Time {
	start = start.Truncate(24 * time.Hour)
	end = end.Truncate(24 * time.Hour)

	if end.Before(start) {
		return nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	dates := make([]time.Time, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// sortedCashEvents returns a copy ordered by timestamp ascending.
func sortedCashEvents(events []models.CashEvent) []models.CashEvent {
	sorted := make([]models.CashEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// DownsampleToMonthly keeps the last point per calendar month.
func DownsampleToMonthly(points []models.SeriesPoint) []models.SeriesPoint {
	if len(points) == 0 {
		return nil
	}

	monthly := make([]models.SeriesPoint, 0)
	for i, p := range points {
		if i == len(points)-1 || points[i+1].Date.Month() != p.Date.Month() || points[i+1].Date.Year() != p.Date.Year() {
			monthly = append(monthly, p)
		}
	}
	return monthly
}
