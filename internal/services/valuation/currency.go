package valuation

import "strings"

// RateTable maps "FROM_TO" pairs to multiplicative cross-rates.
type RateTable map[string]float64

// Convert normalizes an amount from one currency to another using the
// table. Resolution order: identity, direct pair, inverted pair, then
// two-hop via USD. When nothing resolves the amount passes through
// unchanged with ok false so callers can flag the result approximate.
func Convert(amount float64, from, to string, rates RateTable) (converted float64, ok bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to || from == "" || to == "" {
		return amount, true
	}

	if rate, found := rates[from+"_"+to]; found && rate > 0 {
		return amount * rate, true
	}
	if rate, found := rates[to+"_"+from]; found && rate > 0 {
		return amount / rate, true
	}

	// two-hop via USD
	if from != "USD" && to != "USD" {
		toUSD, ok1 := Convert(1.0, from, "USD", rates)
		fromUSD, ok2 := Convert(1.0, "USD", to, rates)
		if ok1 && ok2 {
			return amount * toUSD * fromUSD, true
		}
	}

	return amount, false
}
