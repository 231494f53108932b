package models

import "errors"

// Engine error taxonomy. Provider failures degrade to cached data where
// any cache entry exists; these sentinels surface only at the boundaries
// described on each.
var (
	// ErrProviderUnavailable wraps network/HTTP failures from a market
	// data provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoDataAvailable means every provider failed and no cache entry
	// has ever been written for the key.
	ErrNoDataAvailable = errors.New("no data available")

	// ErrConversionUnavailable flags a missing FX pair on both the direct
	// and USD-pivot paths. Degraded, never fatal: callers receive the
	// unconverted amount alongside this signal.
	ErrConversionUnavailable = errors.New("conversion unavailable")

	// ErrMalformedLedgerState marks a corrupt persisted ledger record.
	// Load recovers to empty state; the error is reported, not fatal.
	ErrMalformedLedgerState = errors.New("malformed ledger state")

	// ErrNotFound is returned for unknown portfolio, holding, or lot IDs.
	ErrNotFound = errors.New("not found")
)
