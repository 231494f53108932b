// Package common provides shared utilities for Folio
package common

import "time"

// Freshness TTLs for cached market data classes
const (
	FreshnessCurrentPrice   = 5 * time.Minute
	FreshnessFxRate         = 1 * time.Hour
	FreshnessHistoricalBars = 24 * time.Hour
	FreshnessFundamentals   = 7 * 24 * time.Hour // slow information
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}

// IsFreshAt reports freshness against an explicit clock, for callers that
// inject their own now() during tests.
func IsFreshAt(now, updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
