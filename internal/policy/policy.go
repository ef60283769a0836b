// Package policy fixes the staleness and completeness rules for each
// data category. Thresholds are differentiated by how volatile the
// category is: company fundamentals barely move week to week while
// market cap tracks the share price daily. The numbers are tuning
// knobs, not contracts.
package policy

import (
	"time"

	"github.com/marketlens/marketlens/internal/models"
)

const (
	// ReferenceStaleness is how long a stored fundamentals record is
	// trusted before the next read forces an upstream refresh. The
	// cache TTL matches it so the cache entry never outlives the
	// record's trust window.
	ReferenceStaleness = 7 * 24 * time.Hour
	ReferenceCacheTTL  = 7 * 24 * time.Hour

	// MarketCapStaleness bounds how old a market cap may be when used
	// for event ranking.
	MarketCapStaleness = 24 * time.Hour

	// NegativeCacheTTL suppresses repeated upstream lookups of symbols
	// the provider does not know.
	NegativeCacheTTL = 15 * time.Minute

	// UpcomingCalendarTTL is the short window during which a
	// current/future calendar response may be served from cache before
	// upstream is consulted again.
	UpcomingCalendarTTL = 10 * time.Minute

	// HistoricalCalendarTTL of zero means no expiry: historical events
	// are immutable once persisted.
	HistoricalCalendarTTL = 0

	BrandingCacheTTL = 7 * 24 * time.Hour
	NewsCacheTTL     = 5 * time.Minute
)

// IsStale reports whether a record last updated at the given time has
// outlived the threshold.
func IsStale(lastUpdated time.Time, threshold time.Duration, now time.Time) bool {
	return now.Sub(lastUpdated) >= threshold
}

// IsIncomplete reports whether a reference record is missing any of the
// fields both clients require on every company page. An incomplete
// record is re-fetched even when fresh by timestamp.
func IsIncomplete(r *models.ReferenceRecord) bool {
	if r == nil {
		return true
	}
	return r.Exchange == nil ||
		r.Sector == nil ||
		r.Industry == nil ||
		r.MarketCap == nil ||
		r.CurrentPrice == nil ||
		r.Revenue == nil ||
		r.OperatingCashFlow == nil
}
