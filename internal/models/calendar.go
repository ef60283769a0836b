package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Disclosure time-of-day markers as supplied by the provider. An
// explicit clock time ("08:15", "16:30") is also valid; empty means the
// provider gave no hint.
const (
	TimeBeforeMarket = "bmo"
	TimeAfterMarket  = "amc"
)

// CalendarEvent is one earnings disclosure for a ticker and fiscal
// period. Historical events (date in the past) are immutable; upcoming
// events may still have their date, time and importance corrected by
// the provider.
type CalendarEvent struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	CompanyName  string    `json:"company_name,omitempty"`
	Date         time.Time `json:"date"`
	TimeOfDay    string    `json:"time_of_day,omitempty"`
	Importance   int       `json:"importance"`
	FiscalPeriod string    `json:"fiscal_period,omitempty"`
	FiscalYear   int       `json:"fiscal_year,omitempty"`
	Currency     string    `json:"currency,omitempty"`

	EPSActual   *decimal.Decimal `json:"eps_actual,omitempty"`
	EPSEstimate *decimal.Decimal `json:"eps_estimate,omitempty"`
	EPSPrior    *decimal.Decimal `json:"eps_prior,omitempty"`
	EPSSurprise *decimal.Decimal `json:"eps_surprise,omitempty"`

	RevenueActual   *decimal.Decimal `json:"revenue_actual,omitempty"`
	RevenueEstimate *decimal.Decimal `json:"revenue_estimate,omitempty"`
	RevenuePrior    *decimal.Decimal `json:"revenue_prior,omitempty"`
	RevenueSurprise *decimal.Decimal `json:"revenue_surprise,omitempty"`

	// MarketCap is attached from stored reference data when the event
	// is served; it is never persisted with the event itself.
	MarketCap *float64 `json:"market_cap,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// EventID returns the provider id when present, otherwise a
// deterministic composite so repeated fetches of the same disclosure
// upsert the same row.
func EventID(providerID, symbol, fiscalPeriod string, fiscalYear int) string {
	if providerID != "" {
		return providerID
	}
	return fmt.Sprintf("%s-%s-%d", strings.ToUpper(symbol), strings.ToUpper(fiscalPeriod), fiscalYear)
}

// CalendarFilter narrows an events query. Zero-value fields are
// ignored; Tickers membership is case-insensitive on the provider side
// so symbols are stored upper-cased.
type CalendarFilter struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	Tickers       []string
	MinImportance *int
}

// Historical reports whether the filter can only match events strictly
// before the start of today. Such results are immutable once persisted.
func (f CalendarFilter) Historical(now time.Time) bool {
	if f.DateTo == nil {
		return false
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return f.DateTo.Before(startOfDay)
}
