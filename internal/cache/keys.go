package cache

import (
	"strconv"
	"strings"

	"github.com/marketlens/marketlens/internal/models"
)

// Key builders. Every query shape gets its own constructor so that
// identical parameter sets always produce byte-identical keys; nothing
// outside this file concatenates cache key strings.

// ReferenceKey is the cache key for one ticker's reference record.
func ReferenceKey(symbol string) string {
	return "reference:" + strings.ToUpper(symbol)
}

// BrandingKey is the cache key for one ticker's branding record.
func BrandingKey(symbol string) string {
	return "branding:" + strings.ToUpper(symbol)
}

// CalendarKey derives a key from the present subset of calendar filter
// parameters in fixed order.
func CalendarKey(f models.CalendarFilter) string {
	var b strings.Builder
	b.WriteString("calendar")
	if f.DateFrom != nil {
		b.WriteString(":from=")
		b.WriteString(f.DateFrom.Format("2006-01-02"))
	}
	if f.DateTo != nil {
		b.WriteString(":to=")
		b.WriteString(f.DateTo.Format("2006-01-02"))
	}
	if len(f.Tickers) > 0 {
		upper := make([]string, len(f.Tickers))
		for i, t := range f.Tickers {
			upper[i] = strings.ToUpper(t)
		}
		b.WriteString(":tickers=")
		b.WriteString(strings.Join(upper, ","))
	}
	if f.MinImportance != nil {
		b.WriteString(":imp=")
		b.WriteString(strconv.Itoa(*f.MinImportance))
	}
	return b.String()
}

// NewsKey derives a key from the present subset of news filter
// parameters in fixed order.
func NewsKey(f models.NewsFilter) string {
	var b strings.Builder
	b.WriteString("news")
	if f.Symbol != "" {
		b.WriteString(":symbol=")
		b.WriteString(strings.ToUpper(f.Symbol))
	}
	if f.Limit > 0 {
		b.WriteString(":limit=")
		b.WriteString(strconv.Itoa(f.Limit))
	}
	return b.String()
}
