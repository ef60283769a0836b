package services

import (
	"context"
	"errors"
	"time"

	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/upstream"
)

// ErrNotFound is returned when no tier can produce the requested record.
var ErrNotFound = errors.New("not found")

// Store is the durable-store surface the services depend on,
// implemented by database.DB.
type Store interface {
	UpsertReference(r *models.ReferenceRecord) error
	GetReference(symbol string) (*models.ReferenceRecord, error)
	GetMarketCaps(symbols []string) (map[string]float64, error)
	GetSymbolsMissingMarketCap(cutoff time.Time) ([]string, error)

	UpsertCalendarEvents(events []*models.CalendarEvent) error
	GetCalendarEvents(f models.CalendarFilter) ([]*models.CalendarEvent, error)

	UpsertBranding(b *models.BrandingRecord) error
	GetBranding(symbol string) (*models.BrandingRecord, error)
}

// Upstream is the provider surface, implemented by upstream.Client.
// Every call may fail or time out independently; a missing symbol is
// upstream.ErrNotFound, not an error.
type Upstream interface {
	FetchProfile(ctx context.Context, symbol string) (*upstream.Profile, error)
	FetchRatios(ctx context.Context, symbol string) (*upstream.Ratios, error)
	FetchIncomeStatement(ctx context.Context, symbol string) (*upstream.IncomeStatement, error)
	FetchBalanceSheet(ctx context.Context, symbol string) (*upstream.BalanceSheet, error)
	FetchCashFlow(ctx context.Context, symbol string) (*upstream.CashFlow, error)
	Fetch52WeekRange(ctx context.Context, symbol string) (*upstream.WeekRange, error)
	FetchCalendarEvents(ctx context.Context, f models.CalendarFilter) ([]*models.CalendarEvent, error)
	FetchBranding(ctx context.Context, symbol string) (*models.BrandingRecord, error)
	FetchNews(ctx context.Context, f models.NewsFilter) ([]*models.NewsArticle, error)
}

// Publisher emits domain events. A nil Publisher is valid and means
// eventing is disabled.
type Publisher interface {
	PublishReferenceRefreshed(ctx context.Context, symbol string) error
	PublishCacheInvalidated(ctx context.Context, entity, symbol string) error
	PublishCalendarSynced(ctx context.Context, count int) error
}
