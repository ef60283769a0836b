// Package upstream is the client for the third-party financial-data
// provider. Every operation fetches one data category for one symbol
// (or one filter), times out independently, and reports missing data as
// ErrNotFound rather than an error; the services decide what a missing
// category means.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/marketlens/marketlens/internal/models"
)

// ErrNotFound means the provider has no data for the requested symbol
// or filter. A malformed payload is reported the same way: data we
// cannot parse is data we do not have.
var ErrNotFound = fmt.Errorf("upstream: not found")

// Per-category request timeouts. Statement endpoints are slower on the
// provider side than the quote endpoints.
const (
	profileTimeout   = 5 * time.Second
	statementTimeout = 10 * time.Second
	calendarTimeout  = 15 * time.Second
)

// Client talks to the provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient builds a provider client. rps bounds the request rate the
// provider plan allows; burst requests above it queue on the limiter.
func NewClient(baseURL, apiKey string, rps float64, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: calendarTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     log.With().Str("client", "upstream").Logger(),
	}
}

// getJSON performs one rate-limited GET and decodes the body into dest.
func (c *Client) getJSON(ctx context.Context, timeout time.Duration, path string, query url.Values, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", c.apiKey)

	reqURL := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("malformed provider payload")
		return ErrNotFound
	}
	return nil
}

// FetchProfile returns company identity and the market snapshot.
func (c *Client) FetchProfile(ctx context.Context, symbol string) (*Profile, error) {
	var out []Profile
	err := c.getJSON(ctx, profileTimeout, "/profile/"+url.PathEscape(strings.ToUpper(symbol)), nil, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// FetchRatios returns trailing-twelve-month valuation and health ratios.
func (c *Client) FetchRatios(ctx context.Context, symbol string) (*Ratios, error) {
	var out []Ratios
	err := c.getJSON(ctx, profileTimeout, "/ratios-ttm/"+url.PathEscape(strings.ToUpper(symbol)), nil, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// FetchIncomeStatement returns the latest annual income statement.
func (c *Client) FetchIncomeStatement(ctx context.Context, symbol string) (*IncomeStatement, error) {
	var out []IncomeStatement
	q := url.Values{"limit": {"1"}}
	err := c.getJSON(ctx, statementTimeout, "/income-statement/"+url.PathEscape(strings.ToUpper(symbol)), q, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// FetchBalanceSheet returns the latest annual balance sheet.
func (c *Client) FetchBalanceSheet(ctx context.Context, symbol string) (*BalanceSheet, error) {
	var out []BalanceSheet
	q := url.Values{"limit": {"1"}}
	err := c.getJSON(ctx, statementTimeout, "/balance-sheet-statement/"+url.PathEscape(strings.ToUpper(symbol)), q, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// FetchCashFlow returns the latest annual cash-flow statement.
func (c *Client) FetchCashFlow(ctx context.Context, symbol string) (*CashFlow, error) {
	var out []CashFlow
	q := url.Values{"limit": {"1"}}
	err := c.getJSON(ctx, statementTimeout, "/cash-flow-statement/"+url.PathEscape(strings.ToUpper(symbol)), q, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// Fetch52WeekRange returns the 52-week high/low and average volume.
func (c *Client) Fetch52WeekRange(ctx context.Context, symbol string) (*WeekRange, error) {
	var out []WeekRange
	err := c.getJSON(ctx, profileTimeout, "/quote/"+url.PathEscape(strings.ToUpper(symbol)), nil, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// FetchCalendarEvents returns earnings disclosures matching the filter.
func (c *Client) FetchCalendarEvents(ctx context.Context, f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	q := url.Values{}
	if f.DateFrom != nil {
		q.Set("from", f.DateFrom.Format("2006-01-02"))
	}
	if f.DateTo != nil {
		q.Set("to", f.DateTo.Format("2006-01-02"))
	}
	if len(f.Tickers) > 0 {
		q.Set("symbols", strings.ToUpper(strings.Join(f.Tickers, ",")))
	}

	var out []calendarEventPayload
	if err := c.getJSON(ctx, calendarTimeout, "/earning-calendar", q, &out); err != nil {
		return nil, err
	}

	events := make([]*models.CalendarEvent, 0, len(out))
	for _, p := range out {
		e, err := p.toEvent()
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("skipping undecodable calendar event")
			continue
		}
		if f.MinImportance != nil && e.Importance < *f.MinImportance {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// FetchBranding returns the logo assets for one symbol.
func (c *Client) FetchBranding(ctx context.Context, symbol string) (*models.BrandingRecord, error) {
	var out brandingPayload
	err := c.getJSON(ctx, profileTimeout, "/logo/"+url.PathEscape(strings.ToUpper(symbol)), nil, &out)
	if err != nil {
		return nil, err
	}
	if out.LogoURL == "" && out.IconURL == "" {
		return nil, ErrNotFound
	}
	return &models.BrandingRecord{
		Symbol:      strings.ToUpper(symbol),
		CompanyName: out.CompanyName,
		Exchange:    out.Exchange,
		IconURL:     out.IconURL,
		LogoURL:     out.LogoURL,
		FetchedAt:   time.Now(),
	}, nil
}

// FetchNews returns recent news articles matching the filter.
func (c *Client) FetchNews(ctx context.Context, f models.NewsFilter) ([]*models.NewsArticle, error) {
	q := url.Values{}
	if f.Symbol != "" {
		q.Set("tickers", strings.ToUpper(f.Symbol))
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}

	var out []newsPayload
	if err := c.getJSON(ctx, calendarTimeout, "/stock-news", q, &out); err != nil {
		return nil, err
	}

	articles := make([]*models.NewsArticle, 0, len(out))
	for _, p := range out {
		articles = append(articles, p.toArticle())
	}
	return articles, nil
}
