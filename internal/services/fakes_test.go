package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/database"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/upstream"
)

// fakeCache is an in-memory Cache that counts operations so tests can
// assert which tier served a read.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	gets    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: map[string][]byte{},
		ttls:    map[string]time.Duration{},
	}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	hits := map[string][]byte{}
	for _, k := range keys {
		if data, ok := c.entries[k]; ok {
			hits[k] = data
		}
	}
	return hits, nil
}

func (c *fakeCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = data
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	delete(c.ttls, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *fakeCache) ttlOf(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttls[key]
}

// fakeStore is an in-memory Store with per-method call counters.
type fakeStore struct {
	mu         sync.Mutex
	references map[string]*models.ReferenceRecord
	events     map[string]*models.CalendarEvent
	brandings  map[string]*models.BrandingRecord

	referenceGets  int
	referencePuts  int
	calendarGets   int
	calendarPuts   int
	marketCapCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		references: map[string]*models.ReferenceRecord{},
		events:     map[string]*models.CalendarEvent{},
		brandings:  map[string]*models.BrandingRecord{},
	}
}

func (s *fakeStore) UpsertReference(r *models.ReferenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referencePuts++
	copied := *r
	s.references[strings.ToUpper(r.Symbol)] = &copied
	return nil
}

func (s *fakeStore) GetReference(symbol string) (*models.ReferenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referenceGets++
	r, ok := s.references[strings.ToUpper(symbol)]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *fakeStore) GetMarketCaps(symbols []string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketCapCalls++
	caps := map[string]float64{}
	for _, sym := range symbols {
		if r, ok := s.references[strings.ToUpper(sym)]; ok && r.MarketCap != nil {
			caps[strings.ToUpper(sym)] = *r.MarketCap
		}
	}
	return caps, nil
}

func (s *fakeStore) GetSymbolsMissingMarketCap(cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var symbols []string
	for sym, r := range s.references {
		if r.MarketCap == nil || r.LastUpdated.Before(cutoff) {
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}

func (s *fakeStore) UpsertCalendarEvents(events []*models.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendarPuts++
	for _, e := range events {
		copied := *e
		s.events[e.ID] = &copied
	}
	return nil
}

func (s *fakeStore) GetCalendarEvents(f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendarGets++
	var out []*models.CalendarEvent
	for _, e := range s.events {
		if f.DateFrom != nil && e.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && e.Date.After(f.DateTo.Add(24*time.Hour-time.Nanosecond)) {
			continue
		}
		if f.MinImportance != nil && e.Importance < *f.MinImportance {
			continue
		}
		if len(f.Tickers) > 0 {
			match := false
			for _, t := range f.Tickers {
				if strings.EqualFold(t, e.Symbol) {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeStore) UpsertBranding(b *models.BrandingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *b
	s.brandings[strings.ToUpper(b.Symbol)] = &copied
	return nil
}

func (s *fakeStore) GetBranding(symbol string) (*models.BrandingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brandings[strings.ToUpper(symbol)]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *fakeStore) DeleteBranding(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.brandings, strings.ToUpper(symbol))
	return nil
}

// fakeUpstream returns canned payloads per symbol and counts calls per
// category.
type fakeUpstream struct {
	mu sync.Mutex

	profiles  map[string]*upstream.Profile
	ratios    map[string]*upstream.Ratios
	incomes   map[string]*upstream.IncomeStatement
	balances  map[string]*upstream.BalanceSheet
	cashflows map[string]*upstream.CashFlow
	ranges    map[string]*upstream.WeekRange
	calendar  []*models.CalendarEvent
	brandings map[string]*models.BrandingRecord
	news      []*models.NewsArticle

	calendarErr error

	profileCalls  map[string]int
	ratiosCalls   map[string]int
	incomeCalls   map[string]int
	calendarCalls int
	brandingCalls int
	newsCalls     int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		profiles:     map[string]*upstream.Profile{},
		ratios:       map[string]*upstream.Ratios{},
		incomes:      map[string]*upstream.IncomeStatement{},
		balances:     map[string]*upstream.BalanceSheet{},
		cashflows:    map[string]*upstream.CashFlow{},
		ranges:       map[string]*upstream.WeekRange{},
		brandings:    map[string]*models.BrandingRecord{},
		profileCalls: map[string]int{},
		ratiosCalls:  map[string]int{},
		incomeCalls:  map[string]int{},
	}
}

func (u *fakeUpstream) FetchProfile(ctx context.Context, symbol string) (*upstream.Profile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.profileCalls[strings.ToUpper(symbol)]++
	p, ok := u.profiles[strings.ToUpper(symbol)]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return p, nil
}

func (u *fakeUpstream) FetchRatios(ctx context.Context, symbol string) (*upstream.Ratios, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ratiosCalls[strings.ToUpper(symbol)]++
	r, ok := u.ratios[strings.ToUpper(symbol)]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return r, nil
}

func (u *fakeUpstream) FetchIncomeStatement(ctx context.Context, symbol string) (*upstream.IncomeStatement, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.incomeCalls[strings.ToUpper(symbol)]++
	is, ok := u.incomes[strings.ToUpper(symbol)]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return is, nil
}

func (u *fakeUpstream) FetchBalanceSheet(ctx context.Context, symbol string) (*upstream.BalanceSheet, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	bs, ok := u.balances[strings.ToUpper(symbol)]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return bs, nil
}

func (u *fakeUpstream) FetchCashFlow(ctx context.Context, symbol string) (*upstream.CashFlow, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	cf, ok := u.cashflows[strings.ToUpper(symbol)]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return cf, nil
}

func (u *fakeUpstream) Fetch52WeekRange(ctx context.Context, symbol string) (*upstream.WeekRange, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	wr, ok := u.ranges[strings.ToUpper(symbol)]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	return wr, nil
}

func (u *fakeUpstream) FetchCalendarEvents(ctx context.Context, f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calendarCalls++
	if u.calendarErr != nil {
		return nil, u.calendarErr
	}
	out := make([]*models.CalendarEvent, 0, len(u.calendar))
	for _, e := range u.calendar {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (u *fakeUpstream) FetchBranding(ctx context.Context, symbol string) (*models.BrandingRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.brandingCalls++
	b, ok := u.brandings[strings.ToUpper(symbol)]
	if !ok {
		return nil, upstream.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (u *fakeUpstream) FetchNews(ctx context.Context, f models.NewsFilter) ([]*models.NewsArticle, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.newsCalls++
	return u.news, nil
}

// newTestRunner returns a single-worker runner so a sentinel task is
// only executed after everything submitted before it has finished.
func newTestRunner() *TaskRunner {
	return NewTaskRunner(256, 1, zerolog.Nop())
}

// drainTasks blocks until all previously submitted background tasks
// have run.
func drainTasks(r *TaskRunner) {
	done := make(chan struct{})
	r.Submit("drain", func() { close(done) })
	<-done
}
