package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/policy"
)

// primaryPerSession is how many events each session bucket contributes
// to the primary set per calendar date. The list is already ordered by
// market cap, so the cut is top-N-by-size.
const primaryPerSession = 5

// marketOpen and marketClose delimit the regular session; a disclosure
// clocked before the open belongs to the before-market bucket, at or
// after the close to the after-market bucket.
var (
	marketOpen  = clockMinutes(9, 30)
	marketClose = clockMinutes(16, 0)
)

// CalendarService serves earnings events. Historical ranges are
// immutable and served cache-first; current and future ranges go to the
// provider because dates, times and importance keep moving until the
// event happens.
type CalendarService struct {
	cache     cache.Cache
	store     Store
	upstream  Upstream
	tasks     *TaskRunner
	events    Publisher
	reference *ReferenceService
	log       zerolog.Logger
	now       func() time.Time
}

// NewCalendarService wires the service. reference is used to kick off
// background market-cap fetches for symbols the filter drops.
func NewCalendarService(c cache.Cache, s Store, u Upstream, t *TaskRunner, p Publisher, ref *ReferenceService, log zerolog.Logger) *CalendarService {
	return &CalendarService{
		cache:     c,
		store:     s,
		upstream:  u,
		tasks:     t,
		events:    p,
		reference: ref,
		log:       log.With().Str("service", "calendar").Logger(),
		now:       time.Now,
	}
}

// GetEvents returns the events matching the filter, restricted to
// companies with a known market cap and ordered by descending market
// cap.
func (s *CalendarService) GetEvents(ctx context.Context, f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	key := cache.CalendarKey(f)

	var cached []*models.CalendarEvent
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	now := s.now()
	if f.Historical(now) {
		return s.getHistorical(ctx, key, f)
	}
	return s.getCurrent(ctx, key, f)
}

// getHistorical serves an immutable date range: the durable store is
// authoritative, and a non-empty result is cached without expiry.
func (s *CalendarService) getHistorical(ctx context.Context, key string, f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	rows, err := s.store.GetCalendarEvents(f)
	if err != nil {
		// Terminal source of truth for this query; no upstream fallback
		// would be correct here, so the failure propagates.
		return nil, fmt.Errorf("failed to load historical events: %w", err)
	}
	if len(rows) == 0 {
		return []*models.CalendarEvent{}, nil
	}

	result := s.rankByMarketCap(rows)
	s.cacheResultAsync(key, result, policy.HistoricalCalendarTTL)
	return result, nil
}

// getCurrent always asks the provider, persists what it returns for
// historical continuity, and only falls back to stored rows when the
// provider is unavailable.
func (s *CalendarService) getCurrent(ctx context.Context, key string, f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	fetched, err := s.upstream.FetchCalendarEvents(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("provider calendar fetch failed, falling back to stored events")
		rows, storeErr := s.store.GetCalendarEvents(f)
		if storeErr != nil {
			return nil, fmt.Errorf("calendar unavailable: upstream: %v, store: %w", err, storeErr)
		}
		return s.rankByMarketCap(rows), nil
	}

	s.persistEventsAsync(fetched)

	result := s.rankByMarketCap(fetched)
	s.cacheResultAsync(key, result, policy.UpcomingCalendarTTL)
	return result, nil
}

// GetPrimaryEvents returns, per calendar date, the top events of each
// disclosure session, the ones a client renders first.
func (s *CalendarService) GetPrimaryEvents(ctx context.Context, f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	events, err := s.GetEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	primary, _ := splitSessions(events)
	return primary, nil
}

// GetSecondaryEvents returns the session-bucketed events not selected
// as primary, for lazy rendering of the long tail.
func (s *CalendarService) GetSecondaryEvents(ctx context.Context, f models.CalendarFilter) ([]*models.CalendarEvent, error) {
	events, err := s.GetEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	_, secondary := splitSessions(events)
	return secondary, nil
}

// InvalidateCalendar evicts one cached query result.
func (s *CalendarService) InvalidateCalendar(ctx context.Context, f models.CalendarFilter) error {
	if err := s.cache.Delete(ctx, cache.CalendarKey(f)); err != nil {
		return err
	}
	if s.events != nil {
		s.tasks.Submit("publish-invalidation", func() {
			if err := s.events.PublishCacheInvalidated(context.Background(), "calendar", ""); err != nil {
				s.log.Error().Err(err).Msg("failed to publish invalidation event")
			}
		})
	}
	return nil
}

// rankByMarketCap drops events for companies without a stored market
// cap and orders the remainder largest-company-first. Only already
// stored caps are consulted; a missing cap schedules a background
// fetch instead of blocking the response on the provider.
func (s *CalendarService) rankByMarketCap(events []*models.CalendarEvent) []*models.CalendarEvent {
	if len(events) == 0 {
		return []*models.CalendarEvent{}
	}

	symbolSet := make(map[string]bool, len(events))
	symbols := make([]string, 0, len(events))
	for _, e := range events {
		sym := strings.ToUpper(e.Symbol)
		if !symbolSet[sym] {
			symbolSet[sym] = true
			symbols = append(symbols, sym)
		}
	}

	caps, err := s.store.GetMarketCaps(symbols)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load market caps, serving events unranked")
		return events
	}

	kept := make([]*models.CalendarEvent, 0, len(events))
	dropped := make(map[string]bool)
	for _, e := range events {
		sym := strings.ToUpper(e.Symbol)
		mcap, ok := caps[sym]
		if !ok {
			dropped[sym] = true
			continue
		}
		withCap := *e
		withCap.MarketCap = &mcap
		kept = append(kept, &withCap)
	}

	for sym := range dropped {
		s.reference.fetchMarketCapAsync(sym)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if *kept[i].MarketCap != *kept[j].MarketCap {
			return *kept[i].MarketCap > *kept[j].MarketCap
		}
		return kept[i].Symbol < kept[j].Symbol
	})
	return kept
}

// splitSessions partitions an already ranked event list into the
// primary (top events per session per date) and secondary (the rest of
// the bucketed events) sets. Events with a mid-session disclosure time
// belong to neither session and appear in neither set.
func splitSessions(events []*models.CalendarEvent) (primary, secondary []*models.CalendarEvent) {
	primary = []*models.CalendarEvent{}
	secondary = []*models.CalendarEvent{}

	type sessionCount struct {
		before int
		after  int
	}
	counts := make(map[string]*sessionCount)

	for _, e := range events {
		day := e.Date.Format("2006-01-02")
		c := counts[day]
		if c == nil {
			c = &sessionCount{}
			counts[day] = c
		}

		switch sessionOf(e.TimeOfDay) {
		case models.TimeBeforeMarket:
			if c.before < primaryPerSession {
				c.before++
				primary = append(primary, e)
			} else {
				secondary = append(secondary, e)
			}
		case models.TimeAfterMarket:
			if c.after < primaryPerSession {
				c.after++
				primary = append(primary, e)
			} else {
				secondary = append(secondary, e)
			}
		}
	}
	return primary, secondary
}

// sessionOf maps a disclosure time-of-day onto a session bucket. An
// absent time counts as before-market, the provider's convention for
// "sometime before the open". Clock times inside regular trading hours
// belong to no session.
func sessionOf(timeOfDay string) string {
	switch timeOfDay {
	case "", models.TimeBeforeMarket:
		return models.TimeBeforeMarket
	case models.TimeAfterMarket:
		return models.TimeAfterMarket
	}

	minutes, ok := parseClock(timeOfDay)
	if !ok {
		return ""
	}
	if minutes < marketOpen {
		return models.TimeBeforeMarket
	}
	if minutes >= marketClose {
		return models.TimeAfterMarket
	}
	return ""
}

// parseClock reads "HH:MM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return clockMinutes(h, m), true
}

func clockMinutes(h, m int) int {
	return h*60 + m
}

// persistEventsAsync writes fetched events to the durable store in
// bounded batches, off the response path.
func (s *CalendarService) persistEventsAsync(events []*models.CalendarEvent) {
	if len(events) == 0 {
		return
	}
	s.tasks.Submit("persist-calendar", func() {
		if err := s.store.UpsertCalendarEvents(events); err != nil {
			s.log.Error().Err(err).Int("events", len(events)).Msg("failed to persist calendar events")
			return
		}
		if s.events != nil {
			if err := s.events.PublishCalendarSynced(context.Background(), len(events)); err != nil {
				s.log.Error().Err(err).Msg("failed to publish calendar sync event")
			}
		}
	})
}

func (s *CalendarService) cacheResultAsync(key string, events []*models.CalendarEvent, ttl time.Duration) {
	s.tasks.Submit("cache-calendar", func() {
		if err := s.cache.SetWithTTL(context.Background(), key, events, ttl); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("failed to cache calendar result")
		}
	})
}
