package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/database"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/policy"
	"github.com/marketlens/marketlens/internal/upstream"
)

// referenceEnvelope is what the fast tier stores per symbol: either the
// record or a negative marker so invalid symbols do not hammer the
// provider on every read.
type referenceEnvelope struct {
	NotFound bool                    `json:"not_found,omitempty"`
	Record   *models.ReferenceRecord `json:"record,omitempty"`
}

// ReferenceService serves company reference data through the
// cache → store → upstream chain with merge-not-replace refresh.
type ReferenceService struct {
	cache    cache.Cache
	store    Store
	upstream Upstream
	tasks    *TaskRunner
	events   Publisher
	log      zerolog.Logger
	now      func() time.Time
}

// NewReferenceService wires the service. events may be nil.
func NewReferenceService(c cache.Cache, s Store, u Upstream, t *TaskRunner, p Publisher, log zerolog.Logger) *ReferenceService {
	return &ReferenceService{
		cache:    c,
		store:    s,
		upstream: u,
		tasks:    t,
		events:   p,
		log:      log.With().Str("service", "reference").Logger(),
		now:      time.Now,
	}
}

// GetReference returns the reference record for one symbol, refreshing
// from upstream when the stored record is absent, stale, or incomplete.
func (s *ReferenceService) GetReference(ctx context.Context, symbol string) (*models.ReferenceRecord, error) {
	symbol = strings.ToUpper(symbol)
	key := cache.ReferenceKey(symbol)

	var env referenceEnvelope
	if err := s.cache.Get(ctx, key, &env); err == nil {
		if env.NotFound {
			return nil, ErrNotFound
		}
		if env.Record != nil {
			return env.Record, nil
		}
	}

	existing, err := s.store.GetReference(symbol)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		// Store outage degrades to a full miss; upstream still answers.
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("store lookup failed, falling through to upstream")
		existing = nil
	}

	now := s.now()
	if existing != nil &&
		!policy.IsStale(existing.LastUpdated, policy.ReferenceStaleness, now) &&
		!policy.IsIncomplete(existing) {
		s.cacheRecordAsync(symbol, existing)
		return existing, nil
	}

	// Stale records are refreshed across the board; fresh-but-incomplete
	// records only re-fetch the categories with missing fields.
	full := existing == nil || policy.IsStale(existing.LastUpdated, policy.ReferenceStaleness, now)
	patch, profileErr := s.fetchPatch(ctx, symbol, existing, full)

	if existing == nil && !patch.FetchedProfile {
		if errors.Is(profileErr, upstream.ErrNotFound) {
			s.cacheNegativeAsync(symbol)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch reference data for %s: %w", symbol, profileErr)
	}

	if patch.Empty() {
		// Every category failed this cycle; serve what we have.
		s.cacheRecordAsync(symbol, existing)
		return existing, nil
	}

	merged := MergePatch(existing, symbol, patch)
	merged.LastUpdated = now
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}

	s.persistAsync(symbol, merged)
	return merged, nil
}

// GetReferenceMany resolves a batch of symbols: one cache multi-get
// partitions the batch into hits and misses, misses go through the
// single-symbol path concurrently, and the result is keyed by symbol so
// completion order never matters. Unknown symbols are simply absent.
func (s *ReferenceService) GetReferenceMany(ctx context.Context, symbols []string) (map[string]*models.ReferenceRecord, error) {
	results := make(map[string]*models.ReferenceRecord, len(symbols))
	if len(symbols) == 0 {
		return results, nil
	}

	seen := make(map[string]bool, len(symbols))
	keys := make([]string, 0, len(symbols))
	ordered := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		ordered = append(ordered, sym)
		keys = append(keys, cache.ReferenceKey(sym))
	}

	hits, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		hits = map[string][]byte{}
	}

	var misses []string
	for _, sym := range ordered {
		data, ok := hits[cache.ReferenceKey(sym)]
		if !ok {
			misses = append(misses, sym)
			continue
		}
		var env referenceEnvelope
		if err := decodeEnvelope(data, &env); err != nil || env.Record == nil {
			if env.NotFound {
				continue
			}
			misses = append(misses, sym)
			continue
		}
		results[sym] = env.Record
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sym := range misses {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			record, err := s.GetReference(ctx, sym)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					s.log.Warn().Err(err).Str("symbol", sym).Msg("batch reference fetch failed")
				}
				return
			}
			mu.Lock()
			results[sym] = record
			mu.Unlock()
		}(sym)
	}
	wg.Wait()

	return results, nil
}

// InvalidateReference evicts the cached entry so the next read goes
// back to the durable store (or upstream).
func (s *ReferenceService) InvalidateReference(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)
	if err := s.cache.Delete(ctx, cache.ReferenceKey(symbol)); err != nil {
		return err
	}
	if s.events != nil {
		s.tasks.Submit("publish-invalidation", func() {
			if err := s.events.PublishCacheInvalidated(context.Background(), "reference", symbol); err != nil {
				s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to publish invalidation event")
			}
		})
	}
	return nil
}

// RefreshMissingMarketCaps re-fetches profiles for symbols whose market
// cap is unknown or older than the market-cap staleness window. Run by
// the scheduler; also the follow-up for symbols the calendar filter had
// to drop.
func (s *ReferenceService) RefreshMissingMarketCaps(ctx context.Context) error {
	cutoff := s.now().Add(-policy.MarketCapStaleness)
	symbols, err := s.store.GetSymbolsMissingMarketCap(cutoff)
	if err != nil {
		return fmt.Errorf("failed to list symbols missing market cap: %w", err)
	}

	for _, sym := range symbols {
		s.fetchMarketCapAsync(sym)
	}
	return nil
}

// fetchMarketCapAsync schedules a profile fetch-and-persist for one
// symbol so its market cap is known on the next calendar read.
func (s *ReferenceService) fetchMarketCapAsync(symbol string) {
	symbol = strings.ToUpper(symbol)
	s.tasks.Submit("fetch-market-cap", func() {
		ctx := context.Background()
		profile, err := s.upstream.FetchProfile(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("background market cap fetch failed")
			return
		}

		existing, err := s.store.GetReference(symbol)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("store lookup failed during market cap refresh")
			return
		}

		var patch models.ReferencePatch
		applyProfile(&patch, profile)
		merged := MergePatch(existing, symbol, patch)
		merged.LastUpdated = s.now()
		if merged.CreatedAt.IsZero() {
			merged.CreatedAt = merged.LastUpdated
		}
		if err := s.store.UpsertReference(merged); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist market cap refresh")
		}
	})
}

// fetchPatch issues the category sub-fetches concurrently and joins
// them into one patch. full re-fetches every category; otherwise only
// the categories whose fields are still missing on the existing record
// are requested. Each category fails independently: a timeout or
// provider error just leaves that category's fields at their prior
// value. The returned error is the profile fetch error, the only one
// with routing significance.
func (s *ReferenceService) fetchPatch(ctx context.Context, symbol string, existing *models.ReferenceRecord, full bool) (models.ReferencePatch, error) {
	var (
		patch      models.ReferencePatch
		mu         sync.Mutex
		wg         sync.WaitGroup
		profileErr error
	)

	fetch := func(category string, needed bool, do func() error) {
		if !needed {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := do(); err != nil {
				if category == "profile" {
					mu.Lock()
					profileErr = err
					mu.Unlock()
				}
				s.log.Warn().Err(err).Str("symbol", symbol).Str("category", category).
					Msg("category fetch failed, keeping prior values")
			}
		}()
	}

	fetch("profile", full || needsProfile(existing), func() error {
		p, err := s.upstream.FetchProfile(ctx, symbol)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		applyProfile(&patch, p)
		return nil
	})

	fetch("ratios", full || needsRatios(existing), func() error {
		r, err := s.upstream.FetchRatios(ctx, symbol)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		patch.PERatio = r.PERatio
		patch.PriceToBook = r.PriceToBook
		patch.PriceToSales = r.PriceToSales
		patch.ROE = r.ROE
		patch.ROA = r.ROA
		patch.CurrentRatio = r.CurrentRatio
		patch.DebtToEquity = r.DebtToEquity
		patch.DividendYield = r.DividendYield
		patch.FetchedRatios = true
		return nil
	})

	fetch("income", full || needsIncome(existing), func() error {
		is, err := s.upstream.FetchIncomeStatement(ctx, symbol)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		patch.Revenue = is.Revenue
		patch.NetIncome = is.NetIncome
		patch.OperatingIncome = is.OperatingIncome
		patch.GrossProfit = is.GrossProfit
		patch.EBITDA = is.EBITDA
		patch.FetchedIncome = true
		return nil
	})

	fetch("balance", full || needsBalance(existing), func() error {
		bs, err := s.upstream.FetchBalanceSheet(ctx, symbol)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		patch.TotalAssets = bs.TotalAssets
		patch.TotalLiabilities = bs.TotalLiabilities
		patch.TotalEquity = bs.TotalEquity
		patch.FetchedBalance = true
		return nil
	})

	fetch("cashflow", full || needsCashFlow(existing), func() error {
		cf, err := s.upstream.FetchCashFlow(ctx, symbol)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		patch.OperatingCashFlow = cf.OperatingCashFlow
		patch.FreeCashFlow = cf.FreeCashFlow
		patch.CapitalExpenditure = cf.CapitalExpenditure
		patch.FetchedCashFlow = true
		return nil
	})

	fetch("week-range", full || needsWeekRange(existing), func() error {
		wr, err := s.upstream.Fetch52WeekRange(ctx, symbol)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		patch.Week52High = wr.Week52High
		patch.Week52Low = wr.Week52Low
		patch.AverageVolume = wr.AverageVolume
		patch.FetchedWeekRange = true
		return nil
	})

	wg.Wait()
	return patch, profileErr
}

func applyProfile(patch *models.ReferencePatch, p *upstream.Profile) {
	if p.CompanyName != "" {
		patch.CompanyName = &p.CompanyName
	}
	patch.Exchange = p.Exchange
	patch.Sector = p.Sector
	patch.Industry = p.Industry
	patch.Description = p.Description
	patch.Website = p.Website
	patch.Currency = p.Currency
	patch.Employees = p.Employees
	patch.MarketCap = p.MarketCap
	patch.SharesOutstanding = p.SharesOutstanding
	patch.CurrentPrice = p.Price
	patch.FetchedProfile = true
}

// Category need predicates: a category is re-fetched when any of its
// fields is still unknown.

func needsProfile(r *models.ReferenceRecord) bool {
	return r == nil || r.Exchange == nil || r.Sector == nil || r.Industry == nil ||
		r.MarketCap == nil || r.CurrentPrice == nil
}

func needsRatios(r *models.ReferenceRecord) bool {
	return r == nil || r.PERatio == nil || r.PriceToBook == nil || r.DividendYield == nil
}

func needsIncome(r *models.ReferenceRecord) bool {
	return r == nil || r.Revenue == nil || r.NetIncome == nil || r.OperatingIncome == nil
}

func needsBalance(r *models.ReferenceRecord) bool {
	return r == nil || r.TotalAssets == nil || r.TotalLiabilities == nil || r.TotalEquity == nil
}

func needsCashFlow(r *models.ReferenceRecord) bool {
	return r == nil || r.OperatingCashFlow == nil || r.FreeCashFlow == nil
}

func needsWeekRange(r *models.ReferenceRecord) bool {
	return r == nil || r.Week52High == nil || r.Week52Low == nil || r.AverageVolume == nil
}

func decodeEnvelope(data []byte, env *referenceEnvelope) error {
	return json.Unmarshal(data, env)
}

// persistAsync hands the merged record to the task runner: durable
// store, fast cache and the refresh event all happen off the response
// path, and their failures are logged, never surfaced.
func (s *ReferenceService) persistAsync(symbol string, record *models.ReferenceRecord) {
	s.tasks.Submit("persist-reference", func() {
		ctx := context.Background()
		if err := s.store.UpsertReference(record); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist reference record")
		}
		env := referenceEnvelope{Record: record}
		if err := s.cache.SetWithTTL(ctx, cache.ReferenceKey(symbol), env, policy.ReferenceCacheTTL); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to cache reference record")
		}
		if s.events != nil {
			if err := s.events.PublishReferenceRefreshed(ctx, symbol); err != nil {
				s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to publish refresh event")
			}
		}
	})
}

// cacheRecordAsync caches an already-stored record for whatever is
// left of its trust window, so the cache entry expires no later than
// the record goes stale and the next read re-triggers the refresh. A
// record at or past the window is not cached at all.
func (s *ReferenceService) cacheRecordAsync(symbol string, record *models.ReferenceRecord) {
	if record == nil {
		return
	}
	ttl := policy.ReferenceCacheTTL
	if remaining := policy.ReferenceStaleness - s.now().Sub(record.LastUpdated); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	s.tasks.Submit("cache-reference", func() {
		env := referenceEnvelope{Record: record}
		if err := s.cache.SetWithTTL(context.Background(), cache.ReferenceKey(symbol), env, ttl); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to cache reference record")
		}
	})
}

func (s *ReferenceService) cacheNegativeAsync(symbol string) {
	s.tasks.Submit("cache-negative", func() {
		env := referenceEnvelope{NotFound: true}
		if err := s.cache.SetWithTTL(context.Background(), cache.ReferenceKey(symbol), env, policy.NegativeCacheTTL); err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to cache negative result")
		}
	})
}
