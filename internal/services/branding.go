package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/database"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/policy"
	"github.com/marketlens/marketlens/internal/upstream"
)

// BrandingService serves logo assets through a single-pass
// cache → store → upstream fallback. Branding is atomic: a refresh
// replaces the whole record, there is no field merge.
type BrandingService struct {
	cache    cache.Cache
	store    Store
	upstream Upstream
	tasks    *TaskRunner
	log      zerolog.Logger
}

// NewBrandingService wires the service.
func NewBrandingService(c cache.Cache, s Store, u Upstream, t *TaskRunner, log zerolog.Logger) *BrandingService {
	return &BrandingService{
		cache:    c,
		store:    s,
		upstream: u,
		tasks:    t,
		log:      log.With().Str("service", "branding").Logger(),
	}
}

// GetBranding returns the branding record for one symbol.
func (s *BrandingService) GetBranding(ctx context.Context, symbol string) (*models.BrandingRecord, error) {
	symbol = strings.ToUpper(symbol)
	key := cache.BrandingKey(symbol)

	var cached models.BrandingRecord
	if err := s.cache.Get(ctx, key, &cached); err == nil && cached.Symbol != "" {
		return &cached, nil
	}

	stored, err := s.store.GetBranding(symbol)
	if err == nil {
		s.cacheAsync(key, stored)
		return stored, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("store lookup failed, falling through to upstream")
	}

	fetched, err := s.upstream.FetchBranding(ctx, symbol)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.persistAsync(fetched)
	return fetched, nil
}

// RefreshBranding invalidates the cached entry and re-runs the lookup,
// forcing re-population from the store or the provider.
func (s *BrandingService) RefreshBranding(ctx context.Context, symbol string) (*models.BrandingRecord, error) {
	symbol = strings.ToUpper(symbol)
	if err := s.cache.Delete(ctx, cache.BrandingKey(symbol)); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to evict branding cache entry")
	}
	return s.GetBranding(ctx, symbol)
}

// InvalidateBranding evicts the cached entry only.
func (s *BrandingService) InvalidateBranding(ctx context.Context, symbol string) error {
	return s.cache.Delete(ctx, cache.BrandingKey(strings.ToUpper(symbol)))
}

func (s *BrandingService) persistAsync(b *models.BrandingRecord) {
	s.tasks.Submit("persist-branding", func() {
		if err := s.store.UpsertBranding(b); err != nil {
			s.log.Error().Err(err).Str("symbol", b.Symbol).Msg("failed to persist branding record")
		}
		if err := s.cache.SetWithTTL(context.Background(), cache.BrandingKey(b.Symbol), b, policy.BrandingCacheTTL); err != nil {
			s.log.Error().Err(err).Str("symbol", b.Symbol).Msg("failed to cache branding record")
		}
	})
}

func (s *BrandingService) cacheAsync(key string, b *models.BrandingRecord) {
	s.tasks.Submit("cache-branding", func() {
		if err := s.cache.SetWithTTL(context.Background(), key, b, policy.BrandingCacheTTL); err != nil {
			s.log.Error().Err(err).Str("symbol", b.Symbol).Msg("failed to cache branding record")
		}
	})
}
