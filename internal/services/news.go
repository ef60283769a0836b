package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/policy"
)

// NewsService is a short-TTL cache-aside passthrough to the provider's
// news feed. News has no durable tier: it goes stale in minutes and can
// always be re-fetched.
type NewsService struct {
	cache    cache.Cache
	upstream Upstream
	tasks    *TaskRunner
	log      zerolog.Logger
}

// NewNewsService wires the service.
func NewNewsService(c cache.Cache, u Upstream, t *TaskRunner, log zerolog.Logger) *NewsService {
	return &NewsService{
		cache:    c,
		upstream: u,
		tasks:    t,
		log:      log.With().Str("service", "news").Logger(),
	}
}

// GetNews returns recent articles matching the filter.
func (s *NewsService) GetNews(ctx context.Context, f models.NewsFilter) ([]*models.NewsArticle, error) {
	key := cache.NewsKey(f)

	var cached []*models.NewsArticle
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	articles, err := s.upstream.FetchNews(ctx, f)
	if err != nil {
		return nil, err
	}
	if articles == nil {
		articles = []*models.NewsArticle{}
	}

	s.tasks.Submit("cache-news", func() {
		if err := s.cache.SetWithTTL(context.Background(), key, articles, policy.NewsCacheTTL); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("failed to cache news result")
		}
	})
	return articles, nil
}
