package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/policy"
)

func branding(symbol string) *models.BrandingRecord {
	return &models.BrandingRecord{
		Symbol:    symbol,
		LogoURL:   "https://cdn.example.com/" + symbol + ".svg",
		IconURL:   "https://cdn.example.com/" + symbol + "-icon.svg",
		FetchedAt: time.Now(),
	}
}

func newBrandingFixture() (*BrandingService, *fakeCache, *fakeStore, *fakeUpstream, *TaskRunner) {
	fc := newFakeCache()
	fs := newFakeStore()
	fu := newFakeUpstream()
	runner := newTestRunner()
	svc := NewBrandingService(fc, fs, fu, runner, zerolog.Nop())
	return svc, fc, fs, fu, runner
}

func TestGetBranding(t *testing.T) {
	ctx := context.Background()

	t.Run("upstream miss populates store and cache", func(t *testing.T) {
		svc, fc, fs, fu, runner := newBrandingFixture()
		defer runner.Close()
		fu.brandings["AAPL"] = branding("AAPL")

		got, err := svc.GetBranding(ctx, "aapl")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", got.Symbol)
		assert.Equal(t, 1, fu.brandingCalls)

		drainTasks(runner)
		stored, err := fs.GetBranding("AAPL")
		require.NoError(t, err)
		assert.Equal(t, got.LogoURL, stored.LogoURL)
		assert.True(t, fc.has(cache.BrandingKey("AAPL")))
		assert.Equal(t, policy.BrandingCacheTTL, fc.ttlOf(cache.BrandingKey("AAPL")))

		// Second read is served without touching the provider.
		_, err = svc.GetBranding(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 1, fu.brandingCalls)
	})

	t.Run("store hit warms the cache without an upstream call", func(t *testing.T) {
		svc, fc, fs, fu, runner := newBrandingFixture()
		defer runner.Close()
		require.NoError(t, fs.UpsertBranding(branding("MSFT")))

		got, err := svc.GetBranding(ctx, "MSFT")
		require.NoError(t, err)
		assert.Equal(t, "MSFT", got.Symbol)
		assert.Equal(t, 0, fu.brandingCalls)

		drainTasks(runner)
		assert.True(t, fc.has(cache.BrandingKey("MSFT")))
	})

	t.Run("unknown symbol returns not found", func(t *testing.T) {
		svc, _, _, _, runner := newBrandingFixture()
		defer runner.Close()

		_, err := svc.GetBranding(ctx, "ZZZZ")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestRefreshBranding(t *testing.T) {
	ctx := context.Background()

	t.Run("refresh evicts the cached entry and repopulates", func(t *testing.T) {
		svc, fc, fs, fu, runner := newBrandingFixture()
		defer runner.Close()
		fu.brandings["AAPL"] = branding("AAPL")

		_, err := svc.GetBranding(ctx, "AAPL")
		require.NoError(t, err)
		drainTasks(runner)
		require.True(t, fc.has(cache.BrandingKey("AAPL")))

		// Provider starts serving a new logo; the stored copy still has
		// the old one.
		updated := branding("AAPL")
		updated.LogoURL = "https://cdn.example.com/AAPL-v2.svg"
		fu.brandings["AAPL"] = updated
		require.NoError(t, fs.DeleteBranding("AAPL"))

		got, err := svc.RefreshBranding(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, updated.LogoURL, got.LogoURL)
		assert.Equal(t, 2, fu.brandingCalls)
	})
}

func TestInvalidateBranding(t *testing.T) {
	svc, fc, _, fu, runner := newBrandingFixture()
	defer runner.Close()
	fu.brandings["AAPL"] = branding("AAPL")

	ctx := context.Background()
	_, err := svc.GetBranding(ctx, "AAPL")
	require.NoError(t, err)
	drainTasks(runner)
	require.True(t, fc.has(cache.BrandingKey("AAPL")))

	require.NoError(t, svc.InvalidateBranding(ctx, "aapl"))
	assert.False(t, fc.has(cache.BrandingKey("AAPL")))
}
