package database

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/models"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
func str(v string) *string   { return &v }

func TestReferenceRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("UpsertReference creates new record", func(t *testing.T) {
		testDB.TruncateAll(t)

		record := &models.ReferenceRecord{
			Symbol:            "AAPL",
			CompanyName:       "Apple Inc.",
			Exchange:          str("NASDAQ"),
			Sector:            str("Technology"),
			Industry:          str("Consumer Electronics"),
			Employees:         i64(160000),
			MarketCap:         f64(2800000000000),
			CurrentPrice:      f64(175.50),
			Week52High:        f64(199.62),
			Week52Low:         f64(124.17),
			Revenue:           f64(383000000000),
			GrossProfit:       f64(169000000000),
			OperatingCashFlow: f64(110000000000),
			LastUpdated:       time.Now(),
		}

		err := testDB.UpsertReference(record)
		require.NoError(t, err)

		retrieved, err := testDB.GetReference("AAPL")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", retrieved.Symbol)
		assert.Equal(t, "Apple Inc.", retrieved.CompanyName)
		require.NotNil(t, retrieved.Exchange)
		assert.Equal(t, "NASDAQ", *retrieved.Exchange)
		require.NotNil(t, retrieved.MarketCap)
		assert.Equal(t, 2800000000000.0, *retrieved.MarketCap)
		require.NotNil(t, retrieved.Employees)
		assert.Equal(t, int64(160000), *retrieved.Employees)
	})

	t.Run("UpsertReference replaces existing row column for column", func(t *testing.T) {
		testDB.TruncateAll(t)

		first := &models.ReferenceRecord{
			Symbol:       "MSFT",
			CompanyName:  "Microsoft Corporation",
			CurrentPrice: f64(380.00),
			Revenue:      f64(211900000000),
			LastUpdated:  time.Now().Add(-time.Hour),
		}
		require.NoError(t, testDB.UpsertReference(first))

		second := &models.ReferenceRecord{
			Symbol:       "MSFT",
			CompanyName:  "Microsoft Corporation",
			CurrentPrice: f64(385.25),
			Revenue:      f64(211900000000),
			NetIncome:    f64(72400000000),
			LastUpdated:  time.Now(),
		}
		require.NoError(t, testDB.UpsertReference(second))

		retrieved, err := testDB.GetReference("MSFT")
		require.NoError(t, err)
		require.NotNil(t, retrieved.CurrentPrice)
		assert.Equal(t, 385.25, *retrieved.CurrentPrice)
		require.NotNil(t, retrieved.NetIncome)
		assert.Equal(t, 72400000000.0, *retrieved.NetIncome)
	})

	t.Run("NULL columns round trip as nil pointers", func(t *testing.T) {
		testDB.TruncateAll(t)

		record := &models.ReferenceRecord{
			Symbol:      "NEWCO",
			CompanyName: "NewCo Holdings",
			LastUpdated: time.Now(),
		}
		require.NoError(t, testDB.UpsertReference(record))

		retrieved, err := testDB.GetReference("NEWCO")
		require.NoError(t, err)
		assert.Nil(t, retrieved.Exchange)
		assert.Nil(t, retrieved.MarketCap)
		assert.Nil(t, retrieved.Revenue)
		assert.Nil(t, retrieved.GrossMargin)
	})

	t.Run("GetReference is case insensitive on symbol", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertReference(&models.ReferenceRecord{
			Symbol:      "googl",
			CompanyName: "Alphabet Inc.",
			LastUpdated: time.Now(),
		}))

		retrieved, err := testDB.GetReference("GoOgL")
		require.NoError(t, err)
		assert.Equal(t, "GOOGL", retrieved.Symbol)
	})

	t.Run("GetReference returns ErrNotFound for unknown symbol", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetReference("NONEXISTENT")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("GetMarketCaps returns only symbols with a stored cap", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertReference(&models.ReferenceRecord{
			Symbol:      "AAPL",
			CompanyName: "Apple Inc.",
			MarketCap:   f64(2800000000000),
			LastUpdated: time.Now(),
		}))
		require.NoError(t, testDB.UpsertReference(&models.ReferenceRecord{
			Symbol:      "NEWCO",
			CompanyName: "NewCo Holdings",
			LastUpdated: time.Now(),
		}))

		caps, err := testDB.GetMarketCaps([]string{"aapl", "NEWCO", "UNKNOWN"})
		require.NoError(t, err)
		require.Len(t, caps, 1)
		assert.Equal(t, 2800000000000.0, caps["AAPL"])
	})

	t.Run("GetMarketCaps with no symbols returns empty map", func(t *testing.T) {
		caps, err := testDB.GetMarketCaps(nil)
		require.NoError(t, err)
		assert.Empty(t, caps)
	})

	t.Run("GetSymbolsMissingMarketCap finds NULL and stale caps", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertReference(&models.ReferenceRecord{
			Symbol:      "FRESH",
			CompanyName: "Fresh Corp.",
			MarketCap:   f64(1000000000),
			LastUpdated: time.Now(),
		}))
		require.NoError(t, testDB.UpsertReference(&models.ReferenceRecord{
			Symbol:      "NOCAP",
			CompanyName: "NoCap Corp.",
			LastUpdated: time.Now(),
		}))
		require.NoError(t, testDB.UpsertReference(&models.ReferenceRecord{
			Symbol:      "STALE",
			CompanyName: "Stale Corp.",
			MarketCap:   f64(2000000000),
			LastUpdated: time.Now().Add(-48 * time.Hour),
		}))

		symbols, err := testDB.GetSymbolsMissingMarketCap(time.Now().Add(-24 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{"NOCAP", "STALE"}, symbols)
	})

	t.Run("DeleteReference removes the row", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertReference(&models.ReferenceRecord{
			Symbol:      "GONE",
			CompanyName: "Gone Corp.",
			LastUpdated: time.Now(),
		}))
		require.NoError(t, testDB.DeleteReference("GONE"))

		_, err := testDB.GetReference("GONE")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
