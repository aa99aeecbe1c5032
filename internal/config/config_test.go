package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"CATALOG_PRICES_PATH":  "testdata/prices.json",
		"CATALOG_DETAILS_PATH": "",
		"CATALOG_DATABASE_URL": "",
		"REDIS_URL":            "",
		"APP_ENV":              "",
		"PORT":                 "",
		"PRICING_PRIVATE_BASE": "",
		"PRICING_TOURIST_BASE": "",
		"PRICING_TAX_RATE_BPS": "",
		"SEARCH_MAX_RESULTS":   "",
		"QUOTE_TTL":            "",
	})
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, int64(710), cfg.PrivateBase)
	require.Equal(t, int64(890), cfg.TouristBase)
	require.Equal(t, 1800, cfg.TaxRateBps)
	require.Equal(t, 15, cfg.SearchMaxResults)
	require.Equal(t, 24*time.Hour, cfg.QuoteTTL)
	require.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"CATALOG_PRICES_PATH":  "",
		"CATALOG_DATABASE_URL": "postgres://localhost/labquote",
		"PORT":                 "9090",
		"PRICING_PRIVATE_BASE": "650.4",
		"PRICING_TOURIST_BASE": "820",
		"SEARCH_MAX_RESULTS":   "25",
		"QUOTE_TTL":            "48h",
		"RATE_LIMIT_WINDOW":    "30s",
		"RATE_LIMIT_MAX":       "60",
	})
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, int64(650), cfg.PrivateBase)
	require.Equal(t, int64(820), cfg.TouristBase)
	require.Equal(t, 25, cfg.SearchMaxResults)
	require.Equal(t, 48*time.Hour, cfg.QuoteTTL)
	require.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	require.Equal(t, 60, cfg.RateLimitMax)
}

func TestLoadRequiresCatalogSource(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"CATALOG_PRICES_PATH":  "",
		"CATALOG_DATABASE_URL": "",
	})
	require.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"CATALOG_PRICES_PATH":  "testdata/prices.json",
		"PRICING_PRIVATE_BASE": "-10",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"CATALOG_PRICES_PATH": "testdata/prices.json",
		"SEARCH_MAX_RESULTS":  "0",
	})
	require.Error(t, err)
}
