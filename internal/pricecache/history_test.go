package pricecache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricefolio/internal/models"
)

func points(n int) []models.PricePoint {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pts := make([]models.PricePoint, n)
	for i := range pts {
		pts[i] = models.PricePoint{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Price:     decimal.NewFromInt(int64(100 + i)),
		}
	}
	return pts
}

func TestHistoryRoundTripAndExpiry(t *testing.T) {
	h := NewHistory(5 * time.Minute)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return t0 }

	h.Put("BTC", models.AssetCrypto, 7, points(3))

	h.now = func() time.Time { return t0.Add(4 * time.Minute) }
	got, ok := h.Get("BTC", models.AssetCrypto, 7)
	require.True(t, ok)
	assert.Len(t, got, 3)

	h.now = func() time.Time { return t0.Add(5 * time.Minute) }
	_, ok = h.Get("BTC", models.AssetCrypto, 7)
	assert.False(t, ok, "series at exactly its TTL is stale")
}

func TestHistoryKeyIncludesWindow(t *testing.T) {
	h := NewHistory(5 * time.Minute)
	h.Put("BTC", models.AssetCrypto, 7, points(3))

	_, ok := h.Get("BTC", models.AssetCrypto, 30)
	assert.False(t, ok, "a 7 day series must not answer a 30 day request")

	_, ok = h.Get("BTC", models.AssetEquity, 7)
	assert.False(t, ok, "asset class is part of the key")
}
