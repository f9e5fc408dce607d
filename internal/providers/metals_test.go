package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricefolio/internal/models"
)

func TestGoldAPIQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/price/XAU", r.URL.Path)
		w.Write([]byte(`{"name":"Gold","price":2034.25,"symbol":"XAU"}`))
	}))
	defer srv.Close()

	m := NewGoldAPI(srv.URL, testOpts(), logrus.New())
	q, err := m.Quote(context.Background(), "xau")

	require.NoError(t, err)
	assert.Equal(t, "XAU", q.Symbol)
	assert.Equal(t, models.AssetMetal, q.AssetClass)
	assert.True(t, q.Price.Equal(decimal.NewFromFloat(2034.25)))
	assert.True(t, q.Change24h.IsZero())
	assert.False(t, q.ChangePercent24h.Valid, "gold-api has no 24h change")
}

func TestGoldAPIQuoteZeroIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name":"Gold","price":0,"symbol":"XAU"}`))
	}))
	defer srv.Close()

	m := NewGoldAPI(srv.URL, testOpts(), logrus.New())
	_, err := m.Quote(context.Background(), "XAU")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGoldAPIHistoryUnsupported(t *testing.T) {
	m := NewGoldAPI("http://127.0.0.1:1", testOpts(), logrus.New())
	_, err := m.History(context.Background(), "XAU", 7)
	assert.ErrorIs(t, err, ErrNoData)
}
