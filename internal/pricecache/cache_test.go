package pricecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricefolio/internal/models"
)

type storeStub struct {
	mu      sync.Mutex
	upserts []models.PriceQuote
	listed  []models.PriceQuote
	listErr error
	putErr  error
	delErr  error
	deletes int
}

func (s *storeStub) UpsertQuote(_ context.Context, q models.PriceQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.upserts = append(s.upserts, q)
	return nil
}

func (s *storeStub) ListQuotes(_ context.Context) ([]models.PriceQuote, error) {
	return s.listed, s.listErr
}

func (s *storeStub) DeleteAllQuotes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	return s.delErr
}

func (s *storeStub) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

var testTTLs = map[models.AssetClass]time.Duration{
	models.AssetCrypto: 5 * time.Minute,
	models.AssetMetal:  60 * time.Minute,
}

func quoteAt(symbol string, class models.AssetClass, at time.Time) models.PriceQuote {
	return models.PriceQuote{
		Symbol:     symbol,
		AssetClass: class,
		Price:      decimal.NewFromInt(100),
		Currency:   "USD",
		Source:     "finnhub",
		FetchedAt:  at,
	}
}

func TestFreshRespectsPerClassTTL(t *testing.T) {
	c := New(nil, testTTLs, 60*time.Second, logrus.New())
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Put(quoteAt("AAPL", models.AssetEquity, t0))
	c.Put(quoteAt("BTC", models.AssetCrypto, t0))

	c.now = func() time.Time { return t0.Add(59 * time.Second) }
	_, ok := c.Fresh("AAPL", models.AssetEquity)
	assert.True(t, ok, "59s old equity quote should be fresh")

	c.now = func() time.Time { return t0.Add(60 * time.Second) }
	_, ok = c.Fresh("AAPL", models.AssetEquity)
	assert.False(t, ok, "quote at exactly its TTL is stale")

	c.now = func() time.Time { return t0.Add(4 * time.Minute) }
	_, ok = c.Fresh("BTC", models.AssetCrypto)
	assert.True(t, ok, "crypto runs on a 5m TTL")
}

func TestGetReturnsStaleEntries(t *testing.T) {
	c := New(nil, testTTLs, 60*time.Second, logrus.New())
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Put(quoteAt("AAPL", models.AssetEquity, t0))
	c.now = func() time.Time { return t0.Add(24 * time.Hour) }

	_, ok := c.Fresh("AAPL", models.AssetEquity)
	require.False(t, ok)
	q, ok := c.Get("AAPL", models.AssetEquity)
	require.True(t, ok)
	assert.Equal(t, "AAPL", q.Symbol)
}

func TestTTLFallsBackToDefault(t *testing.T) {
	c := New(nil, testTTLs, 60*time.Second, logrus.New())
	assert.Equal(t, 5*time.Minute, c.TTL(models.AssetCrypto))
	assert.Equal(t, 60*time.Second, c.TTL(models.AssetEquity))
}

func TestPutPersistsInBackground(t *testing.T) {
	store := &storeStub{}
	c := New(store, testTTLs, 60*time.Second, logrus.New())

	c.Put(quoteAt("BTC", models.AssetCrypto, time.Now()))
	c.Close()

	require.Equal(t, 1, store.upsertCount())
	assert.Equal(t, "BTC", store.upserts[0].Symbol)
}

func TestPutSurvivesStoreFailure(t *testing.T) {
	store := &storeStub{putErr: errors.New("connection refused")}
	c := New(store, testTTLs, 60*time.Second, logrus.New())
	t0 := time.Now()
	c.now = func() time.Time { return t0 }

	c.Put(quoteAt("BTC", models.AssetCrypto, t0))
	c.Close()

	_, ok := c.Fresh("BTC", models.AssetCrypto)
	assert.True(t, ok, "memory tier must not depend on the store")
}

func TestLoadPersistedKeepsNewestOnKeyCollision(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	older := quoteAt("BTC", models.AssetCrypto, t0)
	older.Currency = "EUR"
	newer := quoteAt("BTC", models.AssetCrypto, t0.Add(time.Minute))

	for _, listed := range [][]models.PriceQuote{
		{older, newer},
		{newer, older},
	} {
		store := &storeStub{listed: listed}
		c := New(store, testTTLs, 60*time.Second, logrus.New())

		n, err := c.LoadPersisted(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		q, ok := c.Get("BTC", models.AssetCrypto)
		require.True(t, ok)
		assert.Equal(t, "USD", q.Currency)
		assert.True(t, q.FetchedAt.Equal(t0.Add(time.Minute)))
	}
}

func TestLoadPersistedError(t *testing.T) {
	store := &storeStub{listErr: errors.New("relation does not exist")}
	c := New(store, testTTLs, 60*time.Second, logrus.New())

	_, err := c.LoadPersisted(context.Background())
	assert.Error(t, err)
}

func TestAllIsSortedByClassThenSymbol(t *testing.T) {
	c := New(nil, testTTLs, 60*time.Second, logrus.New())
	now := time.Now()
	c.Put(quoteAt("XAU", models.AssetMetal, now))
	c.Put(quoteAt("ETH", models.AssetCrypto, now))
	c.Put(quoteAt("AAPL", models.AssetEquity, now))
	c.Put(quoteAt("BTC", models.AssetCrypto, now))

	var got []string
	for _, q := range c.All() {
		got = append(got, string(q.AssetClass)+"/"+q.Symbol)
	}
	assert.Equal(t, []string{"crypto/BTC", "crypto/ETH", "equity/AAPL", "metal/XAU"}, got)
}

func TestClearWipesBothTiers(t *testing.T) {
	store := &storeStub{}
	c := New(store, testTTLs, 60*time.Second, logrus.New())
	c.Put(quoteAt("AAPL", models.AssetEquity, time.Now()))
	c.Close()

	require.NoError(t, c.Clear(context.Background()))

	_, ok := c.Get("AAPL", models.AssetEquity)
	assert.False(t, ok)
	assert.Equal(t, 1, store.deletes)
}

func TestClearWipesMemoryEvenWhenStoreFails(t *testing.T) {
	store := &storeStub{delErr: errors.New("connection refused")}
	c := New(store, testTTLs, 60*time.Second, logrus.New())
	c.Put(quoteAt("AAPL", models.AssetEquity, time.Now()))
	c.Close()

	err := c.Clear(context.Background())
	assert.Error(t, err)
	_, ok := c.Get("AAPL", models.AssetEquity)
	assert.False(t, ok)
}
