package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricefolio/internal/aggregator"
	"pricefolio/internal/models"
	"pricefolio/internal/pricecache"
	"pricefolio/internal/resolver"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, symbol string, class models.AssetClass) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	switch class {
	case models.AssetCrypto:
		if sym == "BTC" {
			return "bitcoin", nil
		}
		return "", resolver.ErrSymbolNotFound
	case models.AssetMetal:
		if sym == "GOLD" {
			return "XAU", nil
		}
		return sym, nil
	case models.AssetEquity:
		if sym == "NOPE" {
			return "", resolver.ErrSymbolNotFound
		}
		return sym, nil
	}
	return sym, nil
}

// slowProvider blocks its first call until the context dies, then
// serves instantly.
type slowProvider struct {
	entered chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *slowProvider) Name() string { return "slow" }

func (s *slowProvider) Quote(ctx context.Context, symbol string) (models.PriceQuote, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()
	if first {
		s.entered <- struct{}{}
		<-ctx.Done()
		return models.PriceQuote{}, ctx.Err()
	}
	return models.PriceQuote{
		Symbol:     symbol,
		AssetClass: models.AssetEquity,
		Price:      decimal.NewFromInt(100),
		Currency:   "USD",
		Source:     "slow",
		FetchedAt:  time.Now(),
	}, nil
}

func (s *slowProvider) History(_ context.Context, _ string, _ int) ([]models.PricePoint, error) {
	return nil, errors.New("not implemented")
}

func newService(equities ...aggregator.EquityProvider) (*Portfolio, *pricecache.Cache) {
	log := logrus.New()
	cache := pricecache.New(nil, map[models.AssetClass]time.Duration{
		models.AssetCrypto: 5 * time.Minute,
	}, time.Minute, log)
	agg := aggregator.New(aggregator.Params{
		Cache:    cache,
		History:  pricecache.NewHistory(5 * time.Minute),
		Resolver: fakeResolver{},
		Equities: equities,
		Log:      log,
	})
	return New(agg, cache, fakeResolver{}, 5*time.Second, log), cache
}

func TestPutHoldingCreates(t *testing.T) {
	svc, _ := newService()

	h, err := svc.PutHolding(context.Background(), models.Holding{
		AssetClass: models.AssetEquity,
		Symbol:     " aapl ",
		Quantity:   decimal.NewFromInt(3),
	})

	require.NoError(t, err)
	assert.Len(t, h.ID, 36, "ids are uuids")
	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, "USD", h.Currency)

	list := svc.ListHoldings()
	require.Len(t, list, 1)
	assert.Equal(t, h, list[0])
}

func TestPutHoldingCanonicalizesMetalKeepsCryptoTicker(t *testing.T) {
	svc, _ := newService()

	gold, err := svc.PutHolding(context.Background(), models.Holding{
		AssetClass: models.AssetMetal, Symbol: "gold", Quantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "XAU", gold.Symbol)

	btc, err := svc.PutHolding(context.Background(), models.Holding{
		AssetClass: models.AssetCrypto, Symbol: "btc", Quantity: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "BTC", btc.Symbol, "crypto keeps the ticker, not the coin id")
}

func TestPutHoldingRejectsUnknownSymbol(t *testing.T) {
	svc, _ := newService()

	_, err := svc.PutHolding(context.Background(), models.Holding{
		AssetClass: models.AssetEquity, Symbol: "NOPE", Quantity: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, resolver.ErrSymbolNotFound)
	assert.Empty(t, svc.ListHoldings())
}

func TestPutHoldingUpdateByID(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first, err := svc.PutHolding(ctx, models.Holding{AssetClass: models.AssetEquity, Symbol: "AAPL", Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = svc.PutHolding(ctx, models.Holding{AssetClass: models.AssetEquity, Symbol: "MSFT", Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)

	first.Quantity = decimal.NewFromInt(9)
	_, err = svc.PutHolding(ctx, first)
	require.NoError(t, err)

	list := svc.ListHoldings()
	require.Len(t, list, 2)
	assert.Equal(t, "AAPL", list[0].Symbol, "updates keep insertion order")
	assert.True(t, list[0].Quantity.Equal(decimal.NewFromInt(9)))

	_, err = svc.PutHolding(ctx, models.Holding{ID: "missing", AssetClass: models.AssetCash, Quantity: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteHolding(t *testing.T) {
	svc, _ := newService()
	h, err := svc.PutHolding(context.Background(), models.Holding{AssetClass: models.AssetCash, Quantity: decimal.NewFromInt(100)})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteHolding(h.ID))
	assert.Empty(t, svc.ListHoldings())
	assert.ErrorIs(t, svc.DeleteHolding(h.ID), ErrNotFound)
}

func TestRefreshSupersedesInFlightRefresh(t *testing.T) {
	slow := &slowProvider{entered: make(chan struct{}, 1)}
	svc, _ := newService(slow)
	ctx := context.Background()

	_, err := svc.PutHolding(ctx, models.Holding{AssetClass: models.AssetEquity, Symbol: "AAPL", Quantity: decimal.NewFromInt(1)})
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.RefreshPrices(ctx)
		firstErr <- err
	}()
	<-slow.entered

	quotes, err := svc.RefreshPrices(ctx)
	require.NoError(t, err)
	assert.Len(t, quotes, 1)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled, "the older refresh is canceled")
	case <-time.After(2 * time.Second):
		t.Fatal("superseded refresh never returned")
	}

	svc.Close()
}

func TestSummaryPrefersFreshQuoteAndIsStable(t *testing.T) {
	svc, cache := newService()
	ctx := context.Background()

	_, err := svc.PutHolding(ctx, models.Holding{
		AssetClass:  models.AssetEquity,
		Symbol:      "AAPL",
		Quantity:    decimal.NewFromInt(2),
		ManualPrice: decimal.NullDecimal{Decimal: decimal.NewFromInt(1), Valid: true},
	})
	require.NoError(t, err)

	cache.Put(models.PriceQuote{
		Symbol:     "AAPL",
		AssetClass: models.AssetEquity,
		Price:      decimal.NewFromInt(190),
		Currency:   "USD",
		Source:     "finnhub",
		FetchedAt:  time.Now(),
	})

	sum := svc.Summary()
	require.Len(t, sum.Holdings, 1)
	assert.Equal(t, models.PriceSourceLive, sum.Holdings[0].PriceSource)
	assert.True(t, sum.TotalValue.Equal(decimal.NewFromInt(380)))

	assert.Equal(t, sum, svc.Summary(), "same holdings and cache give the same summary")
}

func TestQuotesReportFreshness(t *testing.T) {
	svc, cache := newService()

	cache.Put(models.PriceQuote{
		Symbol: "AAPL", AssetClass: models.AssetEquity,
		Price: decimal.NewFromInt(190), Currency: "USD", Source: "finnhub",
		FetchedAt: time.Now(),
	})
	cache.Put(models.PriceQuote{
		Symbol: "MSFT", AssetClass: models.AssetEquity,
		Price: decimal.NewFromInt(400), Currency: "USD", Source: "finnhub",
		FetchedAt: time.Now().Add(-2 * time.Hour),
	})

	quotes := svc.Quotes()
	require.Len(t, quotes, 2)
	bysym := map[string]QuoteStatus{}
	for _, q := range quotes {
		bysym[q.Symbol] = q
	}
	assert.True(t, bysym["AAPL"].Fresh)
	assert.False(t, bysym["MSFT"].Fresh, "cold entries are served but flagged stale")
}

func TestValidateSymbol(t *testing.T) {
	svc, _ := newService()

	got, err := svc.ValidateSymbol(context.Background(), " gold ", models.AssetMetal)
	require.NoError(t, err)
	assert.Equal(t, "XAU", got)

	_, err = svc.ValidateSymbol(context.Background(), "NOPE", models.AssetEquity)
	assert.ErrorIs(t, err, resolver.ErrSymbolNotFound)
}

func TestClearPriceCache(t *testing.T) {
	svc, cache := newService()
	cache.Put(models.PriceQuote{
		Symbol: "AAPL", AssetClass: models.AssetEquity,
		Price: decimal.NewFromInt(190), Currency: "USD", Source: "finnhub",
		FetchedAt: time.Now(),
	})

	require.NoError(t, svc.ClearPriceCache(context.Background()))
	assert.Empty(t, svc.Quotes())
}
