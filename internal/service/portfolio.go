package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pricefolio/internal/aggregator"
	"pricefolio/internal/models"
	"pricefolio/internal/pricecache"
	"pricefolio/internal/valuation"
)

// ErrNotFound means the holding id does not exist.
var ErrNotFound = errors.New("service: holding not found")

type Resolver interface {
	Resolve(ctx context.Context, symbol string, class models.AssetClass) (string, error)
}

// QuoteStatus is a cached quote plus whether it is still inside its TTL.
type QuoteStatus struct {
	models.PriceQuote
	Fresh bool `json:"fresh"`
}

// Portfolio owns the holdings and coordinates refreshes against the
// aggregator. Holdings live in memory; only quotes are persisted.
type Portfolio struct {
	agg            *aggregator.Aggregator
	cache          *pricecache.Cache
	resolver       Resolver
	log            *logrus.Logger
	refreshTimeout time.Duration

	mu       sync.RWMutex
	holdings map[string]models.Holding
	order    []string

	refreshMu     sync.Mutex
	refreshGen    uint64
	cancelRefresh context.CancelFunc
}

func New(agg *aggregator.Aggregator, cache *pricecache.Cache, res Resolver, refreshTimeout time.Duration, log *logrus.Logger) *Portfolio {
	return &Portfolio{
		agg:            agg,
		cache:          cache,
		resolver:       res,
		log:            log,
		refreshTimeout: refreshTimeout,
		holdings:       map[string]models.Holding{},
	}
}

// ListHoldings returns holdings in insertion order.
func (p *Portfolio) ListHoldings() []models.Holding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Holding, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.holdings[id])
	}
	return out
}

// PutHolding creates the holding when its id is empty, otherwise
// replaces the existing one. Priced holdings have their symbol resolved
// up front so a bad ticker is rejected at entry, not at refresh time.
// Equities and metals keep the canonical symbol; crypto keeps the
// ticker the user typed, the coin id is looked up again per refresh.
func (p *Portfolio) PutHolding(ctx context.Context, h models.Holding) (models.Holding, error) {
	h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
	if h.Currency == "" {
		h.Currency = "USD"
	}

	if h.AssetClass.Priced() {
		canonical, err := p.resolver.Resolve(ctx, h.Symbol, h.AssetClass)
		if err != nil {
			return models.Holding{}, err
		}
		if h.AssetClass != models.AssetCrypto {
			h.Symbol = canonical
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
		p.order = append(p.order, h.ID)
	} else if _, ok := p.holdings[h.ID]; !ok {
		return models.Holding{}, ErrNotFound
	}
	p.holdings[h.ID] = h
	return h, nil
}

func (p *Portfolio) DeleteHolding(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.holdings[id]; !ok {
		return ErrNotFound
	}
	delete(p.holdings, id)
	for i, cur := range p.order {
		if cur == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

// RefreshPrices refreshes quotes for the current holdings. Starting a
// new refresh cancels the one still in flight; the newest request is
// the only one worth finishing.
func (p *Portfolio) RefreshPrices(ctx context.Context) (map[models.QuoteKey]models.PriceQuote, error) {
	holdings := p.ListHoldings()

	p.refreshMu.Lock()
	if p.cancelRefresh != nil {
		p.cancelRefresh()
	}
	rctx, cancel := context.WithTimeout(ctx, p.refreshTimeout)
	p.cancelRefresh = cancel
	p.refreshGen++
	gen := p.refreshGen
	p.refreshMu.Unlock()

	defer func() {
		cancel()
		p.refreshMu.Lock()
		if p.refreshGen == gen {
			p.cancelRefresh = nil
		}
		p.refreshMu.Unlock()
	}()

	quotes, err := p.agg.Refresh(rctx, holdings)
	if err != nil {
		p.log.Debugf("refresh ended early: %v", err)
	}
	return quotes, err
}

// Summary values the portfolio against the cache as it stands. No
// fetching happens here; pair it with RefreshPrices for live numbers.
func (p *Portfolio) Summary() models.PortfolioSummary {
	return valuation.Compute(p.ListHoldings(), p.cache)
}

func (p *Portfolio) History(ctx context.Context, symbol string, class models.AssetClass, days int) ([]models.PricePoint, error) {
	return p.agg.History(ctx, symbol, class, days)
}

// ValidateSymbol resolves without storing anything.
func (p *Portfolio) ValidateSymbol(ctx context.Context, symbol string, class models.AssetClass) (string, error) {
	return p.resolver.Resolve(ctx, strings.ToUpper(strings.TrimSpace(symbol)), class)
}

// Quotes returns every cached quote with its freshness flag, stale
// cold-start entries included.
func (p *Portfolio) Quotes() []QuoteStatus {
	all := p.cache.All()
	out := make([]QuoteStatus, 0, len(all))
	for _, q := range all {
		_, fresh := p.cache.Fresh(q.Symbol, q.AssetClass)
		out = append(out, QuoteStatus{PriceQuote: q, Fresh: fresh})
	}
	return out
}

func (p *Portfolio) ClearPriceCache(ctx context.Context) error {
	return p.cache.Clear(ctx)
}

// Close cancels any in-flight refresh and waits for background cache
// writes to drain.
func (p *Portfolio) Close() {
	p.refreshMu.Lock()
	if p.cancelRefresh != nil {
		p.cancelRefresh()
	}
	p.refreshMu.Unlock()
	p.cache.Close()
}
