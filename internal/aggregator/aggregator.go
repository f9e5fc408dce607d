package aggregator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pricefolio/internal/models"
	"pricefolio/internal/pricecache"
	"pricefolio/internal/providers"
)

// EquityProvider serves one symbol per call. Finnhub and Yahoo satisfy it.
type EquityProvider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (models.PriceQuote, error)
	History(ctx context.Context, symbol string, days int) ([]models.PricePoint, error)
}

// CryptoProvider serves many coin ids in one call. CoinGecko satisfies it.
type CryptoProvider interface {
	Name() string
	Quotes(ctx context.Context, ids []string) (map[string]models.PriceQuote, error)
	History(ctx context.Context, id string, days int) ([]models.PricePoint, error)
}

type MetalProvider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (models.PriceQuote, error)
	History(ctx context.Context, symbol string, days int) ([]models.PricePoint, error)
}

type Resolver interface {
	Resolve(ctx context.Context, symbol string, class models.AssetClass) (string, error)
}

type Params struct {
	Cache      *pricecache.Cache
	History    *pricecache.HistoryCache
	Resolver   Resolver
	Equities   []EquityProvider
	Cryptos    []CryptoProvider
	Metals     []MetalProvider
	BatchSize  int
	BatchDelay time.Duration
	Log        *logrus.Logger
}

// Aggregator turns a set of holdings into cached quotes. Each asset
// class has an ordered provider list; a symbol the first provider cannot
// serve falls through to the next. Every fetched quote is written
// through the cache.
type Aggregator struct {
	cache      *pricecache.Cache
	history    *pricecache.HistoryCache
	resolver   Resolver
	equities   []EquityProvider
	cryptos    []CryptoProvider
	metals     []MetalProvider
	batchSize  int
	batchDelay time.Duration
	log        *logrus.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func New(p Params) *Aggregator {
	if p.BatchSize < 1 {
		p.BatchSize = 10
	}
	return &Aggregator{
		cache:      p.Cache,
		history:    p.History,
		resolver:   p.Resolver,
		equities:   p.Equities,
		cryptos:    p.Cryptos,
		metals:     p.Metals,
		batchSize:  p.BatchSize,
		batchDelay: p.BatchDelay,
		log:        p.Log,
		sleep:      sleepCtx,
	}
}

// Refresh brings the cache up to date for every priced holding and
// returns the usable quotes, cached and newly fetched alike. Provider
// failures cost individual symbols, never the whole refresh; the only
// error out of here is the context's.
func (a *Aggregator) Refresh(ctx context.Context, holdings []models.Holding) (map[models.QuoteKey]models.PriceQuote, error) {
	groups := groupSymbols(holdings)
	results := newResultSet()

	// First serve whatever is still fresh without touching a provider.
	misses := map[models.AssetClass][]string{}
	for class, symbols := range groups {
		for _, sym := range symbols {
			if q, ok := a.cache.Fresh(sym, class); ok {
				results.add(q)
				continue
			}
			misses[class] = append(misses[class], sym)
		}
	}

	if symbols := misses[models.AssetEquity]; len(symbols) > 0 {
		if err := a.refreshEquities(ctx, symbols, results); err != nil {
			return results.all(), err
		}
	}
	if symbols := misses[models.AssetCrypto]; len(symbols) > 0 {
		if err := a.refreshCrypto(ctx, symbols, results); err != nil {
			return results.all(), err
		}
	}
	if symbols := misses[models.AssetMetal]; len(symbols) > 0 {
		if err := a.refreshMetals(ctx, symbols, results); err != nil {
			return results.all(), err
		}
	}
	return results.all(), ctx.Err()
}

// refreshEquities walks the provider chain, handing each provider only
// the symbols the previous ones could not serve.
func (a *Aggregator) refreshEquities(ctx context.Context, symbols []string, results *resultSet) error {
	remaining := symbols
	for _, p := range a.equities {
		if len(remaining) == 0 {
			break
		}
		var err error
		remaining, err = a.equityPass(ctx, p, remaining, results)
		if err != nil {
			return err
		}
	}
	if len(remaining) > 0 {
		a.log.Debugf("no provider served equities %v", remaining)
	}
	return nil
}

// equityPass fetches symbols from one provider in paced batches. Within
// a batch the calls run concurrently; between batches it sleeps to stay
// under the provider's rate limit. Returns the symbols left unserved.
func (a *Aggregator) equityPass(ctx context.Context, p EquityProvider, symbols []string, results *resultSet) ([]string, error) {
	var (
		mu      sync.Mutex
		fetched = map[string]bool{}
		err     error
	)
	for start := 0; start < len(symbols); start += a.batchSize {
		if start > 0 {
			if err = a.sleep(ctx, a.batchDelay); err != nil {
				break
			}
		}
		end := start + a.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		var wg sync.WaitGroup
		for _, sym := range symbols[start:end] {
			sym := sym
			wg.Add(1)
			go func() {
				defer wg.Done()
				q, qerr := p.Quote(ctx, sym)
				if qerr != nil {
					return
				}
				q.Symbol = sym
				q.AssetClass = models.AssetEquity
				a.cache.Put(q)
				results.add(q)
				mu.Lock()
				fetched[sym] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	var missing []string
	for _, sym := range symbols {
		if !fetched[sym] {
			missing = append(missing, sym)
		}
	}
	return missing, err
}

// refreshCrypto resolves symbols to coin ids concurrently, then prices
// all ids in one provider call. Symbols that share an id each get their
// own copy of the quote.
func (a *Aggregator) refreshCrypto(ctx context.Context, symbols []string, results *resultSet) error {
	var (
		mu          sync.Mutex
		symbolsByID = map[string][]string{}
		wg          sync.WaitGroup
	)
	for _, sym := range symbols {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.resolver.Resolve(ctx, sym, models.AssetCrypto)
			if err != nil {
				a.log.Warnf("resolve crypto %s failed: %v", sym, err)
				return
			}
			mu.Lock()
			symbolsByID[id] = append(symbolsByID[id], sym)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(symbolsByID) == 0 {
		return ctx.Err()
	}
	remaining := make([]string, 0, len(symbolsByID))
	for id := range symbolsByID {
		remaining = append(remaining, id)
	}
	sort.Strings(remaining)

	for _, p := range a.cryptos {
		if len(remaining) == 0 {
			break
		}
		quotes, err := p.Quotes(ctx, remaining)
		if err != nil {
			continue
		}
		var missing []string
		for _, id := range remaining {
			q, ok := quotes[id]
			if !ok {
				missing = append(missing, id)
				continue
			}
			for _, sym := range symbolsByID[id] {
				out := q
				out.Symbol = sym
				out.AssetClass = models.AssetCrypto
				a.cache.Put(out)
				results.add(out)
			}
		}
		remaining = missing
	}
	if len(remaining) > 0 {
		a.log.Debugf("no provider served coins %v", remaining)
	}
	return ctx.Err()
}

// refreshMetals prices each metal individually. The universe is three
// symbols, so there is nothing to batch.
func (a *Aggregator) refreshMetals(ctx context.Context, symbols []string, results *resultSet) error {
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, err := a.resolver.Resolve(ctx, sym, models.AssetMetal)
		if err != nil {
			continue
		}
		for _, p := range a.metals {
			q, err := p.Quote(ctx, code)
			if err != nil {
				continue
			}
			q.Symbol = sym
			q.AssetClass = models.AssetMetal
			a.cache.Put(q)
			results.add(q)
			break
		}
	}
	return nil
}

// History returns at least two ascending price points for the symbol or
// providers.ErrNoData. Served from the history cache when possible.
func (a *Aggregator) History(ctx context.Context, symbol string, class models.AssetClass, days int) ([]models.PricePoint, error) {
	if days < 1 {
		days = 7
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if pts, ok := a.history.Get(sym, class, days); ok {
		return pts, nil
	}

	pts, err := a.fetchHistory(ctx, sym, class, days)
	if err != nil {
		return nil, err
	}
	// A single point cannot draw a line; treat it the same as no data
	// and leave the cache alone so the next request retries.
	if len(pts) < 2 {
		return nil, providers.ErrNoData
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })
	a.history.Put(sym, class, days, pts)
	return pts, nil
}

func (a *Aggregator) fetchHistory(ctx context.Context, sym string, class models.AssetClass, days int) ([]models.PricePoint, error) {
	switch class {
	case models.AssetEquity:
		for _, p := range a.equities {
			if pts, err := p.History(ctx, sym, days); err == nil && len(pts) > 0 {
				return pts, nil
			}
		}
	case models.AssetCrypto:
		id, err := a.resolver.Resolve(ctx, sym, models.AssetCrypto)
		if err != nil {
			return nil, err
		}
		for _, p := range a.cryptos {
			if pts, err := p.History(ctx, id, days); err == nil && len(pts) > 0 {
				return pts, nil
			}
		}
	case models.AssetMetal:
		code, err := a.resolver.Resolve(ctx, sym, models.AssetMetal)
		if err != nil {
			return nil, err
		}
		for _, p := range a.metals {
			if pts, err := p.History(ctx, code, days); err == nil && len(pts) > 0 {
				return pts, nil
			}
		}
	}
	return nil, providers.ErrNoData
}

func groupSymbols(holdings []models.Holding) map[models.AssetClass][]string {
	groups := map[models.AssetClass][]string{}
	seen := map[models.QuoteKey]bool{}
	for _, h := range holdings {
		if !h.AssetClass.Priced() {
			continue
		}
		key := models.KeyFor(h.Symbol, h.AssetClass)
		if key.Symbol == "" || seen[key] {
			continue
		}
		seen[key] = true
		groups[h.AssetClass] = append(groups[h.AssetClass], key.Symbol)
	}
	return groups
}

type resultSet struct {
	mu sync.Mutex
	m  map[models.QuoteKey]models.PriceQuote
}

func newResultSet() *resultSet {
	return &resultSet{m: map[models.QuoteKey]models.PriceQuote{}}
}

func (r *resultSet) add(q models.PriceQuote) {
	r.mu.Lock()
	r.m[q.Key()] = q
	r.mu.Unlock()
}

func (r *resultSet) all() map[models.QuoteKey]models.PriceQuote {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.QuoteKey]models.PriceQuote, len(r.m))
	for k, v := range r.m {
		out[k] = v
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
