package pricecache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pricefolio/internal/models"
)

// Store is the durable side of the cache. *database.Repo satisfies it.
type Store interface {
	UpsertQuote(ctx context.Context, q models.PriceQuote) error
	ListQuotes(ctx context.Context) ([]models.PriceQuote, error)
	DeleteAllQuotes(ctx context.Context) error
}

const persistTimeout = 5 * time.Second

// Cache keeps the latest quote per (symbol, asset class) in memory and
// mirrors every write to the store in the background. Reads never touch
// the store; entries are never evicted, they only go stale. Freshness
// is judged at read time against a per-class TTL.
type Cache struct {
	store      Store
	ttls       map[models.AssetClass]time.Duration
	defaultTTL time.Duration
	log        *logrus.Logger

	mu      sync.RWMutex
	entries map[models.QuoteKey]models.PriceQuote

	now func() time.Time
	wg  sync.WaitGroup
}

func New(store Store, ttls map[models.AssetClass]time.Duration, defaultTTL time.Duration, log *logrus.Logger) *Cache {
	return &Cache{
		store:      store,
		ttls:       ttls,
		defaultTTL: defaultTTL,
		log:        log,
		entries:    map[models.QuoteKey]models.PriceQuote{},
		now:        time.Now,
	}
}

func (c *Cache) TTL(class models.AssetClass) time.Duration {
	if ttl, ok := c.ttls[class]; ok {
		return ttl
	}
	return c.defaultTTL
}

// Fresh returns the cached quote only if its age is still under the TTL
// for its class.
func (c *Cache) Fresh(symbol string, class models.AssetClass) (models.PriceQuote, bool) {
	c.mu.RLock()
	q, ok := c.entries[models.KeyFor(symbol, class)]
	c.mu.RUnlock()
	if !ok {
		return models.PriceQuote{}, false
	}
	if c.now().Sub(q.FetchedAt) >= c.TTL(class) {
		return models.PriceQuote{}, false
	}
	return q, true
}

// Get returns the cached quote regardless of age.
func (c *Cache) Get(symbol string, class models.AssetClass) (models.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.entries[models.KeyFor(symbol, class)]
	return q, ok
}

// All returns a snapshot of every cached quote, ordered by asset class
// then symbol.
func (c *Cache) All() []models.PriceQuote {
	c.mu.RLock()
	quotes := make([]models.PriceQuote, 0, len(c.entries))
	for _, q := range c.entries {
		quotes = append(quotes, q)
	}
	c.mu.RUnlock()

	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].AssetClass != quotes[j].AssetClass {
			return quotes[i].AssetClass < quotes[j].AssetClass
		}
		return quotes[i].Symbol < quotes[j].Symbol
	})
	return quotes
}

// Put stores the quote in memory and persists it in the background. A
// failed persist only costs the next process a cold entry, so it is
// logged and dropped rather than surfaced to the caller.
func (c *Cache) Put(q models.PriceQuote) {
	c.mu.Lock()
	c.entries[q.Key()] = q
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := c.store.UpsertQuote(ctx, q); err != nil {
			c.log.Warnf("persist quote %s/%s failed: %v", q.Symbol, q.AssetClass, err)
		}
	}()
}

// LoadPersisted fills the memory tier from the store. Entries loaded
// this way keep their original fetch time, so short-TTL classes come
// back stale and long-TTL classes may still be servable. When the store
// holds the same key in several currencies the newest row wins.
func (c *Cache) LoadPersisted(ctx context.Context) (int, error) {
	quotes, err := c.store.ListQuotes(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range quotes {
		if cur, ok := c.entries[q.Key()]; ok && cur.FetchedAt.After(q.FetchedAt) {
			continue
		}
		c.entries[q.Key()] = q
	}
	return len(c.entries), nil
}

// Clear empties both tiers. The memory tier is wiped even when the
// store delete fails, so the caller always gets a cold cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = map[models.QuoteKey]models.PriceQuote{}
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.DeleteAllQuotes(ctx)
}

// Close waits for in-flight background persists to finish.
func (c *Cache) Close() {
	c.wg.Wait()
}
