package pricecache

import (
	"sync"
	"time"

	"pricefolio/internal/models"
)

type historyKey struct {
	Symbol string
	Class  models.AssetClass
	Days   int
}

type historyEntry struct {
	points    []models.PricePoint
	fetchedAt time.Time
}

// HistoryCache holds recently fetched price series in memory only.
// Every entry shares one fixed TTL.
type HistoryCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[historyKey]historyEntry

	now func() time.Time
}

func NewHistory(ttl time.Duration) *HistoryCache {
	return &HistoryCache{
		ttl:     ttl,
		entries: map[historyKey]historyEntry{},
		now:     time.Now,
	}
}

func (h *HistoryCache) Get(symbol string, class models.AssetClass, days int) ([]models.PricePoint, bool) {
	key := historyKey{Symbol: symbol, Class: class, Days: days}
	h.mu.RLock()
	e, ok := h.entries[key]
	h.mu.RUnlock()
	if !ok || h.now().Sub(e.fetchedAt) >= h.ttl {
		return nil, false
	}
	return e.points, true
}

func (h *HistoryCache) Put(symbol string, class models.AssetClass, days int, points []models.PricePoint) {
	key := historyKey{Symbol: symbol, Class: class, Days: days}
	h.mu.Lock()
	h.entries[key] = historyEntry{points: points, fetchedAt: h.now()}
	h.mu.Unlock()
}
