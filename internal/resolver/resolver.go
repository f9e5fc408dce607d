package resolver

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"pricefolio/internal/models"
	"pricefolio/internal/providers"
)

// ErrSymbolNotFound means the symbol could not be resolved to anything
// the price providers know about.
var ErrSymbolNotFound = errors.New("resolver: symbol not found")

type StockSearcher interface {
	Search(ctx context.Context, query string) ([]providers.SearchResult, error)
}

type CoinSearcher interface {
	SearchCoins(ctx context.Context, query string) ([]providers.CoinResult, error)
}

// coinIDs covers the major coins so the common case never needs a
// search round trip. Anything else falls through to coingecko search.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"USDC":  "usd-coin",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"AVAX":  "avalanche-2",
	"TRX":   "tron",
	"DOT":   "polkadot",
	"LINK":  "chainlink",
	"MATIC": "matic-network",
	"TON":   "the-open-network",
	"SHIB":  "shiba-inu",
	"LTC":   "litecoin",
	"BCH":   "bitcoin-cash",
	"UNI":   "uniswap",
	"XLM":   "stellar",
	"ATOM":  "cosmos",
	"ETC":   "ethereum-classic",
	"XMR":   "monero",
	"AAVE":  "aave",
}

// metalSymbols maps the spellings people actually type to the codes
// gold-api serves. Unknown symbols pass through unchanged.
var metalSymbols = map[string]string{
	"XAU":      "XAU",
	"GOLD":     "XAU",
	"XAG":      "XAG",
	"SILVER":   "XAG",
	"XPT":      "XPT",
	"PLATINUM": "XPT",
}

// Resolver maps user-entered symbols to the identifiers the price
// providers expect: canonical tickers for equities, coingecko ids for
// crypto, XAU-style codes for metals. Lookups that need a network
// search are cached in a bounded LRU for the life of the process.
type Resolver struct {
	stocks StockSearcher
	coins  CoinSearcher
	cache  *lru.Cache[string, string]
	log    *logrus.Logger
}

func New(stocks StockSearcher, coins CoinSearcher, cacheSize int, log *logrus.Logger) *Resolver {
	if cacheSize < 1 {
		cacheSize = 128
	}
	cache, _ := lru.New[string, string](cacheSize)
	return &Resolver{stocks: stocks, coins: coins, cache: cache, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, symbol string, class models.AssetClass) (string, error) {
	sym := normalize(symbol)
	if sym == "" {
		return "", ErrSymbolNotFound
	}
	switch class {
	case models.AssetEquity:
		return r.resolveEquity(ctx, sym)
	case models.AssetCrypto:
		return r.resolveCrypto(ctx, sym)
	case models.AssetMetal:
		return resolveMetal(sym), nil
	default:
		return sym, nil
	}
}

func (r *Resolver) resolveEquity(ctx context.Context, sym string) (string, error) {
	key := "equity:" + sym
	if hit, ok := r.cache.Get(key); ok {
		return hit, nil
	}

	results, err := r.stocks.Search(ctx, sym)
	if err != nil {
		return "", err
	}

	candidates := make([]providers.SearchResult, 0, len(results))
	for _, res := range results {
		if classify(res.Type) != models.AssetEquity {
			continue
		}
		if normalize(res.Symbol) == sym {
			r.cache.Add(key, sym)
			return sym, nil
		}
		candidates = append(candidates, res)
	}
	if len(candidates) == 1 {
		ticker := normalize(candidates[0].Symbol)
		r.cache.Add(key, ticker)
		return ticker, nil
	}

	r.log.Debugf("equity %s: %d candidates, none exact", sym, len(candidates))
	return "", ErrSymbolNotFound
}

func (r *Resolver) resolveCrypto(ctx context.Context, sym string) (string, error) {
	if id, ok := coinIDs[sym]; ok {
		return id, nil
	}
	key := "crypto:" + sym
	if hit, ok := r.cache.Get(key); ok {
		return hit, nil
	}

	coins, err := r.coins.SearchCoins(ctx, sym)
	if err != nil {
		return "", err
	}
	for _, coin := range coins {
		if normalize(coin.Symbol) == sym {
			r.cache.Add(key, coin.ID)
			return coin.ID, nil
		}
	}
	return "", ErrSymbolNotFound
}

func resolveMetal(sym string) string {
	if code, ok := metalSymbols[sym]; ok {
		return code
	}
	return sym
}

// classify buckets a finnhub security type. Anything that is not
// explicitly crypto is treated as equity-like; finnhub spells equities
// as "Common Stock", "ETF", "ADR", "Mutual Fund" and "Preferred" among
// others, and new spellings show up without notice.
func classify(typ string) models.AssetClass {
	if strings.Contains(strings.ToLower(typ), "crypto") {
		return models.AssetCrypto
	}
	return models.AssetEquity
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
