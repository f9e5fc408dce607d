package providers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pricefolio/internal/models"
)

// CoinGecko is the crypto provider. Quotes are keyed by coin id; the
// aggregator maps ids back to user-facing tickers.
type CoinGecko struct {
	http *resty.Client
	pol  *policy
	log  *logrus.Logger
}

func NewCoinGecko(baseURL string, opts Options, log *logrus.Logger) *CoinGecko {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(opts.Timeout)
	return &CoinGecko{http: c, pol: newPolicy(opts, log), log: log}
}

func (g *CoinGecko) Name() string { return "coingecko" }

type geckoPrice struct {
	USD       *float64 `json:"usd"`
	Change24h *float64 `json:"usd_24h_change"`
}

var hundred = decimal.NewFromInt(100)

// Quotes issues one multi-id call for the whole batch. Ids with no usd
// price are omitted from the result.
func (g *CoinGecko) Quotes(ctx context.Context, ids []string) (map[string]models.PriceQuote, error) {
	if len(ids) == 0 {
		return map[string]models.PriceQuote{}, nil
	}
	body, err := g.pol.do(ctx, "coingecko/simple_price", func() (*resty.Response, error) {
		return g.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"ids":                 strings.Join(ids, ","),
				"vs_currencies":       "usd",
				"include_24hr_change": "true",
			}).
			Get("/simple/price")
	})
	if err != nil {
		return nil, err
	}
	var prices map[string]geckoPrice
	if err := json.Unmarshal(body, &prices); err != nil {
		g.log.Warnf("coingecko prices: bad payload: %v", err)
		return nil, ErrNoData
	}
	now := time.Now().UTC()
	out := make(map[string]models.PriceQuote, len(prices))
	for id, p := range prices {
		if p.USD == nil || *p.USD == 0 {
			continue
		}
		price := decimal.NewFromFloat(*p.USD)
		q := models.PriceQuote{
			Symbol:     id,
			AssetClass: models.AssetCrypto,
			Price:      price,
			Currency:   "USD",
			Source:     g.Name(),
			FetchedAt:  now,
		}
		if p.Change24h != nil {
			pct := decimal.NewFromFloat(*p.Change24h)
			q.ChangePercent24h = decimal.NewNullDecimal(pct)
			// the API reports percent only; derive the absolute move
			denom := decimal.NewFromInt(1).Add(pct.Div(hundred))
			if !denom.IsZero() {
				q.Change24h = price.Sub(price.Div(denom))
			}
		}
		out[id] = q
	}
	return out, nil
}

type geckoSearch struct {
	Coins []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"coins"`
}

func (g *CoinGecko) SearchCoins(ctx context.Context, query string) ([]CoinResult, error) {
	body, err := g.pol.do(ctx, "coingecko/search", func() (*resty.Response, error) {
		return g.http.R().
			SetContext(ctx).
			SetQueryParam("query", query).
			Get("/search")
	})
	if err != nil {
		return nil, err
	}
	var s geckoSearch
	if err := json.Unmarshal(body, &s); err != nil {
		g.log.Warnf("coingecko search %q: bad payload: %v", query, err)
		return nil, ErrNoData
	}
	res := make([]CoinResult, 0, len(s.Coins))
	for _, c := range s.Coins {
		res = append(res, CoinResult{ID: c.ID, Symbol: c.Symbol, Name: c.Name})
	}
	return res, nil
}

type geckoChart struct {
	Prices [][]float64 `json:"prices"`
}

func (g *CoinGecko) History(ctx context.Context, id string, days int) ([]models.PricePoint, error) {
	body, err := g.pol.do(ctx, "coingecko/market_chart", func() (*resty.Response, error) {
		return g.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"vs_currency": "usd",
				"days":        strconv.Itoa(days),
			}).
			Get("/coins/" + id + "/market_chart")
	})
	if err != nil {
		return nil, err
	}
	var c geckoChart
	if err := json.Unmarshal(body, &c); err != nil {
		g.log.Warnf("coingecko chart %s: bad payload: %v", id, err)
		return nil, ErrNoData
	}
	if len(c.Prices) == 0 {
		return nil, ErrNoData
	}
	points := make([]models.PricePoint, 0, len(c.Prices))
	for _, p := range c.Prices {
		if len(p) < 2 {
			continue
		}
		points = append(points, models.PricePoint{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     decimal.NewFromFloat(p[1]),
		})
	}
	return points, nil
}
