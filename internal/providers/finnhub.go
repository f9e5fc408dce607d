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

// Finnhub is the primary equities provider.
type Finnhub struct {
	http   *resty.Client
	apiKey string
	pol    *policy
	log    *logrus.Logger
}

func NewFinnhub(baseURL, apiKey string, opts Options, log *logrus.Logger) *Finnhub {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(opts.Timeout)
	return &Finnhub{http: c, apiKey: apiKey, pol: newPolicy(opts, log), log: log}
}

func (f *Finnhub) Name() string { return "finnhub" }

type finnhubQuote struct {
	Current       float64  `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	PreviousClose float64  `json:"pc"`
}

func (f *Finnhub) Quote(ctx context.Context, symbol string) (models.PriceQuote, error) {
	body, err := f.pol.do(ctx, "finnhub/quote", func() (*resty.Response, error) {
		return f.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"symbol": symbol, "token": f.apiKey}).
			Get("/quote")
	})
	if err != nil {
		return models.PriceQuote{}, err
	}
	var q finnhubQuote
	if err := json.Unmarshal(body, &q); err != nil {
		f.log.Warnf("finnhub quote %s: bad payload: %v", symbol, err)
		return models.PriceQuote{}, ErrNoData
	}
	// a zeroed quote is finnhub's way of saying "unknown symbol"
	if q.Current == 0 && q.PreviousClose == 0 {
		return models.PriceQuote{}, ErrNoData
	}
	out := models.PriceQuote{
		Symbol:     strings.ToUpper(symbol),
		AssetClass: models.AssetEquity,
		Price:      decimal.NewFromFloat(q.Current),
		Currency:   "USD",
		Source:     f.Name(),
		FetchedAt:  time.Now().UTC(),
	}
	if q.Change != nil {
		out.Change24h = decimal.NewFromFloat(*q.Change)
	}
	if q.ChangePercent != nil {
		out.ChangePercent24h = decimal.NewNullDecimal(decimal.NewFromFloat(*q.ChangePercent))
	}
	return out, nil
}

type finnhubSearch struct {
	Result []struct {
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"result"`
}

func (f *Finnhub) Search(ctx context.Context, query string) ([]SearchResult, error) {
	body, err := f.pol.do(ctx, "finnhub/search", func() (*resty.Response, error) {
		return f.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{"q": query, "token": f.apiKey}).
			Get("/search")
	})
	if err != nil {
		return nil, err
	}
	var s finnhubSearch
	if err := json.Unmarshal(body, &s); err != nil {
		f.log.Warnf("finnhub search %q: bad payload: %v", query, err)
		return nil, ErrNoData
	}
	res := make([]SearchResult, 0, len(s.Result))
	for _, r := range s.Result {
		res = append(res, SearchResult{Symbol: r.Symbol, Description: r.Description, Type: r.Type})
	}
	return res, nil
}

type finnhubCandles struct {
	Status     string    `json:"s"`
	Timestamps []int64   `json:"t"`
	Closes     []float64 `json:"c"`
}

// History fetches close candles for the range. Short ranges use
// 5-minute resolution, longer ones daily.
func (f *Finnhub) History(ctx context.Context, symbol string, days int) ([]models.PricePoint, error) {
	resolution := "D"
	if days <= 7 {
		resolution = "5"
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	body, err := f.pol.do(ctx, "finnhub/candle", func() (*resty.Response, error) {
		return f.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":     symbol,
				"resolution": resolution,
				"from":       strconv.FormatInt(from.Unix(), 10),
				"to":         strconv.FormatInt(to.Unix(), 10),
				"token":      f.apiKey,
			}).
			Get("/stock/candle")
	})
	if err != nil {
		return nil, err
	}
	var c finnhubCandles
	if err := json.Unmarshal(body, &c); err != nil {
		f.log.Warnf("finnhub candle %s: bad payload: %v", symbol, err)
		return nil, ErrNoData
	}
	if c.Status != "ok" || len(c.Timestamps) == 0 || len(c.Timestamps) != len(c.Closes) {
		return nil, ErrNoData
	}
	points := make([]models.PricePoint, 0, len(c.Timestamps))
	for i, ts := range c.Timestamps {
		points = append(points, models.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Price:     decimal.NewFromFloat(c.Closes[i]),
		})
	}
	return points, nil
}
