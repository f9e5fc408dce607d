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

// Yahoo is the fallback equities provider. It has no plain quote API;
// quotes are reshaped from the chart endpoint's metadata.
type Yahoo struct {
	http *resty.Client
	pol  *policy
	log  *logrus.Logger
}

func NewYahoo(baseURL string, opts Options, log *logrus.Logger) *Yahoo {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(opts.Timeout)
	return &Yahoo{http: c, pol: newPolicy(opts, log), log: log}
}

func (y *Yahoo) Name() string { return "yahoo" }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				Currency           string  `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (y *Yahoo) chart(ctx context.Context, symbol string, params map[string]string) (*yahooChart, error) {
	body, err := y.pol.do(ctx, "yahoo/chart", func() (*resty.Response, error) {
		return y.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/v8/finance/chart/" + symbol)
	})
	if err != nil {
		return nil, err
	}
	var c yahooChart
	if err := json.Unmarshal(body, &c); err != nil {
		y.log.Warnf("yahoo chart %s: bad payload: %v", symbol, err)
		return nil, ErrNoData
	}
	if len(c.Chart.Result) == 0 {
		return nil, ErrNoData
	}
	return &c, nil
}

func (y *Yahoo) Quote(ctx context.Context, symbol string) (models.PriceQuote, error) {
	c, err := y.chart(ctx, symbol, map[string]string{"range": "1d", "interval": "1d"})
	if err != nil {
		return models.PriceQuote{}, err
	}
	meta := c.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 && meta.ChartPreviousClose == 0 {
		return models.PriceQuote{}, ErrNoData
	}
	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	prev := decimal.NewFromFloat(meta.ChartPreviousClose)
	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}
	out := models.PriceQuote{
		Symbol:     strings.ToUpper(symbol),
		AssetClass: models.AssetEquity,
		Price:      price,
		Change24h:  price.Sub(prev),
		Currency:   currency,
		Source:     y.Name(),
		FetchedAt:  time.Now().UTC(),
	}
	if prev.IsPositive() {
		pct := price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
		out.ChangePercent24h = decimal.NewNullDecimal(pct)
	}
	return out, nil
}

func (y *Yahoo) History(ctx context.Context, symbol string, days int) ([]models.PricePoint, error) {
	interval := "1d"
	if days <= 7 {
		interval = "1h"
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	c, err := y.chart(ctx, symbol, map[string]string{
		"period1":  strconv.FormatInt(from.Unix(), 10),
		"period2":  strconv.FormatInt(to.Unix(), 10),
		"interval": interval,
	})
	if err != nil {
		return nil, err
	}
	result := c.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	closes := result.Indicators.Quote[0].Close
	points := make([]models.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, models.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Price:     decimal.NewFromFloat(*closes[i]),
		})
	}
	if len(points) == 0 {
		return nil, ErrNoData
	}
	return points, nil
}
