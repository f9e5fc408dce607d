package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pricefolio/internal/models"
)

// GoldAPI serves spot prices for XAU, XAG and XPT. It exposes no candle
// endpoint and no 24h change, so quotes carry a zero change with a null
// percent and History always reports no data.
type GoldAPI struct {
	http *resty.Client
	pol  *policy
	log  *logrus.Logger
}

func NewGoldAPI(baseURL string, opts Options, log *logrus.Logger) *GoldAPI {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(opts.Timeout)
	return &GoldAPI{http: c, pol: newPolicy(opts, log), log: log}
}

func (m *GoldAPI) Name() string { return "gold-api" }

type goldPrice struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Symbol string  `json:"symbol"`
}

func (m *GoldAPI) Quote(ctx context.Context, symbol string) (models.PriceQuote, error) {
	body, err := m.pol.do(ctx, "gold-api/price", func() (*resty.Response, error) {
		return m.http.R().
			SetContext(ctx).
			Get("/price/" + strings.ToUpper(symbol))
	})
	if err != nil {
		return models.PriceQuote{}, err
	}
	var p goldPrice
	if err := json.Unmarshal(body, &p); err != nil {
		m.log.Warnf("gold-api price %s: bad payload: %v", symbol, err)
		return models.PriceQuote{}, ErrNoData
	}
	if p.Price == 0 {
		return models.PriceQuote{}, ErrNoData
	}
	return models.PriceQuote{
		Symbol:     strings.ToUpper(symbol),
		AssetClass: models.AssetMetal,
		Price:      decimal.NewFromFloat(p.Price),
		Currency:   "USD",
		Source:     m.Name(),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (m *GoldAPI) History(ctx context.Context, symbol string, days int) ([]models.PricePoint, error) {
	return nil, ErrNoData
}
