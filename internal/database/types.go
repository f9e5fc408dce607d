package database

import (
	"time"

	"github.com/shopspring/decimal"

	"pricefolio/internal/models"
)

// quoteRow mirrors the price_cache table.
type quoteRow struct {
	Symbol           string              `db:"symbol"`
	AssetClass       string              `db:"asset_class"`
	Price            decimal.Decimal     `db:"price"`
	Change24h        decimal.Decimal     `db:"change_24h"`
	ChangePercent24h decimal.NullDecimal `db:"change_percent_24h"`
	Currency         string              `db:"currency"`
	Source           string              `db:"source"`
	FetchedAt        time.Time           `db:"fetched_at"`
}

func (q quoteRow) toModel() models.PriceQuote {
	return models.PriceQuote{
		Symbol:           q.Symbol,
		AssetClass:       models.AssetClass(q.AssetClass),
		Price:            q.Price,
		Change24h:        q.Change24h,
		ChangePercent24h: q.ChangePercent24h,
		Currency:         q.Currency,
		Source:           q.Source,
		FetchedAt:        q.FetchedAt,
	}
}
