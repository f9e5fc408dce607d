package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"pricefolio/internal/models"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertQuote replaces the durable row for the quote's key. Only one
// process writes, so last-write-wins needs no versioning.
func (r *Repo) UpsertQuote(ctx context.Context, q models.PriceQuote) error {
	var pct interface{}
	if q.ChangePercent24h.Valid {
		pct = q.ChangePercent24h.Decimal.String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_cache (symbol, asset_class, price, change_24h, change_percent_24h, currency, source, fetched_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
		ON CONFLICT (symbol, asset_class, currency) DO UPDATE SET
			price = EXCLUDED.price,
			change_24h = EXCLUDED.change_24h,
			change_percent_24h = EXCLUDED.change_percent_24h,
			source = EXCLUDED.source,
			fetched_at = EXCLUDED.fetched_at`,
		q.Symbol, string(q.AssetClass), q.Price.String(), q.Change24h.String(),
		pct, q.Currency, q.Source, q.FetchedAt.UTC())
	return err
}

// ListQuotes returns every cached row, newest first. Rows that fail to
// scan are skipped so one bad row cannot blank the cold-start load.
func (r *Repo) ListQuotes(ctx context.Context) ([]models.PriceQuote, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT symbol, asset_class, price, change_24h, change_percent_24h, currency, source, fetched_at
		FROM price_cache
		ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.PriceQuote{}
	for rows.Next() {
		var row quoteRow
		if err := rows.StructScan(&row); err != nil {
			r.log.Warnf("scan cached quote failed: %v", err)
			continue
		}
		res = append(res, row.toModel())
	}
	return res, rows.Err()
}

func (r *Repo) DeleteAllQuotes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM price_cache`)
	return err
}
