package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass buckets a holding for provider routing and cache TTLs.
type AssetClass string

const (
	AssetEquity     AssetClass = "equity"
	AssetCrypto     AssetClass = "crypto"
	AssetMetal      AssetClass = "metal"
	AssetBond       AssetClass = "bond"
	AssetCD         AssetClass = "cd"
	AssetRealEstate AssetClass = "real_estate"
	AssetCash       AssetClass = "cash"
	AssetOther      AssetClass = "other"
)

func ParseAssetClass(s string) (AssetClass, bool) {
	c := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case AssetEquity, AssetCrypto, AssetMetal, AssetBond, AssetCD, AssetRealEstate, AssetCash, AssetOther:
		return c, true
	}
	return "", false
}

// Priced reports whether the class has a live price provider. Everything
// else is valued from manual price or cost basis.
func (c AssetClass) Priced() bool {
	switch c {
	case AssetEquity, AssetCrypto, AssetMetal:
		return true
	}
	return false
}

// Price source used for a holding's valuation.
const (
	PriceSourceLive   = "live"
	PriceSourceManual = "manual"
	PriceSourceCost   = "cost_basis"
	PriceSourceNone   = "none"
)

type Holding struct {
	ID           string              `json:"id"`
	AssetClass   AssetClass          `json:"asset_class"`
	Symbol       string              `json:"symbol,omitempty"`
	Quantity     decimal.Decimal     `json:"quantity"`
	CostBasis    decimal.NullDecimal `json:"cost_basis"`
	ManualPrice  decimal.NullDecimal `json:"manual_price"`
	Currency     string              `json:"currency"`
	Sector       string              `json:"sector,omitempty"`
	Country      string              `json:"country,omitempty"`
	MaturityDate *time.Time          `json:"maturity_date,omitempty"`
	InterestRate decimal.NullDecimal `json:"interest_rate"`
}

// PriceQuote is an immutable snapshot of one symbol's price. A new value
// is produced on every successful fetch; cache writers replace, never
// mutate, an entry.
type PriceQuote struct {
	Symbol           string              `json:"symbol"`
	AssetClass       AssetClass          `json:"asset_class"`
	Price            decimal.Decimal     `json:"price"`
	Change24h        decimal.Decimal     `json:"change_24h"`
	ChangePercent24h decimal.NullDecimal `json:"change_percent_24h"`
	Currency         string              `json:"currency"`
	Source           string              `json:"source"`
	FetchedAt        time.Time           `json:"fetched_at"`
}

// QuoteKey identifies a cache entry.
type QuoteKey struct {
	Symbol string     `json:"symbol"`
	Class  AssetClass `json:"asset_class"`
}

// KeyFor normalizes the symbol so lookups and writes agree on casing.
func KeyFor(symbol string, class AssetClass) QuoteKey {
	return QuoteKey{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Class: class}
}

func (q PriceQuote) Key() QuoteKey { return KeyFor(q.Symbol, q.AssetClass) }

type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

type HoldingValuation struct {
	HoldingID       string          `json:"holding_id"`
	Symbol          string          `json:"symbol,omitempty"`
	AssetClass      AssetClass      `json:"asset_class"`
	Quantity        decimal.Decimal `json:"quantity"`
	EffectivePrice  decimal.Decimal `json:"effective_price"`
	PriceSource     string          `json:"price_source"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	CostValue       decimal.Decimal `json:"cost_value"`
	GainLoss        decimal.Decimal `json:"gain_loss"`
	GainLossPercent decimal.Decimal `json:"gain_loss_percent"`
	DayChange       decimal.Decimal `json:"day_change"`
}

type Allocation struct {
	Bucket  string          `json:"bucket"`
	Value   decimal.Decimal `json:"value"`
	Percent decimal.Decimal `json:"percent"`
}

// PortfolioSummary is derived from (holdings, cache) and never persisted.
type PortfolioSummary struct {
	TotalValue       decimal.Decimal    `json:"total_value"`
	TotalCost        decimal.Decimal    `json:"total_cost"`
	GainLoss         decimal.Decimal    `json:"gain_loss"`
	GainLossPercent  decimal.Decimal    `json:"gain_loss_percent"`
	DayChange        decimal.Decimal    `json:"day_change"`
	DayChangePercent decimal.Decimal    `json:"day_change_percent"`
	ByClass          []Allocation       `json:"by_class"`
	BySector         []Allocation       `json:"by_sector"`
	ByCountry        []Allocation       `json:"by_country"`
	Holdings         []HoldingValuation `json:"holdings"`
}
