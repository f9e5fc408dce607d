package valuation

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"pricefolio/internal/models"
)

// QuoteSource yields quotes that are still inside their TTL.
// *pricecache.Cache satisfies it.
type QuoteSource interface {
	Fresh(symbol string, class models.AssetClass) (models.PriceQuote, bool)
}

var hundred = decimal.NewFromInt(100)

// Compute derives the portfolio summary from holdings and whatever
// fresh quotes the source has. It is a pure function of its inputs and
// returns the same summary for the same holdings and cache state.
func Compute(holdings []models.Holding, quotes QuoteSource) models.PortfolioSummary {
	vals := make([]models.HoldingValuation, 0, len(holdings))
	byClass := map[string]decimal.Decimal{}
	bySector := map[string]decimal.Decimal{}
	byCountry := map[string]decimal.Decimal{}

	var total, cost, gain, dayChange decimal.Decimal
	for _, h := range holdings {
		v := valueHolding(h, quotes)
		vals = append(vals, v)

		total = total.Add(v.CurrentValue)
		cost = cost.Add(v.CostValue)
		gain = gain.Add(v.GainLoss)
		dayChange = dayChange.Add(v.DayChange)

		addTo(byClass, string(h.AssetClass), v.CurrentValue)
		addTo(bySector, bucketOr(h.Sector), v.CurrentValue)
		addTo(byCountry, bucketOr(h.Country), v.CurrentValue)
	}

	sum := models.PortfolioSummary{
		TotalValue: total,
		TotalCost:  cost,
		GainLoss:   gain,
		DayChange:  dayChange,
		ByClass:    buckets(byClass, total),
		BySector:   buckets(bySector, total),
		ByCountry:  buckets(byCountry, total),
		Holdings:   vals,
	}
	if cost.IsPositive() {
		sum.GainLossPercent = gain.Div(cost).Mul(hundred)
	}
	// Yesterday's value is today's minus the day move. When that is zero
	// or negative the percent has no meaning, so it stays 0.
	if prev := total.Sub(dayChange); prev.IsPositive() {
		sum.DayChangePercent = dayChange.Div(prev).Mul(hundred)
	}
	return sum
}

// valueHolding picks the effective price for one holding: a fresh live
// quote wins, then the manual price, then cost basis, then zero.
func valueHolding(h models.Holding, quotes QuoteSource) models.HoldingValuation {
	v := models.HoldingValuation{
		HoldingID:   h.ID,
		Symbol:      h.Symbol,
		AssetClass:  h.AssetClass,
		Quantity:    h.Quantity,
		PriceSource: models.PriceSourceNone,
	}

	var quote models.PriceQuote
	haveQuote := false
	if h.AssetClass.Priced() && h.Symbol != "" {
		quote, haveQuote = quotes.Fresh(h.Symbol, h.AssetClass)
	}

	switch {
	case haveQuote:
		v.EffectivePrice = quote.Price
		v.PriceSource = models.PriceSourceLive
	case h.ManualPrice.Valid:
		v.EffectivePrice = h.ManualPrice.Decimal
		v.PriceSource = models.PriceSourceManual
	case h.CostBasis.Valid:
		v.EffectivePrice = h.CostBasis.Decimal
		v.PriceSource = models.PriceSourceCost
	}

	v.CurrentValue = v.EffectivePrice.Mul(h.Quantity)
	if h.CostBasis.Valid {
		v.CostValue = h.CostBasis.Decimal.Mul(h.Quantity)
		v.GainLoss = v.CurrentValue.Sub(v.CostValue)
		if v.CostValue.IsPositive() {
			v.GainLossPercent = v.GainLoss.Div(v.CostValue).Mul(hundred)
		}
	}
	if haveQuote {
		v.DayChange = quote.Change24h.Mul(h.Quantity)
	}
	return v
}

func addTo(m map[string]decimal.Decimal, bucket string, value decimal.Decimal) {
	m[bucket] = m[bucket].Add(value)
}

func bucketOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Other"
	}
	return s
}

func buckets(totals map[string]decimal.Decimal, portfolioTotal decimal.Decimal) []models.Allocation {
	allocs := make([]models.Allocation, 0, len(totals))
	for bucket, value := range totals {
		a := models.Allocation{Bucket: bucket, Value: value}
		if portfolioTotal.IsPositive() {
			a.Percent = value.Div(portfolioTotal).Mul(hundred)
		}
		allocs = append(allocs, a)
	}
	sort.Slice(allocs, func(i, j int) bool {
		if !allocs[i].Value.Equal(allocs[j].Value) {
			return allocs[i].Value.GreaterThan(allocs[j].Value)
		}
		return allocs[i].Bucket < allocs[j].Bucket
	})
	return allocs
}
