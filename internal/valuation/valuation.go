// Package valuation turns stored holdings and market snapshots into the
// numbers the portfolio views show. It does no I/O.
//
// Money arithmetic runs in shopspring/decimal so sums over many holdings do not
// drift the way repeated float64 additions do; results are converted back to
// float64 only at the JSON boundary.
package valuation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/sakif/portfolio-tracker/internal/marketdata"
	"github.com/sakif/portfolio-tracker/internal/model"
)

// DateLayout is the format of every date in historical series.
const DateLayout = "2006-01-02"

// tradingDaysPerYear annualizes daily volatility.
const tradingDaysPerYear = 252

// CurrentPrice picks the first present, non-zero price in the order
// regularMarketPrice, currentPrice, previousClose. It returns 0 when none is
// usable.
func CurrentPrice(snap *marketdata.Snapshot) float64 {
	if snap == nil {
		return 0
	}
	for _, p := range []*float64{snap.RegularMarketPrice, snap.CurrentPrice, snap.PreviousClose} {
		if p != nil && *p != 0 {
			return *p
		}
	}
	return 0
}

// Multiples returns the trailing and forward P/E used for the target price.
// A missing trailing P/E is 0; a missing or zero forward P/E falls back to the
// trailing one.
func Multiples(snap *marketdata.Snapshot) (currentPE, forwardPE float64) {
	if snap == nil {
		return 0, 0
	}
	if snap.TrailingPE != nil {
		currentPE = *snap.TrailingPE
	}
	forwardPE = currentPE
	if snap.ForwardPE != nil && *snap.ForwardPE != 0 {
		forwardPE = *snap.ForwardPE
	}
	return currentPE, forwardPE
}

// TargetPrice is price * (currentPE / forwardPE) when forwardPE is positive,
// otherwise the price itself.
func TargetPrice(price, currentPE, forwardPE float64) float64 {
	if forwardPE <= 0 {
		return price
	}
	ratio := decimal.NewFromFloat(currentPE).Div(decimal.NewFromFloat(forwardPE))
	return decimal.NewFromFloat(price).Mul(ratio).InexactFloat64()
}

// GainLoss is (price - purchasePrice) * quantity.
func GainLoss(price, purchasePrice float64, quantity int64) float64 {
	return decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(purchasePrice)).
		Mul(decimal.NewFromInt(quantity)).
		InexactFloat64()
}

// Series converts bars to the API representation, ascending by date.
func Series(bars []marketdata.Bar) []model.HistoricalClose {
	out := make([]model.HistoricalClose, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.HistoricalClose{Date: b.Date.Format(DateLayout), Close: b.Close})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Value computes the enriched view of one holding from a successful fetch.
func Value(h model.Holding, snap *marketdata.Snapshot, bars []marketdata.Bar) model.EnrichedHolding {
	price := CurrentPrice(snap)
	currentPE, forwardPE := Multiples(snap)
	target := TargetPrice(price, currentPE, forwardPE)
	gain := GainLoss(price, h.PurchasePrice, h.Quantity)

	return model.EnrichedHolding{
		ID:                 h.ID,
		Symbol:             h.Symbol,
		Quantity:           h.Quantity,
		PurchasePrice:      h.PurchasePrice,
		CurrentPE:          &currentPE,
		ForwardPE:          &forwardPE,
		CurrentPrice:       &price,
		TargetPrice:        &target,
		UnrealizedGainLoss: &gain,
		HistoricalData:     Series(bars),
	}
}

// Failed builds the degraded view of a holding whose market fetch failed.
func Failed(h model.Holding, reason string) model.EnrichedHolding {
	return model.EnrichedHolding{
		ID:             h.ID,
		Symbol:         h.Symbol,
		Quantity:       h.Quantity,
		PurchasePrice:  h.PurchasePrice,
		HistoricalData: []model.HistoricalClose{},
		Error:          reason,
	}
}

// Summarize folds enriched holdings into portfolio totals. Failed entries
// only contribute their symbol to FailedSymbols.
func Summarize(entries []model.EnrichedHolding) model.PortfolioSummary {
	var (
		investment = decimal.Zero
		current    = decimal.Zero
		projected  = decimal.Zero
		gainLoss   = decimal.Zero
		failed     = make([]string, 0)
		byDate     = make(map[string]decimal.Decimal)
	)

	for _, e := range entries {
		if e.Failed() || e.CurrentPrice == nil || e.TargetPrice == nil {
			failed = append(failed, e.Symbol)
			continue
		}

		qty := decimal.NewFromInt(e.Quantity)
		cost := decimal.NewFromFloat(e.PurchasePrice).Mul(qty)
		value := decimal.NewFromFloat(*e.CurrentPrice).Mul(qty)

		investment = investment.Add(cost)
		current = current.Add(value)
		projected = projected.Add(decimal.NewFromFloat(*e.TargetPrice).Mul(qty))
		gainLoss = gainLoss.Add(value.Sub(cost))

		for _, point := range e.HistoricalData {
			byDate[point.Date] = byDate[point.Date].Add(decimal.NewFromFloat(point.Close).Mul(qty))
		}
	}

	projectedChange := projected.Sub(current)
	history := portfolioHistory(byDate)

	return model.PortfolioSummary{
		TotalInvestment:         investment.InexactFloat64(),
		TotalCurrentValue:       current.InexactFloat64(),
		TotalProjectedValue:     projected.InexactFloat64(),
		TotalUnrealizedGainLoss: gainLoss.InexactFloat64(),
		CurrentPercentChange:    percent(current.Sub(investment), investment),
		ProjectedChange:         projectedChange.InexactFloat64(),
		ProjectedPercentChange:  percent(projectedChange, current),
		AnnualizedVolatility:    AnnualizedVolatility(history),
		FailedSymbols:           failed,
		History:                 history,
	}
}

// percent is change/base*100, or 0 when base is 0.
func percent(change, base decimal.Decimal) float64 {
	if base.IsZero() {
		return 0
	}
	return change.Div(base).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

func portfolioHistory(byDate map[string]decimal.Decimal) []model.PortfolioPoint {
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	// YYYY-MM-DD sorts lexically in date order.
	sort.Strings(dates)

	points := make([]model.PortfolioPoint, 0, len(dates))
	for _, d := range dates {
		points = append(points, model.PortfolioPoint{Date: d, Value: byDate[d].InexactFloat64()})
	}
	return points
}

// AnnualizedVolatility is the sample standard deviation of day-over-day
// returns of the portfolio value, scaled by sqrt(252). It is 0 when there are
// fewer than two returns.
func AnnualizedVolatility(history []model.PortfolioPoint) float64 {
	returns := make([]float64, 0, len(history))
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (history[i].Value-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
}
