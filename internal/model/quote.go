package model

// Quote is the response of the single-symbol quote endpoint.
type Quote struct {
	Symbol       string   `json:"symbol"`
	CurrentPrice float64  `json:"currentPrice"`
	CurrentPE    *float64 `json:"currentPE"`
	ForwardPE    *float64 `json:"forwardPE"`
}

// PortfolioPoint is the total portfolio value on one day.
type PortfolioPoint struct {
	Date  string  `json:"Date"`
	Value float64 `json:"Value"`
}

// PortfolioSummary aggregates a user's enriched holdings. Holdings whose
// market fetch failed are listed in FailedSymbols and excluded from totals.
type PortfolioSummary struct {
	TotalInvestment         float64          `json:"totalInvestment"`
	TotalCurrentValue       float64          `json:"totalCurrentValue"`
	TotalProjectedValue     float64          `json:"totalProjectedValue"`
	TotalUnrealizedGainLoss float64          `json:"totalUnrealizedGainLoss"`
	CurrentPercentChange    float64          `json:"currentPercentChange"`
	ProjectedChange         float64          `json:"projectedChange"`
	ProjectedPercentChange  float64          `json:"projectedPercentChange"`
	AnnualizedVolatility    float64          `json:"annualizedVolatility"`
	FailedSymbols           []string         `json:"failedSymbols"`
	History                 []PortfolioPoint `json:"history"`
}
