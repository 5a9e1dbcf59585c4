// Package marketdata fetches quotes and daily price history for ticker symbols.
//
// Provider is the seam the rest of the app depends on. The production
// implementation talks to Yahoo Finance over HTTP; tests substitute fakes.
package marketdata

import (
	"context"
	"errors"
	"time"
)

// DefaultPeriod is the history window used when the caller does not pick one.
const DefaultPeriod = "1y"

// ErrUnknownSymbol means the provider has no instrument for the symbol.
var ErrUnknownSymbol = errors.New("marketdata: unknown symbol")

// validPeriods are the ranges the chart API accepts.
var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// ValidPeriod reports whether period is a supported history range.
func ValidPeriod(period string) bool {
	return validPeriods[period]
}

// Snapshot is a point-in-time read for one symbol. Any field the provider
// did not return is nil.
type Snapshot struct {
	Symbol             string
	RegularMarketPrice *float64
	CurrentPrice       *float64
	PreviousClose      *float64
	TrailingPE         *float64
	ForwardPE          *float64
}

// Bar is one daily close.
type Bar struct {
	Date  time.Time
	Close float64
}

// Provider is the market-data source.
type Provider interface {
	// Snapshot returns the latest quote fields for symbol.
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
	// History returns daily closes for period, ascending by date. An empty
	// slice with a nil error means the provider had no rows.
	History(ctx context.Context, symbol, period string) ([]Bar, error)
}
