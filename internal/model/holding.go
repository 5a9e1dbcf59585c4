package model

import "time"

// MaxSymbolLength is the longest ticker symbol we accept.
const MaxSymbolLength = 10

// Holding is a user's recorded position in one ticker symbol.
//
// (UserID, Symbol) is the natural key: the store holds at most one row per
// symbol per user. Quantity may be negative (short positions).
type Holding struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"-"`
	Symbol        string    `json:"symbol"`
	Quantity      int64     `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// HoldingInput is one client-supplied holding. Pointer fields let the
// service tell "missing" apart from a zero value.
type HoldingInput struct {
	Symbol        *string  `json:"symbol"`
	Quantity      *int64   `json:"quantity"`
	PurchasePrice *float64 `json:"purchasePrice"`
}

// HistoricalClose is one daily close. The capitalised JSON keys match what
// the browser charts already consume.
type HistoricalClose struct {
	Date  string  `json:"Date"` // YYYY-MM-DD
	Close float64 `json:"Close"`
}

// EnrichedHolding is a Holding joined with a market snapshot at request time.
// It is never persisted.
//
// When the market fetch for the symbol fails, the price fields are nil
// (JSON null), the P/E fields are omitted, HistoricalData is empty and Error
// says why.
type EnrichedHolding struct {
	ID                 int64             `json:"id"`
	Symbol             string            `json:"symbol"`
	Quantity           int64             `json:"quantity"`
	PurchasePrice      float64           `json:"purchase_price"`
	CurrentPE          *float64          `json:"currentPE,omitempty"`
	ForwardPE          *float64          `json:"forwardPE,omitempty"`
	CurrentPrice       *float64          `json:"current_price"`
	TargetPrice        *float64          `json:"target_price"`
	UnrealizedGainLoss *float64          `json:"unrealized_gain_loss"`
	HistoricalData     []HistoricalClose `json:"historicalData"`
	Error              string            `json:"error,omitempty"`
}

// Failed reports whether enrichment for this holding degraded.
func (e EnrichedHolding) Failed() bool {
	return e.Error != ""
}
