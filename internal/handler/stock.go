package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio-tracker/internal/model"
)

// Market is the public market-data API. *service.MarketService implements it.
type Market interface {
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	History(ctx context.Context, symbol, period string) ([]model.HistoricalClose, error)
}

// StockHandler serves quotes and price history. These routes need no login.
type StockHandler struct {
	market Market
	logger *slog.Logger
}

// NewStockHandler creates a StockHandler.
func NewStockHandler(market Market, logger *slog.Logger) *StockHandler {
	return &StockHandler{market: market, logger: logger}
}

// HandleQuote returns the current price and P/E multiples.
//
// HTTP: GET /api/stock/{symbol}
func (h *StockHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.market.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// HandleHistory returns daily closes, oldest first.
//
// HTTP: GET /api/stock/{symbol}/history?period=6mo
func (h *StockHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.market.History(r.Context(), chi.URLParam(r, "symbol"), r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}
