package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/auth"
	"github.com/sakif/portfolio-tracker/internal/model"
)

// Portfolio is the holdings workflow the handlers need.
// *service.PortfolioService implements it.
type Portfolio interface {
	ListEnriched(ctx context.Context, userID string) ([]model.EnrichedHolding, error)
	SaveHoldings(ctx context.Context, userID string, inputs []model.HoldingInput) error
	AddHolding(ctx context.Context, userID string, in model.HoldingInput) (*model.Holding, error)
	DeleteHolding(ctx context.Context, userID string, id int64) (*model.Holding, error)
	Summary(ctx context.Context, userID string) (*model.PortfolioSummary, error)
}

// HoldingsHandler serves the per-user holdings API. Every route sits behind
// auth.RequireAuth, so the user ID always comes from the session, never from
// the request body.
type HoldingsHandler struct {
	portfolio Portfolio
	logger    *slog.Logger
}

// NewHoldingsHandler creates a HoldingsHandler.
func NewHoldingsHandler(portfolio Portfolio, logger *slog.Logger) *HoldingsHandler {
	return &HoldingsHandler{portfolio: portfolio, logger: logger}
}

type saveStockResponse struct {
	Message string `json:"message"`
	StockID int64  `json:"stockid"`
}

type saveHoldingsRequest struct {
	Holdings *[]model.HoldingInput `json:"holdings"`
}

// currentUser reads the session user or writes a 401.
func (h *HoldingsHandler) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, r, apperror.Unauthorized("valid authentication required"))
	}
	return userID, ok
}

// HandleSaveStock adds one holding.
//
// HTTP: POST /api/save-stock  {"symbol":"AAPL","quantity":10,"purchasePrice":150}
func (h *HoldingsHandler) HandleSaveStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var in model.HoldingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	holding, err := h.portfolio.AddHolding(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, saveStockResponse{
		Message: "Stock saved successfully!",
		StockID: holding.ID,
	})
}

// HandleSaveHoldings upserts a batch of holdings atomically.
//
// HTTP: POST /api/save-holdings  {"holdings":[{...}, ...]}
func (h *HoldingsHandler) HandleSaveHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req saveHoldingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.Holdings == nil {
		writeError(w, h.logger, r, apperror.ValidationFailed("holdings", "holdings is required"))
		return
	}

	if err := h.portfolio.SaveHoldings(r.Context(), userID, *req.Holdings); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Holdings saved successfully!"})
}

// HandleDeleteStock deletes one of the caller's holdings.
//
// HTTP: DELETE /api/delete-stock/{id}
func (h *HoldingsHandler) HandleDeleteStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	// chi.URLParam extracts {id} from the route pattern.
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, h.logger, r, apperror.ValidationFailed("id", "holding id must be an integer"))
		return
	}

	deleted, err := h.portfolio.DeleteHolding(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Holding %s deleted successfully.", deleted.Symbol),
	})
}

// HandleGetHoldings returns the caller's holdings valued at current prices.
// A symbol whose market data could not be fetched still appears, with an
// "error" field; the response is 200 unless the store itself fails.
//
// HTTP: GET /api/get-holdings
func (h *HoldingsHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	holdings, err := h.portfolio.ListEnriched(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, holdings)
}

// HandleSummary returns portfolio totals and the value history.
//
// HTTP: GET /api/portfolio/summary
func (h *HoldingsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	summary, err := h.portfolio.Summary(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
