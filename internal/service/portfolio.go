// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services never see *http.Request or status codes. They return apperror
// values and the handler layer maps those to HTTP.
//
// DEPENDENCY INJECTION:
// PortfolioService takes a repository.HoldingRepository (interface), not a
// *sqlite.DB, so tests pass an in-memory fake and production passes SQLite.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/marketdata"
	"github.com/sakif/portfolio-tracker/internal/model"
	"github.com/sakif/portfolio-tracker/internal/repository"
	"github.com/sakif/portfolio-tracker/internal/valuation"
)

// DefaultConcurrency is the number of holdings enriched at once when the
// caller does not configure it.
const DefaultConcurrency = 4

// PortfolioService owns the holdings workflow: saving, deleting and valuing a
// user's holdings against live market data.
type PortfolioService struct {
	holdings    repository.HoldingRepository
	market      *MarketService
	concurrency int
	logger      *slog.Logger
}

// NewPortfolioService creates a PortfolioService. concurrency bounds how many
// holdings are fetched from the market-data provider in parallel.
func NewPortfolioService(
	holdings repository.HoldingRepository,
	market *MarketService,
	concurrency int,
	logger *slog.Logger,
) *PortfolioService {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &PortfolioService{
		holdings:    holdings,
		market:      market,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ListEnriched returns every holding of userID joined with current market
// data, in stored order.
//
// PER-SYMBOL ISOLATION:
// A failed fetch for one symbol degrades only that entry (null prices, empty
// history, Error set). The only error this method returns is a store failure
// while loading the holdings.
//
// FAN-OUT:
// Fetches run on an errgroup limited to s.concurrency goroutines. Each
// goroutine writes into its own index of a pre-sized slice, so the output
// order is the stored order no matter which fetch finishes first, and no
// mutex is needed.
func (s *PortfolioService) ListEnriched(ctx context.Context, userID string) ([]model.EnrichedHolding, error) {
	holdings, err := s.holdings.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load holdings",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing holdings: %w", err)
	}

	out := make([]model.EnrichedHolding, len(holdings))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, h := range holdings {
		g.Go(func() error {
			out[i] = s.enrich(ctx, h)
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

// enrich values one holding. It never returns an error; failures end up in
// the entry's Error field.
func (s *PortfolioService) enrich(ctx context.Context, h model.Holding) model.EnrichedHolding {
	snap, err := s.market.snapshot(ctx, h.Symbol)
	if err != nil {
		return s.degrade(h, err)
	}

	bars, err := s.market.history(ctx, h.Symbol, marketdata.DefaultPeriod)
	if err != nil {
		return s.degrade(h, err)
	}

	return valuation.Value(h, snap, bars)
}

func (s *PortfolioService) degrade(h model.Holding, err error) model.EnrichedHolding {
	s.logger.Warn("market data unavailable for holding",
		slog.Int64("holdingID", h.ID),
		slog.String("symbol", h.Symbol),
		slog.String("error", err.Error()),
	)
	return valuation.Failed(h, fmt.Sprintf("Error fetching data for %s: %s", h.Symbol, failureReason(err)))
}

// failureReason turns a provider error into text that is safe to show users.
func failureReason(err error) string {
	switch {
	case errors.Is(err, marketdata.ErrUnknownSymbol):
		return "unknown symbol"
	case errors.Is(err, errNoHistory):
		return "no historical data"
	case errors.Is(err, context.DeadlineExceeded):
		return "market data request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return "market data provider unavailable"
	}
}

// SaveHoldings upserts a batch of holdings for userID.
//
// Every entry is validated before storage is touched, so one bad entry
// rejects the whole batch. The repository applies the batch in a single
// transaction keyed on (user, symbol); a later entry for the same symbol
// overwrites an earlier one.
func (s *PortfolioService) SaveHoldings(ctx context.Context, userID string, inputs []model.HoldingInput) error {
	batch := make([]model.Holding, 0, len(inputs))
	for i, in := range inputs {
		h, err := validateHolding(in, "holdings["+strconv.Itoa(i)+"].")
		if err != nil {
			return err
		}
		h.UserID = userID
		batch = append(batch, h)
	}

	if err := s.holdings.UpsertBatch(ctx, userID, batch); err != nil {
		s.logger.Error("failed to save holdings batch",
			slog.String("userID", userID),
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("saving holdings: %w", err)
	}

	s.logger.Info("holdings saved",
		slog.String("userID", userID),
		slog.Int("count", len(batch)),
	)
	return nil
}

// AddHolding validates and inserts one new holding. Holding the same symbol
// twice is a Conflict; use SaveHoldings to change an existing position.
func (s *PortfolioService) AddHolding(ctx context.Context, userID string, in model.HoldingInput) (*model.Holding, error) {
	h, err := validateHolding(in, "")
	if err != nil {
		return nil, err
	}
	h.UserID = userID

	if err := s.holdings.Create(ctx, &h); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to add holding",
			slog.String("userID", userID),
			slog.String("symbol", h.Symbol),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("adding holding: %w", err)
	}

	s.logger.Info("holding added",
		slog.String("userID", userID),
		slog.Int64("holdingID", h.ID),
		slog.String("symbol", h.Symbol),
	)
	return &h, nil
}

// DeleteHolding removes holding id if userID owns it. Someone else's holding
// is reported as NotFound, exactly like an id that never existed.
func (s *PortfolioService) DeleteHolding(ctx context.Context, userID string, id int64) (*model.Holding, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "holding id must be a positive integer")
	}

	deleted, err := s.holdings.DeleteForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("holding deleted",
		slog.String("userID", userID),
		slog.Int64("holdingID", id),
		slog.String("symbol", deleted.Symbol),
	)
	return deleted, nil
}

// Summary values the portfolio and folds it into totals, a per-day value
// series and annualized volatility.
func (s *PortfolioService) Summary(ctx context.Context, userID string) (*model.PortfolioSummary, error) {
	entries, err := s.ListEnriched(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := valuation.Summarize(entries)
	return &summary, nil
}

// validateHolding checks one client-supplied holding and normalizes its
// symbol. prefix qualifies field names in batch errors.
func validateHolding(in model.HoldingInput, prefix string) (model.Holding, error) {
	if in.Symbol == nil || in.Quantity == nil || in.PurchasePrice == nil {
		return model.Holding{}, apperror.ValidationFailed(prefix+"holding",
			"symbol, quantity and purchasePrice are required")
	}

	symbol, err := normalizeSymbol(*in.Symbol)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			appErr.Field = prefix + appErr.Field
		}
		return model.Holding{}, err
	}

	price := *in.PurchasePrice
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return model.Holding{}, apperror.ValidationFailed(prefix+"purchasePrice",
			"purchasePrice must be a non-negative number")
	}

	return model.Holding{
		Symbol:        symbol,
		Quantity:      *in.Quantity,
		PurchasePrice: price,
	}, nil
}
