package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/portfolio-tracker/internal/apperror"
	"github.com/sakif/portfolio-tracker/internal/marketdata"
	"github.com/sakif/portfolio-tracker/internal/model"
	"github.com/sakif/portfolio-tracker/internal/quotecache"
	"github.com/sakif/portfolio-tracker/internal/valuation"
)

// DefaultMarketTimeout bounds a single provider call when none is configured.
const DefaultMarketTimeout = 8 * time.Second

// errNoHistory marks an empty history series.
var errNoHistory = errors.New("no historical data")

// MarketService serves quotes and price history. Snapshots are read through
// the quote cache so the quote endpoint and portfolio enrichment share it.
type MarketService struct {
	provider marketdata.Provider
	cache    quotecache.Cache
	timeout  time.Duration
	logger   *slog.Logger
}

// NewMarketService wires a MarketService. timeout applies to each provider
// call separately.
func NewMarketService(provider marketdata.Provider, cache quotecache.Cache, timeout time.Duration, logger *slog.Logger) *MarketService {
	if timeout <= 0 {
		timeout = DefaultMarketTimeout
	}
	return &MarketService{
		provider: provider,
		cache:    cache,
		timeout:  timeout,
		logger:   logger,
	}
}

// Quote returns the current price and P/E multiples for one symbol.
//
// A symbol the provider does not know, or one with no usable price, is
// NotFound. Any other provider failure is Upstream.
func (s *MarketService) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnknownSymbol) {
			return nil, apperror.NotFound("symbol", symbol)
		}
		s.logger.Error("quote lookup failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream(fmt.Sprintf("failed to fetch data for %s", symbol), err)
	}

	price := valuation.CurrentPrice(snap)
	if price == 0 {
		return nil, apperror.NotFoundMessage(fmt.Sprintf("no price available for symbol %s", symbol))
	}

	return &model.Quote{
		Symbol:       symbol,
		CurrentPrice: price,
		CurrentPE:    snap.TrailingPE,
		ForwardPE:    snap.ForwardPE,
	}, nil
}

// History returns daily closes for symbol over period (default "1y"),
// ascending by date.
func (s *MarketService) History(ctx context.Context, symbol, period string) ([]model.HistoricalClose, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	period = strings.TrimSpace(period)
	if period == "" {
		period = marketdata.DefaultPeriod
	}
	if !marketdata.ValidPeriod(period) {
		return nil, apperror.ValidationFailed("period", fmt.Sprintf("unsupported period %q", period))
	}

	bars, err := s.history(ctx, symbol, period)
	switch {
	case errors.Is(err, errNoHistory), errors.Is(err, marketdata.ErrUnknownSymbol):
		return nil, apperror.NotFoundMessage(fmt.Sprintf("no historical data for symbol %s", symbol))
	case err != nil:
		s.logger.Error("history lookup failed",
			slog.String("symbol", symbol),
			slog.String("period", period),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Upstream(fmt.Sprintf("failed to fetch historical data for %s", symbol), err)
	}

	return valuation.Series(bars), nil
}

// snapshot reads through the cache. Cache errors are logged and treated as
// misses; only provider errors are returned.
func (s *MarketService) snapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	if snap, ok, err := s.cache.Get(ctx, symbol); err != nil {
		s.logger.Warn("quote cache read failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	} else if ok {
		return snap, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := s.provider.Snapshot(callCtx, symbol)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, symbol, snap); err != nil {
		s.logger.Warn("quote cache write failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
	return snap, nil
}

// history fetches bars under the per-call timeout. An empty series is
// errNoHistory.
func (s *MarketService) history(ctx context.Context, symbol, period string) ([]marketdata.Bar, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	bars, err := s.provider.History(callCtx, symbol, period)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, errNoHistory
	}
	return bars, nil
}

// normalizeSymbol trims and upper-cases a ticker and checks its length.
func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", apperror.ValidationFailed("symbol", "symbol is required")
	}
	if len(symbol) > model.MaxSymbolLength {
		return "", apperror.ValidationFailed("symbol",
			fmt.Sprintf("symbol must be %d characters or less", model.MaxSymbolLength))
	}
	return symbol, nil
}
