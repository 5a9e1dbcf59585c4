package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// YahooConfig configures a YahooClient.
type YahooConfig struct {
	QuoteURL string        // v7 quote endpoint
	ChartURL string        // v8 chart endpoint, symbol is appended as a path segment
	Timeout  time.Duration // per call
	Retries  int           // extra attempts after the first failure
	Backoff  time.Duration // first retry delay, doubled per attempt
}

// YahooClient is a Provider backed by the public Yahoo Finance JSON API.
type YahooClient struct {
	http   *http.Client
	cfg    YahooConfig
	logger *slog.Logger
}

var _ Provider = (*YahooClient)(nil)

// NewYahooClient creates a client. A zero Backoff defaults to 250ms.
func NewYahooClient(cfg YahooConfig, logger *slog.Logger) *YahooClient {
	if cfg.Backoff == 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	return &YahooClient{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger.With(slog.String("client", "yahoo")),
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]any `json:"result"`
		Error  any              `json:"error"`
	} `json:"quoteResponse"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Snapshot fetches the v7 quote for symbol.
func (c *YahooClient) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("fields", "symbol,regularMarketPrice,currentPrice,regularMarketPreviousClose,previousClose,trailingPE,forwardPE")

	var resp quoteResponse
	if err := c.getJSON(ctx, c.cfg.QuoteURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("marketdata: quote %s: %w", symbol, err)
	}
	if resp.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("marketdata: quote %s: provider error: %v", symbol, resp.QuoteResponse.Error)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("marketdata: quote %s: %w", symbol, ErrUnknownSymbol)
	}

	info := resp.QuoteResponse.Result[0]
	previous := getFloat64(info, "previousClose")
	if previous == nil {
		previous = getFloat64(info, "regularMarketPreviousClose")
	}

	return &Snapshot{
		Symbol:             symbol,
		RegularMarketPrice: getFloat64(info, "regularMarketPrice"),
		CurrentPrice:       getFloat64(info, "currentPrice"),
		PreviousClose:      previous,
		TrailingPE:         getFloat64(info, "trailingPE"),
		ForwardPE:          getFloat64(info, "forwardPE"),
	}, nil
}

// History fetches daily closes from the v8 chart endpoint.
//
// Days where Yahoo returns a null close are skipped. The result is sorted by
// date ascending.
func (c *YahooClient) History(ctx context.Context, symbol, period string) ([]Bar, error) {
	if period == "" {
		period = DefaultPeriod
	}

	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", period)
	reqURL := c.cfg.ChartURL + "/" + url.PathEscape(symbol) + "?" + params.Encode()

	var resp chartResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("marketdata: history %s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, fmt.Errorf("marketdata: history %s: %w", symbol, ErrUnknownSymbol)
		}
		return nil, fmt.Errorf("marketdata: history %s: provider error %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		c.logger.Warn("no historical data returned", slog.String("symbol", symbol), slog.String("period", period))
		return []Bar{}, nil
	}

	result := resp.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		// Shift into the exchange's local day before truncating to a date.
		bars = append(bars, Bar{
			Date:  time.Unix(ts+result.Meta.GMTOffset, 0).UTC(),
			Close: *closes[i],
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	c.logger.Debug("fetched historical prices",
		slog.String("symbol", symbol),
		slog.String("period", period),
		slog.Int("count", len(bars)),
	)
	return bars, nil
}

// statusError is a non-200 reply from Yahoo.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// getJSON GETs reqURL and decodes the body into out, retrying transient
// failures with exponential backoff. Each attempt gets its own timeout. A 404
// is permanent and mapped to ErrUnknownSymbol.
func (c *YahooClient) getJSON(ctx context.Context, reqURL string, out any) error {
	var lastErr error
	wait := c.cfg.Backoff

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("market data request failed, retrying",
				slog.String("url", reqURL),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(wait):
			}
			wait *= 2
		}

		lastErr = c.fetch(ctx, reqURL, out)
		if lastErr == nil {
			return nil
		}

		var se *statusError
		if errors.As(lastErr, &se) && se.code == http.StatusNotFound {
			// Yahoo still sends a JSON body on 404; let the caller inspect it.
			return ErrUnknownSymbol
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return fmt.Errorf("after %d attempts: %w", c.cfg.Retries+1, lastErr)
}

func (c *YahooClient) fetch(ctx context.Context, reqURL string, out any) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// getFloat64 reads a numeric field from a loosely typed quote object.
func getFloat64(m map[string]any, key string) *float64 {
	if v, ok := m[key].(float64); ok {
		return &v
	}
	return nil
}
