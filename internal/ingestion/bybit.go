package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"perp-strategy-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.bybit.com"
	DefaultTimeout = 30 * time.Second

	// HistoryStart is the earliest start time requested from the kline
	// endpoint: 2010-01-01 00:00 UTC in ms. Bybit returns data from each
	// symbol's listing onward, so asking far in the past is harmless.
	HistoryStart = int64(1262304000 * 1000)
)

// BybitClient fetches market data from the Bybit v5 REST API.
type BybitClient struct {
	baseURL string
	client  *http.Client
}

// BybitOption configures BybitClient.
type BybitOption func(*BybitClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) BybitOption {
	return func(c *BybitClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) BybitOption {
	return func(c *BybitClient) {
		c.client = client
	}
}

// NewBybitClient creates a new Bybit v5 REST client.
func NewBybitClient(opts ...BybitOption) *BybitClient {
	c := &BybitClient{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface checks.
var (
	_ SymbolSource = (*BybitClient)(nil)
	_ KlineSource  = (*BybitClient)(nil)
)

type tickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol string `json:"symbol"`
		} `json:"list"`
	} `json:"result"`
}

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		// Rows are [startTime, open, high, low, close, volume, turnover]
		// as strings, newest first.
		List [][]string `json:"list"`
	} `json:"result"`
}

// Symbols returns all active linear symbols quoted in USDT. USDC-quoted
// perpetuals and dated derivatives are filtered out.
func (c *BybitClient) Symbols(ctx context.Context) ([]string, error) {
	var resp tickersResponse
	if err := c.get(ctx, "/v5/market/tickers", url.Values{"category": {"linear"}}, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit tickers: retCode %d: %s", resp.RetCode, resp.RetMsg)
	}

	var symbols []string
	for _, t := range resp.Result.List {
		if strings.HasSuffix(t.Symbol, "USDT") {
			symbols = append(symbols, t.Symbol)
		}
	}
	return symbols, nil
}

// Kline pages through /v5/market/kline from the requested start until no
// candle before until-interval remains, then drops the newest candle
// since it is still in progress. until is an exclusive upper bound:
// candles starting at or after it are never returned.
func (c *BybitClient) Kline(ctx context.Context, symbol string, interval domain.Interval, from, until int64) ([]domain.Candle, error) {
	intervalMs := interval.Millis()
	byStart := make(map[int64]domain.Candle)

	start := from
	for start < until-intervalMs {
		page, err := c.klinePage(ctx, symbol, interval, start)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, candle := range page {
			// until is exclusive; a page can run past it.
			if candle.StartTime >= until {
				continue
			}
			byStart[candle.StartTime] = candle
		}

		// Rows come newest-first: the first row keys the next page.
		start = page[0].StartTime + intervalMs
	}

	candles := make([]domain.Candle, 0, len(byStart))
	for _, candle := range byStart {
		candles = append(candles, candle)
	}
	sortCandlesByStart(candles)

	// The newest candle is still forming.
	if len(candles) > 0 {
		candles = candles[:len(candles)-1]
	}
	return candles, nil
}

// klinePage fetches one page of candles starting at start, newest first.
func (c *BybitClient) klinePage(ctx context.Context, symbol string, interval domain.Interval, start int64) ([]domain.Candle, error) {
	// The API accepts "D" for daily, not 1440.
	intervalParam := strconv.Itoa(int(interval))
	if interval == domain.Interval1d {
		intervalParam = "D"
	}

	params := url.Values{
		"category": {"linear"},
		"symbol":   {symbol},
		"interval": {intervalParam},
		"start":    {strconv.FormatInt(start, 10)},
	}

	var resp klineResponse
	if err := c.get(ctx, "/v5/market/kline", params, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline %s: retCode %d: %s", symbol, resp.RetCode, resp.RetMsg)
	}

	candles := make([]domain.Candle, 0, len(resp.Result.List))
	for _, row := range resp.Result.List {
		candle, err := parseKlineRow(symbol, interval, row)
		if err != nil {
			return nil, fmt.Errorf("parse kline row for %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKlineRow(symbol string, interval domain.Interval, row []string) (domain.Candle, error) {
	if len(row) < 7 {
		return domain.Candle{}, fmt.Errorf("expected 7 fields, got %d", len(row))
	}

	start, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("start_time: %w", err)
	}

	values := make([]float64, 6)
	for i, field := range row[1:7] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return domain.Candle{
		Symbol:    symbol,
		Interval:  interval,
		StartTime: start,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		Turnover:  values[5],
	}, nil
}

func (c *BybitClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
