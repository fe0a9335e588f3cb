package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SignalDesk/internal/model"
)

// DefaultBinanceURL is the spot REST API host.
const DefaultBinanceURL = "https://api.binance.com"

// binanceMaxLimit is the largest kline page the API serves.
const binanceMaxLimit = 1000

// BinanceFetcher implements Fetcher with Binance spot klines.
type BinanceFetcher struct {
	opts   HTTPOptions
	client *http.Client
}

// NewBinanceFetcher creates a Binance klines fetcher.
func NewBinanceFetcher(opts HTTPOptions) *BinanceFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBinanceURL
	}
	opts.Logger = opts.Logger.With().Str("fetcher", "binance").Logger()
	return &BinanceFetcher{opts: opts, client: opts.httpClient()}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// FetchDailyBars returns up to days daily klines, including the current
// unfinished one.
func (f *BinanceFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	limit := days
	if limit <= 0 || limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", "1d")
	q.Set("limit", strconv.Itoa(limit))
	endpoint := f.opts.BaseURL + "/api/v3/klines?" + q.Encode()

	body, err := getBody(ctx, f.client, f.opts.Policy, f.opts.Logger, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("binance fetch %s: %w", symbol, err)
	}

	var klines [][]any
	if err := json.Unmarshal(body, &klines); err != nil {
		return nil, fmt.Errorf("binance decode: %w", err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("binance %s: %w", symbol, ErrNoData)
	}

	bars := make([]model.OHLCV, 0, len(klines))
	for _, k := range klines {
		bar, err := parseKline(k)
		if err != nil {
			f.opts.Logger.Warn().Err(err).Str("symbol", symbol).Msg("skipping malformed kline")
			continue
		}
		bars = append(bars, bar)
	}
	return trimLast(bars, days), nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...] where
// prices are decimal strings and openTime is in milliseconds.
func parseKline(k []any) (model.OHLCV, error) {
	if len(k) < 6 {
		return model.OHLCV{}, fmt.Errorf("kline has %d fields", len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return model.OHLCV{}, fmt.Errorf("kline open time %v", k[0])
	}
	var vals [5]float64
	for i := range vals {
		s, ok := k[i+1].(string)
		if !ok {
			return model.OHLCV{}, fmt.Errorf("kline field %d is %T", i+1, k[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.OHLCV{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return model.OHLCV{
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
