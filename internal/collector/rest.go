package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"SignalDesk/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted bars API that serves
// GET {base}/api/v1/bars/daily?symbol=&limit= as a JSON array of bars.
type RESTFetcher struct {
	opts   HTTPOptions
	apiKey string
	client *http.Client
}

// NewRESTFetcher creates a fetcher authenticating with a bearer token when
// apiKey is set.
func NewRESTFetcher(opts HTTPOptions, apiKey string) *RESTFetcher {
	opts.Logger = opts.Logger.With().Str("fetcher", "rest").Logger()
	return &RESTFetcher{opts: opts, apiKey: apiKey, client: opts.httpClient()}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the JSON shape served by the bars API. Timestamp is unix seconds.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *float64 `json:"volume"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if f.opts.BaseURL == "" {
		return nil, fmt.Errorf("rest fetcher: base url not configured")
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(days))
	endpoint := f.opts.BaseURL + "/api/v1/bars/daily?" + q.Encode()

	var header http.Header
	if f.apiKey != "" {
		header = http.Header{"Authorization": {"Bearer " + f.apiKey}}
	}
	body, err := getBody(ctx, f.client, f.opts.Policy, f.opts.Logger, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("rest fetch %s: %w", symbol, err)
	}

	var raw []restBar
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("rest %s: %w", symbol, ErrNoData)
	}

	bars := make([]model.OHLCV, len(raw))
	for i, rb := range raw {
		bars[i] = model.OHLCV{
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  at([]*float64{rb.Close}, 0),
			Volume: at([]*float64{rb.Volume}, 0),
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return trimLast(bars, days), nil
}
