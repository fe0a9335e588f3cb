package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"SignalDesk/internal/model"
	"SignalDesk/internal/retry"

	"github.com/rs/zerolog"
)

// ErrNoData is returned when a provider has no usable bars for a symbol.
var ErrNoData = errors.New("no market data")

// Fetcher retrieves daily bars for a symbol. Bars may contain NaN fields;
// callers clean them with model.NewPriceSeries.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error)
	Name() string
}

// HTTPOptions are shared by the HTTP-backed fetchers.
type HTTPOptions struct {
	BaseURL  string
	ProxyURL string
	Policy   retry.Policy
	Logger   zerolog.Logger
	Client   *http.Client
}

// httpClient returns the configured client or a new one honoring the proxy.
func (o HTTPOptions) httpClient() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if o.ProxyURL != "" {
		if u, err := url.Parse(o.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}

// getBody performs a GET with retries and returns the response body of the
// first 2xx answer.
func getBody(ctx context.Context, client *http.Client, policy retry.Policy, log zerolog.Logger, endpoint string, header http.Header) ([]byte, error) {
	return retry.Do(ctx, policy, log, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, retry.NewStatusError(resp, body)
		}
		return body, nil
	})
}

// trimLast keeps at most n most recent bars of a chronologically sorted slice.
func trimLast(bars []model.OHLCV, n int) []model.OHLCV {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}
