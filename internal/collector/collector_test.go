package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SignalDesk/internal/model"
	"SignalDesk/internal/retry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		AttemptTimeout:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}
}

func testHTTP(base string) HTTPOptions {
	return HTTPOptions{BaseURL: base, Policy: testPolicy(), Logger: zerolog.Nop()}
}

func TestYahooFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/v8/finance/chart/^GSPC", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1700172800,1700000000,1700086400],
			"indicators":{"quote":[{"open":[3,1,null],"high":[3,1,null],"low":[3,1,null],
			"close":[3,1,null],"volume":[30,10,null]}]}}],"error":null}}`)
	}))
	defer srv.Close()

	f := NewYahooFetcher(testHTTP(srv.URL))
	bars, err := f.FetchDailyBars(context.Background(), "SPX500", 10)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.EqualValues(t, 2, hits.Load(), "5xx is retried")

	assert.Equal(t, 1.0, bars[0].Close, "sorted by time")
	assert.True(t, bars[1].Time.Before(bars[2].Time))

	series := model.NewPriceSeries("SPX500", bars)
	assert.Equal(t, []float64{1, 3}, series.Closes, "null session is dropped")
}

func TestYahooFetcher_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"chart":{"result":null,"error":{"code":"Not Found"}}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewYahooFetcher(testHTTP(srv.URL)).FetchDailyBars(context.Background(), "NOPE", 10)
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())

	var se *retry.StatusError
	assert.ErrorAs(t, err, &se)
}

func TestBinanceFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			[1700000000000,"100.0","110.0","95.0","105.5","1234.5",1700086399999,"0",10,"0","0","0"],
			["bad"],
			[1700086400000,"105.5","120.0","100.0","118.25","999",1700172799999,"0",10,"0","0","0"]
		]`)
	}))
	defer srv.Close()

	bars, err := NewBinanceFetcher(testHTTP(srv.URL)).FetchDailyBars(context.Background(), "btcusdt", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 105.5, bars[0].Close)
	assert.Equal(t, 1234.5, bars[0].Volume)
	assert.Equal(t, int64(1700086400), bars[1].Time.Unix())
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `[{"timestamp":1700086400,"close":12,"volume":5},{"timestamp":1700000000,"close":10,"volume":null}]`)
	}))
	defer srv.Close()

	bars, err := NewRESTFetcher(testHTTP(srv.URL), "secret").FetchDailyBars(context.Background(), "GOLD", 5)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.0, bars[0].Close)

	_, err = NewRESTFetcher(testHTTP(srv.URL), "wrong").FetchDailyBars(context.Background(), "GOLD", 5)
	require.Error(t, err)
}

func TestRouter(t *testing.T) {
	crypto := &MockFetcher{Price: 1}
	equity := NewYahooFetcher(testHTTP("http://unused"))
	r := NewRouter().Register(crypto, model.MarketCrypto).Register(equity, model.MarketEquity)

	f, err := r.For(model.Instrument{Symbol: "BTCUSDT", Market: model.MarketCrypto})
	require.NoError(t, err)
	assert.Equal(t, "mock", f.Name())

	f, err = r.For(model.Instrument{Symbol: "AAPL", Market: model.MarketEquity})
	require.NoError(t, err)
	assert.Equal(t, "yahoo", f.Name())

	f, err = r.For(model.Instrument{Symbol: "AAPL", Market: model.MarketEquity, Source: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", f.Name())

	_, err = r.For(model.Instrument{Symbol: "X", Source: "bloomberg"})
	assert.Error(t, err)
	_, err = r.For(model.Instrument{Symbol: "X", Market: "fx"})
	assert.Error(t, err)
}

func TestCollector_Collect(t *testing.T) {
	mock := &MockFetcher{
		Price: 100,
		Bars: map[string][]model.OHLCV{
			"EMPTY": {{Time: time.Unix(1, 0), Close: 0, Volume: 1}},
		},
	}
	c := NewCollector(NewRouter().Register(mock, model.MarketCrypto), 50, 2, zerolog.Nop())

	series, err := c.Collect(context.Background(), model.Instrument{Symbol: "BTCUSDT", Market: model.MarketCrypto})
	require.NoError(t, err)
	assert.Equal(t, 50, series.Len())
	assert.Equal(t, "BTCUSDT", series.Symbol)

	_, err = c.Collect(context.Background(), model.Instrument{Symbol: "EMPTY", Market: model.MarketCrypto})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCollector_CollectAllKeepsPartialResults(t *testing.T) {
	mock := &MockFetcher{
		Price:  10,
		Errors: map[string]error{"DOWN": errors.New("provider timeout")},
	}
	c := NewCollector(NewRouter().Register(mock, model.MarketCrypto, model.MarketEquity), 30, 2, zerolog.Nop())

	insts := []model.Instrument{
		{Symbol: "A", Market: model.MarketCrypto},
		{Symbol: "DOWN", Market: model.MarketCrypto},
		{Symbol: "B", Market: model.MarketEquity},
		{Symbol: "C", Market: "unknown"},
	}
	got := c.CollectAll(context.Background(), insts)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "A")
	assert.Contains(t, got, "B")
	assert.NotContains(t, got, "DOWN")
	assert.Equal(t, 1, mock.CallCount("DOWN"))
}
