package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
	"SignalDesk/internal/signal"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{}

func (fakeSource) Watchlist() []model.Instrument {
	return []model.Instrument{{Symbol: "AAPL", Market: model.MarketEquity}, {Symbol: "DOWN", Market: model.MarketEquity}}
}

func (fakeSource) Overview(context.Context) signal.Overview {
	return signal.Overview{
		Signals: []model.SignalSnapshot{{Symbol: "AAPL", Score: model.ScoreResult{Score: 70, Status: model.StatusBuy}}},
		Missing: []string{"DOWN"},
	}
}

func (fakeSource) Snapshot(_ context.Context, symbol string) (model.SignalSnapshot, error) {
	switch strings.ToUpper(symbol) {
	case "AAPL":
		return model.SignalSnapshot{Symbol: "AAPL", Score: model.ScoreResult{Score: 70, Status: model.StatusBuy}}, nil
	case "DOWN":
		return model.SignalSnapshot{}, fmt.Errorf("DOWN: %w", signal.ErrNoData)
	case "BOOM":
		return model.SignalSnapshot{}, errors.New("boom")
	}
	return model.SignalSnapshot{}, fmt.Errorf("%s: %w", symbol, signal.ErrUnknownSymbol)
}

func (fakeSource) Backtest(_ context.Context, symbol string) (backtest.Result, error) {
	if strings.ToUpper(symbol) != "AAPL" {
		return backtest.Result{}, signal.ErrUnknownSymbol
	}
	next := 250
	return backtest.Result{
		Window: 200, Mode: backtest.ModeRolling, Bars: 300,
		Events:   []model.SignalEvent{{Index: 210, Status: model.StatusBuy, Score: 70, Price: 10, NextIndex: &next}},
		Statuses: []model.Status{model.StatusBuy},
		Stats:    backtest.Stats{Events: 1, BuyEvents: 1},
	}, nil
}

func (fakeSource) BacktestAll(context.Context) backtest.Aggregated {
	return backtest.Aggregated{Symbols: []string{"AAPL"}, Insufficient: []string{}, Stats: backtest.Stats{Events: 1}}
}

func newTestServer() *httptest.Server {
	s := New(Config{Addr: ":0", Log: zerolog.Nop(), Signals: fakeSource{}})
	return httptest.NewServer(s.Handler())
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	code, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestSignals(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	code, body := get(t, srv, "/api/signals")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["signals"], 1)
	assert.Equal(t, []any{"DOWN"}, body["missing"])

	code, body = get(t, srv, "/api/signals/aapl")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, "BUY", body["score"].(map[string]any)["status"])

	code, body = get(t, srv, "/api/signals/DOGE")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "unknown symbol")

	code, _ = get(t, srv, "/api/signals/DOWN")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, body = get(t, srv, "/api/signals/BOOM")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body["error"])
}

func TestBacktest(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	code, body := get(t, srv, "/api/backtest/AAPL")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 200, body["window"])
	assert.Len(t, body["events"], 1)
	assert.NotContains(t, body, "Statuses")

	code, body = get(t, srv, "/api/backtest")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"AAPL"}, body["symbols"])

	code, _ = get(t, srv, "/api/backtest/NOPE")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWatchlist(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/watchlist")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list []model.Instrument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)
}
