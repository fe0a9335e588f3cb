package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
	"SignalDesk/internal/retry"
	"SignalDesk/internal/signal"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotifier(url string) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", zerolog.Nop())
	n.BaseURL = url
	n.Policy = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	return n
}

func TestTelegramNotifier_SendRetries(t *testing.T) {
	var calls atomic.Int32
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv.URL).Send(context.Background(), "hello"))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestTelegramNotifier_SendClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTelegramNotifier_Polling(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polls.Add(1) == 1 {
				assert.Equal(t, "0", r.URL.Query().Get("offset"))
				fmt.Fprint(w, `{"ok":true,"result":[
					{"update_id":10,"message":{"text":" /help ","chat":{"id":42}}},
					{"update_id":11,"message":{"text":"/overview","chat":{"id":7}}}
				]}`)
				return
			}
			assert.Equal(t, "12", r.URL.Query().Get("offset"))
			fmt.Fprint(w, `{"ok":true,"result":[]}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			sent = append(sent, body["text"].(string))
			mu.Unlock()
			fmt.Fprint(w, `{"ok":true}`)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var commands []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		testNotifier(srv.URL).StartPolling(ctx, func(_ context.Context, cmd string) string {
			commands = append(commands, cmd)
			return "reply to " + cmd
		})
	}()

	require.Eventually(t, func() bool { return polls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"/help"}, commands)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"reply to /help"}, sent)
}

func ptr(v float64) *float64 { return &v }

func TestFormatSnapshot(t *testing.T) {
	snap := model.SignalSnapshot{
		Symbol:     "BTC<USDT>",
		Indicators: model.IndicatorSet{Price: ptr(65000), RSI14: ptr(61.2)},
		Score: model.ScoreResult{Score: 72, Status: model.StatusBuy, Profile: "crypto", Breakdown: []model.Component{
			{Name: "ma_trend", Weight: 0.4, Points: 1.5, Contribution: 35, Available: true},
			{Name: "volume", Weight: 0.1},
		}},
		Bars: 400,
		AsOf: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	out := FormatSnapshot(snap)
	assert.Contains(t, out, "BTC&lt;USDT&gt;")
	assert.Contains(t, out, "score 72/100")
	assert.Contains(t, out, "MA50: n/a")
	assert.Contains(t, out, "RSI14: 61.2")
	assert.Contains(t, out, "volume: n/a")
	assert.Contains(t, out, "2025-03-01")

	tr := FormatTransition(model.StatusHold, snap)
	assert.Contains(t, tr, "HOLD → 🟢 BUY")
}

func TestFormatOverviewAndBacktest(t *testing.T) {
	ov := signal.Overview{
		Signals: []model.SignalSnapshot{{Symbol: "AAPL", Score: model.ScoreResult{Score: 20, Status: model.StatusSell}}},
		Missing: []string{"MSFT"},
	}
	out := FormatOverview(ov)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "No data: MSFT")

	next := 12
	win := 0.5
	res := backtest.Result{
		Window: 200, Mode: backtest.ModeRolling, Bars: 300,
		Events: []model.SignalEvent{
			{Index: 210, Status: model.StatusBuy, Score: 70, Price: 10, NextIndex: &next},
			{Index: 250, Status: model.StatusSell, Score: 30, Price: 12},
		},
		Stats: backtest.Stats{Events: 2, BuyEvents: 1, SellEvents: 1, Horizons: []backtest.HorizonStats{
			{Horizon: 7, All: backtest.Summary{Count: 2, Wins: 1, WinRate: &win}},
		}},
	}
	bt := FormatBacktest("AAPL", res)
	assert.Contains(t, bt, "Events: 2 (BUY 1, SELL 1)")
	assert.Contains(t, bt, "7d: n=2 win 50%")
	assert.Contains(t, bt, "closed")
	assert.Contains(t, bt, "open")

	short := FormatBacktest("AAPL", backtest.Result{Insufficient: true, Bars: 50})
	assert.Contains(t, short, "Not enough history (50 bars)")

	rep := FormatBacktestReport(backtest.Aggregated{Symbols: []string{"AAPL"}, Insufficient: []string{"NEW"}, Stats: res.Stats})
	assert.Contains(t, rep, "Instruments: 1")
	assert.Contains(t, rep, "Insufficient history: NEW")
}
