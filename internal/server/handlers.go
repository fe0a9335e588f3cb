package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
	"SignalDesk/internal/signal"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SignalSource is the read side of signal.Service.
type SignalSource interface {
	Watchlist() []model.Instrument
	Overview(ctx context.Context) signal.Overview
	Snapshot(ctx context.Context, symbol string) (model.SignalSnapshot, error)
	Backtest(ctx context.Context, symbol string) (backtest.Result, error)
	BacktestAll(ctx context.Context) backtest.Aggregated
}

// SignalHandlers serves signals and backtests over HTTP.
type SignalHandlers struct {
	src SignalSource
	log zerolog.Logger
}

func NewSignalHandlers(src SignalSource, log zerolog.Logger) *SignalHandlers {
	return &SignalHandlers{src: src, log: log}
}

// RegisterRoutes mounts the handlers on r.
func (h *SignalHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/watchlist", h.HandleWatchlist)
	r.Route("/signals", func(r chi.Router) {
		r.Get("/", h.HandleOverview)
		r.Get("/{symbol}", h.HandleSignal)
	})
	r.Route("/backtest", func(r chi.Router) {
		r.Get("/", h.HandleBacktestAll)
		r.Get("/{symbol}", h.HandleBacktest)
	})
}

// HandleWatchlist returns the configured instruments.
func (h *SignalHandlers) HandleWatchlist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Watchlist())
}

// HandleOverview returns the current signal of every instrument.
func (h *SignalHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.Overview(r.Context()))
}

// HandleSignal returns the current signal of one instrument.
func (h *SignalHandlers) HandleSignal(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(chi.URLParam(r, "symbol"))
	snap, err := h.src.Snapshot(r.Context(), symbol)
	if err != nil {
		h.writeError(w, symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleBacktest returns the backtest of one instrument.
func (h *SignalHandlers) HandleBacktest(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(chi.URLParam(r, "symbol"))
	res, err := h.src.Backtest(r.Context(), symbol)
	if err != nil {
		h.writeError(w, symbol, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleBacktestAll returns the pooled backtest of the watchlist.
func (h *SignalHandlers) HandleBacktestAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.src.BacktestAll(r.Context()))
}

func (h *SignalHandlers) writeError(w http.ResponseWriter, symbol string, err error) {
	switch {
	case errors.Is(err, signal.ErrUnknownSymbol):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol: " + symbol})
	case errors.Is(err, signal.ErrNoData):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no data available for " + symbol})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "request timed out"})
	default:
		h.log.Error().Err(err).Str("symbol", symbol).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // response already committed
}
