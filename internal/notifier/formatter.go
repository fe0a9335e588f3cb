package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"SignalDesk/internal/backtest"
	"SignalDesk/internal/model"
	"SignalDesk/internal/signal"
)

var statusIcon = map[model.Status]string{
	model.StatusBuy:  "🟢",
	model.StatusHold: "⚪",
	model.StatusSell: "🔴",
}

func icon(s model.Status) string {
	if i, ok := statusIcon[s]; ok {
		return i
	}
	return "❔"
}

func num(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *v)
}

// FormatSnapshot formats the current signal of one instrument.
func FormatSnapshot(snap model.SignalSnapshot) string {
	var b strings.Builder
	ind := snap.Indicators

	fmt.Fprintf(&b, "%s <b>%s</b> %s | score %d/100\n", icon(snap.Score.Status),
		html.EscapeString(snap.Symbol), snap.Score.Status, snap.Score.Score)
	fmt.Fprintf(&b, "Profile: %s | bars: %d | as of %s\n\n", snap.Score.Profile, snap.Bars, snap.AsOf.UTC().Format("2006-01-02"))
	if snap.Insufficient {
		b.WriteString("⚠️ Not enough history for every indicator\n\n")
	}

	fmt.Fprintf(&b, "Price: %s\n", num(ind.Price, "%.4g"))
	fmt.Fprintf(&b, "MA50: %s | MA200: %s\n", num(ind.MA50, "%.4g"), num(ind.MA200, "%.4g"))
	fmt.Fprintf(&b, "RSI14: %s | MACD hist: %s\n", num(ind.RSI14, "%.1f"), num(ind.MACDHist, "%.4g"))
	fmt.Fprintf(&b, "Volume ratio: %s\n\n", num(ind.VolumeRatio, "%.2f"))

	b.WriteString("📈 <b>Breakdown:</b>\n")
	for _, c := range snap.Score.Breakdown {
		if !c.Available {
			fmt.Fprintf(&b, "  %s: n/a (×%.2f)\n", c.Name, c.Weight)
			continue
		}
		fmt.Fprintf(&b, "  %s: %+.2f (×%.2f) = %.1f", c.Name, c.Points, c.Weight, c.Contribution)
		if c.Commentary != "" {
			fmt.Fprintf(&b, " %s", html.EscapeString(c.Commentary))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTransition announces a new BUY or SELL status.
func FormatTransition(from model.Status, snap model.SignalSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b>: %s → %s %s\n\n", html.EscapeString(snap.Symbol), from,
		icon(snap.Score.Status), snap.Score.Status)
	b.WriteString(FormatSnapshot(snap))
	return b.String()
}

// FormatOverview formats the watchlist summary, one line per instrument.
func FormatOverview(ov signal.Overview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>SignalDesk overview</b> | %s\n\n", time.Now().UTC().Format("2006-01-02"))
	if len(ov.Signals) == 0 {
		b.WriteString("No signals available.\n")
	}
	for _, s := range ov.Signals {
		fmt.Fprintf(&b, "%s %-10s %3d  %s  %s\n", icon(s.Score.Status), html.EscapeString(s.Symbol),
			s.Score.Score, s.Score.Status, num(s.Indicators.Price, "%.4g"))
	}
	if len(ov.Missing) > 0 {
		fmt.Fprintf(&b, "\n⚠️ No data: %s\n", html.EscapeString(strings.Join(ov.Missing, ", ")))
	}
	return b.String()
}

func writeHorizons(b *strings.Builder, st backtest.Stats) {
	for _, h := range st.Horizons {
		fmt.Fprintf(b, "  %dd: n=%d win %s mean %s median %s\n", h.Horizon, h.All.Count,
			rate(h.All.WinRate), pct(h.All.Mean), pct(h.All.Median))
	}
	if st.Hold.All.Count > 0 {
		fmt.Fprintf(b, "  hold: n=%d win %s mean %s\n", st.Hold.All.Count, rate(st.Hold.All.WinRate), pct(st.Hold.All.Mean))
	}
}

func rate(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

// FormatBacktest formats the backtest of one instrument with its last events.
func FormatBacktest(symbol string, res backtest.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧪 <b>Backtest %s</b> | %s, window %d, delay %d\n\n", html.EscapeString(symbol), res.Mode, res.Window, res.EntryDelay)
	if res.Insufficient {
		fmt.Fprintf(&b, "Not enough history (%d bars).\n", res.Bars)
		return b.String()
	}
	fmt.Fprintf(&b, "Events: %d (BUY %d, SELL %d)\n", res.Stats.Events, res.Stats.BuyEvents, res.Stats.SellEvents)
	writeHorizons(&b, res.Stats)

	const last = 5
	events := res.Events
	if len(events) > last {
		events = events[len(events)-last:]
	}
	if len(events) > 0 {
		b.WriteString("\nRecent events:\n")
	}
	for _, e := range events {
		when := fmt.Sprintf("#%d", e.Index)
		if e.Timestamp != 0 {
			when = time.Unix(e.Timestamp, 0).UTC().Format("2006-01-02")
		}
		state := "closed"
		if e.Open() {
			state = "open"
		}
		fmt.Fprintf(&b, "  %s %s %s @ %.4g (%d) hold %s, %s\n", icon(e.Status), when, e.Status, e.Price, e.Score, pct(e.HoldReturn), state)
	}
	return b.String()
}

// FormatBacktestReport formats the weekly aggregated backtest.
func FormatBacktestReport(agg backtest.Aggregated) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧪 <b>Weekly backtest</b> | %s\n\n", time.Now().UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Instruments: %d | events: %d (BUY %d, SELL %d)\n", len(agg.Symbols),
		agg.Stats.Events, agg.Stats.BuyEvents, agg.Stats.SellEvents)
	writeHorizons(&b, agg.Stats)
	if len(agg.Insufficient) > 0 {
		fmt.Fprintf(&b, "\n⚠️ Insufficient history: %s\n", html.EscapeString(strings.Join(agg.Insufficient, ", ")))
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return strings.Join([]string{
		"<b>SignalDesk commands</b>",
		"/signal SYMBOL - current signal",
		"/backtest SYMBOL - backtest summary",
		"/overview - watchlist signals",
		"/help - this message",
	}, "\n")
}
