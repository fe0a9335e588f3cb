package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalDesk/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Defaults for Collector.
const (
	DefaultDays        = 400
	DefaultConcurrency = 4
)

// Collector fetches and cleans daily series for instruments.
type Collector struct {
	router      *Router
	days        int
	concurrency int
	log         zerolog.Logger
	now         func() time.Time
}

// NewCollector creates a Collector. Non-positive days or concurrency use the defaults.
func NewCollector(router *Router, days, concurrency int, log zerolog.Logger) *Collector {
	if days <= 0 {
		days = DefaultDays
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Collector{
		router:      router,
		days:        days,
		concurrency: concurrency,
		log:         log.With().Str("component", "collector").Logger(),
		now:         time.Now,
	}
}

// Days is the history length requested from providers.
func (c *Collector) Days() int {
	return c.days
}

// Collect fetches one instrument and returns its cleaned series. A provider
// answer with no usable bar yields ErrNoData.
func (c *Collector) Collect(ctx context.Context, inst model.Instrument) (*model.PriceSeries, error) {
	f, err := c.router.For(inst)
	if err != nil {
		return nil, err
	}
	start := c.now()
	bars, err := f.FetchDailyBars(ctx, inst.Symbol, c.days)
	if err != nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", inst.Symbol, f.Name(), err)
	}
	series := model.NewPriceSeries(inst.Symbol, bars)
	series.FetchedAt = c.now()
	if series.Len() == 0 {
		return nil, fmt.Errorf("%s from %s: %w", inst.Symbol, f.Name(), ErrNoData)
	}
	if dropped := len(bars) - series.Len(); dropped > 0 {
		c.log.Debug().Str("symbol", inst.Symbol).Int("dropped", dropped).Msg("dropped unusable bars")
	}
	c.log.Debug().Str("symbol", inst.Symbol).Str("source", f.Name()).Int("bars", series.Len()).
		Dur("took", c.now().Sub(start)).Msg("collected")
	return series, nil
}

// CollectAll fetches instruments in parallel, at most concurrency at a time.
// Instruments that fail are logged and left out of the result.
func (c *Collector) CollectAll(ctx context.Context, insts []model.Instrument) map[string]*model.PriceSeries {
	var mu sync.Mutex
	out := make(map[string]*model.PriceSeries, len(insts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, inst := range insts {
		g.Go(func() error {
			series, err := c.Collect(gctx, inst)
			if err != nil {
				c.log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("collect failed")
				return nil
			}
			mu.Lock()
			out[inst.Symbol] = series
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
