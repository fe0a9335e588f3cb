package collector

import (
	"fmt"

	"SignalDesk/internal/model"
)

// Router picks the fetcher serving an instrument: its explicit source if set,
// otherwise the default for its market.
type Router struct {
	byMarket map[model.Market]Fetcher
	byName   map[string]Fetcher
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		byMarket: make(map[model.Market]Fetcher),
		byName:   make(map[string]Fetcher),
	}
}

// Register makes f available by name and, if markets are given, the default
// for those markets.
func (r *Router) Register(f Fetcher, markets ...model.Market) *Router {
	r.byName[f.Name()] = f
	for _, m := range markets {
		r.byMarket[m] = f
	}
	return r
}

// For returns the fetcher for inst.
func (r *Router) For(inst model.Instrument) (Fetcher, error) {
	if inst.Source != "" {
		if f, ok := r.byName[inst.Source]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("unknown data source %q for %s", inst.Source, inst.Symbol)
	}
	if f, ok := r.byMarket[inst.Market]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no data source for market %q (%s)", inst.Market, inst.Symbol)
}
