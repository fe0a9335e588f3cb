package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalDesk/internal/model"
)

// MockFetcher serves fixed or generated bars for development and tests.
type MockFetcher struct {
	mu     sync.Mutex
	Price  float64
	Bars   map[string][]model.OHLCV
	Errors map[string]error
	Calls  map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	m.mu.Lock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[symbol]++
	err := m.Errors[symbol]
	bars, ok := m.Bars[symbol]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if ok {
		return trimLast(append([]model.OHLCV(nil), bars...), days), nil
	}
	if m.Price <= 0 {
		return nil, fmt.Errorf("mock %s: %w", symbol, ErrNoData)
	}
	return generateMockBars(m.Price, days), nil
}

// CallCount returns how many times symbol was fetched.
func (m *MockFetcher) CallCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[symbol]
}

func generateMockBars(basePrice float64, count int) []model.OHLCV {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	bars := make([]model.OHLCV, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}
