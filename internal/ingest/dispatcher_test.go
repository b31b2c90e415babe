package ingest

import (
	"sync"
	"testing"

	"github.com/atlas-desktop/regime-engine/internal/integration"
	"github.com/atlas-desktop/regime-engine/internal/strategy"
	"github.com/atlas-desktop/regime-engine/internal/workers"
	"github.com/atlas-desktop/regime-engine/pkg/types"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, func()) {
	t.Helper()
	router, err := strategy.NewRouter(strategy.DefaultRouterConfig(), nil)
	if err != nil {
		t.Fatalf("router config: %v", err)
	}
	trader := integration.NewTrader(router, 60, nil)
	pool := workers.NewPool(nil, workers.DefaultPoolConfig("ingest-test"))
	pool.Start()
	d := NewDispatcher(trader, pool, nil)
	return d, func() { pool.Stop() }
}

func TestDispatcherProcessesConcurrentSymbolsIndependently(t *testing.T) {
	d, cleanup := newTestDispatcher(t)
	defer cleanup()

	symbols := []string{"BTC-USD", "ETH-USD"}
	var wg sync.WaitGroup
	var mu sync.Mutex
	terminal := make(map[string]*integration.TradeAction)
	for _, sym := range symbols {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last *integration.TradeAction
			close := 100.0
			for i := int64(0); i < 30; i++ {
				close *= 1.01
				c := types.Candle{Symbol: sym, Timestamp: i * 60, Open: close / 1.01, High: close * 1.002, Low: close / 1.01 * 0.998, Close: close, Volume: 1}
				action, err := d.SubmitWait(c)
				if err != nil {
					t.Errorf("unexpected error processing candle for %s: %v", sym, err)
				}
				last = action
			}
			mu.Lock()
			terminal[sym] = last
			mu.Unlock()
		}()
	}
	wg.Wait()

	// The same candles driven one at a time through a fresh trader must give
	// each symbol the same terminal result as the concurrent run.
	router, err := strategy.NewRouter(strategy.DefaultRouterConfig(), nil)
	if err != nil {
		t.Fatalf("router config: %v", err)
	}
	sequential := integration.NewTrader(router, 60, nil)
	for _, sym := range symbols {
		var last *integration.TradeAction
		close := 100.0
		for i := int64(0); i < 30; i++ {
			close *= 1.01
			c := types.Candle{Symbol: sym, Timestamp: i * 60, Open: close / 1.01, High: close * 1.002, Low: close / 1.01 * 0.998, Close: close, Volume: 1}
			action, err := sequential.ProcessCandle(c)
			if err != nil {
				t.Fatalf("unexpected sequential error for %s: %v", sym, err)
			}
			last = action
		}
		got := terminal[sym]
		if got == nil || last == nil || got.Action != last.Action || got.Regime != last.Regime || got.Confidence != last.Confidence {
			t.Fatalf("expected concurrent and sequential runs to agree for %s, got %+v vs %+v", sym, got, last)
		}
	}
}

func TestDispatcherRejectsStaleCandle(t *testing.T) {
	d, cleanup := newTestDispatcher(t)
	defer cleanup()

	c := types.Candle{Symbol: "BTC-USD", Timestamp: 120, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	if _, err := d.SubmitWait(c); err != nil {
		t.Fatalf("unexpected error on first candle: %v", err)
	}
	action, err := d.SubmitWait(c)
	if err != nil {
		t.Fatalf("unexpected error on replayed candle: %v", err)
	}
	if action != nil {
		t.Fatalf("expected replayed candle to be dropped, got %+v", action)
	}
}
