package integration

import (
	"testing"

	"github.com/atlas-desktop/regime-engine/internal/strategy"
	"github.com/atlas-desktop/regime-engine/pkg/types"
)

func newTestTrader(t *testing.T) *Trader {
	t.Helper()
	router, err := strategy.NewRouter(strategy.DefaultRouterConfig(), nil)
	if err != nil {
		t.Fatalf("router config: %v", err)
	}
	return NewTrader(router, 60, nil)
}

func TestProcessCandleRejectsInvalidShape(t *testing.T) {
	tr := newTestTrader(t)
	candle := types.Candle{Symbol: "BTC-USD", Timestamp: 60, Open: 100, High: 90, Low: 95, Close: 98, Volume: 1}
	_, err := tr.ProcessCandle(candle)
	if err == nil {
		t.Fatalf("expected an error for a malformed candle (high < low)")
	}
}

func TestProcessCandleIdempotentOnReplay(t *testing.T) {
	tr := newTestTrader(t)
	candle := types.Candle{Symbol: "BTC-USD", Timestamp: 60, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	first, err := tr.ProcessCandle(candle)
	if err != nil || first == nil {
		t.Fatalf("expected first candle to be processed, err=%v", err)
	}
	second, err := tr.ProcessCandle(candle)
	if err != nil {
		t.Fatalf("expected replay to be a silent no-op, got error %v", err)
	}
	if second != nil {
		t.Fatalf("expected replay to return nil action, got %+v", second)
	}
}

func TestWarmupWithHistoryEmitsNoActions(t *testing.T) {
	tr := newTestTrader(t)
	candles := make([]types.Candle, 0, 50)
	close := 100.0
	for i := int64(0); i < 50; i++ {
		close *= 1.003
		candles = append(candles, types.Candle{
			Symbol: "ETH-USD", Timestamp: i * 60,
			Open: close / 1.003, High: close * 1.002, Low: close / 1.003 * 0.998, Close: close, Volume: 10,
		})
	}
	if err := tr.WarmupWithHistory("ETH-USD", candles); err != nil {
		t.Fatalf("unexpected warmup error: %v", err)
	}
	statuses := tr.StatusSummary()
	if len(statuses) != 1 || statuses[0].Symbol != "ETH-USD" {
		t.Fatalf("expected warmup to register symbol status, got %+v", statuses)
	}
}

func TestCandleBuilderAggregatesTicks(t *testing.T) {
	b := NewCandleBuilder(60)
	if _, ok := b.AddTick("BTC-USD", 100, 0, 0); ok {
		t.Fatalf("expected no candle on first tick")
	}
	if _, ok := b.AddTick("BTC-USD", 101, 0, 30); ok {
		t.Fatalf("expected no candle within the same bucket")
	}
	if _, ok := b.AddTick("BTC-USD", 99, 0, 45); ok {
		t.Fatalf("expected no candle within the same bucket")
	}
	completed, ok := b.AddTick("BTC-USD", 102, 0, 60)
	if !ok {
		t.Fatalf("expected a completed candle once a new bucket starts")
	}
	if completed.Open != 100 || completed.High != 101 || completed.Low != 99 || completed.Close != 99 {
		t.Fatalf("unexpected aggregated candle: %+v", completed)
	}
}

func TestTradeActionMapsSidesOneToOne(t *testing.T) {
	cases := []struct {
		side strategy.Side
		want TradeType
	}{
		{strategy.Buy, TradeBuy},
		{strategy.Sell, TradeSell},
		{strategy.Hold, TradeHold},
	}
	for _, c := range cases {
		action := newTradeAction("BTC-USD", 100, strategy.RoutedSignal{Side: c.side})
		if action.Action != c.want {
			t.Fatalf("expected side %s to map to %s, got %s", c.side, c.want, action.Action)
		}
	}
}
