package integration

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/internal/strategy"
	"github.com/atlas-desktop/regime-engine/pkg/types"
)

// Trader wraps a strategy.Router with candle aggregation and a
// reprocessing guard, producing TradeAction envelopes for each accepted
// candle.
type Trader struct {
	router *strategy.Router
	logger *zap.Logger

	mu             sync.Mutex
	builder        *CandleBuilder
	lastCandleTime map[string]int64
}

func NewTrader(router *strategy.Router, timeframeSecs int64, logger *zap.Logger) *Trader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trader{
		router:         router,
		logger:         logger,
		builder:        NewCandleBuilder(timeframeSecs),
		lastCandleTime: make(map[string]int64),
	}
}

// ProcessCandle absorbs one already-aggregated candle. If its timestamp is
// not strictly greater than the last one processed for this symbol, it is
// silently dropped (nil, nil) — the idempotence guarantee.
func (t *Trader) ProcessCandle(candle types.Candle) (*TradeAction, error) {
	if err := candle.Validate(); err != nil {
		return nil, fmt.Errorf("process candle: %w", err)
	}

	t.mu.Lock()
	last, seen := t.lastCandleTime[candle.Symbol]
	if seen && candle.Timestamp <= last {
		t.mu.Unlock()
		t.logger.Debug("dropping stale candle",
			zap.String("symbol", candle.Symbol),
			zap.Int64("timestamp", candle.Timestamp),
			zap.Int64("last", last),
		)
		return nil, nil
	}
	t.lastCandleTime[candle.Symbol] = candle.Timestamp
	t.mu.Unlock()

	routed := t.router.Update(candle.Symbol, candle.High, candle.Low, candle.Close)
	action := newTradeAction(candle.Symbol, candle.Close, routed)
	return &action, nil
}

// ProcessTick feeds one tick into the candle builder, emitting a
// TradeAction only when a bar completes.
func (t *Trader) ProcessTick(symbol string, price, volume float64, timestamp int64) (*TradeAction, error) {
	t.mu.Lock()
	completed, ok := t.builder.AddTick(symbol, price, volume, timestamp)
	t.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return t.ProcessCandle(completed)
}

// WarmupWithHistory replays historical candles through the router without
// emitting TradeActions, priming detector/strategy state before a feed goes
// live.
func (t *Trader) WarmupWithHistory(symbol string, candles []types.Candle) error {
	t.router.RegisterAsset(symbol)
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("warmup %s: %w", symbol, err)
		}
		t.mu.Lock()
		t.lastCandleTime[symbol] = c.Timestamp
		t.mu.Unlock()
		t.router.Update(symbol, c.High, c.Low, c.Close)
	}
	return nil
}

// PairStatus is a read-only snapshot for one symbol, exposed by the API
// status endpoint.
type PairStatus struct {
	Symbol         string
	Ready          bool
	Regime         string
	ActiveStrategy string
	RegimeChanges  int
	LastCandleTime int64
}

// Stats returns aggregate router statistics across all symbols.
func (t *Trader) Stats() strategy.RouterStats {
	return t.router.Stats()
}

// StatusSummary returns a PairStatus for every symbol the trader has seen.
func (t *Trader) StatusSummary() []PairStatus {
	t.mu.Lock()
	symbols := make([]string, 0, len(t.lastCandleTime))
	times := make(map[string]int64, len(t.lastCandleTime))
	for s, ts := range t.lastCandleTime {
		symbols = append(symbols, s)
		times[s] = ts
	}
	t.mu.Unlock()

	out := make([]PairStatus, 0, len(symbols))
	for _, s := range symbols {
		st, ok := t.router.Status(s)
		if !ok {
			continue
		}
		out = append(out, PairStatus{
			Symbol:         s,
			Ready:          st.Ready,
			Regime:         st.Regime,
			ActiveStrategy: st.ActiveStrategy,
			RegimeChanges:  st.RegimeChangeCount,
			LastCandleTime: times[s],
		})
	}
	return out
}
