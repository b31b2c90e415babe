// Package ingest dispatches incoming candles onto a bounded worker pool
// while guaranteeing that any one symbol's updates are processed in
// strictly serialized order, even when many symbols are driven concurrently.
package ingest

import (
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/internal/integration"
	"github.com/atlas-desktop/regime-engine/internal/workers"
	"github.com/atlas-desktop/regime-engine/pkg/types"
)

// Dispatcher hands candles for many symbols to a shared worker pool while
// serializing each symbol's own updates behind a per-symbol lane lock. It
// owns no trading state itself — only the locks that guard access to the
// Trader's per-symbol state.
type Dispatcher struct {
	trader *integration.Trader
	pool   *workers.Pool
	logger *zap.Logger

	mu    sync.Mutex
	lanes map[string]*sync.Mutex
}

// NewDispatcher builds a dispatcher backed by pool, which must already be
// started.
func NewDispatcher(trader *integration.Trader, pool *workers.Pool, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		trader: trader,
		pool:   pool,
		logger: logger,
		lanes:  make(map[string]*sync.Mutex),
	}
}

func (d *Dispatcher) laneFor(symbol string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lane, ok := d.lanes[symbol]
	if !ok {
		lane = &sync.Mutex{}
		d.lanes[symbol] = lane
	}
	return lane
}

// Submit enqueues candle for asynchronous processing on the worker pool.
// onResult, if non-nil, is invoked with the resulting TradeAction (which may
// be nil for a dropped/stale candle) or an error.
func (d *Dispatcher) Submit(candle types.Candle, onResult func(*integration.TradeAction, error)) error {
	lane := d.laneFor(candle.Symbol)
	return d.pool.Submit(workers.TaskFunc(func() error {
		lane.Lock()
		defer lane.Unlock()
		action, err := d.trader.ProcessCandle(candle)
		if onResult != nil {
			onResult(action, err)
		}
		if err != nil {
			d.logger.Warn("candle processing failed", zap.String("symbol", candle.Symbol), zap.Error(err))
		}
		return err
	}))
}

// SubmitWait behaves like Submit but blocks until the candle has been
// processed, returning its result directly. Useful for tests and for
// warmup paths that want ordering guarantees without a callback.
func (d *Dispatcher) SubmitWait(candle types.Candle) (*integration.TradeAction, error) {
	lane := d.laneFor(candle.Symbol)
	var action *integration.TradeAction
	var procErr error
	err := d.pool.SubmitWait(workers.TaskFunc(func() error {
		lane.Lock()
		defer lane.Unlock()
		action, procErr = d.trader.ProcessCandle(candle)
		return procErr
	}))
	if err != nil {
		return nil, err
	}
	return action, procErr
}
