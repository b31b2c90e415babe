package integration

import "github.com/atlas-desktop/regime-engine/pkg/types"

// partialCandle is an in-progress bar being built from ticks.
type partialCandle struct {
	start                  int64
	open, high, low, close float64
	volume                 float64
}

func (p *partialCandle) absorb(price, volume float64) {
	if volume > 0 {
		p.volume += volume
	}
	if price > p.high {
		p.high = price
	}
	if price < p.low {
		p.low = price
	}
	p.close = price
}

func (p *partialCandle) toCandle(symbol string) types.Candle {
	return types.Candle{
		Symbol:    symbol,
		Timestamp: p.start,
		Open:      p.open,
		High:      p.high,
		Low:       p.low,
		Close:     p.close,
		Volume:    p.volume,
	}
}

// CandleBuilder aggregates a per-symbol tick stream into fixed-timeframe
// OHLCV candles.
type CandleBuilder struct {
	timeframeSecs int64
	partials      map[string]*partialCandle
}

func NewCandleBuilder(timeframeSecs int64) *CandleBuilder {
	return &CandleBuilder{
		timeframeSecs: timeframeSecs,
		partials:      make(map[string]*partialCandle),
	}
}

// AddTick absorbs one tick and returns the just-completed candle (and true)
// if this tick belongs to a new bucket than the one in progress. Ticks
// within the current bucket return (zero, false).
func (b *CandleBuilder) AddTick(symbol string, price, volume float64, timestamp int64) (types.Candle, bool) {
	bucketStart := (timestamp / b.timeframeSecs) * b.timeframeSecs

	cur, ok := b.partials[symbol]
	if !ok {
		b.partials[symbol] = &partialCandle{start: bucketStart, open: price, high: price, low: price, close: price}
		b.partials[symbol].absorb(price, volume)
		return types.Candle{}, false
	}

	if bucketStart == cur.start {
		cur.absorb(price, volume)
		return types.Candle{}, false
	}

	completed := cur.toCandle(symbol)
	b.partials[symbol] = &partialCandle{start: bucketStart, open: price, high: price, low: price, close: price}
	b.partials[symbol].absorb(price, volume)
	return completed, true
}
