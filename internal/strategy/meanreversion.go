// Package strategy selects and runs the per-symbol trading strategy
// appropriate to the current market regime.
package strategy

import (
	"fmt"

	"github.com/atlas-desktop/regime-engine/internal/regime"
)

// Side is the direction of a generated signal.
type Side int

const (
	Hold Side = iota
	Buy
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Signal is a strategy's raw output for one bar, before the router wraps it
// with regime/confidence/sizing context.
type Signal struct {
	Side       Side
	StopLoss   *float64
	TakeProfit *float64
	Reason     string
}

// MeanReversionConfig parameterizes the Bollinger+RSI mean reversion
// strategy (C5).
type MeanReversionConfig struct {
	BBPeriod           int
	BBStdDev           float64
	RSIPeriod          int
	OversoldPercentB   float64
	OversoldRSI        float64
	OverboughtPercentB float64
	OverboughtRSI      float64
	StopATRMultiple    float64
}

func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		BBPeriod:           20,
		BBStdDev:           2.0,
		RSIPeriod:          14,
		OversoldPercentB:   0.05,
		OversoldRSI:        30,
		OverboughtPercentB: 0.95,
		OverboughtRSI:      70,
		StopATRMultiple:    1.0,
	}
}

// rsi is a Wilder-smoothed Relative Strength Index.
type rsi struct {
	period           int
	prevClose        float64
	hasPrev          bool
	gains, losses    []float64
	avgGain, avgLoss float64
	count            int
	value            float64
}

func newRSI(period int) *rsi { return &rsi{period: period} }

func (r *rsi) update(close float64) {
	if !r.hasPrev {
		r.prevClose = close
		r.hasPrev = true
		return
	}
	change := close - r.prevClose
	r.prevClose = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	r.count++

	if r.count <= r.period {
		r.gains = append(r.gains, gain)
		r.losses = append(r.losses, loss)
		if r.count == r.period {
			gSum, lSum := 0.0, 0.0
			for i := range r.gains {
				gSum += r.gains[i]
				lSum += r.losses[i]
			}
			r.avgGain = gSum / float64(r.period)
			r.avgLoss = lSum / float64(r.period)
			r.gains, r.losses = nil, nil
			r.finalize()
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.finalize()
}

func (r *rsi) finalize() {
	if r.avgLoss == 0 {
		r.value = 100
		return
	}
	rs := r.avgGain / r.avgLoss
	r.value = 100 - 100/(1+rs)
}

func (r *rsi) isReady() bool { return r.count >= r.period }

// MeanReversionStrategy generates Buy/Sell/Hold signals from Bollinger %B
// combined with RSI, independent of any detector's own indicator state.
type MeanReversionStrategy struct {
	config MeanReversionConfig
	bb     *regime.BollingerBands
	rsiInd *rsi
}

func NewMeanReversionStrategy(config MeanReversionConfig) *MeanReversionStrategy {
	return &MeanReversionStrategy{
		config: config,
		bb:     regime.NewBollingerBands(config.BBPeriod, config.BBStdDev),
		rsiInd: newRSI(config.RSIPeriod),
	}
}

func (m *MeanReversionStrategy) IsReady() bool {
	return m.bb.IsReady() && m.rsiInd.isReady()
}

// Update absorbs one bar and returns a trading Signal.
func (m *MeanReversionStrategy) Update(close float64) Signal {
	m.bb.Update(close)
	m.rsiInd.update(close)

	if !m.IsReady() {
		return Signal{Side: Hold, Reason: "mean reversion warming up"}
	}

	percentB := m.bb.PercentB()
	rsiVal := m.rsiInd.value
	recentRange := (m.bb.Upper() - m.bb.Lower()) / 2
	middle := m.bb.Middle()

	switch {
	case percentB <= m.config.OversoldPercentB && rsiVal <= m.config.OversoldRSI:
		stop := close - m.config.StopATRMultiple*recentRange
		target := middle
		return Signal{Side: Buy, StopLoss: &stop, TakeProfit: &target, Reason: reasonString(percentB, rsiVal)}
	case percentB >= m.config.OverboughtPercentB && rsiVal >= m.config.OverboughtRSI:
		stop := close + m.config.StopATRMultiple*recentRange
		target := middle
		return Signal{Side: Sell, StopLoss: &stop, TakeProfit: &target, Reason: reasonString(percentB, rsiVal)}
	default:
		return Signal{Side: Hold, Reason: reasonString(percentB, rsiVal)}
	}
}

// LastPercentB and LastRSI expose the most recent indicator reads; each
// Signal's Reason already embeds both values.
func (m *MeanReversionStrategy) LastPercentB() float64 { return m.bb.PercentB() }
func (m *MeanReversionStrategy) LastRSI() float64      { return m.rsiInd.value }

func reasonString(percentB, rsiVal float64) string {
	return fmt.Sprintf("mean reversion: %%B=%.2f rsi=%.2f", percentB, rsiVal)
}
