package regime

import (
	"math"

	"go.uber.org/zap"
)

// IndicatorDetector classifies a market regime from a bundle of technical
// indicators (ADX, ATR, Bollinger Bands, EMA cross) plus a three-rule
// hysteresis filter that prevents regime whipsaw.
type IndicatorDetector struct {
	config RegimeConfig
	logger *zap.Logger

	adx      *ADX
	atr      *ATR
	atrAvg   *EMA
	bb       *BollingerBands
	emaShort *EMA
	emaLong  *EMA

	current      MarketRegime
	history      []MarketRegime
	barsInRegime int
	lastClose    float64
	hasClose     bool
}

// NewIndicatorDetector builds a detector from config. The logger may be nil,
// in which case a no-op logger is used.
func NewIndicatorDetector(config RegimeConfig, logger *zap.Logger) *IndicatorDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndicatorDetector{
		config:   config,
		logger:   logger,
		adx:      NewADX(config.ADXPeriod),
		atr:      NewATR(config.ATRPeriod),
		atrAvg:   NewEMA(50),
		bb:       NewBollingerBands(config.BBPeriod, config.BBStdDev),
		emaShort: NewEMA(config.EMAShortPeriod),
		emaLong:  NewEMA(config.EMALongPeriod),
		current:  Uncertain,
	}
}

// IsReady reports whether every underlying indicator has enough history to
// classify a regime.
func (d *IndicatorDetector) IsReady() bool {
	return d.adx.IsReady() && d.atr.IsReady() && d.atrAvg.IsReady() && d.bb.IsReady() &&
		d.emaShort.IsReady() && d.emaLong.IsReady()
}

// Update absorbs one bar and returns the (possibly unchanged, stability-
// filtered) regime confidence.
func (d *IndicatorDetector) Update(high, low, close float64) RegimeConfidence {
	adxVal := d.adx.Update(high, low, close)
	atrVal := d.atr.Update(high, low, close)
	d.atrAvg.Update(atrVal)
	d.bb.Update(close)
	emaShortVal := d.emaShort.Update(close)
	emaLongVal := d.emaLong.Update(close)
	d.lastClose = close
	d.hasClose = true

	if !d.IsReady() {
		return RegimeConfidence{Regime: Uncertain, Confidence: 0}
	}

	candidate, confidence := d.classify(adxVal, atrVal, emaShortVal, emaLongVal, close)
	accepted := d.applyStabilityFilter(candidate, confidence)

	return RegimeConfidence{
		Regime:            accepted,
		Confidence:        confidence,
		ADXValue:          adxVal,
		BBWidthPercentile: d.bb.WidthPercentile(),
		TrendStrength:     d.trendStrength(emaShortVal, emaLongVal),
	}
}

func (d *IndicatorDetector) classify(adxVal, atrVal, emaShortVal, emaLongVal, close float64) (MarketRegime, float64) {
	atrAvgVal, _ := d.atrAvg.Value()
	atrExpansion := 1.0
	if atrAvgVal > 0 {
		atrExpansion = atrVal / atrAvgVal
	}
	emaDiffPct := 0.0
	if emaLongVal != 0 {
		emaDiffPct = 100 * absf(emaShortVal-emaLongVal) / emaLongVal
	}
	widthPct := d.bb.WidthPercentile()

	trendingScore := 0.0
	if adxVal >= d.config.ADXTrendingThreshold {
		trendingScore += 0.4
	}
	if emaDiffPct > 2 {
		trendingScore += 0.3
	}
	if (close > emaShortVal && close > emaLongVal) || (close < emaShortVal && close < emaLongVal) {
		trendingScore += 0.2
	}

	rangingScore := 0.0
	if adxVal <= d.config.ADXRangingThreshold {
		rangingScore += 0.3
	}
	if widthPct <= 25.0 {
		rangingScore += 0.2
	}
	if atrExpansion < 0.8 {
		rangingScore += 0.2
	}
	if emaDiffPct < 1 {
		rangingScore += 0.2
	}
	if between(close, emaShortVal, emaLongVal) {
		rangingScore += 0.2
	}

	volatileScore := 0.0
	if widthPct >= d.config.BBWidthVolatilityThreshold {
		volatileScore += 0.3
	}
	if atrExpansion >= d.config.ATRExpansionThreshold {
		volatileScore += 0.3
	}

	maxScore := maxOf(trendingScore, rangingScore, volatileScore)
	confidence := math.Min(maxScore/1.2, 1.0)

	switch {
	case volatileScore >= 0.5 && volatileScore >= trendingScore:
		return Volatile, confidence
	case trendingScore > rangingScore && trendingScore > 0.3:
		return Trending(d.trendDirection(emaShortVal, emaLongVal, close)), confidence
	case rangingScore > 0.3:
		return MeanReverting, confidence
	default:
		return Uncertain, confidence
	}
}

func (d *IndicatorDetector) trendDirection(emaShortVal, emaLongVal, close float64) TrendDirection {
	switch {
	case emaShortVal > emaLongVal && close > emaLongVal:
		return Bullish
	case emaShortVal < emaLongVal && close < emaLongVal:
		return Bearish
	default:
		return d.adx.Direction()
	}
}

// applyStabilityFilter implements the three-rule hysteresis that prevents
// regime whipsaw: a low-confidence lock, a minimum-duration gate, and a
// history-category-count gate. The first two rules and the final
// switch/reset decision use full regime equality (Equals), so a
// Trending(Bullish)->Trending(Bearish) reversal is recognized as a change;
// only the history-category-count rule deliberately ignores direction
// (Agree) — the majority check is about regime category, not trend side.
func (d *IndicatorDetector) applyStabilityFilter(candidate MarketRegime, confidence float64) MarketRegime {
	if confidence < 0.4 {
		d.barsInRegime++
		return d.current
	}

	if !candidate.Equals(d.current) {
		if d.barsInRegime < d.config.MinRegimeDuration && confidence < 0.7 {
			d.barsInRegime++
			return d.current
		}

		sameCategory := 0
		n := d.config.RegimeStabilityBars
		start := len(d.history) - n
		if start < 0 {
			start = 0
		}
		recent := d.history[start:]
		for _, r := range recent {
			if r.Agree(candidate) {
				sameCategory++
			}
		}
		// Integer division: RegimeStabilityBars/2 truncates to 0 when the
		// config sets it to 1, making this gate trivially pass.
		if sameCategory < n/2 && confidence < 0.6 {
			d.barsInRegime++
			return d.current
		}
	}

	if !candidate.Equals(d.current) {
		d.history = append(d.history, d.current)
		if len(d.history) > 20 {
			d.history = d.history[len(d.history)-20:]
		}
		d.current = candidate
		d.barsInRegime = 0
	} else {
		d.barsInRegime++
	}
	return d.current
}

func (d *IndicatorDetector) trendStrength(emaShortVal, emaLongVal float64) float64 {
	if emaLongVal == 0 {
		return 0
	}
	return (emaShortVal - emaLongVal) / emaLongVal
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func between(x, a, b float64) bool {
	if a > b {
		a, b = b, a
	}
	return x >= a && x <= b
}

func maxOf(vals ...float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
