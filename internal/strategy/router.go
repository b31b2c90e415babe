package strategy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/internal/regime"
)

// ActiveStrategy is the strategy the router actually dispatched to for a
// given bar, distinct from regime.RecommendedStrategy which is purely
// informational.
type ActiveStrategy int

const (
	NoTrade ActiveStrategy = iota
	TrendFollowing
	MeanReversion
)

func (a ActiveStrategy) String() string {
	switch a {
	case TrendFollowing:
		return "trend_following"
	case MeanReversion:
		return "mean_reversion"
	default:
		return "no_trade"
	}
}

// RouterConfig parameterizes the strategy router (C6).
type RouterConfig struct {
	RegimeConfig           regime.RegimeConfig
	EnsembleConfig         regime.EnsembleConfig
	HMMConfig              regime.HMMConfig
	MeanReversionConfig    MeanReversionConfig
	VolatilePositionFactor float64
	MinRegimeConfidence    float64
	LogRegimeChanges       bool
	TrendEMAShort          int
	TrendEMALong           int
	TrendADXThreshold      float64
	TrendATRStopMultiple   float64
	TrendATRTargetMultiple float64
}

// DefaultRouterConfig defaults the HMM sub-detector to
// regime.CryptoOptimizedHMMConfig(), but this is an override point, not a
// hardcoded choice: pass regime.DefaultHMMConfig() or
// regime.ConservativeHMMConfig() in RouterConfig.HMMConfig to use a
// different preset.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RegimeConfig:           regime.DefaultRegimeConfig(),
		EnsembleConfig:         regime.DefaultEnsembleConfig(),
		HMMConfig:              regime.CryptoOptimizedHMMConfig(),
		MeanReversionConfig:    DefaultMeanReversionConfig(),
		VolatilePositionFactor: 0.5,
		MinRegimeConfidence:    0.5,
		LogRegimeChanges:       true,
		TrendEMAShort:          50,
		TrendEMALong:           200,
		TrendADXThreshold:      25.0,
		TrendATRStopMultiple:   2.0,
		TrendATRTargetMultiple: 3.0,
	}
}

func (c RouterConfig) Validate() error {
	if err := c.RegimeConfig.Validate(); err != nil {
		return err
	}
	if err := c.EnsembleConfig.Validate(); err != nil {
		return err
	}
	if err := c.HMMConfig.Validate(); err != nil {
		return err
	}
	if c.VolatilePositionFactor < 0 || c.VolatilePositionFactor > 1 {
		return fmt.Errorf("router config: volatile_position_factor must be in [0,1]")
	}
	if c.MinRegimeConfidence < 0 || c.MinRegimeConfidence > 1 {
		return fmt.Errorf("router config: min_regime_confidence must be in [0,1]")
	}
	return nil
}

// RoutedSignal is the router's output for one bar: the selected strategy's
// raw signal wrapped with the regime context that produced it.
type RoutedSignal struct {
	Side               Side
	SourceStrategy     ActiveStrategy
	Regime             regime.MarketRegime
	Confidence         float64
	PositionSizeFactor float64
	Reason             string
	StopLoss           *float64
	TakeProfit         *float64
}

// assetState is the router's exclusively-owned per-symbol state. Indicators
// are owned by the detectors inside it; strategies own none of the
// detector's indicator state.
type assetState struct {
	detector        *regime.EnsembleDetector
	meanReversion   *MeanReversionStrategy
	atr             *regime.ATR
	emaShort        *regime.EMA
	emaLong         *regime.EMA
	currentStrategy ActiveStrategy
	lastRegime      regime.MarketRegime
	regimeChanges   int
}

// RouterStats aggregates counters across all symbols for the status/metrics
// surface.
type RouterStats struct {
	TotalSignals        int
	TrendFollowingCount int
	MeanReversionCount  int
	NoTradeCount        int
	RegimeChanges       int
}

// Router owns per-symbol state and routes each bar to the strategy
// appropriate for the currently detected regime.
type Router struct {
	config RouterConfig
	logger *zap.Logger

	mu     sync.Mutex
	assets map[string]*assetState
	stats  RouterStats
}

// NewRouter validates config and builds a router with no per-symbol state;
// assets are created lazily on first update.
func NewRouter(config RouterConfig, logger *zap.Logger) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		config: config,
		logger: logger,
		assets: make(map[string]*assetState),
	}, nil
}

// RegisterAsset pre-creates a symbol's state, useful for warmup callers that
// want state to exist before the first real bar arrives.
func (r *Router) RegisterAsset(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getOrCreate(symbol)
}

func (r *Router) getOrCreate(symbol string) *assetState {
	if st, ok := r.assets[symbol]; ok {
		return st
	}
	st := &assetState{
		detector:      regime.NewEnsembleDetector(r.config.EnsembleConfig, r.config.RegimeConfig, r.config.HMMConfig, r.logger),
		meanReversion: NewMeanReversionStrategy(r.config.MeanReversionConfig),
		atr:           regime.NewATR(r.config.RegimeConfig.ATRPeriod),
		emaShort:      regime.NewEMA(r.config.TrendEMAShort),
		emaLong:       regime.NewEMA(r.config.TrendEMALong),
		lastRegime:    regime.Uncertain,
	}
	r.assets[symbol] = st
	return st
}

// Update feeds one bar for symbol through regime classification, strategy
// selection, and signal generation.
func (r *Router) Update(symbol string, high, low, close float64) RoutedSignal {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.getOrCreate(symbol)

	conf := st.detector.Update(high, low, close)
	atrVal := st.atr.Update(high, low, close)
	emaShortVal := st.emaShort.Update(close)
	emaLongVal := st.emaLong.Update(close)

	if !conf.Regime.Equals(st.lastRegime) {
		st.regimeChanges++
		r.stats.RegimeChanges++
		if r.config.LogRegimeChanges {
			r.logger.Info("regime changed",
				zap.String("symbol", symbol),
				zap.String("from", st.lastRegime.String()),
				zap.String("to", conf.Regime.String()),
				zap.Float64("confidence", conf.Confidence),
			)
		}
		st.lastRegime = conf.Regime
	}

	active, sizeFactor := r.selectStrategy(conf)
	st.currentStrategy = active

	var signal Signal
	switch active {
	case TrendFollowing:
		signal = r.trendFollowingSignal(conf, atrVal, emaShortVal, emaLongVal, close)
	case MeanReversion:
		signal = st.meanReversion.Update(close)
	default:
		signal = Signal{Side: Hold, Reason: "no trade: regime not actionable"}
	}

	r.stats.TotalSignals++
	switch active {
	case TrendFollowing:
		r.stats.TrendFollowingCount++
	case MeanReversion:
		r.stats.MeanReversionCount++
	default:
		r.stats.NoTradeCount++
	}

	return RoutedSignal{
		Side:               signal.Side,
		SourceStrategy:     active,
		Regime:             conf.Regime,
		Confidence:         conf.Confidence,
		PositionSizeFactor: sizeFactor,
		Reason:             signal.Reason,
		StopLoss:           signal.StopLoss,
		TakeProfit:         signal.TakeProfit,
	}
}

func (r *Router) selectStrategy(conf regime.RegimeConfidence) (ActiveStrategy, float64) {
	if conf.Confidence < r.config.MinRegimeConfidence {
		return NoTrade, 0.0
	}
	switch conf.Regime.Kind {
	case regime.KindTrending:
		return TrendFollowing, 1.0
	case regime.KindMeanReverting:
		return MeanReversion, 1.0
	case regime.KindVolatile:
		return MeanReversion, r.config.VolatilePositionFactor
	default:
		return NoTrade, 0.0
	}
}

// trendFollowingSignal is intentionally simple: it acts only when the regime
// is Trending and its ADX exceeds TrendADXThreshold, takes the side from the
// regime's direction, and brackets it with ATR-derived stop/target. The EMA
// values it receives are not consulted. Whether the Sell branch represents an exit or a short is left
// to the deploying system; this strategy only ever emits a symmetric signal.
func (r *Router) trendFollowingSignal(conf regime.RegimeConfidence, atrVal, emaShortVal, emaLongVal, close float64) Signal {
	if conf.Regime.Kind != regime.KindTrending || conf.ADXValue <= r.config.TrendADXThreshold {
		return Signal{Side: Hold, Reason: "trend following: not strongly trending"}
	}

	switch conf.Regime.Direction {
	case regime.Bullish:
		stop := close - r.config.TrendATRStopMultiple*atrVal
		target := close + r.config.TrendATRTargetMultiple*atrVal
		return Signal{Side: Buy, StopLoss: &stop, TakeProfit: &target, Reason: "trend following: bullish breakout"}
	case regime.Bearish:
		stop := close + r.config.TrendATRStopMultiple*atrVal
		target := close - r.config.TrendATRTargetMultiple*atrVal
		return Signal{Side: Sell, StopLoss: &stop, TakeProfit: &target, Reason: "trend following: bearish breakdown"}
	default:
		return Signal{Side: Hold, Reason: "trend following: no clear direction"}
	}
}

// Stats returns a snapshot of aggregate router statistics.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// StatusSummary is a read-only per-symbol snapshot for the status endpoint.
type StatusSummary struct {
	Symbol            string
	Ready             bool
	Regime            string
	ActiveStrategy    string
	RegimeChangeCount int
}

// Status returns a snapshot for symbol, or ok=false if it has no state yet.
func (r *Router) Status(symbol string) (StatusSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.assets[symbol]
	if !ok {
		return StatusSummary{}, false
	}
	return StatusSummary{
		Symbol:            symbol,
		Ready:             st.detector.IsReady(),
		Regime:            st.lastRegime.String(),
		ActiveStrategy:    st.currentStrategy.String(),
		RegimeChangeCount: st.regimeChanges,
	}, true
}

// Symbols returns all symbols the router currently has state for.
func (r *Router) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.assets))
	for s := range r.assets {
		out = append(out, s)
	}
	return out
}
