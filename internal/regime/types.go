// Package regime classifies the prevailing market regime for a symbol from a
// stream of OHLC bars, using a rule-based indicator detector, a Gaussian HMM
// detector, and an ensemble that fuses the two.
package regime

import "fmt"

// TrendDirection qualifies a Trending regime.
type TrendDirection int

const (
	Bullish TrendDirection = iota
	Bearish
)

func (d TrendDirection) String() string {
	if d == Bullish {
		return "bullish"
	}
	return "bearish"
}

// RegimeKind is the outer category of a MarketRegime, ignoring trend
// direction. Two regimes "agree" at the ensemble level iff their Kind match.
type RegimeKind int

const (
	KindTrending RegimeKind = iota
	KindMeanReverting
	KindVolatile
	KindUncertain
)

// MarketRegime is a tagged variant: Trending carries a direction, the other
// three variants carry none. Direction is meaningless unless Kind ==
// KindTrending.
type MarketRegime struct {
	Kind      RegimeKind
	Direction TrendDirection
}

func Trending(dir TrendDirection) MarketRegime {
	return MarketRegime{Kind: KindTrending, Direction: dir}
}

var (
	MeanReverting = MarketRegime{Kind: KindMeanReverting}
	Volatile      = MarketRegime{Kind: KindVolatile}
	Uncertain     = MarketRegime{Kind: KindUncertain}
)

func (r MarketRegime) String() string {
	switch r.Kind {
	case KindTrending:
		return fmt.Sprintf("trending(%s)", r.Direction)
	case KindMeanReverting:
		return "mean_reverting"
	case KindVolatile:
		return "volatile"
	default:
		return "uncertain"
	}
}

// Agree reports whether two regimes share the same outer category,
// disregarding trend direction.
func (r MarketRegime) Agree(other MarketRegime) bool { return r.Kind == other.Kind }

// AgreeDirection reports whether two Trending regimes also share direction.
// Returns false if either regime is not Trending.
func (r MarketRegime) AgreeDirection(other MarketRegime) bool {
	return r.Kind == KindTrending && other.Kind == KindTrending && r.Direction == other.Direction
}

// Equals reports full regime equality, including trend direction. Unlike
// Agree, Trending(Bullish) and Trending(Bearish) are distinct here.
func (r MarketRegime) Equals(other MarketRegime) bool {
	return r.Kind == other.Kind && r.Direction == other.Direction
}

// RecommendedStrategy is an informational, status-only mapping from regime
// to a strategy label. The router's actual strategy selection (see package
// strategy) additionally gates on confidence and is the source of truth.
type RecommendedStrategy int

const (
	StrategyTrendFollowing RecommendedStrategy = iota
	StrategyMeanReversion
	StrategyReducedExposure
	StrategyStayCash
)

func (s RecommendedStrategy) String() string {
	switch s {
	case StrategyTrendFollowing:
		return "trend_following"
	case StrategyMeanReversion:
		return "mean_reversion"
	case StrategyReducedExposure:
		return "reduced_exposure"
	default:
		return "stay_cash"
	}
}

// RecommendFor derives the informational strategy label for a regime.
func RecommendFor(r MarketRegime) RecommendedStrategy {
	switch r.Kind {
	case KindTrending:
		return StrategyTrendFollowing
	case KindMeanReverting:
		return StrategyMeanReversion
	case KindVolatile:
		return StrategyReducedExposure
	default:
		return StrategyStayCash
	}
}

// RegimeConfidence is the output of any detector for one bar.
type RegimeConfidence struct {
	Regime            MarketRegime
	Confidence        float64
	ADXValue          float64
	BBWidthPercentile float64
	TrendStrength     float64
}

// IsActionable reports whether this confidence clears the policy threshold
// used to decide whether a signal should be generated at all.
func (c RegimeConfidence) IsActionable() bool { return c.Confidence >= 0.6 }

// RegimeConfig parameterizes the indicator-based detector (C2).
type RegimeConfig struct {
	ADXPeriod                  int
	ADXTrendingThreshold       float64
	ADXRangingThreshold        float64
	BBPeriod                   int
	BBStdDev                   float64
	BBWidthVolatilityThreshold float64
	EMAShortPeriod             int
	EMALongPeriod              int
	ATRPeriod                  int
	ATRExpansionThreshold      float64
	RegimeStabilityBars        int
	MinRegimeDuration          int
}

// DefaultRegimeConfig returns the conservative general-purpose defaults.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		ADXPeriod:                  14,
		ADXTrendingThreshold:       25.0,
		ADXRangingThreshold:        20.0,
		BBPeriod:                   20,
		BBStdDev:                   2.0,
		BBWidthVolatilityThreshold: 75.0,
		EMAShortPeriod:             50,
		EMALongPeriod:              200,
		ATRPeriod:                  14,
		ATRExpansionThreshold:      1.5,
		RegimeStabilityBars:        3,
		MinRegimeDuration:          5,
	}
}

// CryptoOptimizedRegimeConfig is tuned for 24/7 crypto markets: faster
// thresholds and shorter windows than the default, which assumes session
// breaks and lower intrabar volatility.
func CryptoOptimizedRegimeConfig() RegimeConfig {
	return RegimeConfig{
		ADXPeriod:                  14,
		ADXTrendingThreshold:       20.0,
		ADXRangingThreshold:        15.0,
		BBPeriod:                   20,
		BBStdDev:                   2.0,
		BBWidthVolatilityThreshold: 70.0,
		EMAShortPeriod:             21,
		EMALongPeriod:              50,
		ATRPeriod:                  14,
		ATRExpansionThreshold:      1.3,
		RegimeStabilityBars:        2,
		MinRegimeDuration:          3,
	}
}

// ConservativeRegimeConfig widens thresholds and windows for lower noise
// tolerance at the cost of slower regime recognition.
func ConservativeRegimeConfig() RegimeConfig {
	return RegimeConfig{
		ADXPeriod:                  14,
		ADXTrendingThreshold:       30.0,
		ADXRangingThreshold:        18.0,
		BBPeriod:                   20,
		BBStdDev:                   2.0,
		BBWidthVolatilityThreshold: 80.0,
		EMAShortPeriod:             50,
		EMALongPeriod:              200,
		ATRPeriod:                  14,
		ATRExpansionThreshold:      2.0,
		RegimeStabilityBars:        5,
		MinRegimeDuration:          10,
	}
}

// Validate rejects configuration values that would make the detector
// mathematically meaningless (zero/negative periods, a short EMA period not
// below the long one, a non-positive band multiplier, non-positive stability
// bars or a negative minimum duration).
func (c RegimeConfig) Validate() error {
	switch {
	case c.ADXPeriod <= 0:
		return fmt.Errorf("regime config: adx_period must be positive, got %d", c.ADXPeriod)
	case c.BBPeriod <= 0:
		return fmt.Errorf("regime config: bb_period must be positive, got %d", c.BBPeriod)
	case c.EMAShortPeriod <= 0 || c.EMALongPeriod <= 0:
		return fmt.Errorf("regime config: ema periods must be positive")
	case c.EMAShortPeriod >= c.EMALongPeriod:
		return fmt.Errorf("regime config: ema_short_period (%d) must be less than ema_long_period (%d)", c.EMAShortPeriod, c.EMALongPeriod)
	case c.ATRPeriod <= 0:
		return fmt.Errorf("regime config: atr_period must be positive, got %d", c.ATRPeriod)
	case c.BBStdDev <= 0:
		return fmt.Errorf("regime config: bb_std_dev must be positive, got %f", c.BBStdDev)
	case c.RegimeStabilityBars <= 0 || c.MinRegimeDuration < 0:
		return fmt.Errorf("regime config: regime_stability_bars must be positive and min_regime_duration non-negative")
	}
	return nil
}
