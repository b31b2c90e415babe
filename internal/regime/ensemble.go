package regime

import (
	"fmt"

	"go.uber.org/zap"
)

// EnsembleConfig parameterizes how the indicator and HMM detectors are
// fused (C4).
type EnsembleConfig struct {
	IndicatorWeight               float64
	HMMWeight                     float64
	AgreementThreshold            float64
	RequireHMMWarmup              bool
	AgreementConfidenceBoost      float64
	DisagreementConfidencePenalty float64
}

func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		IndicatorWeight:               0.6,
		HMMWeight:                     0.4,
		AgreementThreshold:            0.5,
		RequireHMMWarmup:              true,
		AgreementConfidenceBoost:      0.15,
		DisagreementConfidencePenalty: 0.2,
	}
}

func BalancedEnsembleConfig() EnsembleConfig {
	c := DefaultEnsembleConfig()
	c.IndicatorWeight, c.HMMWeight = 0.5, 0.5
	return c
}

func HMMFocusedEnsembleConfig() EnsembleConfig {
	c := DefaultEnsembleConfig()
	c.IndicatorWeight, c.HMMWeight = 0.3, 0.7
	c.AgreementThreshold = 0.6
	return c
}

func IndicatorFocusedEnsembleConfig() EnsembleConfig {
	c := DefaultEnsembleConfig()
	c.IndicatorWeight, c.HMMWeight = 0.7, 0.3
	c.AgreementThreshold = 0.4
	return c
}

func (c EnsembleConfig) Validate() error {
	if c.IndicatorWeight < 0 || c.HMMWeight < 0 {
		return fmt.Errorf("ensemble config: weights must be non-negative")
	}
	if c.IndicatorWeight+c.HMMWeight <= 0 {
		return fmt.Errorf("ensemble config: weights must sum to a positive value")
	}
	if c.AgreementThreshold < 0 || c.AgreementThreshold > 1 {
		return fmt.Errorf("ensemble config: agreement_threshold must be in [0,1]")
	}
	return nil
}

// EnsembleStatus is a read-only observability snapshot.
type EnsembleStatus struct {
	CurrentRegime    MarketRegime
	IndicatorReady   bool
	HMMReady         bool
	AgreementRate    float64
	HMMStateProbs    []float64
	ExpectedDuration float64
}

// EnsembleDetector fuses an IndicatorDetector and an HMMDetector into a
// single agreement-weighted regime confidence.
type EnsembleDetector struct {
	config EnsembleConfig
	logger *zap.Logger

	indicator *IndicatorDetector
	hmm       *HMMDetector

	current       MarketRegime
	agreementHist []bool
}

// NewEnsembleDetector builds an ensemble with a fresh indicator detector and
// an HMM detector parameterized by hmmConfig. Callers default to
// CryptoOptimizedHMMConfig, but DefaultHMMConfig/ConservativeHMMConfig are
// equally valid overrides.
func NewEnsembleDetector(config EnsembleConfig, regimeConfig RegimeConfig, hmmConfig HMMConfig, logger *zap.Logger) *EnsembleDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnsembleDetector{
		config:    config,
		logger:    logger,
		indicator: NewIndicatorDetector(regimeConfig, logger),
		hmm:       NewHMMDetector(hmmConfig, logger),
		current:   Uncertain,
	}
}

// Update absorbs one bar and returns the fused regime confidence.
func (e *EnsembleDetector) Update(high, low, close float64) RegimeConfidence {
	indResult := e.indicator.Update(high, low, close)
	hmmResult := e.hmm.Update(close)

	// Agreement is tracked on every bar, including the HMM warmup window, so
	// AgreementRate reflects the full stream rather than starting blind once
	// the HMM comes online.
	agree := indResult.Regime.Agree(hmmResult.Regime)
	e.agreementHist = append(e.agreementHist, agree)
	if len(e.agreementHist) > 100 {
		e.agreementHist = e.agreementHist[len(e.agreementHist)-100:]
	}

	if e.config.RequireHMMWarmup && !e.hmm.IsReady() {
		e.current = indResult.Regime
		return indResult
	}

	result := e.combine(indResult, hmmResult, agree)
	e.current = result.Regime
	return result
}

func (e *EnsembleDetector) combine(ind, hmm RegimeConfidence, agree bool) RegimeConfidence {
	combined := e.config.IndicatorWeight*ind.Confidence + e.config.HMMWeight*hmm.Confidence

	if agree {
		combined += e.config.AgreementConfidenceBoost
		if ind.Regime.AgreeDirection(hmm.Regime) {
			combined += 0.05
		}
	} else {
		combined -= e.config.DisagreementConfidencePenalty
	}
	if combined < 0 {
		combined = 0
	}
	if combined > 1 {
		combined = 1
	}

	var regime MarketRegime
	switch {
	case agree:
		regime = ind.Regime
	case combined < e.config.AgreementThreshold:
		regime = Uncertain
	case e.config.HMMWeight > e.config.IndicatorWeight:
		regime = hmm.Regime
	default:
		regime = ind.Regime
	}

	return RegimeConfidence{
		Regime:            regime,
		Confidence:        combined,
		ADXValue:          ind.ADXValue,
		BBWidthPercentile: ind.BBWidthPercentile,
		TrendStrength:     ind.TrendStrength,
	}
}

// AgreementRate returns the fraction of recent bars (up to the last 100) on
// which the two sub-detectors agreed at the category level.
func (e *EnsembleDetector) AgreementRate() float64 {
	if len(e.agreementHist) == 0 {
		return 0
	}
	n := 0
	for _, a := range e.agreementHist {
		if a {
			n++
		}
	}
	return float64(n) / float64(len(e.agreementHist))
}

// IsReady mirrors the indicator detector's readiness, since the ensemble
// always returns a usable (if HMM-less) result once the indicator detector
// is ready.
func (e *EnsembleDetector) IsReady() bool { return e.indicator.IsReady() }

// Status returns an observability snapshot for the status endpoint.
func (e *EnsembleDetector) Status() EnsembleStatus {
	return EnsembleStatus{
		CurrentRegime:    e.current,
		IndicatorReady:   e.indicator.IsReady(),
		HMMReady:         e.hmm.IsReady(),
		AgreementRate:    e.AgreementRate(),
		HMMStateProbs:    e.hmm.FilteredDistribution(),
		ExpectedDuration: e.hmm.ExpectedRegimeDuration(),
	}
}

func (s EnsembleStatus) String() string {
	return "ensemble_status(regime=" + s.CurrentRegime.String() + ")"
}
