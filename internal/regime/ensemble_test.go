package regime

import "testing"

func TestEnsembleReturnsIndicatorResultDuringHMMWarmup(t *testing.T) {
	e := NewEnsembleDetector(DefaultEnsembleConfig(), CryptoOptimizedRegimeConfig(), CryptoOptimizedHMMConfig(), nil)
	result := e.Update(101, 99, 100)
	if result.Regime.Kind != KindUncertain {
		t.Fatalf("expected uncertain regime on the very first bar, got %s", result.Regime)
	}
}

func TestEnsembleDisagreementYieldsUncertain(t *testing.T) {
	e := &EnsembleDetector{
		config:  DefaultEnsembleConfig(),
		current: Uncertain,
	}
	ind := RegimeConfidence{Regime: Trending(Bullish), Confidence: 0.6}
	hmm := RegimeConfidence{Regime: MeanReverting, Confidence: 0.6}
	result := e.combine(ind, hmm, false)
	if result.Regime.Kind != KindUncertain {
		t.Fatalf("expected disagreement below threshold to yield uncertain, got %s (confidence %f)", result.Regime, result.Confidence)
	}
}

func TestEnsembleAgreementUsesIndicatorRegime(t *testing.T) {
	e := &EnsembleDetector{config: DefaultEnsembleConfig(), current: Uncertain}
	ind := RegimeConfidence{Regime: Trending(Bullish), Confidence: 0.8}
	hmm := RegimeConfidence{Regime: Trending(Bullish), Confidence: 0.7}
	result := e.combine(ind, hmm, true)
	if !result.Regime.AgreeDirection(Trending(Bullish)) {
		t.Fatalf("expected agreement to preserve direction, got %s", result.Regime)
	}
}

func TestEnsembleSteadyUptrendConvergesToTrending(t *testing.T) {
	e := NewEnsembleDetector(DefaultEnsembleConfig(), CryptoOptimizedRegimeConfig(), CryptoOptimizedHMMConfig(), nil)
	close := 100.0
	var last RegimeConfidence
	for i := 0; i < 200; i++ {
		close *= 1.005
		high := close * 1.002
		low := close * 0.998
		last = e.Update(high, low, close)
	}
	if last.Regime.Kind != KindTrending {
		t.Fatalf("expected a steady uptrend to converge to trending, got %s", last.Regime)
	}
	if rate := e.AgreementRate(); rate <= 0.3 {
		t.Fatalf("expected the detectors to agree on most uptrend bars, got rate %f", rate)
	}
}

func TestAgreementRateTracksHistory(t *testing.T) {
	e := NewEnsembleDetector(DefaultEnsembleConfig(), CryptoOptimizedRegimeConfig(), CryptoOptimizedHMMConfig(), nil)
	if e.AgreementRate() != 0 {
		t.Fatalf("expected zero agreement rate with no history")
	}
	close := 100.0
	for i := 0; i < 60; i++ {
		close *= 1.004
		high := close * 1.002
		low := close * 0.998
		e.Update(high, low, close)
	}
	rate := e.AgreementRate()
	if rate < 0 || rate > 1 {
		t.Fatalf("expected agreement rate in [0,1], got %f", rate)
	}
}
