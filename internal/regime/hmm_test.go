package regime

import (
	"math"
	"testing"
)

func TestHMMUncertainBeforeReady(t *testing.T) {
	h := NewHMMDetector(CryptoOptimizedHMMConfig(), nil)
	result := h.Update(100)
	if result.Regime.Kind != KindUncertain || result.Confidence != 0 {
		t.Fatalf("expected uncertain/0 before any observations, got %+v", result)
	}
}

func TestHMMFilteredDistributionSumsToOne(t *testing.T) {
	h := NewHMMDetector(CryptoOptimizedHMMConfig(), nil)
	close := 100.0
	for i := 0; i < 80; i++ {
		close *= 1.001
		h.Update(close)
	}
	sum := 0.0
	for _, p := range h.FilteredDistribution() {
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("expected filtered distribution to sum to 1, got %f", sum)
	}
}

func TestHMMVarianceNeverBelowFloor(t *testing.T) {
	h := NewHMMDetector(HMMConfig{NStates: 3, MinObservations: 10, LearningRate: 0.5, TransitionSmoothing: 0.1, LookbackWindow: 50, MinConfidence: 0.5}, nil)
	close := 100.0
	for i := 0; i < 60; i++ {
		close *= 1.0001
		h.Update(close)
	}
	for _, s := range h.states {
		if s.variance < varianceFloor {
			t.Fatalf("expected variance >= floor, got %g", s.variance)
		}
	}
}

func TestHMMAlternatingSeriesDetectsVolatile(t *testing.T) {
	h := NewHMMDetector(HMMConfig{NStates: 3, MinObservations: 20, LearningRate: 0.02, TransitionSmoothing: 0.05, LookbackWindow: 100, MinConfidence: 0.5}, nil)
	close := 100.0
	var last RegimeConfidence
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			close *= 1.03
		} else {
			close *= 0.97
		}
		last = h.Update(close)
	}
	if !h.IsReady() {
		t.Fatalf("expected HMM ready after 50 observations with min_observations=20")
	}
	if last.Regime.Kind != KindVolatile {
		t.Fatalf("expected alternating +-3%% series to classify as volatile, got %s", last.Regime)
	}
}

func TestTransitionMatrixRowsSumToOne(t *testing.T) {
	h := NewHMMDetector(CryptoOptimizedHMMConfig(), nil)
	close := 100.0
	for i := 0; i < 80; i++ {
		close *= 1.0005
		h.Update(close)
	}
	for _, row := range h.transition {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("expected transition row to sum to 1, got %f", sum)
		}
	}
}

func TestHMMUnderflowResetsToUniform(t *testing.T) {
	h := NewHMMDetector(CryptoOptimizedHMMConfig(), nil)
	h.Update(100)
	h.Update(100 * math.Exp(50))
	n := float64(len(h.filtered))
	for _, p := range h.filtered {
		if math.Abs(p-1.0/n) > 1e-9 {
			t.Fatalf("expected an underflowing observation to reset the filtered distribution to uniform, got %v", h.filtered)
		}
	}
}
