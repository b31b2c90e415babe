package regime

import "testing"

func TestEMASeedsThenSmooths(t *testing.T) {
	e := NewEMA(3)
	if e.IsReady() {
		t.Fatalf("expected not ready before any update")
	}
	e.Update(10)
	if _, ready := e.Value(); ready {
		t.Fatalf("expected not ready after 1 update of period 3")
	}
	e.Update(10)
	e.Update(10)
	v, ready := e.Value()
	if !ready {
		t.Fatalf("expected ready after 3 updates")
	}
	if v != 10 {
		t.Fatalf("expected constant input to converge to 10, got %f", v)
	}
}

func TestATRReadyAfterPeriod(t *testing.T) {
	a := NewATR(3)
	for i := 0; i < 2; i++ {
		a.Update(101, 99, 100)
	}
	if a.IsReady() {
		t.Fatalf("expected not ready before period bars")
	}
	a.Update(101, 99, 100)
	if !a.IsReady() {
		t.Fatalf("expected ready after period bars")
	}
	v, _ := a.Value()
	if v <= 0 {
		t.Fatalf("expected positive ATR, got %f", v)
	}
}

func TestBollingerWidthPercentileDefaultsBeforeHistory(t *testing.T) {
	bb := NewBollingerBands(5, 2.0)
	closes := []float64{100, 101, 99, 102, 98}
	for _, c := range closes {
		bb.Update(c)
	}
	if !bb.IsReady() {
		t.Fatalf("expected ready after period closes")
	}
	if bb.WidthPercentile() != 50.0 {
		t.Fatalf("expected default width percentile 50 with <10 history, got %f", bb.WidthPercentile())
	}
}

func TestBollingerPercentBPinnedWhenFlat(t *testing.T) {
	bb := NewBollingerBands(3, 2.0)
	bb.Update(100)
	bb.Update(100)
	bb.Update(100)
	if bb.PercentB() != 0.5 {
		t.Fatalf("expected %%B=0.5 for a flat band, got %f", bb.PercentB())
	}
}

func TestADXDirectionalMovement(t *testing.T) {
	adx := NewADX(3)
	high, low, close := 100.0, 98.0, 99.0
	for i := 0; i < 10; i++ {
		high += 1.5
		low += 1.5
		close += 1.5
		adx.Update(high, low, close)
	}
	if !adx.IsReady() {
		t.Fatalf("expected ADX ready after enough bars")
	}
	if adx.Direction() != Bullish {
		t.Fatalf("expected bullish direction in an uptrend")
	}
}

func TestADXReadyAtTwoPeriodsMinusOne(t *testing.T) {
	adx := NewADX(3)
	high, low, close := 100.0, 98.0, 99.0
	for i := 0; i < 4; i++ {
		high += 1.5
		low += 1.5
		close += 1.5
		adx.Update(high, low, close)
	}
	if adx.IsReady() {
		t.Fatalf("expected ADX of period 3 not ready after 4 bars")
	}
	high += 1.5
	low += 1.5
	close += 1.5
	adx.Update(high, low, close)
	if !adx.IsReady() {
		t.Fatalf("expected ADX of period 3 ready on bar 5")
	}
}
