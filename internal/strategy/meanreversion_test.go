package strategy

import "testing"

func TestMeanReversionHoldsBeforeReady(t *testing.T) {
	m := NewMeanReversionStrategy(DefaultMeanReversionConfig())
	sig := m.Update(100)
	if sig.Side != Hold {
		t.Fatalf("expected hold before warmup, got %s", sig.Side)
	}
}

func TestMeanReversionBuySignalOnOversold(t *testing.T) {
	cfg := DefaultMeanReversionConfig()
	cfg.BBPeriod = 5
	cfg.RSIPeriod = 5
	m := NewMeanReversionStrategy(cfg)
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 80}
	var last Signal
	for _, c := range closes {
		last = m.Update(c)
	}
	if !m.IsReady() {
		t.Fatalf("expected ready after warmup")
	}
	if last.Side != Buy {
		t.Fatalf("expected buy signal on a sharp drop into oversold, got %s (reason: %s)", last.Side, last.Reason)
	}
	if last.StopLoss == nil || last.TakeProfit == nil {
		t.Fatalf("expected stop/target to be set on a buy signal")
	}
}

func TestMeanReversionSellSignalOnOverbought(t *testing.T) {
	cfg := DefaultMeanReversionConfig()
	cfg.BBPeriod = 5
	cfg.RSIPeriod = 5
	m := NewMeanReversionStrategy(cfg)
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 125}
	var last Signal
	for _, c := range closes {
		last = m.Update(c)
	}
	if last.Side != Sell {
		t.Fatalf("expected sell signal on a sharp rise into overbought, got %s (reason: %s)", last.Side, last.Reason)
	}
}
