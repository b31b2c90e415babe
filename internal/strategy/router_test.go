package strategy

import (
	"testing"

	"github.com/atlas-desktop/regime-engine/internal/regime"
)

func newTestRouter(t *testing.T, cfg RouterConfig) *Router {
	t.Helper()
	r, err := NewRouter(cfg, nil)
	if err != nil {
		t.Fatalf("router config: %v", err)
	}
	return r
}

func TestRouterRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.VolatilePositionFactor = 1.5
	if _, err := NewRouter(cfg, nil); err == nil {
		t.Fatalf("expected an error for volatile_position_factor outside [0,1]")
	}

	cfg = DefaultRouterConfig()
	cfg.RegimeConfig.ADXPeriod = 0
	if _, err := NewRouter(cfg, nil); err == nil {
		t.Fatalf("expected an error for a zero adx_period")
	}
}

func TestRouterNoTradeBeforeReady(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig())
	signal := r.Update("BTC-USD", 101, 99, 100)
	if signal.SourceStrategy != NoTrade {
		t.Fatalf("expected no_trade before any readiness, got %s", signal.SourceStrategy)
	}
}

func TestRouterRegistersAssetLazily(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig())
	if len(r.Symbols()) != 0 {
		t.Fatalf("expected no symbols before first update")
	}
	r.Update("ETH-USD", 101, 99, 100)
	if len(r.Symbols()) != 1 {
		t.Fatalf("expected one symbol after first update")
	}
}

func TestRouterTracksRegimeChangesAndStats(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.RegimeConfig = regime.CryptoOptimizedRegimeConfig()
	r := newTestRouter(t, cfg)
	close := 100.0
	for i := 0; i < 120; i++ {
		close *= 1.004
		high := close * 1.002
		low := close * 0.998
		r.Update("SOL-USD", high, low, close)
	}
	stats := r.Stats()
	if stats.TotalSignals != 120 {
		t.Fatalf("expected 120 total signals, got %d", stats.TotalSignals)
	}
	status, ok := r.Status("SOL-USD")
	if !ok {
		t.Fatalf("expected status for registered symbol")
	}
	if !status.Ready {
		t.Fatalf("expected detector ready after 120 bars")
	}
}

func TestRegisterAssetPreCreatesState(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig())
	r.RegisterAsset("DOGE-USD")
	if _, ok := r.Status("DOGE-USD"); !ok {
		t.Fatalf("expected pre-registered asset to have status")
	}
}
