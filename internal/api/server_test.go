// Package api_test provides tests for the API server.
package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/internal/api"
	"github.com/atlas-desktop/regime-engine/internal/events"
	"github.com/atlas-desktop/regime-engine/internal/integration"
	"github.com/atlas-desktop/regime-engine/internal/strategy"
	"github.com/atlas-desktop/regime-engine/pkg/types"
)

func newTestServer(t *testing.T) (*api.Server, *integration.Trader) {
	t.Helper()
	router, err := strategy.NewRouter(strategy.DefaultRouterConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("router config: %v", err)
	}
	trader := integration.NewTrader(router, 60, zap.NewNop())
	bus := events.NewBus(zap.NewNop(), events.DefaultConfig())
	srv := api.NewServer(zap.NewNop(), api.DefaultConfig(), trader, bus)
	return srv, trader
}

func makeCandle(symbol string, price float64, ts int64) types.Candle {
	return types.Candle{
		Symbol:    symbol,
		Open:      price,
		High:      price * 1.01,
		Low:       price * 0.99,
		Close:     price,
		Volume:    10,
		Timestamp: ts,
	}
}

func TestHandleHealthReturnsHealthy(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("expected status healthy, got %v", body["status"])
	}
}

func TestHandleStatusEmptyBeforeAnyCandles(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["count"].(float64) != 0 {
		t.Fatalf("expected zero symbols, got %v", body["count"])
	}
}

func TestHandleStatusReflectsProcessedCandle(t *testing.T) {
	srv, trader := newTestServer(t)
	if _, err := trader.ProcessCandle(makeCandle("BTC/USDT", 100, 1000)); err != nil {
		t.Fatalf("process candle: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("expected one symbol, got %v", body["count"])
	}
}

func TestHandleSymbolStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/BTC-USDT", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
