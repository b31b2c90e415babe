package data_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/internal/data"
	"github.com/atlas-desktop/regime-engine/pkg/types"
)

func TestStoreCreatesDataDir(t *testing.T) {
	tempDir := t.TempDir() + "/nested"
	store, err := data.NewStore(zap.NewNop(), tempDir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	if store.CacheSize() != 0 {
		t.Fatalf("expected empty cache on a fresh store")
	}
}

func TestSaveThenLoadCandlesRoundTrips(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}

	candles := []types.Candle{
		{Symbol: "BTC-USD", Timestamp: 60, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{Symbol: "BTC-USD", Timestamp: 120, Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 12},
	}
	if err := store.SaveCandles("BTC-USD", candles); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	store.ClearCache()
	loaded, err := store.LoadCandles("BTC-USD")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Timestamp != 60 || loaded[1].Timestamp != 120 {
		t.Fatalf("unexpected loaded candles: %+v", loaded)
	}
}

func TestLoadCandlesMissingSymbolErrors(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	if _, err := store.LoadCandles("DOES-NOT-EXIST"); err == nil {
		t.Fatalf("expected an error loading a symbol with no data file")
	}
}

func TestValidateCandleRejectsShapeViolation(t *testing.T) {
	bad := types.Candle{Symbol: "BTC-USD", Timestamp: 1, Open: 100, High: 90, Low: 95, Close: 98, Volume: 1}
	if err := data.ValidateCandle(bad); err == nil {
		t.Fatalf("expected an error for a candle with high < low")
	}
}

func TestValidateSeriesRejectsNonIncreasingTimestamps(t *testing.T) {
	series := []types.Candle{
		{Symbol: "BTC-USD", Timestamp: 60, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Symbol: "BTC-USD", Timestamp: 60, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
	}
	if err := data.ValidateSeries(series); err == nil {
		t.Fatalf("expected an error for a non-increasing timestamp series")
	}
}
