package feed_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/internal/feed"
)

func TestDefaultConfigHasBinanceCombinedStreamBase(t *testing.T) {
	cfg := feed.DefaultConfig()
	if cfg.WSBaseURL != "wss://stream.binance.com:9443/stream" {
		t.Fatalf("expected the Binance combined-stream base URL, got %q", cfg.WSBaseURL)
	}
}

func TestRunRejectsEmptySymbolList(t *testing.T) {
	src := feed.NewSource(feed.Config{WSBaseURL: "wss://example.invalid"}, zap.NewNop())
	if err := src.Run(nil, func(feed.Tick) {}); err == nil {
		t.Fatalf("expected an error when no symbols are configured")
	}
}
