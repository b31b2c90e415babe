// Package data loads historical candles for warmup and validates incoming
// candle shape before it reaches the regime engine.
package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/pkg/types"
)

// Store loads historical OHLCV candles from a flat per-symbol JSON file
// layout, caching each symbol's series in memory once read.
type Store struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	dataDir string
	cache   map[string][]types.Candle
}

// NewStore creates a store rooted at dataDir, creating the directory if it
// does not already exist.
func NewStore(logger *zap.Logger, dataDir string) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		logger:  logger,
		dataDir: dataDir,
		cache:   make(map[string][]types.Candle),
	}, nil
}

// LoadCandles returns the historical candle series for symbol, sorted by
// timestamp ascending, reading from cache if already loaded.
func (s *Store) LoadCandles(symbol string) ([]types.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[symbol]; ok {
		return cached, nil
	}

	filename := filepath.Join(s.dataDir, symbol+".json")
	raw, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no historical data for symbol %s", symbol)
		}
		return nil, fmt.Errorf("read candle file for %s: %w", symbol, err)
	}

	var candles []types.Candle
	if err := json.Unmarshal(raw, &candles); err != nil {
		return nil, fmt.Errorf("parse candle file for %s: %w", symbol, err)
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })

	for i := range candles {
		candles[i].Symbol = symbol
		if err := candles[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid candle at index %d for %s: %w", i, symbol, err)
		}
	}

	s.cache[symbol] = candles
	return candles, nil
}

// SaveCandles persists symbol's candle series to disk and refreshes the
// cache.
func (s *Store) SaveCandles(symbol string, candles []types.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(candles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal candles for %s: %w", symbol, err)
	}
	filename := filepath.Join(s.dataDir, symbol+".json")
	if err := os.WriteFile(filename, raw, 0o644); err != nil {
		return fmt.Errorf("write candle file for %s: %w", symbol, err)
	}
	s.cache[symbol] = candles
	return nil
}

// ClearCache drops all cached candle series, forcing the next load to hit
// disk.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string][]types.Candle)
}

// CacheSize returns the number of symbols currently cached in memory.
func (s *Store) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
