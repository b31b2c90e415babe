package data

import (
	"fmt"

	"github.com/atlas-desktop/regime-engine/pkg/types"
)

// ValidateCandle checks the OHLC shape invariant before a candle is allowed
// to reach the regime engine: low <= min(open,close) <= max(open,close) <=
// high, and volume >= 0. This is a thin, explicit entry point over
// types.Candle.Validate so callers at the data boundary have one obvious
// place to reject malformed bars.
func ValidateCandle(c types.Candle) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("candle validation failed: %w", err)
	}
	return nil
}

// ValidateSeries validates every candle in a historical series and checks
// that timestamps are strictly increasing, matching the ordering guarantee
// the engine requires during warmup replay.
func ValidateSeries(candles []types.Candle) error {
	var prevTimestamp int64
	hasPrev := false
	for i, c := range candles {
		if err := ValidateCandle(c); err != nil {
			return fmt.Errorf("series index %d: %w", i, err)
		}
		if hasPrev && c.Timestamp <= prevTimestamp {
			return fmt.Errorf("series index %d: timestamp %d not strictly after previous %d", i, c.Timestamp, prevTimestamp)
		}
		prevTimestamp = c.Timestamp
		hasPrev = true
	}
	return nil
}
