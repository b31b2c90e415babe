// Package integration wraps the regime-aware strategy router with the
// external signal envelope: candle aggregation from ticks, a
// reprocessing guard against replayed/stale bars, and the TradeAction
// payload that crosses into internal/events.
package integration

import (
	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/regime-engine/internal/strategy"
	"github.com/atlas-desktop/regime-engine/pkg/utils"
)

// TradeType mirrors strategy.Side at the external boundary.
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
	TradeHold TradeType = "hold"
)

func tradeTypeFromSide(s strategy.Side) TradeType {
	switch s {
	case strategy.Buy:
		return TradeBuy
	case strategy.Sell:
		return TradeSell
	default:
		return TradeHold
	}
}

// TradeAction is the sole externally observable output of the engine: a
// routed signal enveloped with the triggering price. Price and protective
// levels are decimal.Decimal here — the only place in this codebase money
// values cross a boundary — even though everything upstream computes in
// float64.
type TradeAction struct {
	ID             string
	Symbol         string
	Action         TradeType
	Price          decimal.Decimal
	SizeFactor     float64
	StopLoss       *decimal.Decimal
	TakeProfit     *decimal.Decimal
	SourceStrategy string
	Regime         string
	Confidence     float64
	Reason         string
}

func newTradeAction(symbol string, close float64, routed strategy.RoutedSignal) TradeAction {
	action := TradeAction{
		ID:             utils.GenerateID("ta"),
		Symbol:         symbol,
		Action:         tradeTypeFromSide(routed.Side),
		Price:          decimal.NewFromFloat(close),
		SizeFactor:     routed.PositionSizeFactor,
		SourceStrategy: routed.SourceStrategy.String(),
		Regime:         routed.Regime.String(),
		Confidence:     routed.Confidence,
		Reason:         routed.Reason,
	}
	if routed.StopLoss != nil {
		v := decimal.NewFromFloat(*routed.StopLoss)
		action.StopLoss = &v
	}
	if routed.TakeProfit != nil {
		v := decimal.NewFromFloat(*routed.TakeProfit)
		action.TakeProfit = &v
	}
	return action
}
