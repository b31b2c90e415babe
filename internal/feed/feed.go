// Package feed provides a thin, exchange-agnostic WebSocket tick source. It
// knows nothing about order books, accounts, or execution — only how to dial
// a ticker stream, decode a trade price off the wire, and hand it to a
// callback. Reconnection is the caller's concern: Run returns once the
// connection drops so it can be retried behind backoff.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/pkg/utils"
)

// Tick is one trade print pulled off an exchange stream.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp int64 // unix seconds
}

// TickHandler receives each decoded tick. It must not block for long —
// the read loop will not pull the next message until it returns.
type TickHandler func(Tick)

// Config parameterizes a Source.
type Config struct {
	// WSBaseURL is the exchange's combined-stream WebSocket base, e.g.
	// "wss://stream.binance.com:9443/stream".
	WSBaseURL string
	// Symbols to subscribe to, in exchange-neutral BASE/QUOTE form.
	Symbols []string
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		WSBaseURL:        "wss://stream.binance.com:9443/stream",
		HandshakeTimeout: 10 * time.Second,
	}
}

// Source dials a combined ticker stream and decodes trade prints into Ticks.
// It is exchange-agnostic in shape but speaks the Binance combined-stream
// trade payload on the wire, the one concrete protocol this engine ships
// with; other transports implement the same Run contract.
type Source struct {
	config Config
	logger *zap.Logger
}

func NewSource(config Config, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{config: config, logger: logger}
}

// streamName converts an exchange-neutral symbol into a Binance trade stream
// name: "BTC/USDT" -> "btcusdt@trade".
func streamName(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", "")) + "@trade"
}

// tradeEnvelope is the combined-stream wrapper Binance puts every message
// in: {"stream": "...", "data": {...}}.
type tradeEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// tradePayload is the inner trade print.
type tradePayload struct {
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// Run dials the stream for the configured symbols and blocks, delivering
// ticks to handler, until ctx is cancelled or the connection drops. It
// returns nil on a clean ctx-driven shutdown and an error on any other
// disconnect, so callers can decide whether/how to reconnect.
func (s *Source) Run(ctx context.Context, handler TickHandler) error {
	if len(s.config.Symbols) == 0 {
		return fmt.Errorf("feed: no symbols configured")
	}

	streams := make([]string, 0, len(s.config.Symbols))
	for _, sym := range s.config.Symbols {
		streams = append(streams, streamName(sym))
	}
	url := s.config.WSBaseURL + "?streams=" + strings.Join(streams, "/")

	dialer := websocket.Dialer{HandshakeTimeout: s.config.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %d streams: %w", len(streams), err)
	}
	if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return fmt.Errorf("feed: unexpected handshake status %d", resp.StatusCode)
	}
	defer conn.Close()

	s.logger.Info("feed connected", zap.Strings("symbols", s.config.Symbols))

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			s.handleMessage(message, handler)
		}
	}()

	select {
	case <-ctx.Done():
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	case err := <-done:
		return fmt.Errorf("feed: connection closed: %w", err)
	}
}

func (s *Source) handleMessage(message []byte, handler TickHandler) {
	var env tradeEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.logger.Warn("feed: malformed envelope", zap.Error(err))
		return
	}
	var trade tradePayload
	if err := json.Unmarshal(env.Data, &trade); err != nil {
		s.logger.Warn("feed: malformed trade payload", zap.Error(err))
		return
	}
	price, err := strconv.ParseFloat(trade.Price, 64)
	if err != nil {
		return
	}
	qty, err := strconv.ParseFloat(trade.Quantity, 64)
	if err != nil {
		qty = 0
	}
	handler(Tick{
		Symbol:    normalizeSymbol(trade.Symbol),
		Price:     price,
		Volume:    qty,
		Timestamp: trade.TradeTime / 1000,
	})
}

// normalizeSymbol converts Binance's collapsed "BTCUSDT" form back into the
// engine's BASE/QUOTE convention.
func normalizeSymbol(raw string) string {
	return utils.FormatSymbol(raw)
}
