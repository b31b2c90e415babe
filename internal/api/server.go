// Package api exposes the regime engine over HTTP and WebSocket: a health
// check, a per-symbol status summary, Prometheus counters/gauges derived
// from RouterStats, and a live stream of TradeAction/regime-change events.
// None of this feeds back into the core — it is a read-only observability
// surface over internal/integration.Trader and internal/events.Bus.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/regime-engine/internal/events"
	"github.com/atlas-desktop/regime-engine/internal/integration"
	"github.com/atlas-desktop/regime-engine/internal/strategy"
)

// Config parameterizes the HTTP/WebSocket surface.
type Config struct {
	Host          string
	Port          int
	WebSocketPath string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8080,
		WebSocketPath: "/ws",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
	}
}

// Server is the HTTP/WebSocket API server fronting a Trader and event bus.
type Server struct {
	logger *zap.Logger
	config Config

	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	trader  *integration.Trader
	bus     *events.Bus
	hub     *Hub
	metrics *Metrics
}

// NewServer builds a server around an already-running Trader and event bus.
// Routes are registered immediately; Start begins accepting connections.
func NewServer(logger *zap.Logger, config Config, trader *integration.Trader, bus *events.Bus) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:  logger,
		config:  config,
		router:  mux.NewRouter(),
		trader:  trader,
		bus:     bus,
		hub:     NewHub(logger),
		metrics: NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/status/{symbol}", s.handleSymbolStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Router exposes the underlying mux.Router so the process wiring layer can
// attach additional middleware before Start.
func (s *Server) Router() *mux.Router { return s.router }

// Start runs the event-bus bridge and the HTTP server. It blocks until the
// server stops (normally via Stop, which shuts it down gracefully).
func (s *Server) Start() error {
	go s.hub.Run()
	s.bridgeEvents()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting api server", zap.String("addr", addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully drains in-flight requests and closes WebSocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.CloseAll()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// bridgeEvents subscribes the hub to the bus so every TradeAction and
// regime-change event the engine publishes reaches connected WebSocket
// clients, and updates Prometheus counters from the same stream.
func (s *Server) bridgeEvents() {
	s.bus.Subscribe(events.EventTypeTradeAction, func(e events.Event) error {
		ta, ok := e.(*events.TradeActionEvent)
		if !ok {
			return nil
		}
		s.metrics.ObserveTradeAction(ta.Action, ta.SourceStrategy, ta.Regime)
		s.hub.PublishToChannel("signals", MsgTypeSignalUpdate, ta)
		s.hub.PublishToChannel("signals:"+ta.Symbol, MsgTypeSignalUpdate, ta)
		return nil
	})
	s.bus.Subscribe(events.EventTypeRegimeChange, func(e events.Event) error {
		rc, ok := e.(*events.RegimeChangeEvent)
		if !ok {
			return nil
		}
		s.metrics.ObserveRegimeChange(rc.To)
		s.hub.PublishToChannel("regime", MsgTypeRegimeChange, rc)
		return nil
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus returns a StatusSummary for every symbol the trader has seen.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pairs := s.trader.StatusSummary()
	s.metrics.SetActiveSymbols(len(pairs))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbols": pairs,
		"count":   len(pairs),
		"stats":   newRouterStatsPayload(s.trader.Stats()),
	})
}

// handleSymbolStatus returns the status for a single symbol, 404 if unseen.
func (s *Server) handleSymbolStatus(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	for _, p := range s.trader.StatusSummary() {
		if p.Symbol == symbol {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	http.Error(w, "symbol not found", http.StatusNotFound)
}

// handleWebSocket upgrades to a WebSocket connection and registers the
// client with the broadcast hub. Clients subscribe to channels
// ("signals", "signals:<symbol>", "regime") by sending a subscribe message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(clientID(), s.hub, conn)
	s.hub.register <- client
	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// RouterStatsPayload adapts strategy.RouterStats to a stable JSON shape for
// the status endpoint's aggregate counters.
type RouterStatsPayload struct {
	TotalSignals        int `json:"total_signals"`
	TrendFollowingCount int `json:"trend_following_count"`
	MeanReversionCount  int `json:"mean_reversion_count"`
	NoTradeCount        int `json:"no_trade_count"`
	RegimeChanges       int `json:"regime_changes"`
}

func newRouterStatsPayload(s strategy.RouterStats) RouterStatsPayload {
	return RouterStatsPayload{
		TotalSignals:        s.TotalSignals,
		TrendFollowingCount: s.TrendFollowingCount,
		MeanReversionCount:  s.MeanReversionCount,
		NoTradeCount:        s.NoTradeCount,
		RegimeChanges:       s.RegimeChanges,
	}
}
