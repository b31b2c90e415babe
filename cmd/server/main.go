// Package main wires the regime engine's components into a running
// process: historical warmup from internal/data, live tick ingestion from
// internal/feed through a worker-pool-backed internal/ingest.Dispatcher,
// regime-aware routing via internal/strategy, and the internal/api
// HTTP/WebSocket surface — bridged together over an internal/events.Bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atlas-desktop/regime-engine/internal/api"
	"github.com/atlas-desktop/regime-engine/internal/data"
	"github.com/atlas-desktop/regime-engine/internal/events"
	"github.com/atlas-desktop/regime-engine/internal/feed"
	"github.com/atlas-desktop/regime-engine/internal/ingest"
	"github.com/atlas-desktop/regime-engine/internal/integration"
	"github.com/atlas-desktop/regime-engine/internal/strategy"
	"github.com/atlas-desktop/regime-engine/internal/workers"
)

func main() {
	host := flag.String("host", "0.0.0.0", "API server host")
	port := flag.Int("port", 8080, "API server port")
	dataDir := flag.String("data", "./data", "Historical candle data directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	configFile := flag.String("config", "", "Optional YAML config file overriding these flags")
	flag.Parse()

	loadConfigFile(*configFile)
	if viper.IsSet("host") {
		*host = viper.GetString("host")
	}
	if viper.IsSet("port") {
		*port = viper.GetInt("port")
	}
	if viper.IsSet("data_dir") {
		*dataDir = viper.GetString("data_dir")
	}
	if viper.IsSet("log_level") {
		*logLevel = viper.GetString("log_level")
	}
	symbols := viper.GetStringSlice("symbols")
	if len(symbols) == 0 {
		symbols = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}
	}

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	logger.Info("starting regime engine",
		zap.String("host", *host),
		zap.Int("port", *port),
		zap.String("dataDir", *dataDir),
		zap.Strings("symbols", symbols),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataStore, err := data.NewStore(logger, *dataDir)
	if err != nil {
		logger.Fatal("failed to initialize data store", zap.Error(err))
	}

	router, err := strategy.NewRouter(strategy.DefaultRouterConfig(), logger)
	if err != nil {
		logger.Fatal("invalid router configuration", zap.Error(err))
	}
	trader := integration.NewTrader(router, 60, logger)

	for _, symbol := range symbols {
		candles, err := dataStore.LoadCandles(symbol)
		if err != nil {
			logger.Warn("no historical warmup data for symbol", zap.String("symbol", symbol), zap.Error(err))
			router.RegisterAsset(symbol)
			continue
		}
		if err := trader.WarmupWithHistory(symbol, candles); err != nil {
			logger.Warn("warmup failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	pool := workers.NewPool(logger, workers.DefaultPoolConfig("regime-engine"))
	pool.Start()
	dispatcher := ingest.NewDispatcher(trader, pool, logger)

	bus := events.NewBus(logger, events.DefaultConfig())

	bridge := newEventBridge(bus, logger)
	for _, symbol := range symbols {
		bridge.seedRegime(symbol, router)
	}

	apiServer := api.NewServer(logger, api.Config{
		Host:          *host,
		Port:          *port,
		WebSocketPath: "/ws",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
	}, trader, bus)

	source := feed.NewSource(feed.Config{
		WSBaseURL:        feed.DefaultConfig().WSBaseURL,
		Symbols:          symbols,
		HandshakeTimeout: 10 * time.Second,
	}, logger)

	candleBuilder := integration.NewCandleBuilder(60)
	var builderMu sync.Mutex

	feedDone := make(chan error, 1)
	go func() {
		feedDone <- source.Run(ctx, func(tick feed.Tick) {
			builderMu.Lock()
			completed, ok := candleBuilder.AddTick(tick.Symbol, tick.Price, tick.Volume, tick.Timestamp)
			builderMu.Unlock()
			if !ok {
				return
			}
			if err := dispatcher.Submit(completed, func(action *integration.TradeAction, err error) {
				if err != nil {
					return
				}
				bridge.onTradeAction(tick.Symbol, action)
			}); err != nil {
				logger.Warn("candle dispatch failed", zap.String("symbol", tick.Symbol), zap.Error(err))
			}
		})
	}()

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	logger.Info("regime engine started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", *host, *port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d/ws", *host, *port)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-feedDone:
		if err != nil {
			logger.Error("feed disconnected", zap.Error(err))
		}
	}

	cancel()
	if err := pool.Stop(); err != nil {
		logger.Error("error stopping worker pool", zap.Error(err))
	}
	bus.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during api shutdown", zap.Error(err))
	}

	logger.Info("regime engine stopped")
}

// eventBridge forwards each TradeAction the dispatcher produces for a
// completed candle into the shared event bus, and tracks each symbol's
// last-seen regime so it can emit RegimeChangeEvents exactly on transition.
type eventBridge struct {
	bus    *events.Bus
	logger *zap.Logger

	mu         sync.Mutex
	lastRegime map[string]string
}

func newEventBridge(bus *events.Bus, logger *zap.Logger) *eventBridge {
	return &eventBridge{bus: bus, logger: logger, lastRegime: make(map[string]string)}
}

func (b *eventBridge) seedRegime(symbol string, router *strategy.Router) {
	if st, ok := router.Status(symbol); ok {
		b.mu.Lock()
		b.lastRegime[symbol] = st.Regime
		b.mu.Unlock()
	}
}

func (b *eventBridge) onTradeAction(symbol string, action *integration.TradeAction) {
	if action == nil {
		return
	}
	priceStr := action.Price.String()
	var stopLoss, takeProfit *string
	if action.StopLoss != nil {
		s := action.StopLoss.String()
		stopLoss = &s
	}
	if action.TakeProfit != nil {
		s := action.TakeProfit.String()
		takeProfit = &s
	}
	b.bus.Publish(events.NewTradeActionEvent(
		action.Symbol, string(action.Action), priceStr, action.SizeFactor,
		stopLoss, takeProfit, action.SourceStrategy, action.Regime, action.Confidence, action.Reason,
	))

	b.mu.Lock()
	prev, seen := b.lastRegime[symbol]
	b.lastRegime[symbol] = action.Regime
	b.mu.Unlock()

	if seen && prev != action.Regime {
		b.bus.Publish(events.NewRegimeChangeEvent(symbol, prev, action.Regime, action.Confidence))
	}
}

func loadConfigFile(path string) {
	if path == "" {
		return
	}
	dir := "."
	name := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		dir = path[:idx]
		name = path[idx+1:]
	}
	name = strings.TrimSuffix(name, ".yaml")
	name = strings.TrimSuffix(name, ".yml")

	viper.SetConfigName(name)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not read config file %s: %v\n", path, err)
	}
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
