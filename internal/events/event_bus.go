// Package events provides a worker-pool-driven pub/sub bus that fans
// TradeAction and regime-change events out to subscribers (WebSocket
// broadcasters, structured logs) without ever blocking the symbol that
// produced them.
package events

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType categorizes events flowing through the bus. Trimmed to the set
// this engine actually emits: routed trade actions, regime transitions, and
// basic liveness/observability signals.
type EventType string

const (
	EventTypeTradeAction  EventType = "trade_action"
	EventTypeRegimeChange EventType = "regime_change"
	EventTypeHeartbeat    EventType = "heartbeat"
	EventTypeStatus       EventType = "status"
	EventTypeError        EventType = "error"
)

// Event is the base interface for all bus events.
type Event interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetID() string
}

// BaseEvent provides common event plumbing embedded by every concrete event.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *BaseEvent) GetType() EventType      { return e.Type }
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e *BaseEvent) GetID() string           { return e.ID }

func newBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{ID: uuid.NewString(), Type: eventType, Timestamp: time.Now()}
}

// TradeActionEvent carries a routed trade action to subscribers.
type TradeActionEvent struct {
	BaseEvent
	Symbol         string  `json:"symbol"`
	Action         string  `json:"action"`
	Price          string  `json:"price"`
	SizeFactor     float64 `json:"size_factor"`
	StopLoss       *string `json:"stop_loss,omitempty"`
	TakeProfit     *string `json:"take_profit,omitempty"`
	SourceStrategy string  `json:"source_strategy"`
	Regime         string  `json:"regime"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

// NewTradeActionEvent builds a TradeActionEvent. Decimal fields are
// pre-formatted to strings by the caller so this package needs no
// dependency on shopspring/decimal.
func NewTradeActionEvent(symbol, action, price string, sizeFactor float64, stopLoss, takeProfit *string, sourceStrategy, regime string, confidence float64, reason string) *TradeActionEvent {
	return &TradeActionEvent{
		BaseEvent:      newBaseEvent(EventTypeTradeAction),
		Symbol:         symbol,
		Action:         action,
		Price:          price,
		SizeFactor:     sizeFactor,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		SourceStrategy: sourceStrategy,
		Regime:         regime,
		Confidence:     confidence,
		Reason:         reason,
	}
}

// RegimeChangeEvent announces a symbol's regime transition.
type RegimeChangeEvent struct {
	BaseEvent
	Symbol     string  `json:"symbol"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Confidence float64 `json:"confidence"`
}

func NewRegimeChangeEvent(symbol, from, to string, confidence float64) *RegimeChangeEvent {
	return &RegimeChangeEvent{
		BaseEvent:  newBaseEvent(EventTypeRegimeChange),
		Symbol:     symbol,
		From:       from,
		To:         to,
		Confidence: confidence,
	}
}

// HeartbeatEvent is a periodic liveness signal.
type HeartbeatEvent struct {
	BaseEvent
	ActiveSymbols int `json:"active_symbols"`
}

func NewHeartbeatEvent(activeSymbols int) *HeartbeatEvent {
	return &HeartbeatEvent{BaseEvent: newBaseEvent(EventTypeHeartbeat), ActiveSymbols: activeSymbols}
}

// EventHandler processes one event. A returned error is logged, not
// propagated to the publisher.
type EventHandler func(event Event) error

// EventFilter selectively admits events to a subscription.
type EventFilter func(event Event) bool

// SubscriptionOptions configures how a subscription's handler is invoked.
type SubscriptionOptions struct {
	Filter EventFilter
	Async  bool
}

// Subscription is a handle returned by Subscribe, used to unsubscribe later.
type Subscription struct {
	ID        string
	EventType EventType
	Handler   EventHandler
	Options   SubscriptionOptions
	active    atomic.Bool
}

func (s *Subscription) IsActive() bool { return s.active.Load() }

// Stats is a snapshot of bus throughput and latency.
type Stats struct {
	EventsPublished   int64
	EventsProcessed   int64
	EventsDropped     int64
	ProcessingErrors  int64
	P99LatencyNs      int64
	ActiveSubscribers int64
}

// Config configures worker count and channel buffering.
type Config struct {
	NumWorkers int
	BufferSize int
}

func DefaultConfig() Config {
	return Config{NumWorkers: 16, BufferSize: 100000}
}

// Bus is a bounded, worker-pool-backed pub/sub event router. Publish never
// blocks the caller: a full buffer drops the event and increments a
// counter rather than propagating backpressure to the symbol that produced
// it.
type Bus struct {
	mu             sync.RWMutex
	subscribers    map[EventType][]*Subscription
	allSubscribers []*Subscription

	eventChan   chan Event
	workerCount int

	eventsPublished   atomic.Int64
	eventsProcessed   atomic.Int64
	eventsDropped     atomic.Int64
	processingErrors  atomic.Int64
	activeSubscribers atomic.Int64

	latencies []int64
	latencyMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewBus starts a bus with config.NumWorkers goroutines draining a
// config.BufferSize-deep channel.
func NewBus(logger *zap.Logger, config Config) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = 16
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100000
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		subscribers: make(map[EventType][]*Subscription),
		eventChan:   make(chan Event, config.BufferSize),
		workerCount: config.NumWorkers,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		latencies:   make([]int64, 0, 10000),
	}

	for i := 0; i < config.NumWorkers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	b.logger.Info("event bus started", zap.Int("workers", config.NumWorkers), zap.Int("buffer_size", config.BufferSize))
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event := <-b.eventChan:
			start := time.Now()
			b.dispatch(event)
			b.trackLatency(time.Since(start).Nanoseconds())
		}
	}
}

func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	subs := b.subscribers[event.GetType()]
	allSubs := b.allSubscribers
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}
	for _, sub := range allSubs {
		b.deliver(sub, event)
	}
	b.eventsProcessed.Add(1)
}

func (b *Bus) deliver(sub *Subscription, event Event) {
	if !sub.active.Load() {
		return
	}
	if sub.Options.Filter != nil && !sub.Options.Filter(event) {
		return
	}
	if sub.Options.Async {
		go b.invoke(sub, event)
	} else {
		b.invoke(sub, event)
	}
}

func (b *Bus) invoke(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.processingErrors.Add(1)
			b.logger.Error("event handler panic",
				zap.String("subscription_id", sub.ID),
				zap.String("event_type", string(event.GetType())),
				zap.Any("panic", r),
			)
		}
	}()
	if err := sub.Handler(event); err != nil {
		b.processingErrors.Add(1)
		b.logger.Warn("event handler error",
			zap.String("subscription_id", sub.ID),
			zap.String("event_type", string(event.GetType())),
			zap.Error(err),
		)
	}
}

func (b *Bus) trackLatency(latencyNs int64) {
	b.latencyMu.Lock()
	defer b.latencyMu.Unlock()
	b.latencies = append(b.latencies, latencyNs)
	if len(b.latencies) > 10000 {
		b.latencies = b.latencies[5000:]
	}
}

// Subscribe registers handler for eventType. Async defaults to true.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler, opts ...SubscriptionOptions) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	options := SubscriptionOptions{Async: true}
	if len(opts) > 0 {
		options = opts[0]
	}
	sub := &Subscription{ID: uuid.NewString(), EventType: eventType, Handler: handler, Options: options}
	sub.active.Store(true)
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.activeSubscribers.Add(1)
	return sub
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler EventHandler, opts ...SubscriptionOptions) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	options := SubscriptionOptions{Async: true}
	if len(opts) > 0 {
		options = opts[0]
	}
	sub := &Subscription{ID: uuid.NewString(), EventType: "*", Handler: handler, Options: options}
	sub.active.Store(true)
	b.allSubscribers = append(b.allSubscribers, sub)
	b.activeSubscribers.Add(1)
	return sub
}

// Unsubscribe deactivates a subscription; in-flight deliveries may still
// complete.
func (b *Bus) Unsubscribe(sub *Subscription) {
	sub.active.Store(false)
	b.activeSubscribers.Add(-1)
}

// Publish enqueues event for async delivery. If the buffer is full the
// event is dropped and counted rather than blocking the caller.
func (b *Bus) Publish(event Event) {
	select {
	case b.eventChan <- event:
		b.eventsPublished.Add(1)
	default:
		b.eventsDropped.Add(1)
		b.logger.Warn("event dropped: buffer full", zap.String("event_type", string(event.GetType())))
	}
}

// PublishSync delivers event to subscribers on the calling goroutine.
func (b *Bus) PublishSync(event Event) {
	b.eventsPublished.Add(1)
	b.dispatch(event)
}

// GetStats returns a snapshot of bus throughput/latency counters.
func (b *Bus) GetStats() Stats {
	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsProcessed:   b.eventsProcessed.Load(),
		EventsDropped:     b.eventsDropped.Load(),
		ProcessingErrors:  b.processingErrors.Load(),
		P99LatencyNs:      b.p99LatencyNs(),
		ActiveSubscribers: b.activeSubscribers.Load(),
	}
}

func (b *Bus) p99LatencyNs() int64 {
	b.latencyMu.Lock()
	defer b.latencyMu.Unlock()
	if len(b.latencies) == 0 {
		return 0
	}
	sorted := make([]int64, len(b.latencies))
	copy(sorted, b.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Stop cancels workers and waits (up to 5s) for them to exit. Events still
// buffered when Stop is called are not guaranteed to be delivered.
func (b *Bus) Stop() {
	b.logger.Info("stopping event bus")
	b.cancel()
	done := make(chan struct{})
	go func() { b.wg.Wait(); close(done) }()
	select {
	case <-done:
		b.logger.Info("event bus stopped", zap.Int64("events_processed", b.eventsProcessed.Load()))
	case <-time.After(5 * time.Second):
		b.logger.Warn("event bus stop timed out")
	}
}
