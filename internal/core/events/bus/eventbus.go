package bus

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/racecore/internal/core/observability/log"
)

var (
	ErrEmptyEventType = errors.New("event type is required")
	ErrNilHandler     = errors.New("handler is nil")
)

type simpleEvent struct {
	typ     string
	source  string
	ts      time.Time
	payload any
}

func (e simpleEvent) Type() string         { return e.typ }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Payload() any         { return e.payload }

func (e simpleEvent) String() string {
	return fmt.Sprintf("%s from %s: %v", e.typ, e.source, e.payload)
}

// NewEvent builds an Event. at is passed in so simulated time can be used.
func NewEvent(typ, source string, at time.Time, payload any) Event {
	return simpleEvent{typ: typ, source: source, ts: at, payload: payload}
}

type subscription struct {
	id        string
	eventType string
	handler   EventHandler
	active    atomic.Bool
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }

func (s *subscription) Cancel() {
	if s.active.CompareAndSwap(true, false) && s.cancel != nil {
		s.cancel()
	}
}

type inMemoryBus struct {
	mu sync.RWMutex
	// handlers: eventType -> subscriptions in registration order
	handlers  map[string][]*subscription
	metrics   EventBusMetrics
	observers map[EventBusObserver]struct{}
}

func New() EventBus {
	return &inMemoryBus{
		handlers:  make(map[string][]*subscription),
		observers: make(map[EventBusObserver]struct{}),
	}
}

func (b *inMemoryBus) Publish(event Event) error {
	return b.deliver(event)
}

func (b *inMemoryBus) PublishBatch(events ...Event) error {
	var all error
	for _, e := range events {
		if err := b.Publish(e); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus) PublishWithFilters(event Event, filters ...EventFilter) error {
	for _, f := range filters {
		if !f(event) {
			b.mu.Lock()
			if len(b.observers) > 0 {
				b.metrics.DroppedByFilters++
			}
			b.mu.Unlock()
			return nil
		}
	}
	return b.Publish(event)
}

func (b *inMemoryBus) Subscribe(eventType string, handler EventHandler) (Subscription, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[eventType] = slices.DeleteFunc(b.handlers[eventType], func(o *subscription) bool {
			return o == s
		})
		if len(b.handlers[eventType]) == 0 {
			delete(b.handlers, eventType)
		}
	}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], s)
	b.mu.Unlock()
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) {
	if sub != nil {
		sub.Cancel()
	}
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *inMemoryBus) deliver(event Event) error {
	start := time.Now()
	etype := event.Type()

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.handlers[etype])+len(b.handlers[AllEvents]))
	subs = append(subs, b.handlers[etype]...)
	if etype != AllEvents {
		subs = append(subs, b.handlers[AllEvents]...)
	}
	observers := make([]EventBusObserver, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(etype, event)
	}

	var all error
	delivered := 0
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		delivered++
		if err := s.handler(event); err != nil {
			all = errors.Join(all, fmt.Errorf("%s handler %s: %w", etype, s.id, err))
		}
	}

	if len(observers) == 0 {
		return all
	}

	took := time.Since(start)
	for _, obs := range observers {
		obs.OnDelivered(etype, delivered, all, took)
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(delivered)
	if all != nil {
		b.metrics.Errors++
	}
	var active uint64
	for _, list := range b.handlers {
		active += uint64(len(list))
	}
	b.metrics.SubscribersActive = active
	b.mu.Unlock()

	return all
}

// LogObserver writes failed deliveries at warn level and the rest at debug.
type LogObserver struct {
	logger log.Log
}

func NewLogObserver(logger log.Log) *LogObserver {
	return &LogObserver{logger: logger.Named("bus")}
}

func (o *LogObserver) OnPublish(string, Event) {}

func (o *LogObserver) OnDelivered(eventType string, handlers int, err error, took time.Duration) {
	if err != nil {
		o.logger.Warn("event delivery failed",
			log.String("type", eventType),
			log.Int("handlers", handlers),
			log.Error(err),
		)
		return
	}
	o.logger.Debug("event delivered",
		log.String("type", eventType),
		log.Int("handlers", handlers),
		log.Duration("took", took),
	)
}
