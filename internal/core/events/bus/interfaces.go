package bus

import "time"

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Delivery is synchronous: Publish runs handlers in the caller goroutine in
// subscription order, type-specific handlers before AllEvents handlers.
// Handler errors are joined and returned. Metrics are only collected while
// at least one observer is registered.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type().
	Publish(event Event) error
	// PublishBatch publishes events in order and joins their errors.
	PublishBatch(events ...Event) error
	// PublishWithFilters drops the event without error if any filter rejects it.
	PublishWithFilters(event Event, filters ...EventFilter) error

	// Subscribe registers a handler for one event type, or AllEvents.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. Nil is a no-op.
	Unsubscribe(sub Subscription)

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns a snapshot of the counters.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message. Payload is typically a domain value such
// as a race.LapCompleted.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Payload() any
}

type (
	EventHandler func(event Event) error
	EventFilter  func(event Event) bool
)

// Subscription is a registered handler. Cancel is idempotent.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel()
}

// EventBusObserver is notified around every delivery. Observers should
// return quickly.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, took time.Duration)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
}
