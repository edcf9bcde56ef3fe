package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/racecore/internal/core/observability/log"
)

type testObserver struct {
	mu             sync.Mutex
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(string, Event) {
	o.mu.Lock()
	o.publishCount++
	o.mu.Unlock()
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.mu.Lock()
	o.deliveredCount += handlers
	o.lastErr = err
	o.mu.Unlock()
}

var at = time.Unix(42, 0)

func TestPublishSubscribe(t *testing.T) {
	b := New()

	var got []Event
	sub, err := b.Subscribe("race.lap", func(e Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "race.lap", sub.EventType())
	assert.True(t, sub.IsActive())

	require.NoError(t, b.Publish(NewEvent("race.lap", "tracker", at, 3)))
	require.NoError(t, b.Publish(NewEvent("race.checkpoint", "tracker", at, 1)))

	require.Len(t, got, 1)
	assert.Equal(t, "tracker", got[0].Source())
	assert.Equal(t, at, got[0].Timestamp())
	assert.Equal(t, 3, got[0].Payload())
}

func TestDeliveryOrder(t *testing.T) {
	b := New()

	var order []string
	record := func(name string) EventHandler {
		return func(Event) error {
			order = append(order, name)
			return nil
		}
	}
	_, _ = b.Subscribe(AllEvents, record("all"))
	_, _ = b.Subscribe("ev", record("first"))
	_, _ = b.Subscribe("ev", record("second"))

	require.NoError(t, b.Publish(NewEvent("ev", "src", at, nil)))
	assert.Equal(t, []string{"first", "second", "all"}, order)
}

func TestSubscribeValidation(t *testing.T) {
	b := New()

	_, err := b.Subscribe("", func(Event) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyEventType)

	_, err = b.Subscribe("ev", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestUnsubscribe(t *testing.T) {
	b := New()

	calls := 0
	sub, err := b.Subscribe("ev", func(Event) error { calls++; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("ev", "src", at, nil)))
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)
	require.NoError(t, b.Publish(NewEvent("ev", "src", at, nil)))

	assert.Equal(t, 1, calls)
	assert.False(t, sub.IsActive())
}

func TestCancelDuringDelivery(t *testing.T) {
	b := New()

	var second Subscription
	calls := 0
	_, err := b.Subscribe("ev", func(Event) error {
		second.Cancel()
		return nil
	})
	require.NoError(t, err)
	second, err = b.Subscribe("ev", func(Event) error { calls++; return nil })
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("ev", "src", at, nil)))
	assert.Zero(t, calls)
}

func TestHandlerErrorsJoined(t *testing.T) {
	b := New()
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	_, _ = b.Subscribe("ev", func(Event) error { return errA })
	_, _ = b.Subscribe("ev", func(Event) error { return errB })
	okCalls := 0
	_, _ = b.Subscribe("ev", func(Event) error { okCalls++; return nil })

	err := b.Publish(NewEvent("ev", "src", at, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 1, okCalls, "a failing handler does not stop delivery")
}

func TestPublishBatch(t *testing.T) {
	b := New()
	boom := errors.New("boom")

	var types []string
	_, _ = b.Subscribe(AllEvents, func(e Event) error {
		types = append(types, e.Type())
		if e.Type() == "bad" {
			return boom
		}
		return nil
	})

	err := b.PublishBatch(
		NewEvent("a", "src", at, nil),
		NewEvent("bad", "src", at, nil),
		NewEvent("b", "src", at, nil),
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "bad", "b"}, types)
}

func TestFilters(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)

	calls := 0
	_, _ = b.Subscribe("ev", func(Event) error { calls++; return nil })

	reject := func(Event) bool { return false }
	accept := func(Event) bool { return true }

	require.NoError(t, b.PublishWithFilters(NewEvent("ev", "src", at, nil), accept, reject))
	require.NoError(t, b.PublishWithFilters(NewEvent("ev", "src", at, nil), accept))

	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), b.GetMetrics().DroppedByFilters)
}

func TestObserverMetricsOptional(t *testing.T) {
	b := New()
	_, _ = b.Subscribe("e", func(Event) error { return nil })

	require.NoError(t, b.Publish(NewEvent("e", "s", at, nil)))
	assert.Zero(t, b.GetMetrics())

	obs := &testObserver{}
	b.AddObserver(obs)
	require.NoError(t, b.Publish(NewEvent("e", "s", at, nil)))

	m := b.GetMetrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(1), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.SubscribersActive)
	assert.Equal(t, 1, obs.publishCount)
	assert.Equal(t, 1, obs.deliveredCount)

	b.RemoveObserver(obs)
	require.NoError(t, b.Publish(NewEvent("e", "s", at, nil)))
	assert.Equal(t, 1, obs.publishCount)
}

func TestLogObserver(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := New()
	b.AddObserver(NewLogObserver(log.NewFromZap(zap.New(core), log.LevelDebug)))

	_, _ = b.Subscribe("bad", func(Event) error { return errors.New("nope") })
	_ = b.Publish(NewEvent("ok", "s", at, nil))
	_ = b.Publish(NewEvent("bad", "s", at, nil))

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "event delivered", entries[0].Message)
	assert.Equal(t, "event delivery failed", entries[1].Message)
	assert.Equal(t, "bad", entries[1].ContextMap()["type"])
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	b.AddObserver(&testObserver{})

	var mu sync.Mutex
	count := 0
	_, _ = b.Subscribe("ev", func(Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = b.Publish(NewEvent("ev", "src", at, j))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, count)
	assert.Equal(t, uint64(800), b.GetMetrics().Published)
}

func BenchmarkPublish(b *testing.B) {
	bus := New()
	_, _ = bus.Subscribe("ev", func(Event) error { return nil })
	ev := NewEvent("ev", "src", at, nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(ev)
	}
}
