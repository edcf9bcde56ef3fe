package session

import (
	"sync"
	"time"
)

// Clock supplies the wall-clock time used for race timing and the probe
// throttle.
type Clock interface {
	Now() time.Time
}

type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// StepClock only moves when advanced. The session advances it by each
// tick's delta, which makes a run reproducible from its inputs.
type StepClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStepClock(start time.Time) *StepClock {
	return &StepClock{now: start}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *StepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stepper is implemented by clocks that follow simulated time.
type stepper interface {
	Advance(d time.Duration)
}

func seconds(dt float64) time.Duration {
	return time.Duration(dt * float64(time.Second))
}
