package systems

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrDuplicateSystem = errors.New("system already registered")

type entry struct {
	system  System
	metrics Metrics
}

// Scheduler runs systems in descending priority; ties keep registration
// order. It is not safe for concurrent use; callers serialize steps.
type Scheduler struct {
	entries []*entry
	// now is swapped in tests
	now func() time.Time
}

func NewScheduler(systems ...System) (*Scheduler, error) {
	s := &Scheduler{now: time.Now}
	for _, sys := range systems {
		if err := s.Register(sys); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Register(sys System) error {
	for _, e := range s.entries {
		if e.system.Name() == sys.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateSystem, sys.Name())
		}
	}
	s.entries = append(s.entries, &entry{system: sys})
	slices.SortStableFunc(s.entries, func(a, b *entry) int {
		return int(b.system.Priority()) - int(a.system.Priority())
	})
	return nil
}

// Update runs every system once. The first error stops the step and is
// returned wrapped with the system name.
func (s *Scheduler) Update(dt float64, now time.Time) error {
	for _, e := range s.entries {
		start := s.now()
		err := e.system.Update(dt, now)
		e.metrics.record(s.now().Sub(start), start, err)
		if err != nil {
			return fmt.Errorf("%s: %w", e.system.Name(), err)
		}
	}
	return nil
}

// Order returns system names in execution order.
func (s *Scheduler) Order() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.system.Name()
	}
	return names
}

func (s *Scheduler) Metrics(name string) (Metrics, bool) {
	for _, e := range s.entries {
		if e.system.Name() == name {
			return e.metrics, true
		}
	}
	return Metrics{}, false
}
