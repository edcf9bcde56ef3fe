package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/racecore/internal/core/events/bus"
	"github.com/zeusync/racecore/internal/core/input"
	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/race"
	"github.com/zeusync/racecore/internal/core/systems"
	"github.com/zeusync/racecore/internal/core/systems/physics"
	"github.com/zeusync/racecore/internal/core/track"
	"github.com/zeusync/racecore/internal/core/vehicle"
)

var (
	ErrInvalidDelta  = errors.New("tick delta out of range")
	ErrInvalidConfig = errors.New("invalid session configuration")
)

// MaxDelta is the longest tick the session accepts, in seconds. Anything
// longer is a stalled frame, not a simulation step.
const MaxDelta = 1.0

const (
	systemDynamics = "dynamics"
	systemProgress = "progress"
)

// Config holds session settings.
type Config struct {
	// StartDelay is the countdown between (re)start and the green light.
	// The car is held still until it elapses.
	StartDelay time.Duration
	Clock      Clock
}

func DefaultConfig() Config {
	return Config{
		StartDelay: 500 * time.Millisecond,
		Clock:      WallClock{},
	}
}

// ValidateDelta reports whether dt can be used as a tick delta.
func ValidateDelta(dt float64) error {
	if !physics.IsFinite(dt) || dt < 0 || dt > MaxDelta {
		return fmt.Errorf("%w: %v", ErrInvalidDelta, dt)
	}
	return nil
}

func (c Config) Validate() error {
	if c.StartDelay < 0 {
		return fmt.Errorf("%w: negative start delay", ErrInvalidConfig)
	}
	if c.Clock == nil {
		return fmt.Errorf("%w: clock is required", ErrInvalidConfig)
	}
	return nil
}

// Session runs one race on one track: each Tick steps the vehicle and then
// feeds its new position to the progress tracker. All methods are safe for
// concurrent use; ticks are serialized.
type Session struct {
	mu sync.RWMutex

	id      uuid.UUID
	config  Config
	track   *track.Track
	surface *physics.LazySurface
	engine  *vehicle.Engine
	tracker *race.Tracker
	sched   *systems.Scheduler
	bus     bus.EventBus
	logger  log.Log

	vehicle  vehicle.State
	progress race.Progress
	startAt  time.Time
	now      time.Time
	ticks    uint64

	// per-tick scratch, guarded by mu
	dt      float64
	in      input.Snapshot
	pending []bus.Event
}

// New creates a session on tr. Events are published to eventBus, which
// may be nil.
func New(config Config, tr *track.Track, eventBus bus.EventBus, logger log.Log) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.NewNop()
	}

	id := uuid.New()
	logger = logger.Named("session").With(log.String("session_id", id.String()), log.String("track", tr.Name()))

	engine, err := vehicle.NewEngine(tr.VehicleParams(), tr.SpawnPose(), logger)
	if err != nil {
		return nil, fmt.Errorf("vehicle engine: %w", err)
	}
	tracker, err := race.NewTracker(tr.RaceConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("race tracker: %w", err)
	}

	s := &Session{
		id:      id,
		config:  config,
		track:   tr,
		surface: &physics.LazySurface{},
		engine:  engine,
		tracker: tracker,
		bus:     eventBus,
		logger:  logger,
	}

	s.sched, err = systems.NewScheduler(
		systems.Func{SystemName: systemDynamics, SystemPriority: systems.PriorityHighest, Fn: s.updateDynamics},
		systems.Func{SystemName: systemProgress, SystemPriority: systems.PriorityHigh, Fn: s.updateProgress},
	)
	if err != nil {
		return nil, err
	}

	s.surface.Set(tr.Surface())
	s.reset(config.Clock.Now())
	logger.Info("session created", log.Duration("start_delay", config.StartDelay))
	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Track() *track.Track { return s.track }

// SetSurface swaps the collision surface the car drives on. Nil removes
// all geometry: ground is flat at spawn height and nothing blocks the car.
func (s *Session) SetSurface(surface physics.Surface) {
	s.surface.Set(surface)
	s.logger.Info("surface changed", log.Bool("geometry", surface != nil))
}

// Tick advances the simulation by dt seconds with the keys in held.
// A dynamics tick that produces a non-finite state is discarded and
// reported as a vehicle.rejected event; it does not fail the tick.
func (s *Session) Tick(dt float64, held input.Snapshot) error {
	if err := ValidateDelta(dt); err != nil {
		return err
	}

	s.mu.Lock()
	if c, ok := s.config.Clock.(stepper); ok {
		c.Advance(seconds(dt))
	}
	s.now = s.config.Clock.Now()
	s.ticks++
	s.dt, s.in = dt, held

	s.maybeStart()
	err := s.sched.Update(dt, s.now)
	events := s.drain()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	return s.publish(events)
}

// ResetVehicle puts the car back on the spawn pose at rest. Race progress
// is untouched.
func (s *Session) ResetVehicle() error {
	s.mu.Lock()
	s.vehicle = vehicle.NewState(s.engine.Spawn())
	s.queue(bus.NewEvent(EventVehicleReset, sourceVehicle, s.now, VehicleReset{
		Position: s.vehicle.Position,
		Yaw:      s.vehicle.Yaw,
	}))
	events := s.drain()
	s.mu.Unlock()

	s.logger.Info("vehicle reset")
	return s.publish(events)
}

// Restart discards progress and begins a new countdown.
func (s *Session) Restart() {
	s.mu.Lock()
	s.reset(s.config.Clock.Now())
	s.mu.Unlock()
	s.logger.Info("race restarted")
}

func (s *Session) reset(now time.Time) {
	s.vehicle = vehicle.NewState(s.engine.Spawn())
	s.progress = s.tracker.NewProgress()
	s.now = now
	s.startAt = now.Add(s.config.StartDelay)
	s.pending = nil
}

func (s *Session) maybeStart() {
	if s.progress.Started || s.now.Before(s.startAt) {
		return
	}
	s.progress = s.tracker.Start(s.progress, s.now)
	s.queue(bus.NewEvent(EventRaceStarted, sourceSession, s.now, RaceStarted{
		At:        s.now,
		LapsTotal: s.tracker.Config().LapsTotal,
	}))
	s.logger.Info("race started", log.Int("laps", s.tracker.Config().LapsTotal))
}

func (s *Session) updateDynamics(dt float64, now time.Time) error {
	if !s.progress.Started {
		s.vehicle.Velocity = 0
		return nil
	}

	next, err := s.engine.Tick(s.vehicle, s.in, dt, now, s.surface)
	if errors.Is(err, vehicle.ErrNonFinite) {
		s.logger.Warn("vehicle tick rejected", log.Uint64("tick", s.ticks), log.Error(err))
		s.queue(bus.NewEvent(EventTickRejected, sourceVehicle, now, TickRejected{Tick: s.ticks, Reason: err.Error()}))
		return nil
	}
	if err != nil {
		return err
	}
	s.vehicle = next
	return nil
}

func (s *Session) updateProgress(_ float64, now time.Time) error {
	next, events := s.tracker.OnTick(s.progress, s.vehicle.Position, s.vehicle.SpeedKmh(), now)
	s.progress = next
	for _, e := range events {
		s.queue(raceEvent(e, now))
		s.logEvent(e)
	}
	return nil
}

func (s *Session) logEvent(e race.Event) {
	switch ev := e.(type) {
	case race.LapCompleted:
		s.logger.Info("lap completed",
			log.Int("lap", ev.Lap),
			log.Duration("duration", ev.Duration),
			log.Bool("best", ev.Best))
	case race.RaceFinished:
		s.logger.Info("race finished",
			log.Duration("total", ev.Total),
			log.Duration("best_lap", ev.BestLap))
	default:
		s.logger.Debug(e.String())
	}
}

func (s *Session) queue(e bus.Event) {
	s.pending = append(s.pending, e)
}

func (s *Session) drain() []bus.Event {
	events := s.pending
	s.pending = nil
	return events
}

// publish runs outside the lock so handlers may read the session.
func (s *Session) publish(events []bus.Event) error {
	if s.bus == nil || len(events) == 0 {
		return nil
	}
	return s.bus.PublishBatch(events...)
}

// Vehicle returns a copy of the current vehicle state.
func (s *Session) Vehicle() vehicle.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehicle
}

// Progress returns a copy of the current race progress.
func (s *Session) Progress() race.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

func (s *Session) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress.Finished
}

// Now is the session time of the last tick.
func (s *Session) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// SystemMetrics returns execution metrics for "dynamics" or "progress".
func (s *Session) SystemMetrics(name string) (systems.Metrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sched.Metrics(name)
}
