package race

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/systems/physics"
)

var (
	ErrTooFewCheckpoints = errors.New("race needs a start/finish and at least one checkpoint")
	ErrInvalidConfig     = errors.New("invalid race configuration")
)

// Checkpoint is a zone on the XZ plane. Index 0 of a course is the
// start/finish line. Radius is informational; detection uses
// Config.DetectionRadius.
type Checkpoint struct {
	X      float64 `yaml:"x"`
	Z      float64 `yaml:"z"`
	Radius float64 `yaml:"radius"`
}

// Config holds the course and the rule constants.
type Config struct {
	Checkpoints []Checkpoint
	Spawn       physics.Vec3
	LapsTotal   int

	DetectionRadius      float64
	SpawnExclusionRadius float64

	// MinSpeedKmh: cars at or below this speed never trigger checkpoints.
	MinSpeedKmh float64
	Debounce    time.Duration
	MinLapTime  time.Duration
}

// DefaultConfig fills the rule constants around a course.
func DefaultConfig(spawn physics.Vec3, checkpoints []Checkpoint) Config {
	return Config{
		Checkpoints:          checkpoints,
		Spawn:                spawn,
		LapsTotal:            2,
		DetectionRadius:      15,
		SpawnExclusionRadius: 5,
		MinSpeedKmh:          1,
		Debounce:             time.Second,
		MinLapTime:           10 * time.Second,
	}
}

func (c Config) Validate() error {
	if len(c.Checkpoints) < 2 {
		return ErrTooFewCheckpoints
	}
	if c.LapsTotal < 1 {
		return fmt.Errorf("%w: laps must be at least 1, got %d", ErrInvalidConfig, c.LapsTotal)
	}
	if c.DetectionRadius <= 0 {
		return fmt.Errorf("%w: detection radius must be positive", ErrInvalidConfig)
	}
	if c.SpawnExclusionRadius < 0 || c.Debounce < 0 || c.MinLapTime < 0 {
		return fmt.Errorf("%w: negative exclusion radius, debounce or minimum lap time", ErrInvalidConfig)
	}
	return nil
}

// Tracker applies the checkpoint rules. It holds configuration only; all
// race state lives in Progress.
type Tracker struct {
	cfg    Config
	logger log.Log
}

func NewTracker(cfg Config, logger log.Log) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	cfg.Checkpoints = append([]Checkpoint(nil), cfg.Checkpoints...)
	return &Tracker{cfg: cfg, logger: logger.Named("race")}, nil
}

func (t *Tracker) Config() Config { return t.cfg }

// NewProgress returns a not-yet-started race. Checkpoint 0 is the line the
// car is parked on, so the first target is checkpoint 1.
func (t *Tracker) NewProgress() Progress {
	return Progress{NextCheckpoint: 1, CurrentLap: 1}
}

// Start begins the race clock. Starting a started race is a no-op.
func (t *Tracker) Start(p Progress, now time.Time) Progress {
	if p.Started {
		return p
	}
	p.Started = true
	p.RaceStartedAt = now
	p.LapStartedAt = now
	return p
}

// OnTick feeds the car's new position and speed (km/h) into the rules.
func (t *Tracker) OnTick(p Progress, pos physics.Vec3, speedKmh float64, now time.Time) (Progress, []Event) {
	c := t.cfg
	if p.Finished || !p.Started {
		return p, nil
	}
	if speedKmh < 0 {
		speedKmh = -speedKmh
	}
	if speedKmh <= c.MinSpeedKmh {
		return p, nil
	}

	fromSpawn := physics.Distance2(pos.X, pos.Z, c.Spawn.X, c.Spawn.Z)
	if fromSpawn <= c.SpawnExclusionRadius {
		return p, nil
	}
	if !p.LastTriggerAt.IsZero() && now.Sub(p.LastTriggerAt) < c.Debounce {
		return p, nil
	}

	if !p.HasLeftStartArea {
		if fromSpawn > 2*c.DetectionRadius {
			p.HasLeftStartArea = true
			t.logger.Debug("left start area", log.Int("lap", p.CurrentLap))
		}
		return p, nil
	}

	target := c.Checkpoints[p.NextCheckpoint]
	if physics.Distance2(pos.X, pos.Z, target.X, target.Z) > c.DetectionRadius {
		return p, nil
	}

	if p.NextCheckpoint != 0 {
		reached := p.NextCheckpoint
		p.LastTriggerAt = now
		p.NextCheckpoint = (p.NextCheckpoint + 1) % len(c.Checkpoints)
		return p, []Event{CheckpointReached{Index: reached, Lap: p.CurrentLap}}
	}

	return t.completeLap(p, now)
}

func (t *Tracker) completeLap(p Progress, now time.Time) (Progress, []Event) {
	lap := now.Sub(p.LapStartedAt)
	if lap <= t.cfg.MinLapTime {
		t.logger.Debug("lap below minimum time dropped",
			log.Int("lap", p.CurrentLap),
			log.Duration("duration", lap))
		return p, nil
	}

	p.LastTriggerAt = now
	p.LastLap = lap
	best := p.BestLap == 0 || lap < p.BestLap
	if best {
		p.BestLap = lap
	}
	p = p.withLap(lap)

	events := make([]Event, 0, 2)
	events = append(events, LapCompleted{Lap: p.CurrentLap, Duration: lap, Best: best})

	if p.CurrentLap >= t.cfg.LapsTotal {
		p.Finished = true
		p.FinishedAt = now
		events = append(events, RaceFinished{
			Total:   now.Sub(p.RaceStartedAt),
			BestLap: p.BestLap,
			Laps:    len(p.Laps),
		})
	} else {
		p.CurrentLap++
		p.LapStartedAt = now
	}

	p.NextCheckpoint = 1
	p.HasLeftStartArea = false
	return p, events
}
