package race

import (
	"slices"
	"time"
)

// Stage is the coarse race state.
type Stage uint8

const (
	StageNotStarted Stage = iota
	StageRacing
	StageFinished
)

func (s Stage) String() string {
	switch s {
	case StageNotStarted:
		return "not_started"
	case StageRacing:
		return "racing"
	case StageFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Progress is the tracker-owned race state. OnTick returns a new value and
// never mutates the one passed in, including the Laps slice.
type Progress struct {
	NextCheckpoint   int
	HasLeftStartArea bool
	CurrentLap       int

	Started       bool
	RaceStartedAt time.Time
	LapStartedAt  time.Time
	LastTriggerAt time.Time

	// LastLap and BestLap are zero until the first lap is validated.
	LastLap time.Duration
	BestLap time.Duration
	Laps    []time.Duration

	Finished   bool
	FinishedAt time.Time
}

func (p Progress) Stage() Stage {
	switch {
	case p.Finished:
		return StageFinished
	case p.Started:
		return StageRacing
	default:
		return StageNotStarted
	}
}

// RaceElapsed is the time since the start, frozen at the finish.
func (p Progress) RaceElapsed(now time.Time) time.Duration {
	if !p.Started {
		return 0
	}
	if p.Finished {
		return p.FinishedAt.Sub(p.RaceStartedAt)
	}
	return now.Sub(p.RaceStartedAt)
}

// LapElapsed is the running time of the current lap, frozen at the finish.
func (p Progress) LapElapsed(now time.Time) time.Duration {
	if !p.Started {
		return 0
	}
	if p.Finished {
		return p.FinishedAt.Sub(p.LapStartedAt)
	}
	return now.Sub(p.LapStartedAt)
}

func (p Progress) withLap(d time.Duration) Progress {
	p.Laps = append(slices.Clip(p.Laps), d)
	return p
}
