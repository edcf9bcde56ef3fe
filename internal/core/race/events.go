package race

import (
	"fmt"
	"time"
)

// EventKind names a race event. The values double as event-bus types.
type EventKind string

const (
	KindCheckpointReached EventKind = "race.checkpoint"
	KindLapCompleted      EventKind = "race.lap"
	KindRaceFinished      EventKind = "race.finished"
)

// Event is emitted by Tracker.OnTick.
type Event interface {
	Kind() EventKind
	fmt.Stringer
}

// CheckpointReached reports that checkpoint Index was entered in order.
type CheckpointReached struct {
	Index int
	Lap   int
}

func (CheckpointReached) Kind() EventKind { return KindCheckpointReached }

func (e CheckpointReached) String() string {
	return fmt.Sprintf("checkpoint %d (lap %d)", e.Index, e.Lap)
}

// LapCompleted reports a validated lap.
type LapCompleted struct {
	Lap      int
	Duration time.Duration
	Best     bool
}

func (LapCompleted) Kind() EventKind { return KindLapCompleted }

func (e LapCompleted) String() string {
	return fmt.Sprintf("lap %d in %s", e.Lap, e.Duration)
}

// RaceFinished is emitted once, together with the final LapCompleted.
type RaceFinished struct {
	Total   time.Duration
	BestLap time.Duration
	Laps    int
}

func (RaceFinished) Kind() EventKind { return KindRaceFinished }

func (e RaceFinished) String() string {
	return fmt.Sprintf("finished %d laps in %s (best %s)", e.Laps, e.Total, e.BestLap)
}
