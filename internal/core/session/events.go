package session

import (
	"fmt"
	"time"

	"github.com/zeusync/racecore/internal/core/events/bus"
	"github.com/zeusync/racecore/internal/core/race"
	"github.com/zeusync/racecore/internal/core/systems/physics"
)

// Event types published on the bus. Tracker events use their race.EventKind.
const (
	EventRaceStarted  = "race.started"
	EventVehicleReset = "vehicle.reset"
	EventTickRejected = "vehicle.rejected"

	EventCheckpointReached = string(race.KindCheckpointReached)
	EventLapCompleted      = string(race.KindLapCompleted)
	EventRaceFinished      = string(race.KindRaceFinished)
)

const (
	sourceSession = "session"
	sourceVehicle = "vehicle"
	sourceTracker = "tracker"
)

type RaceStarted struct {
	At        time.Time
	LapsTotal int
}

func (e RaceStarted) String() string {
	return fmt.Sprintf("race started, %d laps", e.LapsTotal)
}

type VehicleReset struct {
	Position physics.Vec3
	Yaw      float64
}

func (e VehicleReset) String() string {
	return fmt.Sprintf("vehicle reset to (%.1f, %.1f)", e.Position.X, e.Position.Z)
}

// TickRejected reports a dynamics tick that produced a non-finite state.
type TickRejected struct {
	Tick   uint64 `json:"tick"`
	Reason string `json:"reason"`
}

func (e TickRejected) String() string {
	return fmt.Sprintf("tick %d rejected: %s", e.Tick, e.Reason)
}

func raceEvent(e race.Event, at time.Time) bus.Event {
	return bus.NewEvent(string(e.Kind()), sourceTracker, at, e)
}
