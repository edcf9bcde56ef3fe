package vehicle

import (
	"math"
	"time"

	"github.com/zeusync/racecore/internal/core/systems/physics"
)

const (
	gearSpan = 45.0
	maxGear  = 8
)

// State is the vehicle's kinematic state. It is owned by the dynamics
// engine and replaced wholesale on every tick.
type State struct {
	Position      physics.Vec3
	Yaw           float64
	Velocity      float64
	SteeringAngle float64

	// SteeringInput is the smoothed wheel position in [-1, 1]. Display only.
	SteeringInput float64

	// LastProbeAt gates obstacle probing to one round per probe interval.
	LastProbeAt time.Time
}

// NewState places a stationary car at the spawn pose.
func NewState(spawn Pose) State {
	return State{Position: spawn.Position, Yaw: spawn.Yaw}
}

// SpeedKmh is the unsigned speed in km/h.
func (s State) SpeedKmh() float64 { return math.Abs(s.Velocity) * KmhPerMs }

// Gear is the cosmetic gear indicator derived from speed, 1 through 8.
func (s State) Gear() int {
	g := int(math.Floor(s.SpeedKmh()/gearSpan)) + 1
	if g < 1 {
		return 1
	}
	if g > maxGear {
		return maxGear
	}
	return g
}

// Valid reports whether every numeric field is finite.
func (s State) Valid() bool {
	return s.Position.IsFinite() &&
		physics.IsFinite(s.Yaw) &&
		physics.IsFinite(s.Velocity) &&
		physics.IsFinite(s.SteeringAngle) &&
		physics.IsFinite(s.SteeringInput)
}
