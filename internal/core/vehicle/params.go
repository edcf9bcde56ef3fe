package vehicle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zeusync/racecore/internal/core/systems/physics"
)

// KmhPerMs converts m/s to km/h.
const KmhPerMs = 3.6

// Params tunes the dynamics model. Speeds are m/s, angles radians.
// Friction and the decay factors are applied once per tick, not per second.
type Params struct {
	MaxSpeed            float64 `yaml:"max_speed"`
	MaxReverseSpeed     float64 `yaml:"max_reverse_speed"`
	Acceleration        float64 `yaml:"acceleration"`
	BrakeForce          float64 `yaml:"brake_force"`
	ReverseAcceleration float64 `yaml:"reverse_acceleration"`

	// PowerFalloff is the fraction of acceleration lost at MaxSpeed.
	PowerFalloff float64 `yaml:"power_falloff"`

	// StopThreshold snaps coasting speed to zero.
	Friction      float64 `yaml:"friction"`
	StopThreshold float64 `yaml:"stop_threshold"`

	// ReverseEngageSpeed is the speed below which brake becomes reverse.
	ReverseEngageSpeed float64 `yaml:"reverse_engage_speed"`

	SteeringSpeed      float64 `yaml:"steering_speed"`
	MaxSteering        float64 `yaml:"max_steering"`
	SteeringFalloff    float64 `yaml:"steering_falloff"`
	SteerMinSpeed      float64 `yaml:"steer_min_speed"`
	TractionSpeed      float64 `yaml:"traction_speed"`
	SteeringDecay      float64 `yaml:"steering_decay"`
	SteeringInputRate  float64 `yaml:"steering_input_rate"`
	SteeringInputDecay float64 `yaml:"steering_input_decay"`

	CollisionMinSpeed float64       `yaml:"collision_min_speed"`
	LookaheadSpeed    float64       `yaml:"lookahead_speed"`
	ProbeDistance     float64       `yaml:"probe_distance"`
	LookaheadDistance float64       `yaml:"lookahead_distance"`
	ProbeHeight       float64       `yaml:"probe_height"`
	ProbeInterval     time.Duration `yaml:"probe_interval"`
	OffTrackDrag      float64       `yaml:"off_track_drag"`
	LookaheadDrag     float64       `yaml:"lookahead_drag"`

	SpawnGuardRadius float64 `yaml:"spawn_guard_radius"`
	SpawnGuardSpeed  float64 `yaml:"spawn_guard_speed"`
}

var ErrInvalidParams = errors.New("invalid vehicle parameters")

// DefaultParams returns the open-wheel car tuning.
func DefaultParams() Params {
	return Params{
		MaxSpeed:            350 / KmhPerMs,
		MaxReverseSpeed:     -30 / KmhPerMs,
		Acceleration:        45,
		BrakeForce:          70,
		ReverseAcceleration: 20,
		PowerFalloff:        0.4,
		Friction:            0.98,
		StopThreshold:       0.3,
		ReverseEngageSpeed:  0.5,

		SteeringSpeed:      4.8,
		MaxSteering:        0.8,
		SteeringFalloff:    0.15,
		SteerMinSpeed:      0.3,
		TractionSpeed:      12,
		SteeringDecay:      0.9,
		SteeringInputRate:  6,
		SteeringInputDecay: 0.85,

		CollisionMinSpeed: 0.5,
		LookaheadSpeed:    5,
		ProbeDistance:     2.5,
		LookaheadDistance: 1.8,
		ProbeHeight:       0.3,
		ProbeInterval:     100 * time.Millisecond,
		OffTrackDrag:      0.9,
		LookaheadDrag:     0.6,

		SpawnGuardRadius: 3,
		SpawnGuardSpeed:  2,
	}
}

// Validate checks the relationships the integrator relies on.
func (p Params) Validate() error {
	fields := map[string]float64{
		"max_speed":            p.MaxSpeed,
		"acceleration":         p.Acceleration,
		"brake_force":          p.BrakeForce,
		"reverse_acceleration": p.ReverseAcceleration,
		"steering_speed":       p.SteeringSpeed,
		"max_steering":         p.MaxSteering,
		"traction_speed":       p.TractionSpeed,
		"probe_distance":       p.ProbeDistance,
		"lookahead_distance":   p.LookaheadDistance,
	}
	for name, v := range fields {
		if !physics.IsFinite(v) || v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidParams, name, v)
		}
	}
	if !physics.IsFinite(p.MaxReverseSpeed) || p.MaxReverseSpeed > 0 {
		return fmt.Errorf("%w: max_reverse_speed must be <= 0, got %v", ErrInvalidParams, p.MaxReverseSpeed)
	}
	for name, v := range map[string]float64{
		"friction":             p.Friction,
		"steering_decay":       p.SteeringDecay,
		"steering_input_decay": p.SteeringInputDecay,
		"off_track_drag":       p.OffTrackDrag,
		"lookahead_drag":       p.LookaheadDrag,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidParams, name, v)
		}
	}
	if p.PowerFalloff < 0 || p.PowerFalloff >= 1 {
		return fmt.Errorf("%w: power_falloff must be within [0,1), got %v", ErrInvalidParams, p.PowerFalloff)
	}
	if p.ProbeInterval < 0 {
		return fmt.Errorf("%w: probe_interval must not be negative", ErrInvalidParams)
	}
	return nil
}

// Pose is a spawn position and heading.
type Pose struct {
	Position physics.Vec3
	Yaw      float64
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }
