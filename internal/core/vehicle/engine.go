package vehicle

import (
	"errors"
	"math"
	"time"

	"github.com/zeusync/racecore/internal/core/input"
	"github.com/zeusync/racecore/internal/core/observability/log"
	"github.com/zeusync/racecore/internal/core/systems/physics"
)

// ErrNonFinite is returned when integration produced NaN or Inf. The state
// returned alongside it is the unchanged input state.
var ErrNonFinite = errors.New("vehicle integration produced a non-finite state")

// Engine integrates vehicle state one tick at a time. Tick holds no hidden
// state: identical arguments and surface answers give identical results.
type Engine struct {
	params Params
	spawn  Pose
	logger log.Log
}

func NewEngine(params Params, spawn Pose, logger log.Log) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		params: params,
		spawn:  spawn,
		logger: logger.Named("vehicle"),
	}, nil
}

func (e *Engine) Params() Params { return e.params }

func (e *Engine) Spawn() Pose { return e.spawn }

// Tick advances s by dt seconds. now is wall-clock time and only drives the
// probe throttle. A nil surface behaves like one with no geometry.
func (e *Engine) Tick(s State, in input.Snapshot, dt float64, now time.Time, surface physics.Surface) (State, error) {
	if !physics.IsFinite(dt) {
		return s, ErrNonFinite
	}
	if dt <= 0 {
		return s, nil
	}
	p := e.params

	startSpeed := math.Abs(s.Velocity)
	next := s
	next.Velocity = e.longitudinal(s.Velocity, in, dt)
	next.SteeringAngle, next.SteeringInput = e.lateral(s.SteeringAngle, s.SteeringInput, startSpeed, in, dt)

	speedFactor := math.Min(startSpeed/p.TractionSpeed, 1)
	next.Yaw = s.Yaw + next.SteeringAngle*speedFactor*physics.Sign(next.Velocity)*dt

	forward := physics.Forward(next.Yaw)
	cx := s.Position.X + forward.X*next.Velocity*dt
	cz := s.Position.Z + forward.Z*next.Velocity*dt

	e.translate(&next, s.Position, forward, cx, cz, now, surface)

	if !next.Valid() {
		e.logger.Debug("tick discarded",
			log.Float64("velocity", next.Velocity),
			log.Float64("yaw", next.Yaw))
		return s, ErrNonFinite
	}
	return next, nil
}

func (e *Engine) longitudinal(v float64, in input.Snapshot, dt float64) float64 {
	p := e.params
	if in.Accelerate {
		if v >= 0 {
			power := 1 - (v/p.MaxSpeed)*p.PowerFalloff
			v = math.Min(v+p.Acceleration*power*dt, p.MaxSpeed)
		} else {
			// leaving reverse; may reach zero but not overshoot
			v = math.Min(v+p.Acceleration*dt, 0)
		}
	}
	if in.Brake {
		if v > p.ReverseEngageSpeed {
			v = math.Max(v-p.BrakeForce*dt, 0)
		} else {
			v = math.Max(v-p.ReverseAcceleration*dt, p.MaxReverseSpeed)
		}
	}
	if !in.Accelerate && !in.Brake {
		v *= p.Friction
		if math.Abs(v) < p.StopThreshold {
			v = 0
		}
	}
	return v
}

func (e *Engine) lateral(angle, wheel, speed float64, in input.Snapshot, dt float64) (float64, float64) {
	p := e.params
	reduction := 1 - (speed/p.MaxSpeed)*p.SteeringFalloff

	switch {
	case in.Left && speed > p.SteerMinSpeed:
		angle += p.SteeringSpeed * reduction * dt
		wheel = math.Min(wheel+dt*p.SteeringInputRate, 1)
	case in.Right && speed > p.SteerMinSpeed:
		angle -= p.SteeringSpeed * reduction * dt
		wheel = math.Max(wheel-dt*p.SteeringInputRate, -1)
	default:
		angle *= p.SteeringDecay
		wheel *= p.SteeringInputDecay
	}
	return physics.Clamp(angle, -p.MaxSteering, p.MaxSteering), wheel
}

// translate resolves the candidate move against the surface and writes the
// committed position (if any) and collision drag into next.
func (e *Engine) translate(next *State, pos, forward physics.Vec3, cx, cz float64, now time.Time, surface physics.Surface) {
	p := e.params
	speed := math.Abs(next.Velocity)

	if pos.PlanarDistance(e.spawn.Position) < p.SpawnGuardRadius && speed < p.SpawnGuardSpeed {
		// The car spawns inside track geometry; queries here would report it.
		next.Position = physics.V3(cx, e.spawn.Position.Y, cz)
		return
	}

	if speed <= p.CollisionMinSpeed {
		if g := e.groundAt(surface, cx, cz); g.OnSurface {
			next.Position = physics.V3(cx, g.Height, cz)
		}
		return
	}

	probing := next.LastProbeAt.IsZero() || now.Sub(next.LastProbeAt) >= p.ProbeInterval
	if probing {
		next.LastProbeAt = now
	}
	travel := forward.Scale(physics.Sign(next.Velocity))

	origin := pos.Add(physics.V3(0, p.ProbeHeight, 0))
	if probing && e.obstacle(surface, origin, travel, p.ProbeDistance) {
		next.Velocity = 0
		return
	}

	g := e.groundAt(surface, cx, cz)
	if !g.OnSurface {
		next.Velocity *= p.OffTrackDrag
		return
	}

	if speed > p.LookaheadSpeed && probing {
		ahead := physics.V3(cx, g.Height+p.ProbeHeight, cz)
		if e.obstacle(surface, ahead, travel, p.LookaheadDistance) {
			next.Velocity *= p.LookaheadDrag
			return
		}
	}
	next.Position = physics.V3(cx, g.Height, cz)
}

func (e *Engine) obstacle(surface physics.Surface, origin, dir physics.Vec3, maxDistance float64) bool {
	if surface == nil {
		return false
	}
	probe, err := surface.ProbeObstacle(origin, dir, maxDistance)
	if err != nil {
		if !errors.Is(err, physics.ErrNoGeometry) {
			e.logger.Debug("obstacle probe failed", log.Error(err))
		}
		return false
	}
	return probe.Hit && probe.Distance < maxDistance
}

// groundAt falls back to permissive ground at spawn height when the surface
// cannot answer.
func (e *Engine) groundAt(surface physics.Surface, x, z float64) physics.Ground {
	permissive := physics.Ground{OnSurface: true, Height: e.spawn.Position.Y}
	if surface == nil {
		return permissive
	}
	g, err := surface.GroundAt(x, z)
	if err != nil {
		if !errors.Is(err, physics.ErrNoGeometry) {
			e.logger.Debug("ground query failed", log.Error(err))
		}
		return permissive
	}
	if g.OnSurface && !physics.IsFinite(g.Height) {
		return permissive
	}
	return g
}
