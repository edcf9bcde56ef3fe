package session

import (
	"math"

	"github.com/zeusync/racecore/internal/core/input"
	"github.com/zeusync/racecore/internal/core/systems/physics"
	"github.com/zeusync/racecore/internal/core/track"
	"github.com/zeusync/racecore/internal/core/vehicle"
)

const (
	pilotLookahead = 15.0
	pilotGain      = 2.0
	pilotBand      = 0.05
)

// Pilot drives the car along the road centerline for headless runs. It
// produces the same key snapshots a player would.
type Pilot struct {
	points      []physics.Vec3
	closed      bool
	target      int
	cruise      float64
	maxSteering float64
}

// NewPilot follows tr's road at cruise m/s.
func NewPilot(tr *track.Track, cruise float64) *Pilot {
	road := tr.Definition().Geometry.Road
	pts := make([]physics.Vec3, len(road.Points))
	for i, p := range road.Points {
		pts[i] = physics.V3(p.X, p.Y, p.Z)
	}
	return &Pilot{
		points:      pts,
		closed:      road.Closed,
		cruise:      cruise,
		maxSteering: tr.VehicleParams().MaxSteering,
	}
}

// Input picks keys for the car in state v.
func (p *Pilot) Input(v vehicle.State) input.Snapshot {
	if len(p.points) == 0 {
		return input.Snapshot{}
	}
	for i := 0; i < len(p.points) && p.target < len(p.points); i++ {
		if v.Position.PlanarDistance(p.points[p.target]) >= pilotLookahead {
			break
		}
		p.target++
		if p.closed {
			p.target %= len(p.points)
		}
	}
	if p.target >= len(p.points) {
		return input.Snapshot{Brake: v.Velocity > 0}
	}

	aim := p.points[p.target]
	heading := math.Atan2(aim.X-v.Position.X, aim.Z-v.Position.Z)
	want := physics.Clamp(wrapAngle(heading-v.Yaw)*pilotGain, -p.maxSteering, p.maxSteering)

	return input.Snapshot{
		Accelerate: v.Velocity < p.cruise,
		Brake:      v.Velocity > p.cruise*1.25,
		Left:       v.SteeringAngle < want-pilotBand,
		Right:      v.SteeringAngle > want+pilotBand,
	}
}

func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
