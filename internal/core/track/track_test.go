package track

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/racecore/internal/core/systems/physics"
	"github.com/zeusync/racecore/internal/core/vehicle"
)

const dragStrip = `
name: Drag Strip
laps: 1
spawn: {x: 0, y: 0.5, z: 5, yaw_deg: 0}
checkpoints:
  - {x: 0, z: 5}
  - {x: 0, z: 95}
geometry:
  ride_height: 0.5
  road:
    width: 10
    points:
      - {x: 0, y: 0, z: 0}
      - {x: 0, y: 0, z: 100}
`

func straightGeometry(t *testing.T) *Geometry {
	t.Helper()
	g, err := BuildGeometry(GeometryDef{
		RideHeight: 0.5,
		Road: Road{Width: 10, Points: []Point{
			{X: 0, Y: 0, Z: 0},
			{X: 0, Y: 10, Z: 100},
		}},
		Walls:    &Walls{Offset: 8, Height: 1},
		Barriers: []Barrier{{From: PlanarPoint{X: -3, Z: 60}, To: PlanarPoint{X: 3, Z: 60}, Height: 1}},
	})
	require.NoError(t, err)
	return g
}

func TestBuiltin(t *testing.T) {
	tr, err := Builtin()
	require.NoError(t, err)

	assert.Equal(t, "Harbour Loop", tr.Name())

	cfg := tr.RaceConfig()
	assert.Equal(t, 2, cfg.LapsTotal)
	assert.Len(t, cfg.Checkpoints, 9)
	assert.Equal(t, 15.0, cfg.DetectionRadius)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, vehicle.DefaultParams(), tr.VehicleParams())

	pose := tr.SpawnPose()
	assert.Equal(t, physics.V3(0, 0.5, -80), pose.Position)
	assert.InDelta(t, math.Pi/2, pose.Yaw, 1e-12)

	again, err := Builtin()
	require.NoError(t, err)
	assert.NotZero(t, tr.Fingerprint())
	assert.Equal(t, tr.Fingerprint(), again.Fingerprint())
}

func TestBuiltinSurface(t *testing.T) {
	tr, err := Builtin()
	require.NoError(t, err)
	s := tr.Surface()

	g, err := s.GroundAt(0, -80)
	require.NoError(t, err)
	assert.True(t, g.OnSurface)
	assert.InDelta(t, 0.5, g.Height, 1e-9)

	g, err = s.GroundAt(0, 0)
	require.NoError(t, err)
	assert.False(t, g.OnSurface, "infield is off the road")

	// Every checkpoint sits on the road.
	for i, cp := range tr.RaceConfig().Checkpoints {
		g, err := s.GroundAt(cp.X, cp.Z)
		require.NoError(t, err)
		assert.True(t, g.OnSurface, "checkpoint %d", i)
	}

	// Outer wall on the main straight, about ten metres out.
	p, err := s.ProbeObstacle(physics.V3(5, 0.8, -79.6), physics.V3(0, 0, -1), 12)
	require.NoError(t, err)
	assert.True(t, p.Hit)
	assert.InDelta(t, 10, p.Distance, 0.5)

	p, err = s.ProbeObstacle(physics.V3(5, 0.8, -79.6), physics.V3(0, 0, -1), 5)
	require.NoError(t, err)
	assert.False(t, p.Hit)

	// Pit wall on the infield side.
	p, err = s.ProbeObstacle(physics.V3(0, 0.8, -75), physics.V3(0, 0, 1), 12)
	require.NoError(t, err)
	assert.True(t, p.Hit)
	assert.InDelta(t, 4.5, p.Distance, 1e-9)
}

func TestGroundAt(t *testing.T) {
	g := straightGeometry(t)

	tests := []struct {
		name   string
		x, z   float64
		on     bool
		height float64
	}{
		{"centerline", 0, 50, true, 5.5},
		{"inside edge", 4, 50, true, 5.5},
		{"beyond edge", 6, 50, false, 0},
		{"start cap", 0, -3, true, 0.5},
		{"far away", 300, 300, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.GroundAt(tt.x, tt.z)
			require.NoError(t, err)
			assert.Equal(t, tt.on, got.OnSurface)
			if tt.on {
				assert.InDelta(t, tt.height, got.Height, 1e-9)
			}
		})
	}
}

func TestProbeObstacle(t *testing.T) {
	g := straightGeometry(t)

	t.Run("side wall", func(t *testing.T) {
		p, err := g.ProbeObstacle(physics.V3(0, 5.3, 50), physics.V3(1, 0, 0), 10)
		require.NoError(t, err)
		assert.True(t, p.Hit)
		assert.InDelta(t, 8, p.Distance, 1e-9)
	})

	t.Run("out of range", func(t *testing.T) {
		p, err := g.ProbeObstacle(physics.V3(0, 5.3, 50), physics.V3(-1, 0, 0), 7.5)
		require.NoError(t, err)
		assert.False(t, p.Hit)
	})

	t.Run("barrier ahead", func(t *testing.T) {
		p, err := g.ProbeObstacle(physics.V3(0, 0.8, 55), physics.V3(0, 0, 1), 10)
		require.NoError(t, err)
		assert.True(t, p.Hit)
		assert.InDelta(t, 5, p.Distance, 1e-9)
	})

	t.Run("above the barrier", func(t *testing.T) {
		p, err := g.ProbeObstacle(physics.V3(0, 1.5, 55), physics.V3(0, 0, 1), 10)
		require.NoError(t, err)
		assert.False(t, p.Hit)
	})

	t.Run("parallel to walls", func(t *testing.T) {
		p, err := g.ProbeObstacle(physics.V3(0, 0.8, 10), physics.V3(0, 0, 1), 20)
		require.NoError(t, err)
		assert.False(t, p.Hit)
	})

	t.Run("vertical direction", func(t *testing.T) {
		p, err := g.ProbeObstacle(physics.V3(0, 0.8, 10), physics.V3(0, -1, 0), 20)
		require.NoError(t, err)
		assert.False(t, p.Hit)
	})
}

func TestEmptyGeometry(t *testing.T) {
	var g Geometry

	_, err := g.GroundAt(0, 0)
	assert.ErrorIs(t, err, physics.ErrNoGeometry)

	_, err = g.ProbeObstacle(physics.Vec3{}, physics.V3(1, 0, 0), 1)
	assert.ErrorIs(t, err, physics.ErrNoGeometry)
}

func TestBuildGeometryValidation(t *testing.T) {
	road := Road{Width: 10, Points: []Point{{}, {Z: 10}}}

	tests := []struct {
		name string
		def  GeometryDef
	}{
		{"zero width", GeometryDef{Road: Road{Points: road.Points}}},
		{"single point", GeometryDef{Road: Road{Width: 10, Points: road.Points[:1]}}},
		{"wall on road", GeometryDef{Road: road, Walls: &Walls{Offset: 4, Height: 1}}},
		{"negative ride height", GeometryDef{Road: road, RideHeight: -1}},
		{"nan point", GeometryDef{Road: Road{Width: 10, Points: []Point{{}, {Z: math.NaN()}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildGeometry(tt.def)
			assert.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	tr, err := Load(strings.NewReader(dragStrip))
	require.NoError(t, err)

	cfg := tr.RaceConfig()
	assert.Equal(t, 1, cfg.LapsTotal)
	assert.Equal(t, 5.0, cfg.SpawnExclusionRadius)
	assert.Equal(t, physics.V3(0, 0.5, 5), cfg.Spawn)
	assert.Equal(t, vehicle.DefaultParams(), tr.VehicleParams())
}

func TestLoadVehicleOverride(t *testing.T) {
	tr, err := Load(strings.NewReader(dragStrip + "vehicle:\n  max_speed: 50\n"))
	require.NoError(t, err)

	want := vehicle.DefaultParams()
	want.MaxSpeed = 50
	assert.Equal(t, want, tr.VehicleParams())

	base, err := Load(strings.NewReader(dragStrip))
	require.NoError(t, err)
	assert.NotEqual(t, base.Fingerprint(), tr.Fingerprint())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", dragStrip + "weather: rain\n"},
		{"spawn off road", strings.Replace(dragStrip, "{x: 0, y: 0.5, z: 5, yaw_deg: 0}", "{x: 20, y: 0.5, z: 5, yaw_deg: 0}", 1)},
		{"missing name", strings.Replace(dragStrip, "name: Drag Strip", "name: \"\"", 1)},
		{"no laps", strings.Replace(dragStrip, "laps: 1", "laps: 0", 1)},
		{"bad vehicle", dragStrip + "vehicle:\n  friction: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/nope.yaml")
	assert.Error(t, err)
}
