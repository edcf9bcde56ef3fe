package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForward(t *testing.T) {
	f := Forward(0)
	assert.InDelta(t, 0, f.X, 1e-12)
	assert.InDelta(t, 1, f.Z, 1e-12)

	f = Forward(math.Pi / 2)
	assert.InDelta(t, 1, f.X, 1e-12)
	assert.InDelta(t, 0, f.Z, 1e-12)
	assert.InDelta(t, 1, f.Len(), 1e-12)
}

func TestVecHelpers(t *testing.T) {
	a := V3(1, 5, 1)
	b := V3(4, -3, 5)
	assert.InDelta(t, 5, a.PlanarDistance(b), 1e-12)
	assert.Equal(t, V3(5, 2, 6), a.Add(b))
	assert.Equal(t, V3(3, -8, 4), b.Sub(a))
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	assert.False(t, V3(math.NaN(), 0, 0).IsFinite())
	assert.False(t, V3(0, math.Inf(1), 0).IsFinite())
	assert.True(t, a.IsFinite())
	assert.Equal(t, -1.0, Sign(-0.1))
	assert.Equal(t, 1.0, Sign(0))
	assert.Equal(t, 2.0, Clamp(3, -2, 2))
}

type flatSurface struct{ height float64 }

func (f flatSurface) ProbeObstacle(Vec3, Vec3, float64) (Probe, error) { return Probe{}, nil }
func (f flatSurface) GroundAt(float64, float64) (Ground, error) {
	return Ground{OnSurface: true, Height: f.height}, nil
}

func TestLazySurface(t *testing.T) {
	var l LazySurface
	assert.False(t, l.Ready())

	_, err := l.GroundAt(0, 0)
	require.ErrorIs(t, err, ErrNoGeometry)
	_, err = l.ProbeObstacle(Vec3{}, V3(0, 0, 1), 1)
	require.ErrorIs(t, err, ErrNoGeometry)

	l.Set(flatSurface{height: 2})
	require.True(t, l.Ready())
	g, err := l.GroundAt(10, 10)
	require.NoError(t, err)
	assert.Equal(t, Ground{OnSurface: true, Height: 2}, g)

	l.Set(nil)
	assert.False(t, l.Ready())
}
