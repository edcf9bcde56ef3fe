package physics

import (
	"errors"
	"sync/atomic"
)

// ErrNoGeometry is returned by a Surface that has nothing to query yet,
// e.g. while track assets are still loading. Callers treat it as permissive
// ground.
var ErrNoGeometry = errors.New("surface has no geometry")

// Surface is the collision/height oracle over static track geometry.
// Implementations must be safe for concurrent reads and must not change
// between calls within one tick.
type Surface interface {
	// ProbeObstacle casts from origin along dir (normalized by the callee)
	// and reports the nearest obstacle within maxDistance.
	ProbeObstacle(origin, dir Vec3, maxDistance float64) (Probe, error)
	// GroundAt reports the drivable height at (x, z).
	GroundAt(x, z float64) (Ground, error)
}

// Probe is the result of an obstacle ray.
type Probe struct {
	Hit      bool
	Distance float64
}

// Ground is the result of a height query.
type Ground struct {
	OnSurface bool
	Height    float64
}

// LazySurface forwards to a Surface installed later. Until Set is called
// every query returns ErrNoGeometry.
type LazySurface struct {
	inner atomic.Pointer[surfaceBox]
}

type surfaceBox struct{ s Surface }

var _ Surface = (*LazySurface)(nil)

func (l *LazySurface) Set(s Surface) {
	if s == nil {
		l.inner.Store(nil)
		return
	}
	l.inner.Store(&surfaceBox{s: s})
}

func (l *LazySurface) Ready() bool { return l.inner.Load() != nil }

func (l *LazySurface) ProbeObstacle(origin, dir Vec3, maxDistance float64) (Probe, error) {
	b := l.inner.Load()
	if b == nil {
		return Probe{}, ErrNoGeometry
	}
	return b.s.ProbeObstacle(origin, dir, maxDistance)
}

func (l *LazySurface) GroundAt(x, z float64) (Ground, error) {
	b := l.inner.Load()
	if b == nil {
		return Ground{}, ErrNoGeometry
	}
	return b.s.GroundAt(x, z)
}
