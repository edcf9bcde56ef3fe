package track

import (
	"errors"
	"fmt"
	"math"

	"github.com/zeusync/racecore/internal/core/systems/physics"
)

var ErrInvalidGeometry = errors.New("invalid track geometry")

// Point is a road vertex; Y is the road surface elevation.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// PlanarPoint is a position on the ground plane.
type PlanarPoint struct {
	X float64 `yaml:"x"`
	Z float64 `yaml:"z"`
}

// Road is a centerline polyline swept to a constant width.
type Road struct {
	Width  float64 `yaml:"width"`
	Closed bool    `yaml:"closed"`
	Points []Point `yaml:"points"`
}

// Walls generates barriers parallel to every road segment on both sides.
type Walls struct {
	Offset float64 `yaml:"offset"`
	Height float64 `yaml:"height"`
}

// Barrier is a free-standing wall segment.
type Barrier struct {
	From   PlanarPoint `yaml:"from"`
	To     PlanarPoint `yaml:"to"`
	Base   float64     `yaml:"base"`
	Height float64     `yaml:"height"`
}

type GeometryDef struct {
	RideHeight float64   `yaml:"ride_height"`
	Road       Road      `yaml:"road"`
	Walls      *Walls    `yaml:"walls,omitempty"`
	Barriers   []Barrier `yaml:"barriers,omitempty"`
}

type roadSegment struct {
	a, b physics.Vec3
}

type wallSegment struct {
	ax, az float64
	bx, bz float64
	top    float64
}

// Geometry answers surface queries against a road and its barriers. It is
// immutable once built and safe for concurrent use.
type Geometry struct {
	rideHeight float64
	halfWidth  float64

	road      []roadSegment
	walls     []wallSegment
	roadIndex *quadNode
	wallIndex *quadNode
}

var _ physics.Surface = (*Geometry)(nil)

// BuildGeometry validates def and indexes its segments.
func BuildGeometry(def GeometryDef) (*Geometry, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}

	g := &Geometry{
		rideHeight: def.RideHeight,
		halfWidth:  def.Road.Width / 2,
	}

	pts := def.Road.Points
	for i := 0; i+1 < len(pts); i++ {
		g.road = append(g.road, roadSegment{a: toVec(pts[i]), b: toVec(pts[i+1])})
	}
	if def.Road.Closed && len(pts) > 2 {
		g.road = append(g.road, roadSegment{a: toVec(pts[len(pts)-1]), b: toVec(pts[0])})
	}

	if def.Walls != nil {
		for _, s := range g.road {
			g.walls = append(g.walls, sideWalls(s, def.Walls.Offset, def.Walls.Height)...)
		}
	}
	for _, b := range def.Barriers {
		g.walls = append(g.walls, wallSegment{
			ax: b.From.X, az: b.From.Z,
			bx: b.To.X, bz: b.To.Z,
			top: b.Base + b.Height,
		})
	}

	bounds := g.extent()
	g.roadIndex = newQuadNode(bounds, 0)
	for i, s := range g.road {
		g.roadIndex.insert(i, rectAround(s.a.X, s.a.Z, s.b.X, s.b.Z).grow(g.halfWidth))
	}
	g.wallIndex = newQuadNode(bounds, 0)
	for i, w := range g.walls {
		g.wallIndex.insert(i, rectAround(w.ax, w.az, w.bx, w.bz))
	}
	return g, nil
}

func (def GeometryDef) validate() error {
	if def.Road.Width <= 0 {
		return fmt.Errorf("%w: road width must be positive", ErrInvalidGeometry)
	}
	if len(def.Road.Points) < 2 {
		return fmt.Errorf("%w: road needs at least two points", ErrInvalidGeometry)
	}
	for i, p := range def.Road.Points {
		if !toVec(p).IsFinite() {
			return fmt.Errorf("%w: road point %d is not finite", ErrInvalidGeometry, i)
		}
	}
	if def.Walls != nil && def.Walls.Offset <= def.Road.Width/2 {
		return fmt.Errorf("%w: wall offset %.2f lies on the road", ErrInvalidGeometry, def.Walls.Offset)
	}
	if def.RideHeight < 0 {
		return fmt.Errorf("%w: ride height must not be negative", ErrInvalidGeometry)
	}
	return nil
}

func toVec(p Point) physics.Vec3 { return physics.V3(p.X, p.Y, p.Z) }

func sideWalls(s roadSegment, offset, height float64) []wallSegment {
	d := physics.V3(s.b.X-s.a.X, 0, s.b.Z-s.a.Z).Normalize()
	nx, nz := -d.Z*offset, d.X*offset
	top := (s.a.Y+s.b.Y)/2 + height
	return []wallSegment{
		{ax: s.a.X + nx, az: s.a.Z + nz, bx: s.b.X + nx, bz: s.b.Z + nz, top: top},
		{ax: s.a.X - nx, az: s.a.Z - nz, bx: s.b.X - nx, bz: s.b.Z - nz, top: top},
	}
}

func (g *Geometry) extent() rect {
	r := rect{X0: math.Inf(1), Z0: math.Inf(1), X1: math.Inf(-1), Z1: math.Inf(-1)}
	add := func(x, z float64) {
		r.X0, r.X1 = min(r.X0, x), max(r.X1, x)
		r.Z0, r.Z1 = min(r.Z0, z), max(r.Z1, z)
	}
	for _, s := range g.road {
		add(s.a.X, s.a.Z)
		add(s.b.X, s.b.Z)
	}
	for _, w := range g.walls {
		add(w.ax, w.az)
		add(w.bx, w.bz)
	}
	return r.grow(g.halfWidth + 1)
}

// GroundAt reports whether (x, z) lies on the road and the car's resting
// height there (road elevation plus ride height).
func (g *Geometry) GroundAt(x, z float64) (physics.Ground, error) {
	if len(g.road) == 0 {
		return physics.Ground{}, physics.ErrNoGeometry
	}

	var ids [16]int
	best, bestT, bestSeg := math.Inf(1), 0.0, -1
	for _, id := range g.roadIndex.query(rect{X0: x, Z0: z, X1: x, Z1: z}, ids[:0]) {
		d, t := distToSegment(g.road[id], x, z)
		if d < best {
			best, bestT, bestSeg = d, t, id
		}
	}
	if bestSeg < 0 || best > g.halfWidth {
		return physics.Ground{OnSurface: false}, nil
	}
	s := g.road[bestSeg]
	return physics.Ground{
		OnSurface: true,
		Height:    s.a.Y + (s.b.Y-s.a.Y)*bestT + g.rideHeight,
	}, nil
}

// ProbeObstacle casts a ray on the ground plane. Walls lower than the ray
// origin are ignored.
func (g *Geometry) ProbeObstacle(origin, dir physics.Vec3, maxDistance float64) (physics.Probe, error) {
	if len(g.road) == 0 && len(g.walls) == 0 {
		return physics.Probe{}, physics.ErrNoGeometry
	}
	d := physics.V3(dir.X, 0, dir.Z).Normalize()
	if d == (physics.Vec3{}) || maxDistance <= 0 {
		return physics.Probe{}, nil
	}

	rx, rz := d.X*maxDistance, d.Z*maxDistance
	area := rectAround(origin.X, origin.Z, origin.X+rx, origin.Z+rz)

	var ids [16]int
	hit := physics.Probe{Distance: math.Inf(1)}
	for _, id := range g.wallIndex.query(area, ids[:0]) {
		w := g.walls[id]
		if origin.Y > w.top {
			continue
		}
		t, ok := raySegment(origin.X, origin.Z, rx, rz, w)
		if !ok {
			continue
		}
		if dist := t * maxDistance; dist < hit.Distance {
			hit = physics.Probe{Hit: true, Distance: dist}
		}
	}
	if !hit.Hit {
		return physics.Probe{}, nil
	}
	return hit, nil
}

// distToSegment returns the planar distance to s and the clamped
// parameter of the closest point.
func distToSegment(s roadSegment, x, z float64) (float64, float64) {
	dx, dz := s.b.X-s.a.X, s.b.Z-s.a.Z
	lenSq := dx*dx + dz*dz
	t := 0.0
	if lenSq > 0 {
		t = physics.Clamp(((x-s.a.X)*dx+(z-s.a.Z)*dz)/lenSq, 0, 1)
	}
	px, pz := s.a.X+dx*t, s.a.Z+dz*t
	return physics.Distance2(x, z, px, pz), t
}

// raySegment intersects the ray o + t*r, t in [0,1], with wall w.
func raySegment(ox, oz, rx, rz float64, w wallSegment) (float64, bool) {
	sx, sz := w.bx-w.ax, w.bz-w.az
	denom := rx*sz - rz*sx
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	qx, qz := w.ax-ox, w.az-oz
	t := (qx*sz - qz*sx) / denom
	u := (qx*rz - qz*rx) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}
