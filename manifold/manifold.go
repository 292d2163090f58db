// Package manifold generates contact manifolds between placed collision shapes.
//
// A manifold is a set of 1-4 contact points sharing one normal, pointing from
// shape A toward shape B. Depth is positive for interpenetration.
//
// Dispatch by shape pair:
//   - Sphere-Sphere, Sphere-Box: analytic, single point
//   - Box-Box: separating axis test (15 axes), then Sutherland-Hodgman clipping
//     of the incident face against the reference face side planes
//   - anything involving a Mesh: GJK + EPA for normal and depth, then the same
//     clipping over the support features of both shapes
//   - degenerate shapes, or EPA failures: bounding-sphere fallback
//
// Clipped polygons larger than 4 points are reduced deterministically by keeping
// the deepest point, then greedily the points that maximize the enclosed area.
package manifold

import (
	"math"

	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	MaxPoints = 4

	// DedupTolerance merges contact points closer than this distance.
	DedupTolerance = 1e-4

	// FeatureCell is the quantization step of feature ids, in local units.
	FeatureCell = 0.05
)

// Point is one contact of a manifold.
type Point struct {
	// Position in world space, halfway between the two surfaces
	Position mgl64.Vec3
	// LocalA and LocalB are Position expressed in each shape's frame.
	LocalA mgl64.Vec3
	LocalB mgl64.Vec3
	Depth  float64
	// Feature identifies the point across steps for warm starting.
	Feature uint32
}

// Manifold is the contact set between two shapes.
type Manifold struct {
	Normal mgl64.Vec3
	Points []Point
}

// MaxDepth returns the deepest penetration of the manifold.
func (m *Manifold) MaxDepth() float64 {
	depth := math.Inf(-1)
	for _, p := range m.Points {
		depth = math.Max(depth, p.Depth)
	}
	return depth
}

// Flip swaps the roles of A and B.
func (m *Manifold) Flip() {
	m.Normal = m.Normal.Mul(-1)
	for i := range m.Points {
		m.Points[i].LocalA, m.Points[i].LocalB = m.Points[i].LocalB, m.Points[i].LocalA
	}
}

// Generate computes the manifold of shapeA placed at transformA against shapeB
// placed at transformB. It returns false when the shapes do not overlap.
func Generate(shapeA actor.Shape, transformA actor.Transform, shapeB actor.Shape, transformB actor.Transform) (Manifold, bool) {
	var m Manifold
	var ok bool

	if shapeA.IsDegenerate() || shapeB.IsDegenerate() {
		m, ok = BoundingSphere(shapeA, transformA, shapeB, transformB)
	} else {
		m, ok = dispatch(shapeA, transformA, shapeB, transformB)
	}
	if !ok {
		return Manifold{}, false
	}

	m.Points = prune(m.Points)
	if len(m.Points) == 0 {
		return Manifold{}, false
	}
	if len(m.Points) > MaxPoints {
		m.Points = Reduce(m.Points, m.Normal)
	}

	finalize(&m, transformA, transformB)
	return m, true
}

func dispatch(shapeA actor.Shape, transformA actor.Transform, shapeB actor.Shape, transformB actor.Transform) (Manifold, bool) {
	switch a := shapeA.(type) {
	case *actor.Sphere:
		switch b := shapeB.(type) {
		case *actor.Sphere:
			return sphereSphere(transformA.Position, a.Radius, transformB.Position, b.Radius)
		case *actor.Box:
			return sphereBox(transformA.Position, a.Radius, b, transformB)
		}
	case *actor.Box:
		switch b := shapeB.(type) {
		case *actor.Sphere:
			m, ok := sphereBox(transformB.Position, b.Radius, a, transformA)
			if ok {
				m.Flip()
			}
			return m, ok
		case *actor.Box:
			return boxBox(a, transformA, b, transformB)
		}
	}

	return convex(shapeA, transformA, shapeB, transformB)
}

// BoundingSphere treats both shapes as their bounding spheres. It is the conservative
// answer for shapes too degenerate to be handled exactly.
func BoundingSphere(shapeA actor.Shape, transformA actor.Transform, shapeB actor.Shape, transformB actor.Transform) (Manifold, bool) {
	return sphereSphere(transformA.Position, shapeA.BoundingRadius(), transformB.Position, shapeB.BoundingRadius())
}

// Single builds a one-point manifold from externally computed contact data.
// Depth may be zero or negative for contacts that are not touching yet.
func Single(normal, position mgl64.Vec3, depth float64, transformA, transformB actor.Transform) Manifold {
	m := Manifold{
		Normal: normal,
		Points: []Point{{Position: position, Depth: depth}},
	}
	finalize(&m, transformA, transformB)
	return m
}

// FeatureID quantizes a local contact position into a stable identifier:
// 10 bits per axis, wrapping.
func FeatureID(local mgl64.Vec3) uint32 {
	var id uint32
	for i := 0; i < 3; i++ {
		q := int32(math.Floor(local[i]/FeatureCell + 0.5))
		id = id<<10 | uint32(q)&0x3ff
	}
	return id
}

func finalize(m *Manifold, transformA, transformB actor.Transform) {
	for i := range m.Points {
		p := &m.Points[i]
		p.LocalA = transformA.InverseTransformPoint(p.Position)
		p.LocalB = transformB.InverseTransformPoint(p.Position)
		p.Feature = FeatureID(p.LocalA)
	}
}

// prune drops non-penetrating points and merges duplicates, in place.
func prune(points []Point) []Point {
	kept := points[:0]
	for _, p := range points {
		if p.Depth <= 0 {
			continue
		}

		duplicate := false
		for _, k := range kept {
			if k.Position.Sub(p.Position).LenSqr() < DedupTolerance*DedupTolerance {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, p)
		}
	}
	return kept
}

// Reduce keeps MaxPoints points: the deepest, the farthest from it, the one maximizing
// the triangle area, then the one maximizing the quadrilateral area.
// Ties resolve to the lowest index.
func Reduce(points []Point, normal mgl64.Vec3) []Point {
	if len(points) <= MaxPoints {
		return points
	}

	first := 0
	for i := range points {
		if points[i].Depth > points[first].Depth {
			first = i
		}
	}
	p1 := points[first].Position

	second := pickMax(points, func(i int) float64 {
		if i == first {
			return -1
		}
		return points[i].Position.Sub(p1).LenSqr()
	})
	p2 := points[second].Position

	third := pickMax(points, func(i int) float64 {
		if i == first || i == second {
			return -1
		}
		return math.Abs(points[i].Position.Sub(p1).Cross(points[i].Position.Sub(p2)).Dot(normal))
	})
	p3 := points[third].Position

	fourth := pickMax(points, func(i int) float64 {
		if i == first || i == second || i == third {
			return -1
		}
		return quadArea(p1, p2, p3, points[i].Position, normal)
	})

	return []Point{points[first], points[second], points[third], points[fourth]}
}

func pickMax(points []Point, score func(i int) float64) int {
	best := -1
	bestScore := math.Inf(-1)
	for i := range points {
		if s := score(i); s > bestScore {
			best = i
			bestScore = s
		}
	}
	return best
}

// quadArea returns the largest area of the simple quadrilaterals through the
// four points; for points in convex position it is the convex hull.
func quadArea(a, b, c, d, normal mgl64.Vec3) float64 {
	orderings := [3][4]mgl64.Vec3{
		{a, b, c, d},
		{a, b, d, c},
		{a, d, b, c},
	}

	best := 0.0
	for _, polygon := range orderings {
		best = math.Max(best, polygonArea(polygon[:], normal))
	}
	return best
}

// polygonArea is the shoelace formula projected on normal.
func polygonArea(polygon []mgl64.Vec3, normal mgl64.Vec3) float64 {
	var sum float64
	for i := range polygon {
		sum += polygon[i].Cross(polygon[(i+1)%len(polygon)]).Dot(normal)
	}
	return math.Abs(sum) * 0.5
}
