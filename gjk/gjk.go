// Package gjk answers proximity questions about pairs of convex volumes with the
// Gilbert-Johnson-Keerthi algorithm, working on their Minkowski difference A - B.
//
// Three entry points share the same support mapping:
//   - GJK reports overlap and leaves a simplex enclosing the origin for EPA,
//   - Distance returns the separation and the closest points of separated volumes,
//   - Batch evaluates many Distance queries in lockstep, with the same per-iteration
//     step as the scalar path so both produce identical results.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
//   - Ericson: "Real-Time Collision Detection" (2004), closest point on simplex
package gjk

import (
	"sync"

	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxIterations bounds every GJK loop.
const MaxIterations = 32

const (
	// edgeEpsilon is the squared length under which an edge or a direction is zero.
	edgeEpsilon = 1e-8
	// planeEpsilon is the squared normal length under which a triangle is flat.
	planeEpsilon = 1e-10
)

// Convex is a convex volume in world space, known only by its support mapping.
type Convex interface {
	// Support returns the farthest world point along direction.
	Support(direction mgl64.Vec3) mgl64.Vec3
	// Center is any interior point, used to seed the search direction.
	Center() mgl64.Vec3
}

// Placed binds a local-space shape to a world transform.
type Placed struct {
	Shape     actor.Shape
	Transform actor.Transform
}

func (p Placed) Support(direction mgl64.Vec3) mgl64.Vec3 {
	return actor.SupportWorld(p.Shape, p.Transform, direction)
}

func (p Placed) Center() mgl64.Vec3 {
	return p.Transform.Position
}

// Ball is a world-space sphere. It stands in for shapes too degenerate for their own support mapping.
type Ball struct {
	Position mgl64.Vec3
	Radius   float64
}

func (b Ball) Support(direction mgl64.Vec3) mgl64.Vec3 {
	length := direction.Len()
	if length < 1e-12 {
		return b.Position.Add(mgl64.Vec3{b.Radius, 0, 0})
	}
	return b.Position.Add(direction.Mul(b.Radius / length))
}

func (b Ball) Center() mgl64.Vec3 {
	return b.Position
}

// Simplex holds 1 to 4 Minkowski points, the newest one last.
type Simplex struct {
	Points [4]mgl64.Vec3
	Count  int
}

func (s *Simplex) Reset() {
	s.Count = 0
}

func (s *Simplex) push(point mgl64.Vec3) {
	s.Points[s.Count] = point
	s.Count++
}

func (s *Simplex) set(points ...mgl64.Vec3) {
	s.Count = copy(s.Points[:], points)
}

var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}

// MinkowskiSupport is the support point of A - B along direction.
func MinkowskiSupport(a, b Convex, direction mgl64.Vec3) mgl64.Vec3 {
	return a.Support(direction).Sub(b.Support(direction.Mul(-1)))
}

// GJK reports whether a and b overlap or touch. On overlap the simplex usually
// ends as a tetrahedron enclosing the origin, ready for EPA; touching volumes
// may leave fewer points.
func GJK(a, b Convex, simplex *Simplex) bool {
	direction := b.Center().Sub(a.Center())
	if direction.LenSqr() < edgeEpsilon {
		direction = mgl64.Vec3{1, 0, 0}
	}

	simplex.set(MinkowskiSupport(a, b, direction))
	direction = simplex.Points[0].Mul(-1)
	if direction.LenSqr() < 1e-16 {
		return true
	}

	for range MaxIterations {
		point := MinkowskiSupport(a, b, direction)
		// the farthest point along direction stops short of the origin
		if point.Dot(direction) <= 0 {
			return false
		}
		simplex.push(point)

		var enclosed bool
		if direction, enclosed = simplex.reduce(); enclosed {
			return true
		}
	}
	return false
}

// reduce shrinks the simplex to its feature nearest the origin and returns the
// next search direction. It reports true once the origin is enclosed or touched.
func (s *Simplex) reduce() (mgl64.Vec3, bool) {
	switch s.Count {
	case 2:
		return s.line()
	case 3:
		return s.triangle()
	case 4:
		return s.tetrahedron()
	}
	return mgl64.Vec3{}, false
}

func (s *Simplex) line() (mgl64.Vec3, bool) {
	b, a := s.Points[0], s.Points[1]
	ab := b.Sub(a)
	ao := a.Mul(-1)

	if ab.LenSqr() < edgeEpsilon || ab.Dot(ao) <= 0 {
		s.set(a)
		return ao, ao.LenSqr() < edgeEpsilon
	}

	perp := ab.Cross(ao).Cross(ab)
	// origin on the segment
	if perp.LenSqr() < edgeEpsilon {
		return perp, true
	}
	return perp, false
}

// triangle never encloses the origin by itself; flat triangles fall back to their newest edge.
func (s *Simplex) triangle() (mgl64.Vec3, bool) {
	c, b, a := s.Points[0], s.Points[1], s.Points[2]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)

	abc := ab.Cross(ac)
	if abc.LenSqr() < planeEpsilon {
		s.set(b, a)
		return s.line()
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		s.set(b, a)
		return ab.Cross(ao).Cross(ab), false
	}
	if abc.Cross(ac).Dot(ao) > 0 {
		s.set(c, a)
		return ac.Cross(ao).Cross(ac), false
	}

	if abc.Dot(ao) > 0 {
		return abc, false
	}
	s.set(b, c, a)
	return abc.Mul(-1), false
}

// tetrahedron tests the three faces around the newest point; the opposite face
// was already passed when that point was added.
func (s *Simplex) tetrahedron() (mgl64.Vec3, bool) {
	d, c, b, a := s.Points[0], s.Points[1], s.Points[2], s.Points[3]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ad := d.Sub(a)
	ao := a.Mul(-1)

	faces := [3]struct {
		normal mgl64.Vec3
		keep   [2]mgl64.Vec3
	}{
		{outward(ab, ac, ad), [2]mgl64.Vec3{c, b}},
		{outward(ac, ad, ab), [2]mgl64.Vec3{d, c}},
		{outward(ad, ab, ac), [2]mgl64.Vec3{b, d}},
	}

	for _, face := range faces {
		if face.normal.LenSqr() < planeEpsilon {
			s.set(c, b, a)
			return s.triangle()
		}
	}
	for _, face := range faces {
		if face.normal.Dot(ao) > 0 {
			s.set(face.keep[0], face.keep[1], a)
			return s.triangle()
		}
	}
	return mgl64.Vec3{}, true
}

// outward is the normal of the face spanned by u and v, turned away from the fourth vertex.
func outward(u, v, away mgl64.Vec3) mgl64.Vec3 {
	normal := u.Cross(v)
	if normal.Dot(away) > 0 {
		return normal.Mul(-1)
	}
	return normal
}
