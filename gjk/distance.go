package gjk

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// distanceRelativeTolerance stops the search once the lower bound is within this fraction of |v|².
	distanceRelativeTolerance = 1e-6
	// distanceContactTolerance treats a closest point this close to the origin as touching.
	distanceContactTolerance = 1e-12
)

// DistanceResult describes the closest features of two convex volumes.
// When Intersecting is true, Distance is 0 and the witness points are not meaningful.
type DistanceResult struct {
	Distance     float64
	PointA       mgl64.Vec3
	PointB       mgl64.Vec3
	// Normal points from A toward B.
	Normal       mgl64.Vec3
	Intersecting bool
	Iterations   int
}

// vertex is a Minkowski point with the two support points it was built from.
type vertex struct {
	w, a, b mgl64.Vec3
}

// distanceState holds one in-flight distance query. The scalar and batched paths
// both advance it with step, one GJK iteration at a time.
type distanceState struct {
	a, b      Convex
	verts     [4]vertex
	lambdas   [4]float64
	count     int
	v         mgl64.Vec3
	iteration int
	done      bool
	result    DistanceResult
}

// Distance computes the separation between a and b.
func Distance(a, b Convex) DistanceResult {
	var state distanceState
	state.init(a, b)
	for !state.done {
		state.step()
	}
	return state.result
}

func (s *distanceState) init(a, b Convex) {
	*s = distanceState{a: a, b: b}

	direction := b.Center().Sub(a.Center())
	if direction.LenSqr() < 1e-12 {
		direction = mgl64.Vec3{1, 0, 0}
	}

	s.verts[0] = s.support(direction)
	s.lambdas[0] = 1
	s.count = 1
	s.v = s.verts[0].w
}

func (s *distanceState) support(direction mgl64.Vec3) vertex {
	pa := s.a.Support(direction)
	pb := s.b.Support(direction.Mul(-1))
	return vertex{w: pa.Sub(pb), a: pa, b: pb}
}

// step runs one iteration: query a new support point against -v, test convergence,
// then reduce the simplex to the feature closest to the origin.
func (s *distanceState) step() {
	if s.done {
		return
	}

	vv := s.v.Dot(s.v)
	if vv <= distanceContactTolerance {
		s.finish(true)
		return
	}

	w := s.support(s.v.Mul(-1))

	// The new point does not improve the bound
	if vv-s.v.Dot(w.w) <= distanceRelativeTolerance*vv {
		s.finish(false)
		return
	}
	for i := 0; i < s.count; i++ {
		if s.verts[i].w.Sub(w.w).LenSqr() < distanceContactTolerance {
			s.finish(false)
			return
		}
	}

	s.verts[s.count] = w
	s.count++
	s.iteration++

	if s.reduce() {
		s.finish(true)
		return
	}

	if s.iteration >= MaxIterations {
		s.finish(s.v.Dot(s.v) <= distanceContactTolerance)
	}
}

func (s *distanceState) finish(intersecting bool) {
	s.done = true
	result := DistanceResult{Iterations: s.iteration}

	for i := 0; i < s.count; i++ {
		result.PointA = result.PointA.Add(s.verts[i].a.Mul(s.lambdas[i]))
		result.PointB = result.PointB.Add(s.verts[i].b.Mul(s.lambdas[i]))
	}

	if intersecting {
		result.Intersecting = true
		result.Normal = s.b.Center().Sub(s.a.Center())
		if result.Normal.LenSqr() < 1e-12 {
			result.Normal = mgl64.Vec3{0, 1, 0}
		}
		result.Normal = result.Normal.Normalize()
		s.result = result
		return
	}

	result.Distance = math.Sqrt(s.v.Dot(s.v))
	result.Normal = s.v.Mul(-1 / result.Distance)
	s.result = result
}

// reduce computes the point of the simplex closest to the origin, drops the
// vertices that do not support it and reports whether the origin is enclosed.
func (s *distanceState) reduce() bool {
	var lambdas [4]float64
	inside := false

	switch s.count {
	case 2:
		l := segmentLambdas(s.verts[0].w, s.verts[1].w)
		lambdas[0], lambdas[1] = l[0], l[1]
	case 3:
		l := triangleLambdas(s.verts[0].w, s.verts[1].w, s.verts[2].w)
		lambdas[0], lambdas[1], lambdas[2] = l[0], l[1], l[2]
	case 4:
		lambdas, inside = tetrahedronLambdas(s.verts[0].w, s.verts[1].w, s.verts[2].w, s.verts[3].w)
	}

	if inside {
		s.lambdas = lambdas
		s.v = mgl64.Vec3{}
		return true
	}

	kept := 0
	var v mgl64.Vec3
	for i := 0; i < s.count; i++ {
		if lambdas[i] <= 0 {
			continue
		}
		s.verts[kept] = s.verts[i]
		s.lambdas[kept] = lambdas[i]
		v = v.Add(s.verts[i].w.Mul(lambdas[i]))
		kept++
	}
	s.count = kept
	s.v = v

	return false
}

func segmentLambdas(a, b mgl64.Vec3) [2]float64 {
	ab := b.Sub(a)
	denominator := ab.Dot(ab)
	if denominator < 1e-18 {
		return [2]float64{1, 0}
	}

	t := -a.Dot(ab) / denominator
	if t <= 0 {
		return [2]float64{1, 0}
	}
	if t >= 1 {
		return [2]float64{0, 1}
	}
	return [2]float64{1 - t, t}
}

// triangleLambdas returns the barycentric coordinates of the point of triangle abc closest to the origin.
func triangleLambdas(a, b, c mgl64.Vec3) [3]float64 {
	ab := b.Sub(a)
	ac := c.Sub(a)

	ap := a.Mul(-1)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return [3]float64{1, 0, 0}
	}

	bp := b.Mul(-1)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return [3]float64{0, 1, 0}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return [3]float64{1 - v, v, 0}
	}

	cp := c.Mul(-1)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return [3]float64{0, 0, 1}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return [3]float64{1 - w, 0, w}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return [3]float64{0, 1 - w, w}
	}

	sum := va + vb + vc
	if math.Abs(sum) < 1e-18 {
		return closestEdgeLambdas(a, b, c)
	}

	v := vb / sum
	w := vc / sum
	return [3]float64{1 - v - w, v, w}
}

// closestEdgeLambdas handles flat triangles by picking the best of the three edges.
func closestEdgeLambdas(a, b, c mgl64.Vec3) [3]float64 {
	best := [3]float64{}
	bestDist := math.Inf(1)

	try := func(l [3]float64) {
		p := a.Mul(l[0]).Add(b.Mul(l[1])).Add(c.Mul(l[2]))
		if d := p.LenSqr(); d < bestDist {
			bestDist = d
			best = l
		}
	}

	ab := segmentLambdas(a, b)
	try([3]float64{ab[0], ab[1], 0})
	ac := segmentLambdas(a, c)
	try([3]float64{ac[0], 0, ac[1]})
	bc := segmentLambdas(b, c)
	try([3]float64{0, bc[0], bc[1]})

	return best
}

// tetrahedronLambdas returns the closest point of tetrahedron abcd to the origin,
// or inside=true when the origin lies within it.
func tetrahedronLambdas(a, b, c, d mgl64.Vec3) (lambdas [4]float64, inside bool) {
	faces := [4][4]int{
		{0, 1, 2, 3},
		{0, 3, 1, 2},
		{0, 2, 3, 1},
		{1, 3, 2, 0},
	}
	points := [4]mgl64.Vec3{a, b, c, d}

	inside = true
	bestDist := math.Inf(1)

	for _, face := range faces {
		p0, p1, p2, opposite := points[face[0]], points[face[1]], points[face[2]], points[face[3]]
		if !originOutsideOfPlane(p0, p1, p2, opposite) {
			continue
		}
		inside = false

		l := triangleLambdas(p0, p1, p2)
		closest := p0.Mul(l[0]).Add(p1.Mul(l[1])).Add(p2.Mul(l[2]))
		if dist := closest.LenSqr(); dist < bestDist {
			bestDist = dist
			lambdas = [4]float64{}
			lambdas[face[0]] = l[0]
			lambdas[face[1]] = l[1]
			lambdas[face[2]] = l[2]
		}
	}

	return lambdas, inside
}

// originOutsideOfPlane reports whether the origin and the opposite vertex are on
// different sides of plane abc. A flat tetrahedron counts every face as outside.
func originOutsideOfPlane(a, b, c, opposite mgl64.Vec3) bool {
	normal := b.Sub(a).Cross(c.Sub(a))
	signOrigin := a.Mul(-1).Dot(normal)
	signOpposite := opposite.Sub(a).Dot(normal)

	if signOpposite*signOpposite < 1e-20 {
		return true
	}
	return signOrigin*signOpposite < 0
}
