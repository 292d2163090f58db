// Package epa computes penetration depth and normal for overlapping convex
// volumes with the Expanding Polytope Algorithm.
//
// Starting from the GJK tetrahedron, the polytope grows toward the boundary of
// the Minkowski difference until the face nearest the origin stops moving. That
// face gives the minimum translation separating the volumes.
//
// Contact points are not produced here: the manifold package derives them from
// the normal and depth, with the shape-specific clipping it has.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/particle/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxIterations bounds the number of points added to the polytope.
	MaxIterations = 32

	// ConvergenceTolerance stops the expansion once a new support point lies
	// this close to the nearest face.
	ConvergenceTolerance = 0.001

	// NormalSnapThreshold zeroes normal components smaller than itself.
	NormalSnapThreshold = 1e-8

	// DegeneratePenetrationEstimate is the depth reported when the simplex is
	// too small to measure one.
	DegeneratePenetrationEstimate = 0.01

	visibilityEpsilon = 1e-9
	minVolume         = 1e-12

	polytopeInitialCapacity = 4
)

var (
	ErrNoConvergence  = errors.New("epa: failed to converge")
	ErrInvalidSimplex = errors.New("epa: invalid simplex")
)

// Result is the minimum translation separating B from A: moving B by Normal*Depth
// ends the overlap. Normal points from A toward B.
type Result struct {
	Normal mgl64.Vec3
	Depth  float64
}

// EPA expands the simplex left by a successful gjk.GJK call.
//
// Simplices with fewer than 4 points, or flat ones, come from volumes that
// barely touch and yield an estimate rather than an error. ErrNoConvergence is
// returned when the iteration budget runs out; Result then holds the nearest
// face found so far.
func EPA(a, b gjk.Convex, simplex *gjk.Simplex) (Result, error) {
	if simplex.Count < 4 {
		return estimate(a, b, simplex), nil
	}

	polytope := polytopePool.Get().(*Polytope)
	defer polytopePool.Put(polytope)

	if err := polytope.Init(simplex); err != nil {
		return estimate(a, b, simplex), nil
	}

	var best Result
	for range MaxIterations {
		closest := polytope.Closest()
		if closest < 0 {
			break
		}
		face := polytope.faces[closest]
		best = Result{Normal: snapNormalToAxis(face.Normal), Depth: face.Distance}

		support := gjk.MinkowskiSupport(a, b, face.Normal)
		if support.Dot(face.Normal)-face.Distance < ConvergenceTolerance {
			return best, nil
		}
		if !polytope.Expand(support) {
			return best, nil
		}
	}

	if best.Depth == 0 {
		return estimate(a, b, simplex), fmt.Errorf("%w after %d iterations", ErrNoConvergence, MaxIterations)
	}
	return best, fmt.Errorf("%w after %d iterations", ErrNoConvergence, MaxIterations)
}

// estimate guesses a result from an incomplete simplex: the simplex point
// nearest the origin when there is one, the line between centers otherwise.
func estimate(a, b gjk.Convex, simplex *gjk.Simplex) Result {
	if simplex.Count >= 2 {
		closest := simplex.Points[0]
		for _, point := range simplex.Points[1:simplex.Count] {
			if point.LenSqr() < closest.LenSqr() {
				closest = point
			}
		}
		if length := closest.Len(); length > NormalSnapThreshold {
			return Result{Normal: closest.Mul(1 / length), Depth: length}
		}
	}

	normal := b.Center().Sub(a.Center())
	if length := normal.Len(); length > NormalSnapThreshold {
		normal = normal.Mul(1 / length)
	} else {
		normal = mgl64.Vec3{0, 1, 0}
	}
	return Result{Normal: normal, Depth: DegeneratePenetrationEstimate}
}

// snapNormalToAxis zeroes near-zero components so axis-aligned contacts keep an
// exact normal, then renormalizes.
func snapNormalToAxis(normal mgl64.Vec3) mgl64.Vec3 {
	for i := range 3 {
		if math.Abs(normal[i]) < NormalSnapThreshold {
			normal[i] = 0
		}
	}
	length := normal.Len()
	if length < 1e-8 {
		return mgl64.Vec3{0, 1, 0}
	}
	return normal.Mul(1 / length)
}
