package manifold

import (
	"errors"
	"math"
	"sort"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/epa"
	"github.com/akmonengine/particle/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// faceAlignment is the minimum cosine between a box face normal and the
	// contact normal for the face to be used as a contact feature.
	faceAlignment = 0.7
	// meshFeatureTolerance groups mesh vertices lying this close to the support plane.
	meshFeatureTolerance = 1e-3
	// witnessSeparation is the extra gap used when recovering witness points.
	witnessSeparation = 0.01
)

// convex is the general path: GJK for the overlap test, EPA for normal and depth,
// then the support features of both shapes are clipped against each other.
func convex(shapeA actor.Shape, transformA actor.Transform, shapeB actor.Shape, transformB actor.Transform) (Manifold, bool) {
	a := gjk.Placed{Shape: shapeA, Transform: transformA}
	b := gjk.Placed{Shape: shapeB, Transform: transformB}

	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)
	simplex.Reset()

	if !gjk.GJK(a, b, simplex) {
		return Manifold{}, false
	}

	result, err := epa.EPA(a, b, simplex)
	if err != nil && (!errors.Is(err, epa.ErrNoConvergence) || result.Depth <= 0) {
		return BoundingSphere(shapeA, transformA, shapeB, transformB)
	}

	normal := result.Normal
	depth := result.Depth

	featureA := supportFeature(shapeA, transformA, normal)
	featureB := supportFeature(shapeB, transformB, normal.Mul(-1))

	var points []Point
	switch {
	case len(featureB) == 1 && len(featureB) <= len(featureA):
		points = []Point{{Position: featureB[0].Add(normal.Mul(depth * 0.5)), Depth: depth}}
	case len(featureA) == 1:
		points = []Point{{Position: featureA[0].Sub(normal.Mul(depth * 0.5)), Depth: depth}}
	case len(featureB) <= len(featureA):
		points = clipFace(featureB, featureA, normal)
	default:
		points = clipFace(featureA, featureB, normal.Mul(-1))
	}

	if len(points) == 0 {
		points = []Point{{Position: witnessPoint(a, b, normal, depth), Depth: depth}}
	}

	return Manifold{Normal: normal, Points: points}, true
}

// supportFeature returns the world-space vertices of the feature of shape
// farthest along direction: one point, or a convex polygon.
func supportFeature(shape actor.Shape, transform actor.Transform, direction mgl64.Vec3) []mgl64.Vec3 {
	local := transform.InverseTransformDirection(direction)

	var feature []mgl64.Vec3
	switch s := shape.(type) {
	case *actor.Box:
		faceNormal, vertices := s.Face(local)
		if faceNormal.Dot(local.Normalize()) >= faceAlignment {
			feature = vertices[:]
		} else {
			feature = []mgl64.Vec3{s.Support(local)}
		}
	case *actor.Mesh:
		feature = meshFeature(s, local)
	default:
		feature = []mgl64.Vec3{shape.Support(local)}
	}

	world := make([]mgl64.Vec3, len(feature))
	for i, p := range feature {
		world[i] = transform.TransformPoint(p)
	}
	return world
}

// meshFeature collects the vertices lying on the support plane along direction,
// ordered by angle around their centroid.
func meshFeature(mesh *actor.Mesh, direction mgl64.Vec3) []mgl64.Vec3 {
	top := mesh.Support(direction)
	if mesh.Data == nil {
		return []mgl64.Vec3{top}
	}

	n := direction.Normalize()
	level := top.Dot(n)

	var feature []mgl64.Vec3
	for _, v := range mesh.Data.Vertices() {
		if level-v.Dot(n) > meshFeatureTolerance {
			continue
		}
		duplicate := false
		for _, f := range feature {
			if f.Sub(v).LenSqr() < DedupTolerance*DedupTolerance {
				duplicate = true
				break
			}
		}
		if !duplicate {
			feature = append(feature, v)
		}
	}
	if len(feature) < 3 {
		return []mgl64.Vec3{top}
	}

	center := computeCenter(feature)
	tangent1, tangent2 := actor.TangentBasis(n)
	angle := func(p mgl64.Vec3) float64 {
		d := p.Sub(center)
		return math.Atan2(d.Dot(tangent2), d.Dot(tangent1))
	}
	sort.SliceStable(feature, func(i, j int) bool {
		return angle(feature[i]) < angle(feature[j])
	})

	return feature
}

// shifted translates a convex shape by a fixed offset.
type shifted struct {
	gjk.Convex
	offset mgl64.Vec3
}

func (s shifted) Support(direction mgl64.Vec3) mgl64.Vec3 {
	return s.Convex.Support(direction).Add(s.offset)
}

func (s shifted) Center() mgl64.Vec3 {
	return s.Convex.Center().Add(s.offset)
}

// witnessPoint separates B along normal just past depth, then returns the midpoint
// of the closest points of the now disjoint shapes, mapped back.
func witnessPoint(a, b gjk.Convex, normal mgl64.Vec3, depth float64) mgl64.Vec3 {
	offset := normal.Mul(depth + witnessSeparation)
	result := gjk.Distance(a, shifted{Convex: b, offset: offset})
	if result.Intersecting {
		return a.Support(normal)
	}
	return result.PointA.Add(result.PointB.Sub(offset)).Mul(0.5)
}
