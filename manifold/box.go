package manifold

import (
	"math"

	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Axis selection tolerances: a face of B, or an edge pair, replaces the current
// best axis only when it is clearly better. This keeps the reference face
// stable from one step to the next.
const (
	faceRelTolerance = 0.98
	faceAbsTolerance = 0.001
	edgeRelTolerance = 0.95
	edgeAbsTolerance = 0.01
)

type axisKind int

const (
	axisFaceA axisKind = iota
	axisFaceB
	axisEdges
)

type separatingAxis struct {
	kind    axisKind
	normal  mgl64.Vec3
	overlap float64
	i, j    int
}

// boxBox runs the separating axis test over the 3 face axes of each box and the
// 9 edge cross products, then builds the manifold from the axis of least overlap.
func boxBox(boxA *actor.Box, transformA actor.Transform, boxB *actor.Box, transformB actor.Transform) (Manifold, bool) {
	rotationA := transformA.RotationMatrix()
	rotationB := transformB.RotationMatrix()
	axesA := [3]mgl64.Vec3{rotationA.Col(0), rotationA.Col(1), rotationA.Col(2)}
	axesB := [3]mgl64.Vec3{rotationB.Col(0), rotationB.Col(1), rotationB.Col(2)}
	hA := boxA.HalfExtents
	hB := boxB.HalfExtents
	d := transformB.Position.Sub(transformA.Position)

	overlapOn := func(axis mgl64.Vec3) float64 {
		var ra, rb float64
		for k := 0; k < 3; k++ {
			ra += hA[k] * math.Abs(axesA[k].Dot(axis))
			rb += hB[k] * math.Abs(axesB[k].Dot(axis))
		}
		return ra + rb - math.Abs(d.Dot(axis))
	}

	best := separatingAxis{overlap: math.Inf(1)}
	consider := func(axis mgl64.Vec3, kind axisKind, i, j int) bool {
		overlap := overlapOn(axis)
		if overlap < 0 {
			return false
		}

		replace := false
		switch kind {
		case axisFaceA:
			replace = overlap < best.overlap
		case axisFaceB:
			replace = overlap < best.overlap*faceRelTolerance-faceAbsTolerance
		case axisEdges:
			replace = overlap < best.overlap*edgeRelTolerance-edgeAbsTolerance
		}

		if replace {
			if d.Dot(axis) < 0 {
				axis = axis.Mul(-1)
			}
			best = separatingAxis{kind: kind, normal: axis, overlap: overlap, i: i, j: j}
		}
		return true
	}

	for i := 0; i < 3; i++ {
		if !consider(axesA[i], axisFaceA, i, -1) {
			return Manifold{}, false
		}
	}
	for j := 0; j < 3; j++ {
		if !consider(axesB[j], axisFaceB, -1, j) {
			return Manifold{}, false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axis := axesA[i].Cross(axesB[j])
			// parallel edges are already covered by the face axes
			if axis.LenSqr() < 1e-6 {
				continue
			}
			if !consider(axis.Normalize(), axisEdges, i, j) {
				return Manifold{}, false
			}
		}
	}

	switch best.kind {
	case axisFaceA:
		return faceContact(boxA, transformA, boxB, transformB, best.normal, best.normal)
	case axisFaceB:
		return faceContact(boxB, transformB, boxA, transformA, best.normal.Mul(-1), best.normal)
	default:
		return edgeContact(axesA, hA, transformA.Position, axesB, hB, transformB.Position, best)
	}
}

// faceContact clips the incident box face against the reference box face.
// referenceNormal points from the reference box toward the incident box,
// normal is the manifold normal (A toward B).
func faceContact(reference *actor.Box, referenceTransform actor.Transform, incident *actor.Box, incidentTransform actor.Transform, referenceNormal, normal mgl64.Vec3) (Manifold, bool) {
	_, localReference := reference.Face(referenceTransform.InverseTransformDirection(referenceNormal))
	_, localIncident := incident.Face(incidentTransform.InverseTransformDirection(referenceNormal.Mul(-1)))

	referenceFace := make([]mgl64.Vec3, 4)
	incidentFace := make([]mgl64.Vec3, 4)
	for k := 0; k < 4; k++ {
		referenceFace[k] = referenceTransform.TransformPoint(localReference[k])
		incidentFace[k] = incidentTransform.TransformPoint(localIncident[k])
	}

	points := clipFace(incidentFace, referenceFace, referenceNormal)
	if len(points) == 0 {
		return Manifold{}, false
	}
	return Manifold{Normal: normal, Points: points}, true
}

// edgeContact returns the midpoint of the closest points of the two supporting edges.
func edgeContact(axesA [3]mgl64.Vec3, hA mgl64.Vec3, centerA mgl64.Vec3, axesB [3]mgl64.Vec3, hB mgl64.Vec3, centerB mgl64.Vec3, axis separatingAxis) (Manifold, bool) {
	normal := axis.normal

	edgeA := centerA
	edgeB := centerB
	for k := 0; k < 3; k++ {
		if k != axis.i {
			edgeA = edgeA.Add(axesA[k].Mul(signOf(axesA[k].Dot(normal)) * hA[k]))
		}
		if k != axis.j {
			edgeB = edgeB.Add(axesB[k].Mul(-signOf(axesB[k].Dot(normal)) * hB[k]))
		}
	}

	ua := axesA[axis.i]
	ub := axesB[axis.j]
	halfA := hA[axis.i]
	halfB := hB[axis.j]

	// closest points of two segments with unit directions
	r := edgeA.Sub(edgeB)
	b := ua.Dot(ub)
	c := ua.Dot(r)
	f := ub.Dot(r)
	denominator := 1 - b*b

	var s float64
	if denominator > 1e-12 {
		s = clamp((b*f-c)/denominator, -halfA, halfA)
	}
	t := clamp(b*s+f, -halfB, halfB)
	s = clamp(b*t-c, -halfA, halfA)

	closestA := edgeA.Add(ua.Mul(s))
	closestB := edgeB.Add(ub.Mul(t))

	return Manifold{
		Normal: normal,
		Points: []Point{{
			Position: closestA.Add(closestB).Mul(0.5),
			Depth:    axis.overlap,
		}},
	}, true
}

func signOf(value float64) float64 {
	if value < 0 {
		return -1
	}
	return 1
}
