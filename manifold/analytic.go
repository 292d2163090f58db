package manifold

import (
	"math"

	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func sphereSphere(centerA mgl64.Vec3, radiusA float64, centerB mgl64.Vec3, radiusB float64) (Manifold, bool) {
	delta := centerB.Sub(centerA)
	distance := delta.Len()
	depth := radiusA + radiusB - distance
	if depth <= 0 {
		return Manifold{}, false
	}

	normal := mgl64.Vec3{0, 1, 0}
	if distance > 1e-9 {
		normal = delta.Mul(1 / distance)
	}

	return Manifold{
		Normal: normal,
		Points: []Point{{
			Position: centerA.Add(normal.Mul(radiusA - depth*0.5)),
			Depth:    depth,
		}},
	}, true
}

// sphereBox collides sphere A with box B. The closest box point to the sphere
// center decides the normal; a center inside the box is pushed out through the
// face of least penetration.
func sphereBox(center mgl64.Vec3, radius float64, box *actor.Box, transform actor.Transform) (Manifold, bool) {
	local := transform.InverseTransformPoint(center)
	h := box.HalfExtents

	closest := mgl64.Vec3{
		clamp(local[0], -h[0], h[0]),
		clamp(local[1], -h[1], h[1]),
		clamp(local[2], -h[2], h[2]),
	}

	delta := local.Sub(closest)
	distanceSqr := delta.LenSqr()

	var localNormal mgl64.Vec3 // outward from the box, toward the sphere
	var depth float64
	var surface mgl64.Vec3

	if distanceSqr > 1e-18 {
		distance := math.Sqrt(distanceSqr)
		depth = radius - distance
		if depth <= 0 {
			return Manifold{}, false
		}
		localNormal = delta.Mul(1 / distance)
		surface = closest
	} else {
		// center inside the box: exit through the nearest face
		axis := 0
		minGap := math.Inf(1)
		for i := 0; i < 3; i++ {
			if gap := h[i] - math.Abs(local[i]); gap < minGap {
				minGap = gap
				axis = i
			}
		}

		sign := 1.0
		if local[axis] < 0 {
			sign = -1.0
		}
		localNormal[axis] = sign
		depth = radius + minGap
		surface = local
		surface[axis] = sign * h[axis]
	}

	worldNormal := transform.TransformDirection(localNormal)
	boxPoint := transform.TransformPoint(surface)
	spherePoint := center.Sub(worldNormal.Mul(radius))

	return Manifold{
		// from the sphere toward the box
		Normal: worldNormal.Mul(-1),
		Points: []Point{{
			Position: boxPoint.Add(spherePoint).Mul(0.5),
			Depth:    depth,
		}},
	}, true
}

func clamp(value, low, high float64) float64 {
	return math.Max(low, math.Min(high, value))
}
