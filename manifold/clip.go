package manifold

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const clipTolerance = 1e-6

// clipFace clips the incident polygon against the side planes of the reference
// polygon, then keeps the points lying behind the reference plane.
// referenceNormal is the outward normal of the reference face, toward the incident shape.
// Returned depths are the distances below the reference plane.
func clipFace(incident, reference []mgl64.Vec3, referenceNormal mgl64.Vec3) []Point {
	clipped := clipIncidentAgainstReference(incident, reference, referenceNormal)
	if len(clipped) == 0 {
		return nil
	}

	offset := reference[0].Dot(referenceNormal)

	points := make([]Point, 0, len(clipped))
	for _, p := range clipped {
		depth := offset - p.Dot(referenceNormal)
		if depth <= 0 {
			continue
		}
		points = append(points, Point{
			// halfway between the incident point and its projection on the reference face
			Position: p.Add(referenceNormal.Mul(depth * 0.5)),
			Depth:    depth,
		})
	}
	return points
}

// clipIncidentAgainstReference performs Sutherland-Hodgman polygon clipping.
//
// The algorithm clips the incident polygon against each edge plane of the reference polygon:
//  1. For each reference edge, create a clipping plane perpendicular to contact normal
//  2. Clip incident polygon against this plane (keep points "inside")
//  3. Result is the incident polygon trimmed to the reference feature's bounds
//
// References with fewer than 3 points have no side planes: the incident polygon is returned as is.
func clipIncidentAgainstReference(incident, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	if len(reference) < 3 {
		return incident
	}

	output := incident
	center := computeCenter(reference)

	for i := 0; i < len(reference); i++ {
		if len(output) == 0 {
			break
		}

		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		// Clipping plane normal (perpendicular to the edge, pointing inward)
		clipNormal := v2.Sub(v1).Cross(normal)
		if clipNormal.LenSqr() < 1e-18 {
			continue
		}
		clipNormal = clipNormal.Normalize()

		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		output = clipPolygonAgainstPlane(output, v1, clipNormal)
	}

	return output
}

// clipPolygonAgainstPlane implements Sutherland-Hodgman for a single plane
func clipPolygonAgainstPlane(polygon []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	if len(polygon) == 0 {
		return polygon
	}

	// a lone point or segment does not wrap around
	count := len(polygon)
	if count == 1 {
		if polygon[0].Sub(planePoint).Dot(planeNormal) >= -clipTolerance {
			return polygon
		}
		return nil
	}

	output := make([]mgl64.Vec3, 0, count+1)
	edges := count
	if count == 2 {
		edges = 1
	}

	for i := 0; i < edges; i++ {
		current := polygon[i]
		next := polygon[(i+1)%count]

		currentDist := current.Sub(planePoint).Dot(planeNormal)
		nextDist := next.Sub(planePoint).Dot(planeNormal)

		if currentDist >= -clipTolerance {
			output = append(output, current)

			// Next is outside → add intersection
			if nextDist < -clipTolerance {
				output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
			}
		} else if nextDist >= -clipTolerance {
			// Current is outside, next is inside → add intersection
			output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
		}
	}

	if count == 2 && polygon[1].Sub(planePoint).Dot(planeNormal) >= -clipTolerance {
		output = append(output, polygon[1])
	}

	return output
}

// lineIntersectPlane calculates the intersection between a line segment and a plane
func lineIntersectPlane(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	dir := p2.Sub(p1)
	dist := p1.Sub(planePoint).Dot(planeNormal)
	denom := dir.Dot(planeNormal)

	if math.Abs(denom) < 1e-10 {
		return p1 // Segment parallel to plane
	}

	t := clamp(-dist/denom, 0, 1)
	return p1.Add(dir.Mul(t))
}

// computeCenter calculates the centroid of a set of points
func computeCenter(points []mgl64.Vec3) mgl64.Vec3 {
	if len(points) == 0 {
		return mgl64.Vec3{}
	}

	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1.0 / float64(len(points)))
}
