package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// EmptyAABB returns an inverted box that any Extend call replaces.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// AABBFromSphere returns the box enclosing a sphere.
func AABBFromSphere(center mgl64.Vec3, radius float64) AABB {
	r := mgl64.Vec3{radius, radius, radius}
	return AABB{Min: center.Sub(r), Max: center.Add(r)}
}

// AABBFromPoints returns the tightest box around points.
func AABBFromPoints(points []mgl64.Vec3) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box = box.Extend(p)
	}
	return box
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	// AABBs overlap if they overlap on all three axes
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Extend grows the box to include point.
func (a AABB) Extend(point mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		a.Min[i] = math.Min(a.Min[i], point[i])
		a.Max[i] = math.Max(a.Max[i], point[i])
	}
	return a
}

// Union returns the box enclosing both boxes.
func (a AABB) Union(other AABB) AABB {
	return a.Extend(other.Min).Extend(other.Max)
}

// Expand inflates the box by margin on every side.
func (a AABB) Expand(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// Sweep extends the box along a displacement, covering start and end positions.
func (a AABB) Sweep(displacement mgl64.Vec3) AABB {
	return a.Union(AABB{Min: a.Min.Add(displacement), Max: a.Max.Add(displacement)})
}

func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Extents returns the half-size of the box.
func (a AABB) Extents() mgl64.Vec3 {
	return a.Max.Sub(a.Min).Mul(0.5)
}

// Radius is the half diagonal.
func (a AABB) Radius() float64 {
	return a.Extents().Len()
}

// IsEmpty reports an inverted box (no point was added).
func (a AABB) IsEmpty() bool {
	return a.Min.X() > a.Max.X() || a.Min.Y() > a.Max.Y() || a.Min.Z() > a.Max.Z()
}

// RayIntersect runs a slab test and returns the entry distance along dir.
// A ray starting inside the box reports 0.
func (a AABB) RayIntersect(origin, dir mgl64.Vec3, maxDistance float64) (float64, bool) {
	tMin := 0.0
	tMax := maxDistance

	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < 1e-12 {
			if origin[i] < a.Min[i] || origin[i] > a.Max[i] {
				return 0, false
			}
			continue
		}

		inv := 1.0 / dir[i]
		t1 := (a.Min[i] - origin[i]) * inv
		t2 := (a.Max[i] - origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}
