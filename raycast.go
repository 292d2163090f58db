package particle

import (
	"cmp"
	"math"
	"slices"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// RaycastHit is a collider crossed by a ray.
type RaycastHit struct {
	Collider arena.EntityID
	Body     arena.EntityID
	// Distance along the normalized ray direction; 0 when the origin is inside.
	Distance float64
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
}

// RaycastFilter selects the colliders a ray may hit.
type RaycastFilter func(id arena.EntityID, collider *actor.Collider) bool

// Raycast returns the colliders hit within maxDistance, sorted by distance.
// Colliders whose layer is not in mask are skipped, and so are triggers when
// ignoreTriggers is set. With closestOnly, at most the nearest hit is returned.
func (w *World) Raycast(origin, direction mgl64.Vec3, maxDistance float64, mask uint32, ignoreTriggers, closestOnly bool) []RaycastHit {
	return w.RaycastWithFilter(origin, direction, maxDistance, func(_ arena.EntityID, collider *actor.Collider) bool {
		if ignoreTriggers && collider.IsTrigger {
			return false
		}
		return collider.Filter.Accepts(mask)
	}, closestOnly)
}

// RaycastWithFilter is Raycast with a caller predicate; a nil filter accepts every collider.
func (w *World) RaycastWithFilter(origin, direction mgl64.Vec3, maxDistance float64, filter RaycastFilter, closestOnly bool) []RaycastHit {
	length := direction.Len()
	if length < 1e-12 || maxDistance < 0 || math.IsNaN(maxDistance) {
		return nil
	}
	direction = direction.Mul(1 / length)

	var hits []RaycastHit
	w.colliders.Each(func(id arena.EntityID, collider *actor.Collider) {
		if collider.Shape == nil || (filter != nil && !filter(id, collider)) {
			return
		}
		body, ok := w.bodies.Index(collider.Body)
		if !ok {
			return
		}

		transform := collider.WorldTransform(w.bodies.Transforms[body])
		bounds := actor.AABBFromSphere(transform.Position, collider.BoundingRadius())
		if _, ok := bounds.RayIntersect(origin, direction, maxDistance); !ok {
			return
		}

		distance, normal, ok := raycastShape(collider.Shape, transform, origin, direction, maxDistance)
		if !ok {
			return
		}
		hits = append(hits, RaycastHit{
			Collider: id,
			Body:     collider.Body,
			Distance: distance,
			Point:    origin.Add(direction.Mul(distance)),
			Normal:   normal,
		})
	})

	slices.SortFunc(hits, func(a, b RaycastHit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		if a.Collider.Less(b.Collider) {
			return -1
		}
		if b.Collider.Less(a.Collider) {
			return 1
		}
		return 0
	})

	if closestOnly && len(hits) > 1 {
		hits = hits[:1]
	}
	return hits
}

// raycastShape intersects a unit-direction ray with a placed shape and returns
// the distance and the world normal at the hit.
func raycastShape(shape actor.Shape, transform actor.Transform, origin, direction mgl64.Vec3, maxDistance float64) (float64, mgl64.Vec3, bool) {
	switch s := shape.(type) {
	case *actor.Sphere:
		return raycastSphere(transform.Position, s.Radius, origin, direction, maxDistance)

	case *actor.Box:
		localOrigin := transform.InverseTransformPoint(origin)
		localDirection := transform.InverseTransformDirection(direction)
		box := actor.AABB{Min: s.HalfExtents.Mul(-1), Max: s.HalfExtents}

		distance, ok := box.RayIntersect(localOrigin, localDirection, maxDistance)
		if !ok {
			return 0, mgl64.Vec3{}, false
		}
		if distance == 0 {
			return 0, direction.Mul(-1), true
		}
		normal := boxFaceNormal(s.HalfExtents, localOrigin.Add(localDirection.Mul(distance)))
		return distance, transform.TransformDirection(normal), true

	case *actor.Mesh:
		if s.Data == nil {
			return 0, mgl64.Vec3{}, false
		}
		localOrigin := transform.InverseTransformPoint(origin)
		localDirection := transform.InverseTransformDirection(direction)

		distance, normal, ok := s.Data.Raycast(localOrigin, localDirection, maxDistance)
		if !ok {
			return 0, mgl64.Vec3{}, false
		}
		return distance, transform.TransformDirection(normal), true
	}

	return 0, mgl64.Vec3{}, false
}

func raycastSphere(center mgl64.Vec3, radius float64, origin, direction mgl64.Vec3, maxDistance float64) (float64, mgl64.Vec3, bool) {
	m := origin.Sub(center)
	b := m.Dot(direction)
	c := m.Dot(m) - radius*radius

	// outside and pointing away
	if c > 0 && b > 0 {
		return 0, mgl64.Vec3{}, false
	}
	discriminant := b*b - c
	if discriminant < 0 {
		return 0, mgl64.Vec3{}, false
	}

	distance := -b - math.Sqrt(discriminant)
	if distance < 0 {
		return 0, direction.Mul(-1), true
	}
	if distance > maxDistance {
		return 0, mgl64.Vec3{}, false
	}

	normal := origin.Add(direction.Mul(distance)).Sub(center)
	if radius > 0 {
		normal = normal.Mul(1 / radius)
	}
	return distance, normal, true
}

// boxFaceNormal returns the outward normal of the face closest to a surface point.
func boxFaceNormal(halfExtents, point mgl64.Vec3) mgl64.Vec3 {
	axis, best := 0, math.Inf(-1)
	for i := 0; i < 3; i++ {
		if halfExtents[i] <= 0 {
			continue
		}
		if score := math.Abs(point[i]) / halfExtents[i]; score > best {
			axis, best = i, score
		}
	}

	var normal mgl64.Vec3
	normal[axis] = math.Copysign(1, point[axis])
	return normal
}
