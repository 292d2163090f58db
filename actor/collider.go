package actor

import (
	"math"

	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// CollisionFilter culls pairs before the narrow-phase: two colliders
// interact only if each one's layer is accepted by the other's mask.
type CollisionFilter struct {
	Layer uint32
	Mask  uint32
}

// DefaultCollisionFilter puts the collider on layer 1 and accepts every layer.
func DefaultCollisionFilter() CollisionFilter {
	return CollisionFilter{Layer: 1, Mask: math.MaxUint32}
}

// CanCollide is symmetric.
func (f CollisionFilter) CanCollide(other CollisionFilter) bool {
	return f.Layer&other.Mask != 0 && other.Layer&f.Mask != 0
}

// Accepts reports whether a query mask selects this collider's layer.
func (f CollisionFilter) Accepts(mask uint32) bool {
	return f.Layer&mask != 0
}

// Collider attaches a shape to a rigid body.
type Collider struct {
	// Body is the owning rigid body.
	Body   arena.EntityID
	Shape  Shape
	Offset Transform // relative to the body
	// IsTrigger colliders report overlaps and never receive impulses.
	IsTrigger bool
	Filter    CollisionFilter
}

// NewCollider creates a solid collider with an identity offset and the default filter.
func NewCollider(body arena.EntityID, shape Shape) Collider {
	return Collider{
		Body:   body,
		Shape:  shape,
		Offset: NewTransform(),
		Filter: DefaultCollisionFilter(),
	}
}

// WorldTransform places the collider with its body transform.
func (c *Collider) WorldTransform(body Transform) Transform {
	return body.Combine(c.Offset)
}

func (c *Collider) BoundingRadius() float64 {
	if c.Shape == nil {
		return 0
	}
	return c.Shape.BoundingRadius()
}

// WorldAABB is the box of the collider bounding sphere.
func (c *Collider) WorldAABB(body Transform) AABB {
	return AABBFromSphere(c.WorldTransform(body).Position, c.BoundingRadius())
}

// Support evaluates the shape support function in world space.
func (c *Collider) Support(body Transform, direction mgl64.Vec3) mgl64.Vec3 {
	return SupportWorld(c.Shape, c.WorldTransform(body), direction)
}
