package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DegenerateEpsilon is the extent under which a shape is treated as degenerate.
const DegenerateEpsilon = 1e-6

// ShapeKind represents the type of collision shape
type ShapeKind int

const (
	ShapeKindSphere ShapeKind = iota
	ShapeKindBox
	ShapeKindMesh
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeKindSphere:
		return "sphere"
	case ShapeKindBox:
		return "box"
	case ShapeKindMesh:
		return "mesh"
	default:
		return "unknown"
	}
}

// Shape is the closed set of collision geometries: *Sphere, *Box and *Mesh.
// Every query is expressed in the shape's local space.
type Shape interface {
	Kind() ShapeKind
	// Support returns the farthest local point along direction.
	Support(direction mgl64.Vec3) mgl64.Vec3
	// BoundingRadius is the radius of the local sphere centred on the origin enclosing the shape.
	BoundingRadius() float64
	LocalAABB() AABB
	// MassProperties returns mass and local inertia for a uniform density.
	MassProperties(density float64) (float64, mgl64.Mat3)
	// IsDegenerate reports a zero or near-zero extent.
	IsDegenerate() bool

	sealed()
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
}

func NewSphere(radius float64) *Sphere {
	return &Sphere{Radius: radius}
}

func (s *Sphere) Kind() ShapeKind { return ShapeKindSphere }
func (s *Sphere) sealed()         {}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	length := direction.Len()
	if length < 1e-12 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return direction.Mul(s.Radius / length)
}

func (s *Sphere) BoundingRadius() float64 {
	return math.Max(s.Radius, 0)
}

func (s *Sphere) LocalAABB() AABB {
	return AABBFromSphere(mgl64.Vec3{}, s.BoundingRadius())
}

func (s *Sphere) MassProperties(density float64) (float64, mgl64.Mat3) {
	// Volume of sphere = (4/3) * π * r³
	mass := density * (4.0 / 3.0) * math.Pi * s.Radius * s.Radius * s.Radius

	// I = (2/5) * m * r², same on all axes
	i := 0.4 * mass * s.Radius * s.Radius
	return mass, mgl64.Diag3(mgl64.Vec3{i, i, i})
}

func (s *Sphere) IsDegenerate() bool {
	return s.Radius < DegenerateEpsilon
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func NewBox(halfExtents mgl64.Vec3) *Box {
	return &Box{HalfExtents: halfExtents}
}

func (b *Box) Kind() ShapeKind { return ShapeKindBox }
func (b *Box) sealed()         {}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

func (b *Box) BoundingRadius() float64 {
	return b.HalfExtents.Len()
}

func (b *Box) LocalAABB() AABB {
	return AABB{Min: b.HalfExtents.Mul(-1), Max: b.HalfExtents}
}

func (b *Box) MassProperties(density float64) (float64, mgl64.Mat3) {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	mass := density * 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()
	return mass, BoxInertia(b.HalfExtents, mass)
}

func (b *Box) IsDegenerate() bool {
	return b.HalfExtents.X() < DegenerateEpsilon ||
		b.HalfExtents.Y() < DegenerateEpsilon ||
		b.HalfExtents.Z() < DegenerateEpsilon
}

// Corners returns the 8 local corners.
func (b *Box) Corners() [8]mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()
	return [8]mgl64.Vec3{
		{-hx, -hy, -hz},
		{+hx, -hy, -hz},
		{-hx, +hy, -hz},
		{+hx, +hy, -hz},
		{-hx, -hy, +hz},
		{+hx, -hy, +hz},
		{-hx, +hy, +hz},
		{+hx, +hy, +hz},
	}
}

// Face returns the local face most aligned with direction: its outward normal
// and its 4 vertices, counter-clockwise seen from outside.
func (b *Box) Face(direction mgl64.Vec3) (mgl64.Vec3, [4]mgl64.Vec3) {
	axis := 0
	best := math.Abs(direction[0])
	for i := 1; i < 3; i++ {
		if math.Abs(direction[i]) > best {
			best = math.Abs(direction[i])
			axis = i
		}
	}

	sign := 1.0
	if direction[axis] < 0 {
		sign = -1.0
	}

	u := (axis + 1) % 3
	v := (axis + 2) % 3

	var normal mgl64.Vec3
	normal[axis] = sign

	corner := func(su, sv float64) mgl64.Vec3 {
		var p mgl64.Vec3
		p[axis] = sign * b.HalfExtents[axis]
		p[u] = su * b.HalfExtents[u]
		p[v] = sv * b.HalfExtents[v]
		return p
	}

	// u x v = axis, so (u,v) winding is CCW around +axis; flip it for the negative face
	if sign > 0 {
		return normal, [4]mgl64.Vec3{corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)}
	}
	return normal, [4]mgl64.Vec3{corner(-1, -1), corner(-1, 1), corner(1, 1), corner(1, -1)}
}

// BoxInertia is the solid box inertia: I = (m/12) * (dimension1² + dimension2²)
func BoxInertia(halfExtents mgl64.Vec3, mass float64) mgl64.Mat3 {
	x := halfExtents.X() * 2
	y := halfExtents.Y() * 2
	z := halfExtents.Z() * 2

	factor := mass / 12.0
	return mgl64.Diag3(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}

// WorldAABB returns the bounding-sphere box of shape placed at transform.
func WorldAABB(shape Shape, transform Transform) AABB {
	return AABBFromSphere(transform.Position, shape.BoundingRadius())
}

// SupportWorld evaluates the support function of shape placed at transform.
func SupportWorld(shape Shape, transform Transform, direction mgl64.Vec3) mgl64.Vec3 {
	// 1. direction to local space, 2. local support, 3. back to world space
	local := shape.Support(transform.InverseTransformDirection(direction))
	return transform.TransformPoint(local)
}

// TangentBasis returns two unit vectors orthogonal to normal and to each other.
func TangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var tangent1 mgl64.Vec3
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	} else {
		tangent1 = mgl64.Vec3{1, 0, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
