package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MassEpsilon is the mass under which a body is treated as immovable.
const MassEpsilon = 1e-9

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies move with their velocity only.
	// They push dynamic bodies but are never pushed back.
	BodyTypeKinematic
)

func (t BodyType) String() string {
	switch t {
	case BodyTypeDynamic:
		return "dynamic"
	case BodyTypeStatic:
		return "static"
	case BodyTypeKinematic:
		return "kinematic"
	default:
		return "unknown"
	}
}

// RigidBody describes a body before its insertion in a BodyStore,
// and is the snapshot returned by BodyStore.Body.
type RigidBody struct {
	Transform Transform

	Velocity        mgl64.Vec3 // Linear velocity (m/s)
	AngularVelocity mgl64.Vec3 // rad/s

	Mass         float64
	InertiaLocal mgl64.Mat3

	Material Material
	BodyType BodyType

	GravityScale   float64
	LinearDamping  float64
	AngularDamping float64

	IsSleeping bool
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static)
func NewRigidBody(transform Transform, shape Shape, bodyType BodyType, density float64) *RigidBody {
	material := DefaultMaterial()
	material.Density = density

	rb := &RigidBody{
		Transform:      transform,
		Material:       material,
		BodyType:       bodyType,
		GravityScale:   1.0,
		LinearDamping:  0.02,
		AngularDamping: 0.02,
	}

	if bodyType != BodyTypeStatic && shape != nil {
		rb.Mass, rb.InertiaLocal = shape.MassProperties(density)
	}

	return rb
}

// InverseMass is 0 for static and kinematic bodies, and for near-zero masses.
func (rb *RigidBody) InverseMass() float64 {
	if rb.BodyType != BodyTypeDynamic || rb.Mass <= MassEpsilon {
		return 0
	}
	return 1.0 / rb.Mass
}

// InverseInertiaLocal returns the inverse of the local inertia tensor, or zero when it is singular.
func (rb *RigidBody) InverseInertiaLocal() mgl64.Mat3 {
	if rb.BodyType != BodyTypeDynamic || rb.Mass <= MassEpsilon {
		return mgl64.Mat3{}
	}
	if math.Abs(rb.InertiaLocal.Det()) < MassEpsilon {
		return mgl64.Mat3{}
	}
	return rb.InertiaLocal.Inv()
}

// SetMassProperties overrides the shape-derived mass and inertia.
func (rb *RigidBody) SetMassProperties(mass float64, inertia mgl64.Mat3) {
	rb.Mass = mass
	rb.InertiaLocal = inertia
}

// WorldInertia rotates a local tensor: I_world = R * I_local * R^T
func WorldInertia(rotation mgl64.Quat, local mgl64.Mat3) mgl64.Mat3 {
	R := rotation.Mat4().Mat3()
	return R.Mul3(local).Mul3(R.Transpose())
}

// IntegrateRotation advances a unit quaternion by an angular velocity over dt.
func IntegrateRotation(rotation mgl64.Quat, angularVelocity mgl64.Vec3, dt float64) mgl64.Quat {
	omegaQuat := mgl64.Quat{V: angularVelocity, W: 0}
	qDot := omegaQuat.Mul(rotation).Scale(0.5)
	return rotation.Add(qDot.Scale(dt)).Normalize()
}
