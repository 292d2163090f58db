package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position, orientation and scale in 3D space.
// Collision shapes ignore Scale: it is carried for renderers consuming body transforms.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// NewTransformAt creates an unrotated transform at position
func NewTransformAt(position mgl64.Vec3) Transform {
	t := NewTransform()
	t.Position = position
	return t
}

// NewTransformWith creates a transform from a position and a rotation
func NewTransformWith(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	t := NewTransform()
	t.Position = position
	t.Rotation = rotation.Normalize()
	return t
}

// InverseRotation returns the conjugate of the (unit) rotation.
func (t Transform) InverseRotation() mgl64.Quat {
	return t.Rotation.Conjugate()
}

// TransformPoint maps a local point to world space (scale excluded).
func (t Transform) TransformPoint(local mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(local).Add(t.Position)
}

// TransformDirection rotates a local direction to world space.
func (t Transform) TransformDirection(local mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(local)
}

// InverseTransformPoint maps a world point to local space.
func (t Transform) InverseTransformPoint(world mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(world.Sub(t.Position))
}

// InverseTransformDirection rotates a world direction to local space.
func (t Transform) InverseTransformDirection(world mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(world)
}

// Combine applies local on top of t (parent * child). Like TransformPoint it
// does not scale the child offset; the scales are only multiplied through.
func (t Transform) Combine(local Transform) Transform {
	scale := t.scaleOrOne()
	childScale := local.scaleOrOne()

	return Transform{
		Position: t.TransformPoint(local.Position),
		Rotation: t.Rotation.Mul(local.Rotation).Normalize(),
		Scale:    mgl64.Vec3{scale[0] * childScale[0], scale[1] * childScale[1], scale[2] * childScale[2]},
	}
}

// Matrix returns the homogeneous scale-rotation-translation matrix.
func (t Transform) Matrix() mgl64.Mat4 {
	s := t.scaleOrOne()
	return mgl64.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(t.Rotation.Mat4()).
		Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
}

// RotationMatrix returns the 3x3 rotation matrix of the transform.
func (t Transform) RotationMatrix() mgl64.Mat3 {
	return t.Rotation.Mat4().Mat3()
}

func (t Transform) scaleOrOne() mgl64.Vec3 {
	if t.Scale == (mgl64.Vec3{}) {
		return mgl64.Vec3{1, 1, 1}
	}
	return t.Scale
}
