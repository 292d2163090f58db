// Package articulation simulates kinematic trees of links in reduced
// coordinates, with the articulated-body algorithm.
//
// Spatial quantities are 6-D vectors and matrices stacking an angular part over
// a linear part, expressed in the frame of one link at its origin:
//   - motion vectors: (angular velocity, velocity of the point at the origin)
//   - force vectors: (moment about the origin, force)
package articulation

import "github.com/go-gl/mathgl/mgl64"

// SpatialVec is a spatial motion or force vector.
type SpatialVec struct {
	Angular mgl64.Vec3
	Linear  mgl64.Vec3
}

func (v SpatialVec) Add(other SpatialVec) SpatialVec {
	return SpatialVec{Angular: v.Angular.Add(other.Angular), Linear: v.Linear.Add(other.Linear)}
}

func (v SpatialVec) Sub(other SpatialVec) SpatialVec {
	return SpatialVec{Angular: v.Angular.Sub(other.Angular), Linear: v.Linear.Sub(other.Linear)}
}

func (v SpatialVec) Mul(scalar float64) SpatialVec {
	return SpatialVec{Angular: v.Angular.Mul(scalar), Linear: v.Linear.Mul(scalar)}
}

// Dot pairs a motion with a force: the result is a power.
func (v SpatialVec) Dot(other SpatialVec) float64 {
	return v.Angular.Dot(other.Angular) + v.Linear.Dot(other.Linear)
}

// CrossMotion is the motion cross product v ×m m.
func (v SpatialVec) CrossMotion(m SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: v.Angular.Cross(m.Angular),
		Linear:  v.Angular.Cross(m.Linear).Add(v.Linear.Cross(m.Angular)),
	}
}

// CrossForce is the force cross product v ×f f.
func (v SpatialVec) CrossForce(f SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: v.Angular.Cross(f.Angular).Add(v.Linear.Cross(f.Linear)),
		Linear:  v.Angular.Cross(f.Linear),
	}
}

// SpatialMat is a 6x6 matrix stored as four 3x3 blocks:
//
//	| M00 M01 |
//	| M10 M11 |
type SpatialMat struct {
	M00, M01 mgl64.Mat3
	M10, M11 mgl64.Mat3
}

func (m SpatialMat) MulVec(v SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: m.M00.Mul3x1(v.Angular).Add(m.M01.Mul3x1(v.Linear)),
		Linear:  m.M10.Mul3x1(v.Angular).Add(m.M11.Mul3x1(v.Linear)),
	}
}

func (m SpatialMat) Mul(other SpatialMat) SpatialMat {
	return SpatialMat{
		M00: m.M00.Mul3(other.M00).Add(m.M01.Mul3(other.M10)),
		M01: m.M00.Mul3(other.M01).Add(m.M01.Mul3(other.M11)),
		M10: m.M10.Mul3(other.M00).Add(m.M11.Mul3(other.M10)),
		M11: m.M10.Mul3(other.M01).Add(m.M11.Mul3(other.M11)),
	}
}

func (m SpatialMat) Add(other SpatialMat) SpatialMat {
	return SpatialMat{
		M00: m.M00.Add(other.M00), M01: m.M01.Add(other.M01),
		M10: m.M10.Add(other.M10), M11: m.M11.Add(other.M11),
	}
}

func (m SpatialMat) Sub(other SpatialMat) SpatialMat {
	return SpatialMat{
		M00: m.M00.Sub(other.M00), M01: m.M01.Sub(other.M01),
		M10: m.M10.Sub(other.M10), M11: m.M11.Sub(other.M11),
	}
}

func (m SpatialMat) Scale(scalar float64) SpatialMat {
	return SpatialMat{
		M00: m.M00.Mul(scalar), M01: m.M01.Mul(scalar),
		M10: m.M10.Mul(scalar), M11: m.M11.Mul(scalar),
	}
}

func (m SpatialMat) Transpose() SpatialMat {
	return SpatialMat{
		M00: m.M00.Transpose(), M01: m.M10.Transpose(),
		M10: m.M01.Transpose(), M11: m.M11.Transpose(),
	}
}

// OuterProduct returns a bᵀ.
func OuterProduct(a, b SpatialVec) SpatialMat {
	return SpatialMat{
		M00: outer(a.Angular, b.Angular), M01: outer(a.Angular, b.Linear),
		M10: outer(a.Linear, b.Angular), M11: outer(a.Linear, b.Linear),
	}
}

// SpatialTransform is the Plücker transform from a parent frame to a child
// frame whose origin sits at Translation (parent coordinates) and whose axes are
// rotated so that child coordinates are Rotation times parent coordinates.
type SpatialTransform struct {
	Rotation    mgl64.Mat3
	Translation mgl64.Vec3
}

func IdentityTransform() SpatialTransform {
	return SpatialTransform{Rotation: mgl64.Ident3()}
}

// TransformFromPose returns the transform into a child frame placed at position
// with orientation rotation, both relative to the parent frame.
func TransformFromPose(position mgl64.Vec3, rotation mgl64.Quat) SpatialTransform {
	return SpatialTransform{
		Rotation:    rotation.Mat4().Mat3().Transpose(),
		Translation: position,
	}
}

// Compose returns the transform applying other first, then x.
func (x SpatialTransform) Compose(other SpatialTransform) SpatialTransform {
	return SpatialTransform{
		Rotation:    x.Rotation.Mul3(other.Rotation),
		Translation: other.Translation.Add(other.Rotation.Transpose().Mul3x1(x.Translation)),
	}
}

// ApplyMotion maps a motion vector from the parent frame to the child frame.
func (x SpatialTransform) ApplyMotion(v SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: x.Rotation.Mul3x1(v.Angular),
		Linear:  x.Rotation.Mul3x1(v.Linear.Sub(x.Translation.Cross(v.Angular))),
	}
}

// InverseApplyMotion maps a motion vector from the child frame to the parent frame.
func (x SpatialTransform) InverseApplyMotion(v SpatialVec) SpatialVec {
	rt := x.Rotation.Transpose()
	angular := rt.Mul3x1(v.Angular)
	return SpatialVec{
		Angular: angular,
		Linear:  rt.Mul3x1(v.Linear).Add(x.Translation.Cross(angular)),
	}
}

// ApplyForce maps a force vector from the parent frame to the child frame.
func (x SpatialTransform) ApplyForce(f SpatialVec) SpatialVec {
	return SpatialVec{
		Angular: x.Rotation.Mul3x1(f.Angular.Sub(x.Translation.Cross(f.Linear))),
		Linear:  x.Rotation.Mul3x1(f.Linear),
	}
}

// InverseApplyForce maps a force vector from the child frame to the parent frame.
func (x SpatialTransform) InverseApplyForce(f SpatialVec) SpatialVec {
	rt := x.Rotation.Transpose()
	linear := rt.Mul3x1(f.Linear)
	return SpatialVec{
		Angular: rt.Mul3x1(f.Angular).Add(x.Translation.Cross(linear)),
		Linear:  linear,
	}
}

// MotionMatrix returns the 6x6 matrix of ApplyMotion.
func (x SpatialTransform) MotionMatrix() SpatialMat {
	return SpatialMat{
		M00: x.Rotation,
		M10: x.Rotation.Mul3(skew(x.Translation)).Mul(-1),
		M11: x.Rotation,
	}
}

// InverseTransformInertia maps an inertia from the child frame to the parent
// frame: Xᵀ I X.
func (x SpatialTransform) InverseTransformInertia(inertia SpatialMat) SpatialMat {
	m := x.MotionMatrix()
	return m.Transpose().Mul(inertia).Mul(m)
}

// skew returns the matrix of the cross product v × ·.
func skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromCols(
		mgl64.Vec3{0, v[2], -v[1]},
		mgl64.Vec3{-v[2], 0, v[0]},
		mgl64.Vec3{v[1], -v[0], 0},
	)
}

func outer(a, b mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromCols(a.Mul(b[0]), a.Mul(b[1]), a.Mul(b[2]))
}
