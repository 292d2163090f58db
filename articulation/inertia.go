package articulation

import (
	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// SpatialInertia is the rigid-body inertia of a link: its mass, its center of
// mass in the link frame, and its rotational inertia about the center of mass.
type SpatialInertia struct {
	Mass    float64
	COM     mgl64.Vec3
	Inertia mgl64.Mat3
}

// Matrix returns the 6x6 inertia about the frame origin:
//
//	| Ic - m c×c×   m c× |
//	| -m c×         m 1  |
func (s SpatialInertia) Matrix() SpatialMat {
	c := skew(s.COM)
	mc := c.Mul(s.Mass)
	return SpatialMat{
		M00: s.Inertia.Sub(c.Mul3(c).Mul(s.Mass)),
		M01: mc,
		M10: mc.Mul(-1),
		M11: mgl64.Ident3().Mul(s.Mass),
	}
}

// MulMotion returns the momentum I v without building the matrix.
func (s SpatialInertia) MulMotion(v SpatialVec) SpatialVec {
	// velocity of the center of mass
	vc := v.Linear.Add(v.Angular.Cross(s.COM))
	linear := vc.Mul(s.Mass)
	return SpatialVec{
		Angular: s.Inertia.Mul3x1(v.Angular).Add(s.COM.Cross(linear)),
		Linear:  linear,
	}
}

// Add merges two inertias expressed in the same frame. Both rotational
// inertias are moved to the combined center of mass with the parallel-axis
// theorem.
func (s SpatialInertia) Add(other SpatialInertia) SpatialInertia {
	total := s.Mass + other.Mass
	if total <= actor.MassEpsilon {
		return s
	}

	com := s.COM.Mul(s.Mass).Add(other.COM.Mul(other.Mass)).Mul(1 / total)
	inertia := s.Inertia.Add(parallelAxis(s.COM.Sub(com), s.Mass)).
		Add(other.Inertia).Add(parallelAxis(other.COM.Sub(com), other.Mass))

	return SpatialInertia{Mass: total, COM: com, Inertia: inertia}
}

// Transformed expresses the inertia in the parent frame of pose.
func (s SpatialInertia) Transformed(pose actor.Transform) SpatialInertia {
	r := pose.RotationMatrix()
	return SpatialInertia{
		Mass:    s.Mass,
		COM:     pose.TransformPoint(s.COM),
		Inertia: r.Mul3(s.Inertia).Mul3(r.Transpose()),
	}
}

// parallelAxis returns m (|d|² 1 - d dᵀ), the inertia added by moving a mass
// by offset d from its center.
func parallelAxis(d mgl64.Vec3, mass float64) mgl64.Mat3 {
	return mgl64.Ident3().Mul(d.Dot(d)).Sub(outer(d, d)).Mul(mass)
}
