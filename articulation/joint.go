package articulation

import (
	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

type JointType int

const (
	// JointFixed welds a link to its parent: no degree of freedom.
	JointFixed JointType = iota
	// JointRevolute rotates a link about Axis: one degree of freedom, in radians.
	JointRevolute
	// JointPrismatic slides a link along Axis: one degree of freedom, in meters.
	JointPrismatic
)

func (t JointType) String() string {
	switch t {
	case JointFixed:
		return "fixed"
	case JointRevolute:
		return "revolute"
	case JointPrismatic:
		return "prismatic"
	default:
		return "unknown"
	}
}

// ParseJointType is the inverse of JointType.String.
func ParseJointType(name string) (JointType, bool) {
	for _, t := range []JointType{JointFixed, JointRevolute, JointPrismatic} {
		if t.String() == name {
			return t, true
		}
	}
	return JointFixed, false
}

// Joint connects a link to its parent. Axis is a unit vector in the joint frame.
type Joint struct {
	Type JointType
	Axis mgl64.Vec3
}

func Fixed() Joint {
	return Joint{Type: JointFixed}
}

func Revolute(axis mgl64.Vec3) Joint {
	return Joint{Type: JointRevolute, Axis: axis.Normalize()}
}

func Prismatic(axis mgl64.Vec3) Joint {
	return Joint{Type: JointPrismatic, Axis: axis.Normalize()}
}

// Dofs returns the number of generalized coordinates of the joint.
func (j Joint) Dofs() int {
	if j.Type == JointFixed {
		return 0
	}
	return 1
}

// Subspace returns the motion subspace S: the spatial velocity produced by a
// unit joint velocity, in the child frame.
func (j Joint) Subspace() SpatialVec {
	switch j.Type {
	case JointRevolute:
		return SpatialVec{Angular: j.Axis}
	case JointPrismatic:
		return SpatialVec{Linear: j.Axis}
	default:
		return SpatialVec{}
	}
}

// Transform returns the pose of the child frame in the joint frame at position q.
func (j Joint) Transform(q float64) actor.Transform {
	switch j.Type {
	case JointRevolute:
		return actor.NewTransformWith(mgl64.Vec3{}, mgl64.QuatRotate(q, j.Axis))
	case JointPrismatic:
		return actor.NewTransformAt(j.Axis.Mul(q))
	default:
		return actor.NewTransform()
	}
}
