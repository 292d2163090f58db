// Package ccd keeps fast bodies from tunneling through thin geometry.
//
// Two techniques are layered on the narrow phase:
//   - speculative contacts: a separated pair that may close the gap within the
//     step gets a contact now, with a negative depth equal to the separation
//   - sweeps: fast movers are advanced conservatively along their motion until
//     they touch, yielding the time of impact and a contact at that time
package ccd

import (
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Body is a shape moving with constant velocities over one step.
type Body struct {
	Shape           actor.Shape
	Transform       actor.Transform
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// At returns the transform of the body t seconds into the step.
func (b Body) At(t float64) actor.Transform {
	transform := b.Transform
	transform.Position = transform.Position.Add(b.Velocity.Mul(t))
	if speed := b.AngularVelocity.Len(); speed > 0 {
		// exact rotation about a constant axis
		step := mgl64.QuatRotate(speed*t, b.AngularVelocity.Mul(1/speed))
		transform.Rotation = step.Mul(transform.Rotation).Normalize()
	}
	return transform
}

// convex returns the support mapping of the body at transform. Degenerate shapes
// are replaced by their bounding sphere.
func (b Body) convex(transform actor.Transform) gjk.Convex {
	if b.Shape.IsDegenerate() {
		return gjk.Ball{Position: transform.Position, Radius: b.Shape.BoundingRadius()}
	}
	return gjk.Placed{Shape: b.Shape, Transform: transform}
}

// Pair is one query of the batched speculative pass.
type Pair struct {
	A, B Body
}

// Detector holds the CCD parameters of a world.
type Detector struct {
	// MotionThreshold is the per-step displacement, as a multiple of the bounding
	// radius, above which a body is swept instead of getting speculative contacts.
	MotionThreshold float64
	// SpeculativeMargin is the predicted separation under which a contact is generated.
	SpeculativeMargin float64
	// MaxIterations bounds the conservative advancement loop.
	MaxIterations int
	// Tolerance is the distance at which a sweep considers the shapes touching.
	Tolerance float64
}

func DefaultDetector() Detector {
	return Detector{
		MotionThreshold:   1.0,
		SpeculativeMargin: 0.05,
		MaxIterations:     32,
		Tolerance:         1e-3,
	}
}

// IsFastMover reports a body whose displacement over dt exceeds MotionThreshold
// times its bounding radius.
func (d Detector) IsFastMover(b Body, dt float64) bool {
	extent := b.Shape.BoundingRadius()
	return b.Velocity.Len()*dt > d.MotionThreshold*extent
}
