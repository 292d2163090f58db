package constraint

import (
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// Joint is a constraint between two rigid bodies, declared by entity id.
// The world binds it to the current dense indices before each step.
type Joint interface {
	Constraint
	Entities() (arena.EntityID, arena.EntityID)
	Bind(a, b int)
}

// jointBodies holds the body pair and anchors shared by the joints.
type jointBodies struct {
	BodyA, BodyB arena.EntityID
	// LocalAnchorA and LocalAnchorB are attachment points in each body frame.
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3

	a, b   int
	rA, rB mgl64.Vec3
	axis   mgl64.Vec3
	length float64
}

func (j *jointBodies) Entities() (arena.EntityID, arena.EntityID) {
	return j.BodyA, j.BodyB
}

func (j *jointBodies) Bind(a, b int) {
	j.a, j.b = a, b
}

func (j *jointBodies) Bodies() (int, int) {
	return j.a, j.b
}

// anchors computes the world arms and the unit axis from anchor A to anchor B.
func (j *jointBodies) anchors(bodies *actor.BodyStore) {
	transformA := bodies.Transforms[j.a]
	transformB := bodies.Transforms[j.b]

	j.rA = transformA.TransformDirection(j.LocalAnchorA)
	j.rB = transformB.TransformDirection(j.LocalAnchorB)

	delta := transformB.Position.Add(j.rB).Sub(transformA.Position.Add(j.rA))
	j.length = delta.Len()
	if j.length > 1e-9 {
		j.axis = delta.Mul(1 / j.length)
	} else {
		j.axis = mgl64.Vec3{0, 1, 0}
	}
}

// DistanceJoint keeps two anchors at a fixed distance, like a rigid rod.
type DistanceJoint struct {
	jointBodies
	Length float64

	mass    float64
	bias    float64
	impulse float64
}

func NewDistanceJoint(bodyA, bodyB arena.EntityID, anchorA, anchorB mgl64.Vec3, length float64) *DistanceJoint {
	return &DistanceJoint{
		jointBodies: jointBodies{BodyA: bodyA, BodyB: bodyB, LocalAnchorA: anchorA, LocalAnchorB: anchorB},
		Length:      length,
	}
}

func (j *DistanceJoint) PreSolve(bodies *actor.BodyStore, step Step) {
	j.anchors(bodies)

	j.mass = 0
	if k := inverseMassAlong(bodies, j.a, j.b, j.rA, j.rB, j.axis); k > EffectiveMassEpsilon {
		j.mass = 1 / k
	}
	j.bias = -step.BiasFactor / step.DT * (j.length - j.Length)
	if !step.WarmStart {
		j.impulse = 0
	}
}

func (j *DistanceJoint) WarmStart(bodies *actor.BodyStore) {
	if j.impulse != 0 {
		applyPairImpulse(bodies, j.a, j.b, j.rA, j.rB, j.axis.Mul(j.impulse))
	}
}

func (j *DistanceJoint) SolveVelocity(bodies *actor.BodyStore) {
	if j.mass == 0 {
		return
	}
	speed := relativeVelocity(bodies, j.a, j.b, j.rA, j.rB).Dot(j.axis)
	lambda := j.mass * (j.bias - speed)
	j.impulse += lambda
	applyPairImpulse(bodies, j.a, j.b, j.rA, j.rB, j.axis.Mul(lambda))
}

// SpringJoint pulls two anchors toward RestLength with a damped Hooke force.
// The force is integrated once per step, as an impulse.
type SpringJoint struct {
	jointBodies
	RestLength float64
	Stiffness  float64 // N/m
	Damping    float64 // N⋅s/m

	impulse float64
}

func NewSpringJoint(bodyA, bodyB arena.EntityID, anchorA, anchorB mgl64.Vec3, restLength, stiffness, damping float64) *SpringJoint {
	return &SpringJoint{
		jointBodies: jointBodies{BodyA: bodyA, BodyB: bodyB, LocalAnchorA: anchorA, LocalAnchorB: anchorB},
		RestLength:  restLength,
		Stiffness:   stiffness,
		Damping:     damping,
	}
}

// PreSolve applies F = -k(x - rest) - c*v along the spring axis, toward B.
func (j *SpringJoint) PreSolve(bodies *actor.BodyStore, step Step) {
	j.anchors(bodies)

	speed := relativeVelocity(bodies, j.a, j.b, j.rA, j.rB).Dot(j.axis)
	force := -j.Stiffness*(j.length-j.RestLength) - j.Damping*speed

	j.impulse = force * step.DT
	if j.impulse != 0 {
		applyPairImpulse(bodies, j.a, j.b, j.rA, j.rB, j.axis.Mul(j.impulse))
	}
}

func (j *SpringJoint) WarmStart(*actor.BodyStore) {}

func (j *SpringJoint) SolveVelocity(*actor.BodyStore) {}

// Impulse returns the impulse applied during the last step.
func (j *SpringJoint) Impulse() float64 {
	return j.impulse
}

// Impulse returns the accumulated impulse of the last step.
func (j *DistanceJoint) Impulse() float64 {
	return j.impulse
}
