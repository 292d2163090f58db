package particle

import (
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// ForceGenerator accumulates forces on the bodies at the start of every substep.
// Gravity is built into the integrator and needs no generator.
type ForceGenerator interface {
	Apply(bodies *actor.BodyStore)
}

// DragForce opposes the motion of every awake dynamic body:
// F = -Linear*v - Quadratic*|v|*v
type DragForce struct {
	Linear    float64
	Quadratic float64
}

func (d DragForce) Apply(bodies *actor.BodyStore) {
	for i := 0; i < bodies.Len(); i++ {
		if !bodies.IsDynamic(i) || !bodies.Awake[i] {
			continue
		}
		v := bodies.Velocities[i]
		coefficient := d.Linear + d.Quadratic*v.Len()
		bodies.Forces[i] = bodies.Forces[i].Sub(v.Mul(coefficient))
	}
}

// SpringForce is a damped spring between two anchors, given in each body frame.
// It pulls with Stiffness*(length-RestLength) plus Damping times the stretching speed.
type SpringForce struct {
	BodyA, BodyB     arena.EntityID
	AnchorA, AnchorB mgl64.Vec3
	RestLength       float64
	Stiffness        float64
	Damping          float64
}

func (s *SpringForce) Apply(bodies *actor.BodyStore) {
	a, b, ok := bodies.Pair(s.BodyA, s.BodyB)
	if !ok || (!bodies.Awake[a] && !bodies.Awake[b]) {
		return
	}

	rA := bodies.Transforms[a].TransformDirection(s.AnchorA)
	rB := bodies.Transforms[b].TransformDirection(s.AnchorB)
	delta := bodies.Transforms[b].Position.Add(rB).Sub(bodies.Transforms[a].Position.Add(rA))
	length := delta.Len()
	if length < 1e-9 {
		return
	}
	axis := delta.Mul(1 / length)

	speed := bodies.VelocityAt(b, rB).Sub(bodies.VelocityAt(a, rA)).Dot(axis)
	force := axis.Mul(s.Stiffness*(length-s.RestLength) + s.Damping*speed)

	for _, end := range []struct {
		index int
		arm   mgl64.Vec3
		force mgl64.Vec3
	}{{a, rA, force}, {b, rB, force.Mul(-1)}} {
		if !bodies.IsDynamic(end.index) {
			continue
		}
		bodies.Wake(end.index)
		bodies.Forces[end.index] = bodies.Forces[end.index].Add(end.force)
		bodies.Torques[end.index] = bodies.Torques[end.index].Add(end.arm.Cross(end.force))
	}
}
