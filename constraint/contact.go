package constraint

import (
	"math"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// slidingSpeed is the tangential speed above which the dynamic friction coefficient applies.
const slidingSpeed = 0.01

// ContactPoint is one point of a contact manifold, with its accumulated impulses.
type ContactPoint struct {
	Position mgl64.Vec3
	// LocalA is Position in the frame of collider A, used to match points across steps.
	LocalA mgl64.Vec3
	// Depth is positive when penetrating, negative for speculative contacts.
	Depth   float64
	Feature uint32

	NormalImpulse  float64
	TangentImpulse [2]float64

	rA, rB      mgl64.Vec3
	normalMass  float64
	tangentMass [2]float64
	friction    float64
	bias        float64
}

// Speculative reports a point that is not touching yet.
func (p *ContactPoint) Speculative() bool {
	return p.Depth < 0
}

// ContactConstraint is the manifold between two colliders, solved on their bodies.
type ContactConstraint struct {
	ColliderA, ColliderB arena.EntityID
	// BodyA and BodyB are dense BodyStore indices.
	BodyA, BodyB int

	// Normal points from A toward B.
	Normal   mgl64.Vec3
	Points   []ContactPoint
	Material actor.MaterialPair

	tangents [2]mgl64.Vec3
}

func (c *ContactConstraint) Bodies() (int, int) {
	return c.BodyA, c.BodyB
}

// PreSolve computes the arms, the effective masses along the normal and both tangents,
// and the velocity bias of each point.
//
// Penetrating points get a Baumgarte term bias*(depth-slop)/dt plus restitution when the
// approach speed exceeds the threshold. Speculative points get depth/dt: the pair may
// close the gap within the step, never more, and they never bounce.
func (c *ContactConstraint) PreSolve(bodies *actor.BodyStore, step Step) {
	a, b := c.BodyA, c.BodyB
	c.tangents[0], c.tangents[1] = actor.TangentBasis(c.Normal)

	positionA := bodies.Transforms[a].Position
	positionB := bodies.Transforms[b].Position

	for i := range c.Points {
		p := &c.Points[i]
		p.rA = p.Position.Sub(positionA)
		p.rB = p.Position.Sub(positionB)

		p.normalMass = 0
		if k := inverseMassAlong(bodies, a, b, p.rA, p.rB, c.Normal); k > EffectiveMassEpsilon {
			p.normalMass = 1 / k
		}
		for t := 0; t < 2; t++ {
			p.tangentMass[t] = 0
			if k := inverseMassAlong(bodies, a, b, p.rA, p.rB, c.tangents[t]); k > EffectiveMassEpsilon {
				p.tangentMass[t] = 1 / k
			}
		}

		relative := relativeVelocity(bodies, a, b, p.rA, p.rB)
		normalSpeed := relative.Dot(c.Normal)

		tangentSpeed := relative.Sub(c.Normal.Mul(normalSpeed)).Len()
		p.friction = c.Material.StaticFriction
		if tangentSpeed > slidingSpeed {
			p.friction = c.Material.DynamicFriction
		}

		if p.Speculative() {
			p.bias = p.Depth / step.DT
			continue
		}

		p.bias = step.BiasFactor / step.DT * math.Max(p.Depth-step.Slop, 0)
		if normalSpeed < -step.RestitutionThreshold {
			p.bias = math.Max(p.bias, -c.Material.Restitution*normalSpeed)
		}
	}
}

func (c *ContactConstraint) WarmStart(bodies *actor.BodyStore) {
	for i := range c.Points {
		p := &c.Points[i]
		impulse := c.Normal.Mul(p.NormalImpulse).
			Add(c.tangents[0].Mul(p.TangentImpulse[0])).
			Add(c.tangents[1].Mul(p.TangentImpulse[1]))
		if impulse.LenSqr() == 0 {
			continue
		}
		applyPairImpulse(bodies, c.BodyA, c.BodyB, p.rA, p.rB, impulse)
	}
}

// SolveVelocity clamps the accumulated normal impulse to be non-negative, then
// clamps each tangent impulse to the friction cone friction*normal impulse.
func (c *ContactConstraint) SolveVelocity(bodies *actor.BodyStore) {
	a, b := c.BodyA, c.BodyB

	for i := range c.Points {
		p := &c.Points[i]
		if p.normalMass == 0 {
			continue
		}

		// ========== NORMAL ==========
		normalSpeed := relativeVelocity(bodies, a, b, p.rA, p.rB).Dot(c.Normal)
		lambda := p.normalMass * (p.bias - normalSpeed)

		accumulated := math.Max(p.NormalImpulse+lambda, 0)
		lambda = accumulated - p.NormalImpulse
		p.NormalImpulse = accumulated

		if lambda != 0 {
			applyPairImpulse(bodies, a, b, p.rA, p.rB, c.Normal.Mul(lambda))
		}

		// ========== FRICTION ==========
		maxFriction := p.friction * p.NormalImpulse
		for t := 0; t < 2; t++ {
			if p.tangentMass[t] == 0 {
				continue
			}
			tangent := c.tangents[t]
			tangentSpeed := relativeVelocity(bodies, a, b, p.rA, p.rB).Dot(tangent)
			lambda := -p.tangentMass[t] * tangentSpeed

			accumulated := math.Max(-maxFriction, math.Min(p.TangentImpulse[t]+lambda, maxFriction))
			lambda = accumulated - p.TangentImpulse[t]
			p.TangentImpulse[t] = accumulated

			if lambda != 0 {
				applyPairImpulse(bodies, a, b, p.rA, p.rB, tangent.Mul(lambda))
			}
		}
	}
}

func (c *ContactConstraint) resetImpulses() {
	for i := range c.Points {
		c.Points[i].NormalImpulse = 0
		c.Points[i].TangentImpulse = [2]float64{}
	}
}

// MaxDepth returns the deepest point of the contact.
func (c *ContactConstraint) MaxDepth() float64 {
	depth := math.Inf(-1)
	for _, p := range c.Points {
		depth = math.Max(depth, p.Depth)
	}
	return depth
}
