package constraint

import (
	"math"

	"github.com/akmonengine/particle/actor"
)

// PCI is the predictive-corrective pass run after the solver. For every contact
// point it predicts the penetration at the end of the step from the current
// relative normal velocity, and applies at once the velocity change that brings
// it back to Slop. Nothing is accumulated between points or iterations.
type PCI struct {
	Iterations int
	Slop       float64
}

// minPCIStep guards the division by dt.
const minPCIStep = 1e-4

// Apply runs the pass over contacts and returns the number of corrections applied.
// Iterations == 0 disables it.
func (p PCI) Apply(bodies *actor.BodyStore, contacts []*ContactConstraint, dt float64) int {
	if p.Iterations <= 0 || len(contacts) == 0 {
		return 0
	}
	dt = math.Max(dt, minPCIStep)

	corrections := 0
	for iteration := 0; iteration < p.Iterations; iteration++ {
		for _, c := range contacts {
			a, b := c.BodyA, c.BodyB
			if !bodies.IsDynamic(a) && !bodies.IsDynamic(b) {
				continue
			}

			positionA := bodies.Transforms[a].Position
			positionB := bodies.Transforms[b].Position

			for i := range c.Points {
				point := &c.Points[i]
				rA := point.Position.Sub(positionA)
				rB := point.Position.Sub(positionB)

				normalSpeed := relativeVelocity(bodies, a, b, rA, rB).Dot(c.Normal)
				predicted := point.Depth - normalSpeed*dt
				if predicted <= p.Slop {
					continue
				}

				k := inverseMassAlong(bodies, a, b, rA, rB, c.Normal)
				if k <= EffectiveMassEpsilon {
					continue
				}

				velocityBias := (predicted - p.Slop) / dt
				applyPairImpulse(bodies, a, b, rA, rB, c.Normal.Mul(velocityBias/k))
				corrections++
			}
		}
	}

	return corrections
}
