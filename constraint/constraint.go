// Package constraint solves contacts and joints between rigid bodies with
// sequential impulses, island by island.
package constraint

import (
	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// EffectiveMassEpsilon is the inverse effective mass under which a constraint row is skipped.
const EffectiveMassEpsilon = 1e-10

// Step carries the per-step solver parameters shared by every constraint.
type Step struct {
	DT float64
	// BiasFactor is the Baumgarte fraction of the position error corrected per step.
	BiasFactor float64
	// Slop is the penetration tolerated without position correction.
	Slop float64
	// RestitutionThreshold is the approach speed under which contacts do not bounce.
	RestitutionThreshold float64
	// WarmStart keeps the impulses accumulated during the previous step.
	WarmStart bool
}

// Constraint is a velocity constraint between two bodies of a BodyStore,
// addressed by dense index.
type Constraint interface {
	Bodies() (int, int)
	// PreSolve caches arms, effective masses and biases for the step.
	PreSolve(bodies *actor.BodyStore, step Step)
	// WarmStart applies the impulses accumulated during the previous step.
	WarmStart(bodies *actor.BodyStore)
	// SolveVelocity runs one Gauss-Seidel iteration.
	SolveVelocity(bodies *actor.BodyStore)
}

// inverseMassAlong returns the inverse effective mass of the pair along direction
// for arms rA and rB: 1/mA + 1/mB + (IA⁻¹(rA×d))·(rA×d) + (IB⁻¹(rB×d))·(rB×d)
func inverseMassAlong(bodies *actor.BodyStore, a, b int, rA, rB, direction mgl64.Vec3) float64 {
	rACrossD := rA.Cross(direction)
	rBCrossD := rB.Cross(direction)

	k := bodies.InverseMasses[a] + bodies.InverseMasses[b]
	k += bodies.InverseInertiasWorld[a].Mul3x1(rACrossD).Dot(rACrossD)
	k += bodies.InverseInertiasWorld[b].Mul3x1(rBCrossD).Dot(rBCrossD)
	return k
}

// relativeVelocity is the velocity of B's material point at rB relative to A's at rA.
func relativeVelocity(bodies *actor.BodyStore, a, b int, rA, rB mgl64.Vec3) mgl64.Vec3 {
	return bodies.VelocityAt(b, rB).Sub(bodies.VelocityAt(a, rA))
}

// applyPairImpulse pushes B by impulse and A by its opposite.
func applyPairImpulse(bodies *actor.BodyStore, a, b int, rA, rB, impulse mgl64.Vec3) {
	bodies.ApplyImpulse(a, impulse.Mul(-1), rA)
	bodies.ApplyImpulse(b, impulse, rB)
}

func clampSmallVelocities(bodies *actor.BodyStore, i int) {
	const velocityThreshold = 1e-5

	if bodies.Velocities[i].Len() < velocityThreshold {
		bodies.Velocities[i] = mgl64.Vec3{0, 0, 0}
	}
	if bodies.AngularVelocities[i].Len() < velocityThreshold {
		bodies.AngularVelocities[i] = mgl64.Vec3{0, 0, 0}
	}
}
