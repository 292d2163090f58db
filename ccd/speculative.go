package ccd

import (
	"github.com/akmonengine/particle/gjk"
	"github.com/akmonengine/particle/manifold"
)

// Speculative returns a one-point manifold when a and b are separated now but
// their predicted separation at the end of the step, from the relative velocity
// along the closest-point normal, is under SpeculativeMargin.
//
// The returned depth is the negated separation at the start of the step, not a
// predicted penetration: the solver lets the bodies close exactly that gap
// before the contact pushes back.
//
// Overlapping pairs are left to the discrete narrow phase.
func (d Detector) Speculative(a, b Body, dt float64) (manifold.Manifold, bool) {
	result := gjk.Distance(a.convex(a.Transform), b.convex(b.Transform))
	return d.speculative(a, b, result, dt)
}

// SpeculativeContact is an accepted query of SpeculativeBatch.
type SpeculativeContact struct {
	// Index of the pair in the input slice.
	Index    int
	Manifold manifold.Manifold
}

// SpeculativeBatch runs Speculative over many pairs, evaluating their distances
// in lockstep through batch. Contacts are returned in pair order.
func (d Detector) SpeculativeBatch(batch *gjk.Batch, pairs []Pair, dt float64) []SpeculativeContact {
	if len(pairs) == 0 {
		return nil
	}

	queries := make([]gjk.Pair, len(pairs))
	for i, pair := range pairs {
		queries[i] = gjk.Pair{
			A: pair.A.convex(pair.A.Transform),
			B: pair.B.convex(pair.B.Transform),
		}
	}

	var contacts []SpeculativeContact
	for i, result := range batch.Distances(queries) {
		if m, ok := d.speculative(pairs[i].A, pairs[i].B, result, dt); ok {
			contacts = append(contacts, SpeculativeContact{Index: i, Manifold: m})
		}
	}
	return contacts
}

func (d Detector) speculative(a, b Body, result gjk.DistanceResult, dt float64) (manifold.Manifold, bool) {
	if result.Intersecting || result.Distance <= 0 {
		return manifold.Manifold{}, false
	}

	// negative while closing
	normalSpeed := b.Velocity.Sub(a.Velocity).Dot(result.Normal)
	predicted := result.Distance + normalSpeed*dt
	if predicted > d.SpeculativeMargin {
		return manifold.Manifold{}, false
	}

	position := result.PointA.Add(result.PointB).Mul(0.5)
	return manifold.Single(result.Normal, position, -result.Distance, a.Transform, b.Transform), true
}
