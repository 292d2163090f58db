package ccd

import (
	"github.com/akmonengine/particle/gjk"
	"github.com/akmonengine/particle/manifold"
)

// minClosingSpeed is the approach speed under which a sweep gives up.
const minClosingSpeed = 1e-9

// Hit is the first contact found by Sweep.
type Hit struct {
	// TOI is the time of impact in seconds from the start of the step.
	TOI float64
	// Fraction is TOI / dt.
	Fraction float64
	// Manifold is the zero-depth contact at TOI, with its local points in the
	// frames of both bodies at TOI.
	Manifold manifold.Manifold
}

// Sweep searches the time of impact of a and b within dt by conservative
// advancement: each iteration measures the distance between the bodies and
// advances time by the largest amount that cannot make them overlap, bounding
// the closing speed by the relative linear velocity along the normal plus the
// rotational speed of each bounding sphere.
//
// Pairs already overlapping at the start of the step are left to the discrete
// narrow phase and return false.
func (d Detector) Sweep(a, b Body, dt float64) (Hit, bool) {
	angularBound := a.AngularVelocity.Len()*a.Shape.BoundingRadius() +
		b.AngularVelocity.Len()*b.Shape.BoundingRadius()
	relativeVelocity := b.Velocity.Sub(a.Velocity)

	t := 0.0
	for iteration := 0; iteration < d.MaxIterations; iteration++ {
		transformA, transformB := a.At(t), b.At(t)
		result := gjk.Distance(a.convex(transformA), b.convex(transformB))

		if result.Intersecting {
			// either overlapping at the start, or the advancement overshot
			return Hit{}, false
		}

		if result.Distance <= d.Tolerance {
			position := result.PointA.Add(result.PointB).Mul(0.5)
			return Hit{
				TOI:      t,
				Fraction: t / dt,
				Manifold: manifold.Single(result.Normal, position, 0, transformA, transformB),
			}, true
		}

		closingSpeed := -relativeVelocity.Dot(result.Normal) + angularBound
		if closingSpeed <= minClosingSpeed {
			return Hit{}, false
		}

		// stop half a tolerance short of contact
		t += (result.Distance - 0.5*d.Tolerance) / closingSpeed
		if t > dt {
			return Hit{}, false
		}
	}

	return Hit{}, false
}
