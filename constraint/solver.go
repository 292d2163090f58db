package constraint

import (
	"log/slog"
	"math"

	"github.com/akmonengine/particle/actor"
)

// Metrics sums what the solver did during one step.
type Metrics struct {
	Islands        int
	Contacts       int
	Joints         int
	NormalImpulse  float64
	TangentImpulse float64
}

// Merge adds other into m.
func (m *Metrics) Merge(other Metrics) {
	m.Islands += other.Islands
	m.Contacts += other.Contacts
	m.Joints += other.Joints
	m.NormalImpulse += other.NormalImpulse
	m.TangentImpulse += other.TangentImpulse
}

func (m Metrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("islands", m.Islands),
		slog.Int("contacts", m.Contacts),
		slog.Int("joints", m.Joints),
		slog.Float64("normal_impulse", m.NormalImpulse),
		slog.Float64("tangent_impulse", m.TangentImpulse),
	)
}

// Solver runs sequential impulses over the constraints of an island.
type Solver struct {
	Iterations           int
	BiasFactor           float64
	Slop                 float64
	RestitutionThreshold float64
	WarmStart            bool
}

// SolveIsland only touches the dynamic bodies of island, so islands can be solved
// concurrently. Joints are solved before contacts, both in island order.
func (s *Solver) SolveIsland(bodies *actor.BodyStore, island *Island, dt float64) Metrics {
	step := Step{
		DT:                   dt,
		BiasFactor:           s.BiasFactor,
		Slop:                 s.Slop,
		RestitutionThreshold: s.RestitutionThreshold,
		WarmStart:            s.WarmStart,
	}

	for _, j := range island.Joints {
		j.PreSolve(bodies, step)
	}
	for _, c := range island.Contacts {
		if !s.WarmStart {
			c.resetImpulses()
		}
		c.PreSolve(bodies, step)
	}

	if s.WarmStart {
		for _, j := range island.Joints {
			j.WarmStart(bodies)
		}
		for _, c := range island.Contacts {
			c.WarmStart(bodies)
		}
	}

	for iteration := 0; iteration < s.Iterations; iteration++ {
		for _, j := range island.Joints {
			j.SolveVelocity(bodies)
		}
		for _, c := range island.Contacts {
			c.SolveVelocity(bodies)
		}
	}

	for _, i := range island.Bodies {
		clampSmallVelocities(bodies, i)
	}

	metrics := Metrics{Islands: 1, Contacts: len(island.Contacts), Joints: len(island.Joints)}
	for _, c := range island.Contacts {
		for _, p := range c.Points {
			metrics.NormalImpulse += p.NormalImpulse
			metrics.TangentImpulse += math.Hypot(p.TangentImpulse[0], p.TangentImpulse[1])
		}
	}
	return metrics
}
