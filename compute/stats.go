package compute

import (
	"log/slog"
	"math"

	"github.com/akmonengine/particle/actor"
)

// Stats summarizes one snapshot.
type Stats struct {
	Frame     uint64
	Bodies    int
	Colliders int
	Pairs     int
	// MaxSpeed is the highest linear speed after the solver.
	MaxSpeed float64
	// KineticEnergy is the linear kinetic energy of the dynamic bodies.
	KineticEnergy float64
	Bounds        actor.AABB
}

func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frame", s.Frame),
		slog.Int("bodies", s.Bodies),
		slog.Int("colliders", s.Colliders),
		slog.Int("pairs", s.Pairs),
		slog.Float64("max_speed", s.MaxSpeed),
		slog.Float64("kinetic_energy", s.KineticEnergy),
	)
}

// StatsBackend is a CPU backend that reduces every snapshot to a Stats record.
type StatsBackend struct {
	last  Stats
	steps int
}

func NewStatsBackend() *StatsBackend {
	return &StatsBackend{}
}

func (b *StatsBackend) Name() string { return "cpu-stats" }

func (b *StatsBackend) PrepareStep(state *GpuWorldState) {
	b.last = Stats{
		Frame:     state.Frame,
		Bodies:    state.BodyCount(),
		Colliders: state.ColliderCount(),
		Bounds:    actor.EmptyAABB(),
	}
	for _, bounds := range state.ColliderBounds {
		b.last.Bounds = b.last.Bounds.Union(bounds)
	}
}

func (b *StatsBackend) DispatchBroadphase(state *GpuWorldState) {
	b.last.Pairs = state.Pairs
}

func (b *StatsBackend) DispatchSolver(state *GpuWorldState) {
	b.steps++
	b.last.MaxSpeed = 0
	b.last.KineticEnergy = 0
	for i, velocity := range state.Velocities {
		speed := velocity.Len()
		b.last.MaxSpeed = math.Max(b.last.MaxSpeed, speed)
		if inverseMass := state.InverseMasses[i]; inverseMass > 0 {
			b.last.KineticEnergy += 0.5 * speed * speed / inverseMass
		}
	}
}

// Last returns the summary of the most recent step.
func (b *StatsBackend) Last() Stats {
	return b.last
}

// Steps returns the number of steps seen.
func (b *StatsBackend) Steps() int {
	return b.steps
}
