package particle

import (
	"log/slog"
	"time"
)

// Timings are the durations of the tick phases, summed over substeps.
type Timings struct {
	Integration  time.Duration
	BroadPhase   time.Duration
	NarrowPhase  time.Duration
	Islands      time.Duration
	Solver       time.Duration
	PCI          time.Duration
	Articulation time.Duration
	Total        time.Duration
}

// Counts are the sizes seen during a tick, summed over substeps.
type Counts struct {
	Bodies      int
	Colliders   int
	Pairs       int
	Contacts    int
	Speculative int
	Swept       int
	Islands     int
	Corrections int
	// CacheDropped is the number of persistent manifolds pruned at the end of the tick.
	CacheDropped int
}

// Profile describes one tick.
type Profile struct {
	Frame   uint64
	Timings Timings
	Counts  Counts
}

func (p Profile) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frame", p.Frame),
		slog.Duration("total", p.Timings.Total),
		slog.Duration("broad", p.Timings.BroadPhase),
		slog.Duration("narrow", p.Timings.NarrowPhase),
		slog.Duration("islands", p.Timings.Islands),
		slog.Duration("solver", p.Timings.Solver),
		slog.Duration("pci", p.Timings.PCI),
		slog.Duration("articulation", p.Timings.Articulation),
		slog.Duration("integration", p.Timings.Integration),
		slog.Int("bodies", p.Counts.Bodies),
		slog.Int("pairs", p.Counts.Pairs),
		slog.Int("contacts", p.Counts.Contacts),
	)
}

// Profiler aggregates profiles over many ticks.
type Profiler struct {
	frames int
	sum    Timings
	peak   Timings
	counts Counts
}

func (p *Profiler) Record(profile Profile) {
	p.frames++
	p.sum = p.sum.add(profile.Timings)
	p.peak = p.peak.max(profile.Timings)
	p.counts = profile.Counts
}

// Frames returns the number of recorded profiles.
func (p *Profiler) Frames() int {
	return p.frames
}

// Average returns the mean timings of the recorded profiles.
func (p *Profiler) Average() Timings {
	if p.frames == 0 {
		return Timings{}
	}
	n := time.Duration(p.frames)
	return Timings{
		Integration:  p.sum.Integration / n,
		BroadPhase:   p.sum.BroadPhase / n,
		NarrowPhase:  p.sum.NarrowPhase / n,
		Islands:      p.sum.Islands / n,
		Solver:       p.sum.Solver / n,
		PCI:          p.sum.PCI / n,
		Articulation: p.sum.Articulation / n,
		Total:        p.sum.Total / n,
	}
}

// Peak returns the longest duration of each phase.
func (p *Profiler) Peak() Timings {
	return p.peak
}

// Last returns the counts of the last recorded profile.
func (p *Profiler) Last() Counts {
	return p.counts
}

func (t Timings) add(o Timings) Timings {
	return Timings{
		Integration:  t.Integration + o.Integration,
		BroadPhase:   t.BroadPhase + o.BroadPhase,
		NarrowPhase:  t.NarrowPhase + o.NarrowPhase,
		Islands:      t.Islands + o.Islands,
		Solver:       t.Solver + o.Solver,
		PCI:          t.PCI + o.PCI,
		Articulation: t.Articulation + o.Articulation,
		Total:        t.Total + o.Total,
	}
}

func (t Timings) max(o Timings) Timings {
	return Timings{
		Integration:  max(t.Integration, o.Integration),
		BroadPhase:   max(t.BroadPhase, o.BroadPhase),
		NarrowPhase:  max(t.NarrowPhase, o.NarrowPhase),
		Islands:      max(t.Islands, o.Islands),
		Solver:       max(t.Solver, o.Solver),
		PCI:          max(t.PCI, o.PCI),
		Articulation: max(t.Articulation, o.Articulation),
		Total:        max(t.Total, o.Total),
	}
}
