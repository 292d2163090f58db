package main

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/akmonengine/particle"
	"github.com/akmonengine/particle/compute"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

// eventCounts tallies the events of a run.
type eventCounts struct {
	collisions, triggers, sleeps, wakes int
}

func (c *eventCounts) subscribe(events *particle.Events) {
	events.Subscribe(particle.COLLISION_ENTER, func(particle.Event) { c.collisions++ })
	events.Subscribe(particle.TRIGGER_ENTER, func(particle.Event) { c.triggers++ })
	events.Subscribe(particle.ON_SLEEP, func(particle.Event) { c.sleeps++ })
	events.Subscribe(particle.ON_WAKE, func(particle.Event) { c.wakes++ })
}

func runScene(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	s, err := loadScene(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("parallel") {
		s.World.Parallel.Enabled = parallel
	}
	if workers > 0 {
		s.World.Parallel.Workers = workers
	}

	built, err := s.Build()
	if err != nil {
		return err
	}
	world := built.World
	world.SetLogger(logger)
	stats := compute.NewStatsBackend()
	world.SetBackend(stats)

	var events eventCounts
	events.subscribe(&world.Events)

	seconds := duration
	if seconds <= 0 {
		seconds = built.Duration
	}
	steps := int(math.Round(seconds / s.World.TimeStep))

	prof, err := startProfile()
	if err != nil {
		return err
	}

	var profiler particle.Profiler
	heights := make([]float64, 0, steps)
	stepTimes := make([]float64, 0, steps)
	start := time.Now()
	for range steps {
		world.Step(s.World.TimeStep)

		profile := world.Profile()
		profiler.Record(profile)
		stepTimes = append(stepTimes, float64(profile.Timings.Total)/float64(time.Millisecond))
		if position, ok := built.Tracked(); ok {
			heights = append(heights, position.Y())
		}
	}
	elapsed := time.Since(start)
	prof.Stop()

	logger.Info("run finished",
		slog.String("scene", s.Name),
		slog.Int("frames", steps),
		slog.Duration("elapsed", elapsed),
		slog.Any("stats", stats.Last()))

	var out strings.Builder
	out.WriteString(headerStyle.Render(strings.ToUpper(s.Name)) + "\n")
	if s.Description != "" {
		out.WriteString(dimStyle.Render(s.Description) + "\n")
	}
	out.WriteString("\n")
	out.WriteString(field("Frames", fmt.Sprintf("%d (%.2fs simulated)", steps, float64(steps)*s.World.TimeStep)))
	out.WriteString(field("Wall time", elapsed.Round(time.Microsecond).String()))
	out.WriteString(field("Backend", world.BackendName()))
	out.WriteString(field("Parallel", fmt.Sprintf("%v", s.World.Parallel.Enabled)))
	out.WriteString(field("Max speed", fmt.Sprintf("%.3f m/s", stats.Last().MaxSpeed)))
	out.WriteString(field("Kinetic", fmt.Sprintf("%.3f J", stats.Last().KineticEnergy)))
	if position, ok := built.Tracked(); ok {
		out.WriteString(field("Tracked", fmt.Sprintf("%s at (%.3f, %.3f, %.3f)", s.Track, position.X(), position.Y(), position.Z())))
	}
	out.WriteString("\n")

	average, peak := profiler.Average(), profiler.Peak()
	phases := newTable("phase", "average", "peak")
	for _, row := range []struct {
		name          string
		average, peak time.Duration
	}{
		{"integration", average.Integration, peak.Integration},
		{"broad phase", average.BroadPhase, peak.BroadPhase},
		{"narrow phase", average.NarrowPhase, peak.NarrowPhase},
		{"islands", average.Islands, peak.Islands},
		{"solver", average.Solver, peak.Solver},
		{"pci", average.PCI, peak.PCI},
		{"articulation", average.Articulation, peak.Articulation},
		{"total", average.Total, peak.Total},
	} {
		phases.Row(row.name, millis(row.average), millis(row.peak))
	}
	out.WriteString(phases.Render() + "\n")

	last := profiler.Last()
	counts := newTable("last frame", "count")
	counts.Row("bodies", fmt.Sprint(last.Bodies))
	counts.Row("colliders", fmt.Sprint(last.Colliders))
	counts.Row("pairs", fmt.Sprint(last.Pairs))
	counts.Row("contacts", fmt.Sprint(last.Contacts))
	counts.Row("speculative", fmt.Sprint(last.Speculative))
	counts.Row("swept", fmt.Sprint(last.Swept))
	counts.Row("islands", fmt.Sprint(last.Islands))
	counts.Row("corrections", fmt.Sprint(last.Corrections))
	counts.Row("cache pruned", fmt.Sprint(last.CacheDropped))
	out.WriteString(counts.Render() + "\n")

	totals := newTable("events", "count")
	totals.Row("collision enter", fmt.Sprint(events.collisions))
	totals.Row("trigger enter", fmt.Sprint(events.triggers))
	totals.Row("sleep", fmt.Sprint(events.sleeps))
	totals.Row("wake", fmt.Sprint(events.wakes))
	out.WriteString(totals.Render() + "\n")

	if plot {
		if len(heights) > 1 {
			graph := asciigraph.Plot(heights,
				asciigraph.Height(10),
				asciigraph.Width(80),
				asciigraph.Caption(s.Track+" height (m)"),
			)
			out.WriteString(graphStyle.Render(graph) + "\n")
		}
		if len(stepTimes) > 1 {
			graph := asciigraph.Plot(stepTimes,
				asciigraph.Height(8),
				asciigraph.Width(80),
				asciigraph.Caption("step time (ms)"),
			)
			out.WriteString(graphStyle.Render(graph) + "\n")
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), out.String())
	return nil
}
