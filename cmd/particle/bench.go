package main

import (
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"
)

type benchResult struct {
	workers int
	elapsed time.Duration
	final   mgl64.Vec3
}

func benchScene(cmd *cobra.Command, args []string) error {
	if frames < 1 {
		return fmt.Errorf("frames must be positive, got %d", frames)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	counts := []int{1, 2, 4, runtime.GOMAXPROCS(0)}
	slices.Sort(counts)
	counts = slices.Compact(counts)

	prof, err := startProfile()
	if err != nil {
		return err
	}
	defer prof.Stop()

	results := make([]benchResult, 0, len(counts))
	for _, n := range counts {
		s, err := loadScene(args[0])
		if err != nil {
			return err
		}
		s.World.Parallel.Enabled = n > 1
		s.World.Parallel.Workers = n

		built, err := s.Build()
		if err != nil {
			return err
		}
		built.World.SetLogger(logger)

		start := time.Now()
		for range frames {
			built.World.Step(s.World.TimeStep)
		}
		result := benchResult{workers: n, elapsed: time.Since(start)}
		result.final, _ = built.Tracked()
		results = append(results, result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", headerStyle.Render(fmt.Sprintf("benchmarking %s, %d frames", args[0], frames)))
	t := newTable("workers", "total", "per frame", "frames/s", "speedup", "matches sequential")
	base := results[0]
	for _, r := range results {
		perFrame := r.elapsed / time.Duration(frames)
		t.Row(
			fmt.Sprint(r.workers),
			r.elapsed.Round(time.Microsecond).String(),
			millis(perFrame),
			fmt.Sprintf("%.0f", float64(frames)/r.elapsed.Seconds()),
			fmt.Sprintf("%.2fx", base.elapsed.Seconds()/r.elapsed.Seconds()),
			fmt.Sprint(r.final == base.final),
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}
