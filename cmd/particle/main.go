package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/akmonengine/particle/config"
	"github.com/akmonengine/particle/internal/scene"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

var (
	configFile  string
	logLevel    string
	profileMode string
	duration    float64
	parallel    bool
	workers     int
	plot        bool
	frames      int
	frameRate   int
	dump        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "particle",
		Short:         "rigid and articulated body simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "world config file (yaml), replaces the scene world section")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	runCmd := &cobra.Command{
		Use:   "run [scene]",
		Short: "run a scene and print its profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runScene,
	}
	runCmd.Flags().Float64Var(&duration, "time", 0, "simulated seconds, 0 uses the scene duration")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "enable the worker pool")
	runCmd.Flags().IntVar(&workers, "workers", 0, "worker count, 0 uses GOMAXPROCS")
	runCmd.Flags().BoolVar(&plot, "plot", true, "plot the tracked body height and the step time")
	runCmd.Flags().StringVar(&profileMode, "profile", "", "write a cpu or mem profile")

	benchCmd := &cobra.Command{
		Use:   "bench [scene]",
		Short: "compare sequential and parallel stepping",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScene,
	}
	benchCmd.Flags().IntVar(&frames, "frames", 300, "frames per configuration")
	benchCmd.Flags().StringVar(&profileMode, "profile", "", "write a cpu or mem profile")

	liveCmd := &cobra.Command{
		Use:   "live [scene]",
		Short: "watch a scene in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	scenesCmd := &cobra.Command{
		Use:   "scenes [name]",
		Short: "list the built-in scenes, or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listScenes,
	}
	scenesCmd.Flags().BoolVar(&dump, "dump", false, "print the scene as yaml")

	rootCmd.AddCommand(runCmd, benchCmd, liveCmd, scenesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", logLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// loadScene resolves a preset name or a scene file, then applies --config.
func loadScene(name string) (*scene.Scene, error) {
	s, ok := scene.Preset(name)
	if !ok {
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			return nil, fmt.Errorf("unknown scene %q (built-in: %s)", name, strings.Join(scene.Names(), ", "))
		}
		var err error
		if s, err = scene.Load(name); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		s.World = cfg
	}
	return s, nil
}

// startProfile starts the profiler selected by --profile; the caller stops it.
func startProfile() (interface{ Stop() }, error) {
	switch profileMode {
	case "":
		return noProfile{}, nil
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet), nil
	case "mem":
		return profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet), nil
	default:
		return nil, fmt.Errorf("unknown profile mode %q (cpu, mem)", profileMode)
	}
}

type noProfile struct{}

func (noProfile) Stop() {}
