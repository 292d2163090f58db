package scene

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/akmonengine/particle/config"
)

var presets = map[string]func() *Scene{
	"stack":    stack,
	"bullet":   bullet,
	"pendulum": pendulum,
	"rain":     rain,
	"chain":    chain,
}

// Preset returns a fresh copy of a built-in scene.
func Preset(name string) (*Scene, bool) {
	build, ok := presets[name]
	if !ok {
		return nil, false
	}
	return build(), true
}

// Names lists the built-in scenes in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func ptr[T any](v T) *T {
	return &v
}

func ground() Body {
	return Body{
		Name:     "ground",
		Type:     "static",
		Position: config.Vec3{0, -0.5, 0},
		Shape:    &Shape{Kind: "box", HalfExtents: config.Vec3{50, 0.5, 50}},
	}
}

func stack() *Scene {
	const height = 10

	s := &Scene{
		Name:        "stack",
		Description: "a tower of boxes settling on the ground",
		Duration:    8,
		Track:       fmt.Sprintf("box-%d", height-1),
		World:       config.Default(),
		Bodies:      []Body{ground()},
	}
	s.World.Solver.Iterations = 10
	for i := range height {
		s.Bodies = append(s.Bodies, Body{
			Name:     fmt.Sprintf("box-%d", i),
			Position: config.Vec3{0, 0.5 + float64(i)*1.01, 0},
			Shape:    &Shape{Kind: "box", HalfExtents: config.Vec3{0.5, 0.5, 0.5}},
			Friction: ptr(0.6),
		})
	}
	return s
}

func bullet() *Scene {
	s := &Scene{
		Name:        "bullet",
		Description: "a fast sphere shot at a thin wall",
		Duration:    2,
		Track:       "bullet",
		World:       config.Default(),
		Bodies: []Body{
			ground(),
			{
				Name:     "wall",
				Type:     "static",
				Position: config.Vec3{20, 5, 0},
				Shape:    &Shape{Kind: "box", HalfExtents: config.Vec3{0.1, 5, 5}},
			},
			{
				Name:        "bullet",
				Position:    config.Vec3{0, 1, 0},
				Velocity:    config.Vec3{400, 0, 0},
				Material:    "steel",
				Density:     7.8,
				Shape:       &Shape{Kind: "sphere", Radius: 0.1},
				Restitution: ptr(0.5),
			},
		},
	}
	return s
}

func pendulum() *Scene {
	return &Scene{
		Name:        "pendulum",
		Description: "a damped double pendulum knocking boxes over",
		Duration:    10,
		Track:       "pendulum/lower",
		World:       config.Default(),
		Bodies: []Body{
			ground(),
			{Name: "target", Position: config.Vec3{1.5, 0.5, 0}, Shape: &Shape{Kind: "box", HalfExtents: config.Vec3{0.5, 0.5, 0.5}}},
		},
		Multibodies: []Multibody{{
			Name:    "pendulum",
			Base:    config.Vec3{0, 4, 0},
			Damping: 0.05,
			Links: []Link{
				{
					Name:  "upper",
					Joint: "revolute",
					Axis:  config.Vec3{0, 0, 1},
					COM:   config.Vec3{0, -1, 0},
					Q:     1.2,
				},
				{
					Name:   "lower",
					Parent: "upper",
					Joint:  "revolute",
					Axis:   config.Vec3{0, 0, 1},
					Offset: config.Vec3{0, -2, 0},
					COM:    config.Vec3{0, -1, 0},
					Q:      0.4,
					Shape:  &Shape{Kind: "sphere", Radius: 0.4},
				},
			},
		}},
	}
}

func rain() *Scene {
	const drops = 200

	s := &Scene{
		Name:        "rain",
		Description: "spheres and boxes falling on a floor, solved in parallel",
		Duration:    6,
		Track:       "drop-0",
		World:       config.Default(),
		Bodies:      []Body{ground()},
	}
	s.World.Parallel.Enabled = true
	s.World.PCI.Enabled = true

	rng := rand.New(rand.NewSource(7))
	for i := range drops {
		position := config.Vec3{rng.Float64()*20 - 10, 2 + rng.Float64()*20, rng.Float64()*20 - 10}
		shape := &Shape{Kind: "sphere", Radius: 0.3 + rng.Float64()*0.3}
		if i%3 == 0 {
			shape = &Shape{Kind: "box", HalfExtents: config.Vec3{0.4, 0.4, 0.4}}
		}
		material := "default"
		if i%5 == 0 {
			material = "rubber"
		}
		s.Bodies = append(s.Bodies, Body{
			Name:     fmt.Sprintf("drop-%d", i),
			Position: position,
			Rotation: config.Vec3{rng.Float64() * 90, rng.Float64() * 90, 0},
			Material: material,
			Shape:    shape,
		})
	}
	return s
}

func chain() *Scene {
	const links = 6

	s := &Scene{
		Name:        "chain",
		Description: "spheres hanging from distance joints, slowed by drag",
		Duration:    8,
		Track:       fmt.Sprintf("link-%d", links-1),
		World:       config.Default(),
		Bodies: []Body{
			ground(),
			{Name: "anchor", Type: "static", Position: config.Vec3{0, 8, 0}},
		},
		Forces: []Force{{Kind: "drag", Linear: 0.05}},
	}

	previous := "anchor"
	for i := range links {
		name := fmt.Sprintf("link-%d", i)
		s.Bodies = append(s.Bodies, Body{
			Name:     name,
			Position: config.Vec3{float64(i+1) * 0.8, 8, 0},
			Shape:    &Shape{Kind: "sphere", Radius: 0.2},
			Layer:    2,
			Mask:     1,
		})
		s.Joints = append(s.Joints, Joint{Kind: "distance", A: previous, B: name})
		previous = name
	}
	return s
}
