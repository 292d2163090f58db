package main

import (
	"fmt"
	"log"

	"github.com/akmonengine/particle"
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/akmonengine/particle/config"
	"github.com/go-gl/mathgl/mgl64"
)

// CollisionDebugger prints what the world reports during a step.
type CollisionDebugger interface {
	DebugManifold(manifold particle.ManifoldInfo)
	DebugEvent(event particle.Event)
}

// SimpleDebugger implements the interface with plain prints.
type SimpleDebugger struct {
	world *particle.World
}

func (d *SimpleDebugger) DebugManifold(manifold particle.ManifoldInfo) {
	fmt.Printf("Manifold Debug:\n")
	fmt.Printf("   Bodies: %v / %v (swept=%v)\n", manifold.BodyA, manifold.BodyB, manifold.Swept)
	fmt.Printf("   Normal: %v\n", manifold.Normal)
	fmt.Printf("   Contact points: %d\n", len(manifold.Points))

	bodyA, _ := d.world.Body(manifold.BodyA)
	bodyB, _ := d.world.Body(manifold.BodyB)
	for i, point := range manifold.Points {
		fmt.Printf("   Point %d: position=%v depth=%.6f\n", i, point.Position, point.Depth)

		// lever arms
		rA := point.Position.Sub(bodyA.Transform.Position)
		rB := point.Position.Sub(bodyB.Transform.Position)

		fmt.Printf("      rA (ground): %v (len=%.3f)\n", rA, rA.Len())
		fmt.Printf("      rB (cube):   %v (len=%.3f)\n", rB, rB.Len())
	}
}

func (d *SimpleDebugger) DebugEvent(event particle.Event) {
	fmt.Printf("Event: %s %+v\n", event.Type(), event)
}

// SetupScene creates the test scene with a ground plate and a tilted cube
func SetupScene() (*particle.World, arena.EntityID, arena.EntityID, *SimpleDebugger) {
	cfg := config.Default()
	world, err := particle.NewWorld(cfg)
	if err != nil {
		log.Fatal(err)
	}
	debugger := &SimpleDebugger{world: world}

	groundShape := actor.NewBox(mgl64.Vec3{20, 0.5, 20})
	ground := world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, -0.5, 0}), groundShape, actor.BodyTypeStatic, 0))
	if _, err := world.AddCollider(actor.NewCollider(ground, groundShape)); err != nil {
		log.Fatal(err)
	}

	// cube of side 3, falling on an edge
	cubeShape := actor.NewBox(mgl64.Vec3{1.5, 1.5, 1.5})
	cubeTransform := actor.NewTransformWith(
		mgl64.Vec3{-5, 5, -5},
		mgl64.QuatRotate(mgl64.DegToRad(70), mgl64.Vec3{0, 0, 1}),
	)
	cubeBody := actor.NewRigidBody(cubeTransform, cubeShape, actor.BodyTypeDynamic, 1.0)
	cubeBody.Material.Restitution = 0.8

	cube := world.AddRigidBody(cubeBody)
	if _, err := world.AddCollider(actor.NewCollider(cube, cubeShape)); err != nil {
		log.Fatal(err)
	}

	world.SetManifoldHook(func(manifolds []particle.ManifoldInfo) {
		for _, manifold := range manifolds {
			debugger.DebugManifold(manifold)
		}
	})
	for _, eventType := range []particle.EventType{particle.COLLISION_ENTER, particle.COLLISION_EXIT, particle.ON_SLEEP, particle.ON_WAKE} {
		world.Events.Subscribe(eventType, debugger.DebugEvent)
	}

	return world, ground, cube, debugger
}

// CubeBounce steps the scene and prints the cube state around each step.
func CubeBounce() {
	fmt.Println("Integration test: tilted cube bouncing on the ground")
	fmt.Println("====================================================")

	world, ground, cube, _ := SetupScene()

	groundBody, _ := world.Body(ground)
	cubeBody, _ := world.Body(cube)
	fmt.Printf("Initial setup:\n")
	fmt.Printf("  Ground: position %v\n", groundBody.Transform.Position)
	fmt.Printf("  Cube: position %v, rotation %v\n", cubeBody.Transform.Position, cubeBody.Transform.Rotation)
	fmt.Printf("  Gravity: %v\n", world.Gravity())
	fmt.Println()

	const dt float64 = 1.0 / 60.0
	const maxSteps int = 200

	for step := 0; step < maxSteps; step++ {
		before, _ := world.Body(cube)
		world.Step(dt)
		after, _ := world.Body(cube)

		fmt.Printf("--- STEP %d ---\n", step+1)
		fmt.Printf("  Position: %v -> %v\n", before.Transform.Position, after.Transform.Position)
		fmt.Printf("  Velocity: %v\n", after.Velocity)
		fmt.Printf("  Angular Velocity: %v (len=%.3f)\n", after.AngularVelocity, after.AngularVelocity.Len())

		qDelta := after.Transform.Rotation.Mul(before.Transform.Rotation.Conjugate()).Normalize()
		fmt.Printf("  Rotation delta: qDelta=%v (|V|=%.6f)\n", qDelta, qDelta.V.Len())
		if after.IsSleeping {
			fmt.Printf("  Cube is asleep after %d steps\n", step+1)
			break
		}
		fmt.Println()
	}

	metrics := world.SolverMetrics()
	fmt.Printf("Last solve: %d islands, %d contacts, normal impulse %.4f\n", metrics.Islands, metrics.Contacts, metrics.NormalImpulse)
	fmt.Println("Done!")
}

func main() {
	CubeBounce()
}
