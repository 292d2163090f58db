package compute

import (
	"math"
	"testing"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

func createWorld() (*actor.BodyStore, *arena.Arena[actor.Collider]) {
	bodies := actor.NewBodyStore(4)
	colliders := arena.New[actor.Collider](4)

	ground := bodies.Insert(actor.NewRigidBody(actor.NewTransform(), actor.NewBox(mgl64.Vec3{10, 1, 10}), actor.BodyTypeStatic, 1))
	colliders.Insert(actor.NewCollider(ground, actor.NewBox(mgl64.Vec3{10, 1, 10})))

	ball := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 5, 0}), actor.NewSphere(1), actor.BodyTypeDynamic, 1)
	ball.Velocity = mgl64.Vec3{3, 4, 0}
	ballID := bodies.Insert(ball)
	colliders.Insert(actor.NewCollider(ballID, actor.NewSphere(1)))

	return bodies, colliders
}

func TestIsNoop(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		want    bool
	}{
		{"nil", nil, true},
		{"value", NoopBackend{}, true},
		{"pointer", &NoopBackend{}, true},
		{"stats", NewStatsBackend(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNoop(tt.backend); got != tt.want {
				t.Errorf("IsNoop() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGpuWorldState_Sync(t *testing.T) {
	bodies, colliders := createWorld()
	state := NewGpuWorldState()

	state.Sync(7, bodies, colliders)

	if state.Frame != 7 {
		t.Errorf("Frame = %d, want 7", state.Frame)
	}
	if state.BodyCount() != 2 || state.ColliderCount() != 2 {
		t.Fatalf("BodyCount() = %d, ColliderCount() = %d, want 2 and 2", state.BodyCount(), state.ColliderCount())
	}
	if state.InverseMasses[0] != 0 {
		t.Errorf("static inverse mass = %v, want 0", state.InverseMasses[0])
	}
	if state.Positions[1] != (mgl64.Vec3{0, 5, 0}) {
		t.Errorf("Positions[1] = %v", state.Positions[1])
	}
	if state.ColliderBodies[1] != 1 {
		t.Errorf("ColliderBodies[1] = %d, want 1", state.ColliderBodies[1])
	}
	if !state.ColliderBounds[1].ContainsPoint(mgl64.Vec3{0, 5.9, 0}) {
		t.Errorf("ball bounds %v do not contain its top", state.ColliderBounds[1])
	}

	// a second sync reuses the buffers without growing them
	id := bodies.ID(1)
	bodies.Remove(id)
	state.Sync(8, bodies, colliders)
	if state.BodyCount() != 1 || state.ColliderCount() != 1 {
		t.Errorf("after removal: BodyCount() = %d, ColliderCount() = %d, want 1 and 1", state.BodyCount(), state.ColliderCount())
	}
}

func TestStatsBackend(t *testing.T) {
	bodies, colliders := createWorld()
	state := NewGpuWorldState()
	backend := NewStatsBackend()

	state.Sync(1, bodies, colliders)
	backend.PrepareStep(state)
	state.Pairs = 1
	backend.DispatchBroadphase(state)

	bodies.Velocities[1] = mgl64.Vec3{0, 2, 0}
	state.UpdateVelocities(bodies)
	backend.DispatchSolver(state)

	stats := backend.Last()
	if stats.Bodies != 2 || stats.Colliders != 2 || stats.Pairs != 1 {
		t.Errorf("counts = %d bodies, %d colliders, %d pairs", stats.Bodies, stats.Colliders, stats.Pairs)
	}
	if stats.MaxSpeed != 2 {
		t.Errorf("MaxSpeed = %v, want 2", stats.MaxSpeed)
	}

	mass := bodies.Masses[1]
	if want := 0.5 * mass * 4; math.Abs(stats.KineticEnergy-want) > 1e-9 {
		t.Errorf("KineticEnergy = %v, want %v", stats.KineticEnergy, want)
	}
	// collider bounds enclose the bounding spheres
	groundRadius := math.Sqrt(201)
	if math.Abs(stats.Bounds.Min.Y()+groundRadius) > 1e-9 || math.Abs(stats.Bounds.Max.Y()-groundRadius) > 1e-9 {
		t.Errorf("Bounds = %v, want y in ±%v", stats.Bounds, groundRadius)
	}
	if backend.Steps() != 1 {
		t.Errorf("Steps() = %d, want 1", backend.Steps())
	}
}
