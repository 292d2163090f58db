package constraint

import (
	"math"
	"testing"

	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const testDT = 1.0 / 60.0

// Helper function to create a dynamic unit sphere for testing
func createDynamicBody(position mgl64.Vec3, velocity mgl64.Vec3, density float64) *actor.RigidBody {
	rb := actor.NewRigidBody(
		actor.NewTransformAt(position),
		actor.NewSphere(1),
		actor.BodyTypeDynamic,
		density,
	)
	rb.Velocity = velocity
	return rb
}

// Helper function to create a static unit box
func createStaticBody(position mgl64.Vec3) *actor.RigidBody {
	return actor.NewRigidBody(
		actor.NewTransformAt(position),
		actor.NewBox(mgl64.Vec3{1, 1, 1}),
		actor.BodyTypeStatic,
		0,
	)
}

// createStore inserts bodies in order: dense index i is bodies[i].
func createStore(bodies ...*actor.RigidBody) *actor.BodyStore {
	store := actor.NewBodyStore(len(bodies))
	for _, rb := range bodies {
		store.Insert(rb)
	}
	return store
}

func testStep() Step {
	return Step{DT: testDT, BiasFactor: 0.2, Slop: 0.01, RestitutionThreshold: 1.0, WarmStart: true}
}

func solve(store *actor.BodyStore, c *ContactConstraint, iterations int) {
	c.PreSolve(store, testStep())
	c.WarmStart(store)
	for i := 0; i < iterations; i++ {
		c.SolveVelocity(store)
	}
}

func TestContactConstraint_ElasticExchange(t *testing.T) {
	store := createStore(
		createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 1),
		createDynamicBody(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{0, 0, 0}, 1),
	)
	c := &ContactConstraint{
		BodyA: 0, BodyB: 1,
		Normal:   mgl64.Vec3{1, 0, 0},
		Points:   []ContactPoint{{Position: mgl64.Vec3{1, 0, 0}}},
		Material: actor.MaterialPair{Restitution: 1},
	}

	solve(store, c, 10)

	if math.Abs(store.Velocities[0].X()) > 1e-9 {
		t.Errorf("bodyA velocity = %v, want 0", store.Velocities[0])
	}
	if math.Abs(store.Velocities[1].X()-10) > 1e-9 {
		t.Errorf("bodyB velocity = %v, want 10", store.Velocities[1])
	}
	if c.Points[0].NormalImpulse <= 0 {
		t.Errorf("accumulated impulse = %v, want > 0", c.Points[0].NormalImpulse)
	}
}

func TestContactConstraint_LowSpeedNoRestitution(t *testing.T) {
	store := createStore(
		createDynamicBody(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0.5, 0, 0}, 1),
		createDynamicBody(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{0, 0, 0}, 1),
	)
	c := &ContactConstraint{
		BodyA: 0, BodyB: 1,
		Normal:   mgl64.Vec3{1, 0, 0},
		Points:   []ContactPoint{{Position: mgl64.Vec3{1, 0, 0}}},
		Material: actor.MaterialPair{Restitution: 1},
	}

	solve(store, c, 10)

	// under the threshold the bodies end up moving together
	if math.Abs(store.Velocities[0].X()-0.25) > 1e-9 || math.Abs(store.Velocities[1].X()-0.25) > 1e-9 {
		t.Errorf("velocities = %v %v, want 0.25 each", store.Velocities[0], store.Velocities[1])
	}
}

func TestContactConstraint_StaticBodyUntouched(t *testing.T) {
	store := createStore(
		createStaticBody(mgl64.Vec3{0, 0, 0}),
		createDynamicBody(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{0, -5, 0}, 1),
	)
	c := &ContactConstraint{
		BodyA: 0, BodyB: 1,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, 1, 0}}},
	}

	solve(store, c, 10)

	if store.Velocities[0] != (mgl64.Vec3{}) || store.AngularVelocities[0] != (mgl64.Vec3{}) {
		t.Errorf("static body moved: %v %v", store.Velocities[0], store.AngularVelocities[0])
	}
	if math.Abs(store.Velocities[1].Y()) > 1e-9 {
		t.Errorf("dynamic body velocity = %v, want 0", store.Velocities[1])
	}
}

func TestContactConstraint_BothStaticSkipped(t *testing.T) {
	store := createStore(createStaticBody(mgl64.Vec3{0, 0, 0}), createStaticBody(mgl64.Vec3{0, 1.5, 0}))
	c := &ContactConstraint{
		BodyA: 0, BodyB: 1,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, 0.75, 0}, Depth: 0.5}},
	}

	solve(store, c, 4)

	if c.Points[0].NormalImpulse != 0 {
		t.Errorf("impulse = %v, want 0 for an immovable pair", c.Points[0].NormalImpulse)
	}
}

func TestContactConstraint_SeparatingNoImpulse(t *testing.T) {
	store := createStore(
		createStaticBody(mgl64.Vec3{0, 0, 0}),
		createDynamicBody(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{0, 3, 0}, 1),
	)
	c := &ContactConstraint{
		BodyA: 0, BodyB: 1,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, 1, 0}}},
	}

	solve(store, c, 4)

	if c.Points[0].NormalImpulse != 0 {
		t.Errorf("impulse = %v, want 0", c.Points[0].NormalImpulse)
	}
	if math.Abs(store.Velocities[1].Y()-3) > 1e-9 {
		t.Errorf("velocity = %v, want unchanged", store.Velocities[1])
	}
}

func TestContactConstraint_FrictionCone(t *testing.T) {
	store := createStore(
		createStaticBody(mgl64.Vec3{0, 0, 0}),
		createDynamicBody(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{3, -1, 0}, 1),
	)
	c := &ContactConstraint{
		BodyA: 0, BodyB: 1,
		Normal:   mgl64.Vec3{0, 1, 0},
		Points:   []ContactPoint{{Position: mgl64.Vec3{0, 1, 0}}},
		Material: actor.MaterialPair{StaticFriction: 0.5, DynamicFriction: 0.5},
	}

	solve(store, c, 10)

	vx := store.Velocities[1].X()
	if vx >= 3 || vx < 2.5-1e-9 {
		t.Errorf("tangential velocity = %v, want in [2.5, 3)", vx)
	}

	p := c.Points[0]
	tangent := math.Hypot(p.TangentImpulse[0], p.TangentImpulse[1])
	if tangent > 0.5*p.NormalImpulse+1e-9 {
		t.Errorf("friction impulse %v exceeds the cone %v", tangent, 0.5*p.NormalImpulse)
	}
}

func TestContactConstraint_Speculative(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		wantVelY float64
	}{
		{"fast approach is slowed to close the gap", -5, -3},
		{"slow approach is left alone", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := createStore(
				createStaticBody(mgl64.Vec3{0, 0, 0}),
				createDynamicBody(mgl64.Vec3{0, 2.05, 0}, mgl64.Vec3{0, tt.speed, 0}, 1),
			)
			c := &ContactConstraint{
				BodyA: 0, BodyB: 1,
				Normal:   mgl64.Vec3{0, 1, 0},
				Points:   []ContactPoint{{Position: mgl64.Vec3{0, 1.025, 0}, Depth: -0.05}},
				Material: actor.MaterialPair{Restitution: 1},
			}

			solve(store, c, 4)

			if math.Abs(store.Velocities[1].Y()-tt.wantVelY) > 1e-9 {
				t.Errorf("velocity = %v, want %v", store.Velocities[1].Y(), tt.wantVelY)
			}
		})
	}
}

func TestContactConstraint_WarmStartAppliesCachedImpulse(t *testing.T) {
	store := createStore(
		createStaticBody(mgl64.Vec3{0, 0, 0}),
		createDynamicBody(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{}, 1),
	)
	mass := store.Masses[1]
	c := &ContactConstraint{
		BodyA: 0, BodyB: 1,
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []ContactPoint{{Position: mgl64.Vec3{0, 1, 0}, NormalImpulse: 2 * mass}},
	}

	c.PreSolve(store, testStep())
	c.WarmStart(store)

	if math.Abs(store.Velocities[1].Y()-2) > 1e-9 {
		t.Errorf("velocity after warm start = %v, want 2", store.Velocities[1].Y())
	}
}

func TestContactConstraint_MaxDepth(t *testing.T) {
	c := &ContactConstraint{Points: []ContactPoint{{Depth: 0.1}, {Depth: 0.3}, {Depth: -0.2}}}
	if c.MaxDepth() != 0.3 {
		t.Errorf("MaxDepth() = %v, want 0.3", c.MaxDepth())
	}
}

func TestClampSmallVelocities(t *testing.T) {
	store := createStore(createDynamicBody(mgl64.Vec3{}, mgl64.Vec3{1e-6, 0, 0}, 1))
	store.AngularVelocities[0] = mgl64.Vec3{0, 2, 0}

	clampSmallVelocities(store, 0)

	if store.Velocities[0] != (mgl64.Vec3{}) {
		t.Errorf("small velocity not clamped: %v", store.Velocities[0])
	}
	if store.AngularVelocities[0] != (mgl64.Vec3{0, 2, 0}) {
		t.Errorf("angular velocity changed: %v", store.AngularVelocities[0])
	}
}
