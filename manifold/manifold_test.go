package manifold

import (
	"math"
	"math/rand"
	"testing"

	"github.com/akmonengine/particle/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func vec3ApproxEqual(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

func at(x, y, z float64) actor.Transform {
	return actor.NewTransformAt(mgl64.Vec3{x, y, z})
}

func unitBox() *actor.Box {
	return actor.NewBox(mgl64.Vec3{1, 1, 1})
}

func TestGenerate_SphereSphere(t *testing.T) {
	m, ok := Generate(actor.NewSphere(1), at(0, 0, 0), actor.NewSphere(1), at(1.5, 0, 0))
	if !ok {
		t.Fatal("expected contact")
	}
	if len(m.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(m.Points))
	}
	if !vec3ApproxEqual(m.Normal, mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("normal = %v, want +X", m.Normal)
	}
	p := m.Points[0]
	if math.Abs(p.Depth-0.5) > 1e-9 {
		t.Errorf("depth = %v, want 0.5", p.Depth)
	}
	if !vec3ApproxEqual(p.Position, mgl64.Vec3{0.75, 0, 0}, 1e-9) {
		t.Errorf("position = %v, want (0.75,0,0)", p.Position)
	}
	if !vec3ApproxEqual(p.LocalB, mgl64.Vec3{-0.75, 0, 0}, 1e-9) {
		t.Errorf("localB = %v, want (-0.75,0,0)", p.LocalB)
	}
}

func TestGenerate_SphereSphereSeparated(t *testing.T) {
	if _, ok := Generate(actor.NewSphere(1), at(0, 0, 0), actor.NewSphere(1), at(2.5, 0, 0)); ok {
		t.Error("separated spheres should not collide")
	}
}

func TestGenerate_SphereBox(t *testing.T) {
	tests := []struct {
		name         string
		sphereCenter mgl64.Vec3
		radius       float64
		wantNormal   mgl64.Vec3
		wantDepth    float64
	}{
		{"above the top face", mgl64.Vec3{0, 1.5, 0}, 1, mgl64.Vec3{0, -1, 0}, 0.5},
		{"beside the +X face", mgl64.Vec3{1.75, 0, 0}, 1, mgl64.Vec3{-1, 0, 0}, 0.25},
		{"center inside", mgl64.Vec3{0, 0.8, 0}, 0.5, mgl64.Vec3{0, -1, 0}, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Generate(actor.NewSphere(tt.radius), actor.NewTransformAt(tt.sphereCenter), unitBox(), at(0, 0, 0))
			if !ok {
				t.Fatal("expected contact")
			}
			if !vec3ApproxEqual(m.Normal, tt.wantNormal, 1e-9) {
				t.Errorf("normal = %v, want %v", m.Normal, tt.wantNormal)
			}
			if len(m.Points) != 1 || math.Abs(m.Points[0].Depth-tt.wantDepth) > 1e-9 {
				t.Errorf("points = %+v, want one point of depth %v", m.Points, tt.wantDepth)
			}
		})
	}
}

func TestGenerate_BoxSphereFlipsNormal(t *testing.T) {
	m, ok := Generate(unitBox(), at(0, 0, 0), actor.NewSphere(1), at(0, 1.5, 0))
	if !ok {
		t.Fatal("expected contact")
	}
	if !vec3ApproxEqual(m.Normal, mgl64.Vec3{0, 1, 0}, 1e-9) {
		t.Errorf("normal = %v, want +Y", m.Normal)
	}
	if !vec3ApproxEqual(m.Points[0].Position, mgl64.Vec3{0, 0.75, 0}, 1e-9) {
		t.Errorf("position = %v, want (0,0.75,0)", m.Points[0].Position)
	}
}

func TestGenerate_BoxStack(t *testing.T) {
	m, ok := Generate(unitBox(), at(0, 0, 0), unitBox(), at(0, 1.9, 0))
	if !ok {
		t.Fatal("expected contact")
	}
	if !vec3ApproxEqual(m.Normal, mgl64.Vec3{0, 1, 0}, 1e-9) {
		t.Errorf("normal = %v, want +Y", m.Normal)
	}
	if len(m.Points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(m.Points))
	}
	for i, p := range m.Points {
		if math.Abs(p.Depth-0.1) > 1e-9 {
			t.Errorf("point %d depth = %v, want 0.1", i, p.Depth)
		}
		if math.Abs(p.Position.Y()-0.95) > 1e-9 {
			t.Errorf("point %d y = %v, want 0.95", i, p.Position.Y())
		}
		if math.Abs(math.Abs(p.Position.X())-1) > 1e-9 || math.Abs(math.Abs(p.Position.Z())-1) > 1e-9 {
			t.Errorf("point %d = %v, want a face corner", i, p.Position)
		}
		if !vec3ApproxEqual(p.LocalB, p.Position.Sub(mgl64.Vec3{0, 1.9, 0}), 1e-9) {
			t.Errorf("point %d localB = %v", i, p.LocalB)
		}
	}
}

func TestGenerate_BoxOffsetClipped(t *testing.T) {
	m, ok := Generate(unitBox(), at(0, 0, 0), unitBox(), at(1.5, 1.9, 0))
	if !ok {
		t.Fatal("expected contact")
	}
	if len(m.Points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(m.Points))
	}
	for i, p := range m.Points {
		if p.Position.X() < 0.5-1e-6 || p.Position.X() > 1+1e-6 {
			t.Errorf("point %d x = %v, want within [0.5, 1]", i, p.Position.X())
		}
	}
}

func TestGenerate_BoxTouchingIsNotContact(t *testing.T) {
	if _, ok := Generate(unitBox(), at(0, 0, 0), unitBox(), at(0, 2, 0)); ok {
		t.Error("touching boxes should not produce penetrating contacts")
	}
	if _, ok := Generate(unitBox(), at(0, 0, 0), unitBox(), at(0, 2.5, 0)); ok {
		t.Error("separated boxes should not collide")
	}
}

func TestGenerate_RotatedBoxes(t *testing.T) {
	rotation := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1}).Mul(mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{1, 0, 0}))
	transformB := actor.NewTransformWith(mgl64.Vec3{0.4, 2.2, 0.3}, rotation)

	m, ok := Generate(unitBox(), at(0, 0, 0), unitBox(), transformB)
	if !ok {
		t.Fatal("expected contact")
	}
	if math.Abs(m.Normal.Len()-1) > 1e-9 {
		t.Errorf("normal %v is not unit length", m.Normal)
	}
	if m.Normal.Dot(transformB.Position) <= 0 {
		t.Errorf("normal %v does not point from A toward B", m.Normal)
	}
	if len(m.Points) == 0 || len(m.Points) > MaxPoints {
		t.Fatalf("expected 1-%d points, got %d", MaxPoints, len(m.Points))
	}
	for i, p := range m.Points {
		if p.Depth <= 0 {
			t.Errorf("point %d depth = %v, want > 0", i, p.Depth)
		}
	}
}

func TestGenerate_MeshMesh(t *testing.T) {
	cube := actor.NewMesh(actor.BoxTriangleMesh(mgl64.Vec3{1, 1, 1}))

	m, ok := Generate(cube, at(0, 0, 0), cube, at(0, 1.9, 0))
	if !ok {
		t.Fatal("expected contact")
	}
	if m.Normal.Y() < 0.99 {
		t.Errorf("normal = %v, want close to +Y", m.Normal)
	}
	if len(m.Points) == 0 || len(m.Points) > MaxPoints {
		t.Fatalf("expected 1-%d points, got %d", MaxPoints, len(m.Points))
	}
	if math.Abs(m.MaxDepth()-0.1) > 0.02 {
		t.Errorf("max depth = %v, want ~0.1", m.MaxDepth())
	}
}

func TestGenerate_SphereMesh(t *testing.T) {
	cube := actor.NewMesh(actor.BoxTriangleMesh(mgl64.Vec3{1, 1, 1}))

	m, ok := Generate(cube, at(0, 0, 0), actor.NewSphere(1), at(0, 1.8, 0))
	if !ok {
		t.Fatal("expected contact")
	}
	if m.Normal.Y() < 0.9 {
		t.Errorf("normal = %v, want close to +Y", m.Normal)
	}
	if len(m.Points) != 1 {
		t.Fatalf("expected a single point, got %d", len(m.Points))
	}
	if m.Points[0].Depth <= 0 {
		t.Errorf("depth = %v, want > 0", m.Points[0].Depth)
	}
}

func TestGenerate_DegenerateFallsBackToBoundingSphere(t *testing.T) {
	m, ok := Generate(actor.NewSphere(0), at(0.5, 0, 0), actor.NewSphere(1), at(0, 0, 0))
	if !ok {
		t.Fatal("expected contact")
	}
	if math.Abs(m.Points[0].Depth-0.5) > 1e-9 {
		t.Errorf("depth = %v, want 0.5", m.Points[0].Depth)
	}

	flat := actor.NewBox(mgl64.Vec3{1, 0, 1})
	if _, ok := Generate(flat, at(0, 0, 0), unitBox(), at(0, 0.5, 0)); !ok {
		t.Error("flat box should still collide through its bounding sphere")
	}
}

func TestReduce(t *testing.T) {
	points := []Point{
		{Position: mgl64.Vec3{-1, 0, -1}, Depth: 0.1},
		{Position: mgl64.Vec3{1, 0, -1}, Depth: 0.1},
		{Position: mgl64.Vec3{1, 0, 1}, Depth: 0.1},
		{Position: mgl64.Vec3{-1, 0, 1}, Depth: 0.1},
		{Position: mgl64.Vec3{0, 0, 1}, Depth: 0.2},
		{Position: mgl64.Vec3{0, 0, -1}, Depth: 0.1},
	}
	normal := mgl64.Vec3{0, 1, 0}

	reduced := Reduce(points, normal)
	want := []mgl64.Vec3{{0, 0, 1}, {-1, 0, -1}, {1, 0, -1}, {1, 0, 1}}

	if len(reduced) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(reduced))
	}
	for i := range want {
		if reduced[i].Position != want[i] {
			t.Errorf("point %d = %v, want %v", i, reduced[i].Position, want[i])
		}
	}

	again := Reduce(points, normal)
	for i := range reduced {
		if again[i] != reduced[i] {
			t.Errorf("reduction is not deterministic at %d: %v vs %v", i, again[i], reduced[i])
		}
	}
}

func TestReduce_SmallInputUnchanged(t *testing.T) {
	points := []Point{{Depth: 1}, {Depth: 2}}
	if got := Reduce(points, mgl64.Vec3{0, 1, 0}); len(got) != 2 {
		t.Errorf("expected 2 points, got %d", len(got))
	}
}

func TestPrune(t *testing.T) {
	points := []Point{
		{Position: mgl64.Vec3{0, 0, 0}, Depth: 0.1},
		{Position: mgl64.Vec3{0, 0, 1e-5}, Depth: 0.1},
		{Position: mgl64.Vec3{1, 0, 0}, Depth: 0},
		{Position: mgl64.Vec3{2, 0, 0}, Depth: 0.3},
	}

	pruned := prune(points)
	if len(pruned) != 2 {
		t.Fatalf("expected 2 points, got %d: %+v", len(pruned), pruned)
	}
	if pruned[1].Position != (mgl64.Vec3{2, 0, 0}) {
		t.Errorf("unexpected survivor %v", pruned[1].Position)
	}
}

func TestFeatureID(t *testing.T) {
	if FeatureID(mgl64.Vec3{}) != FeatureID(mgl64.Vec3{0.01, -0.01, 0.02}) {
		t.Error("points in the same cell should share an id")
	}
	if FeatureID(mgl64.Vec3{}) == FeatureID(mgl64.Vec3{0.1, 0, 0}) {
		t.Error("points two cells apart should differ")
	}
	if FeatureID(mgl64.Vec3{0.1, 0, 0}) != 2<<20 {
		t.Errorf("FeatureID(0.1,0,0) = %d, want %d", FeatureID(mgl64.Vec3{0.1, 0, 0}), 2<<20)
	}
	if FeatureID(mgl64.Vec3{-1, 0, 0}) == FeatureID(mgl64.Vec3{1, 0, 0}) {
		t.Error("mirrored points should differ")
	}
}

func TestManifold_Flip(t *testing.T) {
	m := Manifold{
		Normal: mgl64.Vec3{0, 1, 0},
		Points: []Point{{LocalA: mgl64.Vec3{1, 0, 0}, LocalB: mgl64.Vec3{2, 0, 0}}},
	}
	m.Flip()

	if m.Normal != (mgl64.Vec3{0, -1, 0}) {
		t.Errorf("normal = %v, want -Y", m.Normal)
	}
	if m.Points[0].LocalA != (mgl64.Vec3{2, 0, 0}) || m.Points[0].LocalB != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("local points not swapped: %+v", m.Points[0])
	}
}

func TestClipFace(t *testing.T) {
	reference := []mgl64.Vec3{{-1, 1, -1}, {-1, 1, 1}, {1, 1, 1}, {1, 1, -1}}
	incident := []mgl64.Vec3{{0.5, 0.9, -1}, {2.5, 0.9, -1}, {2.5, 0.9, 1}, {0.5, 0.9, 1}}

	points := clipFace(incident, reference, mgl64.Vec3{0, 1, 0})
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	for i, p := range points {
		if p.Position.X() > 1+1e-6 {
			t.Errorf("point %d x = %v exceeds the reference face", i, p.Position.X())
		}
		if math.Abs(p.Depth-0.1) > 1e-9 {
			t.Errorf("point %d depth = %v, want 0.1", i, p.Depth)
		}
	}
}

func TestClipPolygonAgainstPlane_Segment(t *testing.T) {
	segment := []mgl64.Vec3{{-1, 0, 0}, {1, 0, 0}}
	clipped := clipPolygonAgainstPlane(segment, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0})

	if len(clipped) != 2 {
		t.Fatalf("expected 2 points, got %d", len(clipped))
	}
	if !vec3ApproxEqual(clipped[0], mgl64.Vec3{0, 0, 0}, 1e-9) || !vec3ApproxEqual(clipped[1], mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("clipped = %v", clipped)
	}
}

func BenchmarkGenerate_BoxBox(b *testing.B) {
	boxA, boxB := unitBox(), unitBox()
	transformB := actor.NewTransformWith(mgl64.Vec3{0.3, 1.8, 0.1}, mgl64.QuatRotate(0.2, mgl64.Vec3{0, 1, 0}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Generate(boxA, at(0, 0, 0), boxB, transformB)
	}
}

func randomPose(rng *rand.Rand, spread float64) actor.Transform {
	position := mgl64.Vec3{
		(rng.Float64()*2 - 1) * spread,
		(rng.Float64()*2 - 1) * spread,
		(rng.Float64()*2 - 1) * spread,
	}
	axis := mgl64.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	if axis.LenSqr() < 1e-12 {
		axis = mgl64.Vec3{0, 1, 0}
	}
	return actor.NewTransformWith(position, mgl64.QuatRotate(rng.Float64()*2*math.Pi, axis.Normalize()))
}

func randomBox(rng *rand.Rand) *actor.Box {
	return actor.NewBox(mgl64.Vec3{
		0.25 + rng.Float64(),
		0.25 + rng.Float64(),
		0.25 + rng.Float64(),
	})
}

func TestGenerate_BoxBoxRandomPoses(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	contacts := 0
	for iteration := 0; iteration < 2000; iteration++ {
		boxA, boxB := randomBox(rng), randomBox(rng)
		transformA, transformB := randomPose(rng, 1.5), randomPose(rng, 1.5)

		m, ok := Generate(boxA, transformA, boxB, transformB)
		if !ok {
			continue
		}
		contacts++

		if n := len(m.Points); n < 1 || n > MaxPoints {
			t.Fatalf("iteration %d: %d points", iteration, n)
		}
		if math.Abs(m.Normal.Len()-1) > 1e-9 {
			t.Fatalf("iteration %d: normal %v is not unit length", iteration, m.Normal)
		}
		if m.Normal.Dot(transformB.Position.Sub(transformA.Position)) < -1e-9 {
			t.Fatalf("iteration %d: normal %v points from B toward A", iteration, m.Normal)
		}
		for _, p := range m.Points {
			if p.Depth <= 0 {
				t.Fatalf("iteration %d: depth %v", iteration, p.Depth)
			}
			reachA := boxA.BoundingRadius() + p.Depth + 1e-6
			reachB := boxB.BoundingRadius() + p.Depth + 1e-6
			if p.Position.Sub(transformA.Position).Len() > reachA || p.Position.Sub(transformB.Position).Len() > reachB {
				t.Fatalf("iteration %d: point %v is away from the boxes", iteration, p.Position)
			}
		}
	}

	if contacts == 0 {
		t.Fatal("no overlapping pose generated")
	}
}
