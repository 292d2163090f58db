package compute

import (
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// GpuWorldState is a flat copy of the world, laid out as parallel slices so it
// can be uploaded as-is. Body slices are indexed like the BodyStore; collider
// slices follow the collider arena slot order.
type GpuWorldState struct {
	Frame uint64
	// Pairs is the number of broad-phase pairs of the current step.
	Pairs int

	Positions     []mgl64.Vec3
	Velocities    []mgl64.Vec3
	InverseMasses []float64

	ColliderBodies []int
	ColliderBounds []actor.AABB
}

func NewGpuWorldState() *GpuWorldState {
	return &GpuWorldState{}
}

// Sync copies bodies and colliders into the snapshot, reusing its buffers.
// Colliders whose body is gone are skipped.
func (s *GpuWorldState) Sync(frame uint64, bodies *actor.BodyStore, colliders *arena.Arena[actor.Collider]) {
	s.Frame = frame
	s.Pairs = 0

	n := bodies.Len()
	s.Positions = s.Positions[:0]
	s.Velocities = s.Velocities[:0]
	s.InverseMasses = s.InverseMasses[:0]
	for i := 0; i < n; i++ {
		s.Positions = append(s.Positions, bodies.Transforms[i].Position)
		s.Velocities = append(s.Velocities, bodies.Velocities[i])
		s.InverseMasses = append(s.InverseMasses, bodies.InverseMasses[i])
	}

	s.ColliderBodies = s.ColliderBodies[:0]
	s.ColliderBounds = s.ColliderBounds[:0]
	colliders.Each(func(_ arena.EntityID, c *actor.Collider) {
		index, ok := bodies.Index(c.Body)
		if !ok {
			return
		}
		s.ColliderBodies = append(s.ColliderBodies, index)
		s.ColliderBounds = append(s.ColliderBounds, c.WorldAABB(bodies.Transforms[index]))
	})
}

// UpdateVelocities refreshes the velocities after the solver, leaving the rest untouched.
func (s *GpuWorldState) UpdateVelocities(bodies *actor.BodyStore) {
	for i := range s.Velocities {
		s.Velocities[i] = bodies.Velocities[i]
	}
}

func (s *GpuWorldState) BodyCount() int {
	return len(s.Positions)
}

func (s *GpuWorldState) ColliderCount() int {
	return len(s.ColliderBounds)
}
