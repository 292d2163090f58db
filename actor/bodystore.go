package actor

import (
	"math"

	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// BodyStore keeps rigid-body state as parallel dense slices (structure of arrays).
// Handles resolve to a dense index through a generational arena; removal swaps
// the last body into the freed index so the slices stay packed.
//
// Dense indices are only stable between two Insert/Remove calls.
type BodyStore struct {
	dense *arena.Arena[int]
	ids   []arena.EntityID

	Transforms        []Transform
	Velocities        []mgl64.Vec3
	AngularVelocities []mgl64.Vec3
	Forces            []mgl64.Vec3
	Torques           []mgl64.Vec3

	Masses               []float64
	InverseMasses        []float64
	InertiasLocal        []mgl64.Mat3
	InverseInertiasLocal []mgl64.Mat3
	InverseInertiasWorld []mgl64.Mat3

	Materials       []Material
	Types           []BodyType
	Awake           []bool
	SleepTimers     []float64
	GravityScales   []float64
	LinearDampings  []float64
	AngularDampings []float64
}

func NewBodyStore(capacity int) *BodyStore {
	return &BodyStore{
		dense: arena.New[int](capacity),
		ids:   make([]arena.EntityID, 0, capacity),
	}
}

// Insert copies rb into the store and returns its handle.
func (s *BodyStore) Insert(rb *RigidBody) arena.EntityID {
	index := len(s.ids)
	id := s.dense.Insert(index)
	s.ids = append(s.ids, id)

	rotation := rb.Transform.Rotation
	if rotation == (mgl64.Quat{}) {
		rotation = mgl64.QuatIdent()
	}
	transform := rb.Transform
	transform.Rotation = rotation.Normalize()

	s.Transforms = append(s.Transforms, transform)
	s.Velocities = append(s.Velocities, rb.Velocity)
	s.AngularVelocities = append(s.AngularVelocities, rb.AngularVelocity)
	s.Forces = append(s.Forces, mgl64.Vec3{})
	s.Torques = append(s.Torques, mgl64.Vec3{})

	s.Masses = append(s.Masses, rb.Mass)
	s.InverseMasses = append(s.InverseMasses, rb.InverseMass())
	s.InertiasLocal = append(s.InertiasLocal, rb.InertiaLocal)
	s.InverseInertiasLocal = append(s.InverseInertiasLocal, rb.InverseInertiaLocal())
	s.InverseInertiasWorld = append(s.InverseInertiasWorld, mgl64.Mat3{})

	s.Materials = append(s.Materials, rb.Material)
	s.Types = append(s.Types, rb.BodyType)
	s.Awake = append(s.Awake, !rb.IsSleeping)
	s.SleepTimers = append(s.SleepTimers, 0)
	s.GravityScales = append(s.GravityScales, rb.GravityScale)
	s.LinearDampings = append(s.LinearDampings, rb.LinearDamping)
	s.AngularDampings = append(s.AngularDampings, rb.AngularDamping)

	s.UpdateWorldInertia(index)

	return id
}

// Remove deletes the body and returns its last state.
func (s *BodyStore) Remove(id arena.EntityID) (RigidBody, bool) {
	index, ok := s.Index(id)
	if !ok {
		return RigidBody{}, false
	}

	snapshot := s.snapshot(index)
	s.dense.Remove(id)

	last := len(s.ids) - 1
	if index != last {
		movedID := s.ids[last]
		s.moveBody(last, index)
		if slot, ok := s.dense.Get(movedID); ok {
			*slot = index
		}
	}
	s.truncate(last)

	return snapshot, true
}

func (s *BodyStore) moveBody(from, to int) {
	s.ids[to] = s.ids[from]
	s.Transforms[to] = s.Transforms[from]
	s.Velocities[to] = s.Velocities[from]
	s.AngularVelocities[to] = s.AngularVelocities[from]
	s.Forces[to] = s.Forces[from]
	s.Torques[to] = s.Torques[from]
	s.Masses[to] = s.Masses[from]
	s.InverseMasses[to] = s.InverseMasses[from]
	s.InertiasLocal[to] = s.InertiasLocal[from]
	s.InverseInertiasLocal[to] = s.InverseInertiasLocal[from]
	s.InverseInertiasWorld[to] = s.InverseInertiasWorld[from]
	s.Materials[to] = s.Materials[from]
	s.Types[to] = s.Types[from]
	s.Awake[to] = s.Awake[from]
	s.SleepTimers[to] = s.SleepTimers[from]
	s.GravityScales[to] = s.GravityScales[from]
	s.LinearDampings[to] = s.LinearDampings[from]
	s.AngularDampings[to] = s.AngularDampings[from]
}

func (s *BodyStore) truncate(n int) {
	s.ids = s.ids[:n]
	s.Transforms = s.Transforms[:n]
	s.Velocities = s.Velocities[:n]
	s.AngularVelocities = s.AngularVelocities[:n]
	s.Forces = s.Forces[:n]
	s.Torques = s.Torques[:n]
	s.Masses = s.Masses[:n]
	s.InverseMasses = s.InverseMasses[:n]
	s.InertiasLocal = s.InertiasLocal[:n]
	s.InverseInertiasLocal = s.InverseInertiasLocal[:n]
	s.InverseInertiasWorld = s.InverseInertiasWorld[:n]
	s.Materials = s.Materials[:n]
	s.Types = s.Types[:n]
	s.Awake = s.Awake[:n]
	s.SleepTimers = s.SleepTimers[:n]
	s.GravityScales = s.GravityScales[:n]
	s.LinearDampings = s.LinearDampings[:n]
	s.AngularDampings = s.AngularDampings[:n]
}

// Len returns the number of live bodies.
func (s *BodyStore) Len() int {
	return len(s.ids)
}

// Index resolves a handle to its current dense index.
func (s *BodyStore) Index(id arena.EntityID) (int, bool) {
	index, ok := s.dense.Get(id)
	if !ok {
		return -1, false
	}
	return *index, true
}

// Pair resolves two distinct live handles at once.
func (s *BodyStore) Pair(idA, idB arena.EntityID) (int, int, bool) {
	a, b, ok := s.dense.Get2(idA, idB)
	if !ok {
		return -1, -1, false
	}
	return *a, *b, true
}

// ID returns the handle of the body stored at dense index i.
func (s *BodyStore) ID(i int) arena.EntityID {
	return s.ids[i]
}

// IDs returns the handles in dense order.
func (s *BodyStore) IDs() []arena.EntityID {
	return append([]arena.EntityID(nil), s.ids...)
}

func (s *BodyStore) Contains(id arena.EntityID) bool {
	return s.dense.Contains(id)
}

// Body returns a copy of the body state.
func (s *BodyStore) Body(id arena.EntityID) (RigidBody, bool) {
	index, ok := s.Index(id)
	if !ok {
		return RigidBody{}, false
	}
	return s.snapshot(index), true
}

func (s *BodyStore) snapshot(i int) RigidBody {
	return RigidBody{
		Transform:       s.Transforms[i],
		Velocity:        s.Velocities[i],
		AngularVelocity: s.AngularVelocities[i],
		Mass:            s.Masses[i],
		InertiaLocal:    s.InertiasLocal[i],
		Material:        s.Materials[i],
		BodyType:        s.Types[i],
		GravityScale:    s.GravityScales[i],
		LinearDamping:   s.LinearDampings[i],
		AngularDamping:  s.AngularDampings[i],
		IsSleeping:      !s.Awake[i],
	}
}

// BodyMut returns a mutable handle on the body.
func (s *BodyStore) BodyMut(id arena.EntityID) (BodyHandle, bool) {
	index, ok := s.Index(id)
	if !ok {
		return BodyHandle{}, false
	}
	return BodyHandle{store: s, index: index, id: id}, true
}

// IsStatic reports a body that never moves and never receives impulses.
func (s *BodyStore) IsStatic(i int) bool {
	return s.Types[i] == BodyTypeStatic
}

// IsDynamic reports a body driven by forces and impulses.
func (s *BodyStore) IsDynamic(i int) bool {
	return s.Types[i] == BodyTypeDynamic
}

// UpdateWorldInertia recomputes the world inverse inertia from the current rotation.
func (s *BodyStore) UpdateWorldInertia(i int) {
	if s.Types[i] != BodyTypeDynamic {
		s.InverseInertiasWorld[i] = mgl64.Mat3{}
		return
	}
	s.InverseInertiasWorld[i] = WorldInertia(s.Transforms[i].Rotation, s.InverseInertiasLocal[i])
}

// SetMass updates mass properties and the cached inverses.
func (s *BodyStore) SetMass(i int, mass float64, inertia mgl64.Mat3) {
	rb := RigidBody{Mass: mass, InertiaLocal: inertia, BodyType: s.Types[i]}
	s.Masses[i] = mass
	s.InertiasLocal[i] = inertia
	s.InverseMasses[i] = rb.InverseMass()
	s.InverseInertiasLocal[i] = rb.InverseInertiaLocal()
	s.UpdateWorldInertia(i)
}

// VelocityAt returns the velocity of the material point at arm r from the center.
func (s *BodyStore) VelocityAt(i int, r mgl64.Vec3) mgl64.Vec3 {
	return s.Velocities[i].Add(s.AngularVelocities[i].Cross(r))
}

// ApplyImpulse applies impulse at arm r from the center. Static and kinematic bodies are untouched.
func (s *BodyStore) ApplyImpulse(i int, impulse, r mgl64.Vec3) {
	if s.Types[i] != BodyTypeDynamic {
		return
	}
	s.Velocities[i] = s.Velocities[i].Add(impulse.Mul(s.InverseMasses[i]))
	s.AngularVelocities[i] = s.AngularVelocities[i].Add(s.InverseInertiasWorld[i].Mul3x1(r.Cross(impulse)))
}

// IntegrateVelocity applies gravity, accumulated forces and exponential damping over dt.
func (s *BodyStore) IntegrateVelocity(i int, gravity mgl64.Vec3, dt float64) {
	if s.Types[i] != BodyTypeDynamic || !s.Awake[i] {
		return
	}

	// ========== LINEAR ==========
	acceleration := gravity.Mul(s.GravityScales[i]).Add(s.Forces[i].Mul(s.InverseMasses[i]))
	s.Velocities[i] = s.Velocities[i].Add(acceleration.Mul(dt))
	s.Velocities[i] = s.Velocities[i].Mul(math.Exp(-s.LinearDampings[i] * dt))

	// ========== ANGULAR ==========
	angularAccel := s.InverseInertiasWorld[i].Mul3x1(s.Torques[i])
	s.AngularVelocities[i] = s.AngularVelocities[i].Add(angularAccel.Mul(dt))
	s.AngularVelocities[i] = s.AngularVelocities[i].Mul(math.Exp(-s.AngularDampings[i] * dt))

	s.ClearForces(i)
}

// IntegratePosition advances position and rotation with the current velocities.
func (s *BodyStore) IntegratePosition(i int, dt float64) {
	if s.Types[i] == BodyTypeStatic || !s.Awake[i] {
		return
	}

	t := &s.Transforms[i]
	t.Position = t.Position.Add(s.Velocities[i].Mul(dt))
	if s.AngularVelocities[i].LenSqr() > 0 {
		t.Rotation = IntegrateRotation(t.Rotation, s.AngularVelocities[i], dt)
	}
	s.UpdateWorldInertia(i)
}

// UpdateSleepTimer accumulates the time the body spent under both thresholds
// and returns it. Any faster motion resets the timer.
func (s *BodyStore) UpdateSleepTimer(i int, dt, linearThreshold, angularThreshold float64) float64 {
	if s.Velocities[i].Len() < linearThreshold && s.AngularVelocities[i].Len() < angularThreshold {
		s.SleepTimers[i] += dt
	} else {
		s.SleepTimers[i] = 0
	}
	return s.SleepTimers[i]
}

func (s *BodyStore) Sleep(i int) {
	s.Awake[i] = false
	s.SleepTimers[i] = 0
	s.Velocities[i] = mgl64.Vec3{}
	s.AngularVelocities[i] = mgl64.Vec3{}
	s.ClearForces(i)
}

func (s *BodyStore) Wake(i int) {
	if s.Types[i] == BodyTypeStatic {
		return
	}
	s.Awake[i] = true
	s.SleepTimers[i] = 0
}

func (s *BodyStore) ClearForces(i int) {
	s.Forces[i] = mgl64.Vec3{}
	s.Torques[i] = mgl64.Vec3{}
}

// BodyHandle gives mutable access to one body. It is invalidated by the next
// Insert or Remove on the store.
type BodyHandle struct {
	store *BodyStore
	index int
	id    arena.EntityID
}

func (h BodyHandle) ID() arena.EntityID {
	return h.id
}

func (h BodyHandle) Transform() *Transform {
	return &h.store.Transforms[h.index]
}

func (h BodyHandle) Velocity() *mgl64.Vec3 {
	return &h.store.Velocities[h.index]
}

func (h BodyHandle) AngularVelocity() *mgl64.Vec3 {
	return &h.store.AngularVelocities[h.index]
}

func (h BodyHandle) Material() *Material {
	return &h.store.Materials[h.index]
}

func (h BodyHandle) BodyType() BodyType {
	return h.store.Types[h.index]
}

func (h BodyHandle) Mass() float64 {
	return h.store.Masses[h.index]
}

func (h BodyHandle) InverseMass() float64 {
	return h.store.InverseMasses[h.index]
}

func (h BodyHandle) SetMass(mass float64, inertia mgl64.Mat3) {
	h.store.SetMass(h.index, mass, inertia)
}

func (h BodyHandle) SetGravityScale(scale float64) {
	h.store.GravityScales[h.index] = scale
}

func (h BodyHandle) SetDamping(linear, angular float64) {
	h.store.LinearDampings[h.index] = linear
	h.store.AngularDampings[h.index] = angular
}

func (h BodyHandle) IsSleeping() bool {
	return !h.store.Awake[h.index]
}

func (h BodyHandle) Wake() {
	h.store.Wake(h.index)
}

// ApplyForce accumulates a force (N) applied at the center of mass until the next step.
func (h BodyHandle) ApplyForce(force mgl64.Vec3) {
	if h.store.Types[h.index] != BodyTypeDynamic {
		return
	}
	h.store.Wake(h.index)
	h.store.Forces[h.index] = h.store.Forces[h.index].Add(force)
}

// ApplyForceAtPoint accumulates a force at a world point, adding the matching torque.
func (h BodyHandle) ApplyForceAtPoint(force, point mgl64.Vec3) {
	if h.store.Types[h.index] != BodyTypeDynamic {
		return
	}
	h.ApplyForce(force)
	r := point.Sub(h.store.Transforms[h.index].Position)
	h.store.Torques[h.index] = h.store.Torques[h.index].Add(r.Cross(force))
}

// ApplyTorque accumulates a torque (N⋅m) until the next step.
func (h BodyHandle) ApplyTorque(torque mgl64.Vec3) {
	if h.store.Types[h.index] != BodyTypeDynamic {
		return
	}
	h.store.Wake(h.index)
	h.store.Torques[h.index] = h.store.Torques[h.index].Add(torque)
}

// ApplyImpulse changes velocities immediately, as if impulse hit the body at a world point.
func (h BodyHandle) ApplyImpulse(impulse, point mgl64.Vec3) {
	if h.store.Types[h.index] != BodyTypeDynamic {
		return
	}
	h.store.Wake(h.index)
	h.store.UpdateWorldInertia(h.index)
	h.store.ApplyImpulse(h.index, impulse, point.Sub(h.store.Transforms[h.index].Position))
}
