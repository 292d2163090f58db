// Package particle is a real-time rigid and articulated body physics engine.
//
// A World owns bodies, colliders, joints and multibodies, all addressed by
// generational arena.EntityID handles, and advances them by fixed ticks.
package particle

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/akmonengine/particle/articulation"
	"github.com/akmonengine/particle/ccd"
	"github.com/akmonengine/particle/compute"
	"github.com/akmonengine/particle/config"
	"github.com/akmonengine/particle/constraint"
	"github.com/akmonengine/particle/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const DEFAULT_WORKERS = 1

// accumulatorEpsilon absorbs rounding when dt is a multiple of the time step.
const accumulatorEpsilon = 1e-12

// debugManifoldLimit is the number of manifolds logged per substep.
const debugManifoldLimit = 5

type World struct {
	Events Events

	config config.Config
	logger *slog.Logger

	bodies      *actor.BodyStore
	colliders   *arena.Arena[actor.Collider]
	joints      *arena.Arena[constraint.Joint]
	multibodies *arena.Arena[*articulation.Multibody]
	forces      []ForceGenerator

	grid     *SpatialGrid
	proxies  []Proxy
	placed   []placedCollider
	cache    *constraint.ManifoldCache
	islands  constraint.IslandBuilder
	solver   constraint.Solver
	detector ccd.Detector
	gjkBatch *gjk.Batch

	backend  compute.Backend
	snapshot *compute.GpuWorldState

	accumulator float64
	frame       uint64
	profile     Profile
	metrics     constraint.Metrics

	manifoldHook func([]ManifoldInfo)
	manifolds    []ManifoldInfo

	boundJoints []constraint.Joint
	driven      []bool
}

// NewWorld creates an empty world. A nil cfg uses config.Default().
func NewWorld(cfg *config.Config) (*World, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("particle: new world: %w", err)
	}

	w := &World{
		Events:      NewEvents(),
		config:      *cfg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bodies:      actor.NewBodyStore(64),
		colliders:   arena.New[actor.Collider](64),
		joints:      arena.New[constraint.Joint](8),
		multibodies: arena.New[*articulation.Multibody](4),
		grid:        NewSpatialGrid(cfg.Broadphase.CellSize, cfg.Broadphase.Buckets),
		cache:       constraint.NewManifoldCache(cfg.Manifold.MaxAge, cfg.Manifold.MatchTolerance),
		gjkBatch:    gjk.NewBatch(64),
		backend:     compute.NoopBackend{},
		snapshot:    compute.NewGpuWorldState(),
	}
	w.applyConfig()

	return w, nil
}

// applyConfig copies the solver and CCD parameters out of the configuration.
func (w *World) applyConfig() {
	w.solver = constraint.Solver{
		Iterations:           w.config.Solver.Iterations,
		BiasFactor:           w.config.Solver.BiasFactor,
		Slop:                 w.config.Solver.Slop,
		RestitutionThreshold: w.config.Solver.RestitutionThreshold,
		WarmStart:            w.config.Solver.WarmStart,
	}
	w.detector = ccd.Detector{
		MotionThreshold:   w.config.CCD.MotionThreshold,
		SpeculativeMargin: w.config.CCD.SpeculativeMargin,
		MaxIterations:     w.config.CCD.MaxIterations,
		Tolerance:         w.config.CCD.Tolerance,
	}
}

// Config returns a copy of the current configuration, setters included.
func (w *World) Config() config.Config {
	return w.config
}

// ========== BODIES ==========

// AddRigidBody copies rb into the world and returns its handle.
func (w *World) AddRigidBody(rb *actor.RigidBody) arena.EntityID {
	return w.bodies.Insert(rb)
}

// RemoveRigidBody removes the body with its colliders and the joints attached to it.
func (w *World) RemoveRigidBody(id arena.EntityID) bool {
	if !w.bodies.Contains(id) {
		return false
	}

	var colliders []arena.EntityID
	w.colliders.Each(func(colliderID arena.EntityID, collider *actor.Collider) {
		if collider.Body == id {
			colliders = append(colliders, colliderID)
		}
	})
	for _, colliderID := range colliders {
		w.RemoveCollider(colliderID)
	}

	var joints []arena.EntityID
	w.joints.Each(func(jointID arena.EntityID, joint *constraint.Joint) {
		a, b := (*joint).Entities()
		if a == id || b == id {
			joints = append(joints, jointID)
		}
	})
	for _, jointID := range joints {
		w.joints.Remove(jointID)
	}

	w.bodies.Remove(id)
	w.Events.forgetBody(id)
	return true
}

// Body returns a copy of the body state.
func (w *World) Body(id arena.EntityID) (actor.RigidBody, bool) {
	return w.bodies.Body(id)
}

// BodyMut returns a handle valid until the next add, remove or step.
func (w *World) BodyMut(id arena.EntityID) (actor.BodyHandle, bool) {
	return w.bodies.BodyMut(id)
}

// BodyIDs returns the live body handles in storage order.
func (w *World) BodyIDs() []arena.EntityID {
	return w.bodies.IDs()
}

func (w *World) BodyCount() int {
	return w.bodies.Len()
}

// ========== COLLIDERS ==========

// AddCollider attaches collider to its body, which must be alive.
func (w *World) AddCollider(collider actor.Collider) (arena.EntityID, error) {
	if !w.bodies.Contains(collider.Body) {
		return arena.Invalid, fmt.Errorf("particle: add collider to body %v: %w", collider.Body, arena.ErrStaleID)
	}
	if collider.Offset.Rotation == (mgl64.Quat{}) {
		collider.Offset.Rotation = mgl64.QuatIdent()
	}
	if collider.Filter == (actor.CollisionFilter{}) {
		collider.Filter = actor.DefaultCollisionFilter()
	}
	if index, ok := w.bodies.Index(collider.Body); ok {
		w.bodies.Wake(index)
	}
	return w.colliders.Insert(collider), nil
}

func (w *World) RemoveCollider(id arena.EntityID) bool {
	if _, ok := w.colliders.Remove(id); !ok {
		return false
	}
	w.cache.Forget(id)
	w.Events.forgetCollider(id)
	return true
}

// Collider returns a copy of the collider.
func (w *World) Collider(id arena.EntityID) (actor.Collider, bool) {
	collider, ok := w.colliders.Get(id)
	if !ok {
		return actor.Collider{}, false
	}
	return *collider, true
}

func (w *World) ColliderCount() int {
	return w.colliders.Len()
}

// ========== JOINTS & MULTIBODIES ==========

// AddJoint registers a joint between two live bodies.
func (w *World) AddJoint(joint constraint.Joint) (arena.EntityID, error) {
	a, b := joint.Entities()
	if _, _, ok := w.bodies.Pair(a, b); !ok {
		return arena.Invalid, fmt.Errorf("particle: add joint between %v and %v: %w", a, b, arena.ErrStaleID)
	}
	return w.joints.Insert(joint), nil
}

func (w *World) RemoveJoint(id arena.EntityID) bool {
	_, ok := w.joints.Remove(id)
	return ok
}

// AddMultibody registers an articulated tree. Links with a Body are driven to
// their pose every substep.
func (w *World) AddMultibody(multibody *articulation.Multibody) arena.EntityID {
	multibody.UpdateKinematics()
	id := w.multibodies.Insert(multibody)
	for i := range multibody.Links {
		if index, ok := w.bodies.Index(multibody.Links[i].Body); ok {
			w.bodies.Transforms[index] = poseKeepingScale(w.bodies.Transforms[index], multibody.LinkTransform(i))
			w.bodies.UpdateWorldInertia(index)
		}
	}
	return id
}

func (w *World) Multibody(id arena.EntityID) (*articulation.Multibody, bool) {
	multibody, ok := w.multibodies.Get(id)
	if !ok {
		return nil, false
	}
	return *multibody, true
}

func (w *World) RemoveMultibody(id arena.EntityID) bool {
	_, ok := w.multibodies.Remove(id)
	return ok
}

// AddForce registers a force generator applied at the start of every substep.
func (w *World) AddForce(force ForceGenerator) {
	w.forces = append(w.forces, force)
}

// ========== SETTINGS ==========

func (w *World) SetParallelEnabled(enabled bool) {
	w.config.Parallel.Enabled = enabled
}

// SetWorkers sets the worker count of the parallel mode; n <= 0 uses GOMAXPROCS.
func (w *World) SetWorkers(n int) {
	w.config.Parallel.Workers = n
}

func (w *World) SetCCDEnabled(enabled bool) {
	w.config.CCD.Enabled = enabled
}

func (w *World) SetSpeculativeEnabled(enabled bool) {
	w.config.CCD.Speculative = enabled
}

// SetCCDThreshold sets the per-step displacement, in bounding radii, above which bodies are swept.
func (w *World) SetCCDThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	w.config.CCD.MotionThreshold = threshold
	w.detector.MotionThreshold = threshold
}

func (w *World) SetPCIEnabled(enabled bool) {
	w.config.PCI.Enabled = enabled
}

// SetPCIIterations sets the number of PCI passes; 0 disables the pass.
func (w *World) SetPCIIterations(n int) {
	w.config.PCI.Iterations = max(n, 0)
}

func (w *World) SetGravity(gravity mgl64.Vec3) {
	w.config.Gravity = config.Vec3(gravity)
}

func (w *World) Gravity() mgl64.Vec3 {
	return mgl64.Vec3(w.config.Gravity)
}

func (w *World) SetSolverIterations(n int) {
	w.config.Solver.Iterations = max(n, 0)
	w.solver.Iterations = w.config.Solver.Iterations
}

func (w *World) SetSleepEnabled(enabled bool) {
	w.config.Sleep.Enabled = enabled
}

// SetBackend installs a compute backend; nil restores the no-op backend.
func (w *World) SetBackend(backend compute.Backend) {
	if backend == nil {
		backend = compute.NoopBackend{}
	}
	w.backend = backend
}

func (w *World) BackendName() string {
	return w.backend.Name()
}

// SetLogger replaces the discarding default logger.
func (w *World) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w.logger = logger
}

// SetManifoldHook registers fn, called after each narrow phase with the manifolds
// sent to the solver. The slice is only valid during the call.
func (w *World) SetManifoldHook(fn func([]ManifoldInfo)) {
	w.manifoldHook = fn
}

// ========== STATE ==========

// Frame returns the number of ticks simulated.
func (w *World) Frame() uint64 {
	return w.frame
}

// Alpha is the fraction of a tick left in the accumulator, to interpolate rendering.
func (w *World) Alpha() float64 {
	return w.accumulator / w.config.TimeStep
}

// Profile returns the timings and counts of the last tick.
func (w *World) Profile() Profile {
	return w.profile
}

// SolverMetrics returns the solver sums of the last tick.
func (w *World) SolverMetrics() constraint.Metrics {
	return w.metrics
}

func (w *World) workers() int {
	if !w.config.Parallel.Enabled {
		return DEFAULT_WORKERS
	}
	if w.config.Parallel.Workers > 0 {
		return w.config.Parallel.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// ========== STEP ==========

// Step advances the world by dt, running as many fixed ticks as the accumulated
// time allows. The remainder is kept for the next call. Events are dispatched
// once, after the last tick.
func (w *World) Step(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}
	start := time.Now()

	w.accumulator += dt
	ticks := 0
	for w.accumulator >= w.config.TimeStep-accumulatorEpsilon {
		w.tick()
		w.accumulator = math.Max(w.accumulator-w.config.TimeStep, 0)
		ticks++
	}

	w.Events.processSleepEvents(w.bodies)
	w.Events.flush(w.isActive)

	if elapsed := time.Since(start); w.config.FrameBudget > 0 && elapsed > w.config.FrameBudget {
		w.logger.Warn("frame budget exceeded",
			slog.Duration("elapsed", elapsed),
			slog.Duration("budget", w.config.FrameBudget),
			slog.Int("ticks", ticks),
			slog.Uint64("frame", w.frame))
	}
}

func (w *World) tick() {
	start := time.Now()
	w.profile = Profile{Frame: w.frame}
	w.metrics = constraint.Metrics{}

	h := w.config.TimeStep / float64(w.config.Substeps)
	for range w.config.Substeps {
		w.substep(h)
	}

	w.profile.Counts.CacheDropped = w.cache.Prune(w.frame)
	w.profile.Counts.Bodies = w.bodies.Len()
	w.profile.Counts.Colliders = w.colliders.Len()
	w.profile.Timings.Total = time.Since(start)

	if w.config.Debug.SolverMetrics {
		w.logger.Debug("solver", slog.Uint64("frame", w.frame), slog.Any("metrics", w.metrics))
	}
	w.logger.Debug("tick", slog.Any("profile", w.profile))

	w.frame++
}

func (w *World) substep(h float64) {
	timings := &w.profile.Timings
	counts := &w.profile.Counts

	mark := time.Now()
	lap := func(d *time.Duration) {
		now := time.Now()
		*d += now.Sub(mark)
		mark = now
	}

	// Phase 1: backend snapshot
	external := !compute.IsNoop(w.backend)
	if external {
		w.snapshot.Sync(w.frame, w.bodies, w.colliders)
		w.backend.PrepareStep(w.snapshot)
	}

	// Phase 2: forces, gravity and damping
	for _, force := range w.forces {
		force.Apply(w.bodies)
	}
	gravity := w.Gravity()
	task(w.workers(), w.bodies.Len(), func(i int) {
		w.bodies.IntegrateVelocity(i, gravity, h)
	})
	lap(&timings.Integration)

	// Phase 3: broad phase
	pairs := w.broadPhase(h)
	counts.Pairs += len(pairs)
	if external {
		w.snapshot.Pairs = len(pairs)
		w.backend.DispatchBroadphase(w.snapshot)
	}
	lap(&timings.BroadPhase)

	// Phase 4: narrow phase and continuous collision
	w.manifolds = w.manifolds[:0]
	contacts, speculative, swept := w.narrowPhase(pairs, h)
	counts.Contacts += len(contacts)
	counts.Speculative += speculative
	counts.Swept += swept
	w.reportManifolds()
	lap(&timings.NarrowPhase)

	// Phase 5: islands
	joints := w.bindJoints()
	w.wakeTouching(contacts)
	islands := w.islands.Build(w.bodies, contacts, joints)
	w.wakeIslands(islands)
	lap(&timings.Islands)

	// Phase 6: solver
	w.metrics.Merge(w.solve(islands, h))
	counts.Islands += len(islands)
	lap(&timings.Solver)

	// Phase 7: predictive correction of the solved velocities
	if w.config.PCI.Enabled && w.config.PCI.Iterations > 0 {
		pci := constraint.PCI{Iterations: w.config.PCI.Iterations, Slop: w.config.PCI.Slop}
		counts.Corrections += pci.Apply(w.bodies, awakeContacts(islands, w.bodies), h)
	}
	lap(&timings.PCI)

	// Phase 8: backend solver dispatch
	if external {
		w.snapshot.UpdateVelocities(w.bodies)
		w.backend.DispatchSolver(w.snapshot)
	}

	// Phase 9: articulated bodies
	w.stepMultibodies(h)
	lap(&timings.Articulation)

	// Phase 10: positions
	task(w.workers(), w.bodies.Len(), func(i int) {
		if !w.driven[i] {
			w.bodies.IntegratePosition(i, h)
		}
	})
	lap(&timings.Integration)

	// Phase 11: sleep and contact persistence
	w.trySleep(islands, h)
	for _, contact := range contacts {
		w.cache.Store(contact, w.frame)
	}
}

// bindJoints resolves the joint handles to dense indices. Joints whose bodies
// are gone are skipped.
func (w *World) bindJoints() []constraint.Joint {
	w.boundJoints = w.boundJoints[:0]
	w.joints.Each(func(_ arena.EntityID, joint *constraint.Joint) {
		a, b := (*joint).Entities()
		indexA, indexB, ok := w.bodies.Pair(a, b)
		if !ok {
			return
		}
		(*joint).Bind(indexA, indexB)
		w.boundJoints = append(w.boundJoints, *joint)
	})
	return w.boundJoints
}

// wakeTouching wakes sleeping dynamic bodies touched by an awake moving body.
func (w *World) wakeTouching(contacts []*constraint.ContactConstraint) {
	for _, contact := range contacts {
		a, b := contact.BodyA, contact.BodyB
		if w.isMoving(a) && w.bodies.IsDynamic(b) && !w.bodies.Awake[b] {
			w.bodies.Wake(b)
		}
		if w.isMoving(b) && w.bodies.IsDynamic(a) && !w.bodies.Awake[a] {
			w.bodies.Wake(a)
		}
	}
}

// wakeIslands wakes every body of an island holding an awake body.
func (w *World) wakeIslands(islands []constraint.Island) {
	for i := range islands {
		if !islands[i].Awake(w.bodies) {
			continue
		}
		for _, body := range islands[i].Bodies {
			if !w.bodies.Awake[body] {
				w.bodies.Wake(body)
			}
		}
	}
}

func (w *World) isMoving(i int) bool {
	return !w.bodies.IsStatic(i) && w.bodies.Awake[i]
}

// isActive reports a live, awake, non-static body.
func (w *World) isActive(id arena.EntityID) bool {
	index, ok := w.bodies.Index(id)
	return ok && w.isMoving(index)
}

// solve runs the solver on every awake island. In parallel mode islands are
// spread over the workers; each island only writes its own bodies, and the
// metrics are merged in island order.
func (w *World) solve(islands []constraint.Island, h float64) constraint.Metrics {
	results := make([]constraint.Metrics, len(islands))
	task(w.workers(), len(islands), func(i int) {
		island := &islands[i]
		if island.Awake(w.bodies) {
			results[i] = w.solver.SolveIsland(w.bodies, island, h)
		}
	})

	var metrics constraint.Metrics
	for _, result := range results {
		metrics.Merge(result)
	}
	return metrics
}

func awakeContacts(islands []constraint.Island, bodies *actor.BodyStore) []*constraint.ContactConstraint {
	var contacts []*constraint.ContactConstraint
	for i := range islands {
		if islands[i].Awake(bodies) {
			contacts = append(contacts, islands[i].Contacts...)
		}
	}
	return contacts
}

// stepMultibodies advances every multibody, then drives the link bodies to
// the new poses with the matching velocities.
func (w *World) stepMultibodies(h float64) {
	if cap(w.driven) < w.bodies.Len() {
		w.driven = make([]bool, w.bodies.Len())
	}
	w.driven = w.driven[:w.bodies.Len()]
	clear(w.driven)

	if w.multibodies.Len() == 0 {
		return
	}

	var multibodies []*articulation.Multibody
	w.multibodies.Each(func(_ arena.EntityID, multibody **articulation.Multibody) {
		multibodies = append(multibodies, *multibody)
	})

	gravity := w.Gravity()
	task(w.workers(), len(multibodies), func(i int) {
		multibodies[i].Step(gravity, h)
	})

	for _, multibody := range multibodies {
		for i := range multibody.Links {
			index, ok := w.bodies.Index(multibody.Links[i].Body)
			if !ok {
				continue
			}
			previous := w.bodies.Transforms[index]
			next := poseKeepingScale(previous, multibody.LinkTransform(i))

			w.bodies.Velocities[index] = next.Position.Sub(previous.Position).Mul(1 / h)
			w.bodies.AngularVelocities[index] = angularVelocity(previous.Rotation, next.Rotation, h)
			w.bodies.Transforms[index] = next
			w.bodies.UpdateWorldInertia(index)
			w.driven[index] = true
		}
	}
}

func poseKeepingScale(previous, pose actor.Transform) actor.Transform {
	pose.Scale = previous.Scale
	return pose
}

// angularVelocity returns the constant angular velocity rotating from to to in dt.
func angularVelocity(from, to mgl64.Quat, dt float64) mgl64.Vec3 {
	delta := to.Mul(from.Conjugate()).Normalize()
	if delta.W < 0 {
		delta = delta.Scale(-1)
	}
	sinHalf := delta.V.Len()
	if sinHalf < 1e-12 {
		return mgl64.Vec3{}
	}
	angle := 2 * math.Atan2(sinHalf, delta.W)
	return delta.V.Mul(angle / (sinHalf * dt))
}

// trySleep puts an island to sleep once all its bodies stayed slow for the sleep time.
func (w *World) trySleep(islands []constraint.Island, h float64) {
	if !w.config.Sleep.Enabled {
		return
	}
	linear, angular := w.config.Sleep.LinearThreshold, w.config.Sleep.AngularThreshold

	for i := range islands {
		island := &islands[i]
		if !island.Awake(w.bodies) {
			continue
		}

		ready := true
		for _, body := range island.Bodies {
			if w.bodies.UpdateSleepTimer(body, h, linear, angular) < w.config.Sleep.Time {
				ready = false
			}
		}
		if !ready {
			continue
		}
		for _, body := range island.Bodies {
			w.bodies.Sleep(body)
		}
	}
}

func (w *World) reportManifolds() {
	if len(w.manifolds) == 0 {
		return
	}
	if w.config.Debug.Manifolds {
		for i, info := range w.manifolds {
			if i == debugManifoldLimit {
				w.logger.Debug("manifolds truncated", slog.Int("remaining", len(w.manifolds)-i))
				break
			}
			w.logger.Debug("manifold",
				slog.String("a", info.ColliderA.String()),
				slog.String("b", info.ColliderB.String()),
				slog.Any("normal", info.Normal),
				slog.Int("points", len(info.Points)),
				slog.Bool("swept", info.Swept))
		}
	}
	if w.manifoldHook != nil {
		w.manifoldHook(w.manifolds)
	}
}
