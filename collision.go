package particle

import (
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/akmonengine/particle/ccd"
	"github.com/akmonengine/particle/constraint"
	"github.com/akmonengine/particle/manifold"
	"github.com/go-gl/mathgl/mgl64"
)

// placedCollider is a collider resolved for the current substep, indexed like
// the broad-phase proxies.
type placedCollider struct {
	id        arena.EntityID
	bodyID    arena.EntityID
	body      int
	shape     actor.Shape
	transform actor.Transform
	trigger   bool
}

// ManifoldInfo describes one contact handed to the manifold hook.
type ManifoldInfo struct {
	Contact
	Normal mgl64.Vec3
	Points []constraint.ContactPoint
	// Swept contacts come from a time-of-impact search.
	Swept bool
}

type narrowKind uint8

const (
	narrowNone narrowKind = iota
	narrowContact
	narrowTrigger
	narrowSweep
	narrowSpeculative
)

type narrowResult struct {
	kind     narrowKind
	manifold manifold.Manifold
	swept    bool
}

// broadPhase places every collider, builds the grid and returns the candidate pairs.
func (w *World) broadPhase(h float64) []Pair {
	w.proxies = w.proxies[:0]
	w.placed = w.placed[:0]

	swept := w.config.CCD.Enabled || w.config.CCD.Speculative
	margin := w.config.CCD.SpeculativeMargin

	w.colliders.Each(func(id arena.EntityID, collider *actor.Collider) {
		body, ok := w.bodies.Index(collider.Body)
		if !ok || collider.Shape == nil {
			return
		}

		bodyTransform := w.bodies.Transforms[body]
		transform := collider.WorldTransform(bodyTransform)
		bounds := actor.AABBFromSphere(transform.Position, collider.BoundingRadius())

		static := w.bodies.IsStatic(body)
		active := !static && w.bodies.Awake[body]
		if swept && active {
			velocity := w.bodies.VelocityAt(body, transform.Position.Sub(bodyTransform.Position))
			bounds = bounds.Sweep(velocity.Mul(h)).Expand(margin)
		}

		w.proxies = append(w.proxies, Proxy{
			Collider: id,
			Body:     body,
			Bounds:   bounds,
			Filter:   collider.Filter,
			Static:   static,
			Active:   active,
		})
		w.placed = append(w.placed, placedCollider{
			id:        id,
			bodyID:    collider.Body,
			body:      body,
			shape:     collider.Shape,
			transform: transform,
			trigger:   collider.IsTrigger,
		})
	})

	w.grid.Build(w.proxies)
	if workers := w.workers(); workers > 1 {
		return w.grid.FindPairsParallel(w.proxies, workers)
	}
	return w.grid.FindPairs(w.proxies)
}

// narrowPhase turns the candidate pairs into contact constraints, in pair order.
// Discrete manifolds and the pair classification run on the workers; speculative
// queries are then batched, and sweeps run last because a hit moves its bodies
// to the time of impact.
func (w *World) narrowPhase(pairs []Pair, h float64) ([]*constraint.ContactConstraint, int, int) {
	results := make([]narrowResult, len(pairs))
	task(w.workers(), len(pairs), func(i int) {
		results[i] = w.collide(pairs[i], h)
	})

	var speculative []ccd.Pair
	var speculativeIndex []int
	for i := range results {
		if results[i].kind == narrowSpeculative {
			a, b := &w.placed[pairs[i].A], &w.placed[pairs[i].B]
			speculative = append(speculative, ccd.Pair{A: w.ccdBody(a), B: w.ccdBody(b)})
			speculativeIndex = append(speculativeIndex, i)
			results[i].kind = narrowNone
		}
	}
	speculativeCount := 0
	for _, hit := range w.detector.SpeculativeBatch(w.gjkBatch, speculative, h) {
		index := speculativeIndex[hit.Index]
		results[index] = narrowResult{kind: narrowContact, manifold: hit.Manifold}
		speculativeCount++
	}

	var hits []sweepHit
	for i := range results {
		if results[i].kind != narrowSweep {
			continue
		}
		results[i].kind = narrowNone
		a, b := &w.placed[pairs[i].A], &w.placed[pairs[i].B]
		if hit, ok := w.detector.Sweep(w.ccdBody(a), w.ccdBody(b), h); ok {
			hits = append(hits, sweepHit{pair: i, hit: hit})
		}
	}
	sweepCount := w.resolveSweeps(pairs, hits, results)

	var contacts []*constraint.ContactConstraint
	for i := range results {
		a, b := &w.placed[pairs[i].A], &w.placed[pairs[i].B]

		switch results[i].kind {
		case narrowTrigger:
			w.Events.recordPair(a.id, b.id, a.bodyID, b.bodyID, true)

		case narrowContact:
			m := &results[i].manifold
			if m.MaxDepth() >= 0 {
				w.Events.recordPair(a.id, b.id, a.bodyID, b.bodyID, false)
			}
			if !w.bodies.IsDynamic(a.body) && !w.bodies.IsDynamic(b.body) {
				continue
			}

			contact := w.buildContact(a, b, m)
			if w.config.Solver.WarmStart {
				w.cache.WarmStart(contact)
			}
			contacts = append(contacts, contact)

			if w.manifoldHook != nil || w.config.Debug.Manifolds {
				w.manifolds = append(w.manifolds, ManifoldInfo{
					Contact: Contact{ColliderA: a.id, ColliderB: b.id, BodyA: a.bodyID, BodyB: b.bodyID},
					Normal:  contact.Normal,
					Points:  append([]constraint.ContactPoint(nil), contact.Points...),
					Swept:   results[i].swept,
				})
			}
		}
	}

	return contacts, speculativeCount, sweepCount
}

// collide classifies one pair. It only reads the world.
func (w *World) collide(pair Pair, h float64) narrowResult {
	a, b := &w.placed[pair.A], &w.placed[pair.B]

	m, ok := manifold.Generate(a.shape, a.transform, b.shape, b.transform)
	if a.trigger || b.trigger {
		if ok {
			return narrowResult{kind: narrowTrigger}
		}
		return narrowResult{}
	}
	if ok {
		return narrowResult{kind: narrowContact, manifold: m}
	}

	bodyA, bodyB := w.ccdBody(a), w.ccdBody(b)
	fast := w.detector.IsFastMover(bodyA, h) || w.detector.IsFastMover(bodyB, h)
	switch {
	case fast && w.config.CCD.Enabled:
		return narrowResult{kind: narrowSweep}
	case !fast && w.config.CCD.Speculative:
		return narrowResult{kind: narrowSpeculative}
	}
	return narrowResult{}
}

type sweepHit struct {
	pair int
	hit  ccd.Hit
}

// resolveSweeps keeps, for every moving body, only its earliest time of impact.
// Each moving body is advanced once to that time and a swept contact is emitted
// for the hits that are the earliest of all their moving bodies. Later hits are
// dropped: the pose they were found at is never reached this substep.
func (w *World) resolveSweeps(pairs []Pair, hits []sweepHit, results []narrowResult) int {
	if len(hits) == 0 {
		return 0
	}

	earliest := make(map[int]float64)
	for _, s := range hits {
		for _, body := range w.sweptBodies(pairs[s.pair]) {
			if toi, ok := earliest[body]; !ok || s.hit.TOI < toi {
				earliest[body] = s.hit.TOI
			}
		}
	}

	count := 0
	for _, s := range hits {
		first := true
		for _, body := range w.sweptBodies(pairs[s.pair]) {
			if s.hit.TOI > earliest[body] {
				first = false
			}
		}
		if first {
			results[s.pair] = narrowResult{kind: narrowContact, manifold: s.hit.Manifold, swept: true}
			count++
		}
	}

	for body, toi := range earliest {
		t := &w.bodies.Transforms[body]
		t.Position = t.Position.Add(w.bodies.Velocities[body].Mul(toi))
		if w.bodies.AngularVelocities[body].LenSqr() > 0 {
			t.Rotation = actor.IntegrateRotation(t.Rotation, w.bodies.AngularVelocities[body], toi)
		}
		w.bodies.UpdateWorldInertia(body)
	}
	for i := range w.placed {
		if _, ok := earliest[w.placed[i].body]; ok {
			w.placed[i].transform = w.colliderTransform(&w.placed[i])
		}
	}

	return count
}

// sweptBodies returns the bodies of a pair that a time of impact moves.
func (w *World) sweptBodies(pair Pair) []int {
	bodies := make([]int, 0, 2)
	for _, index := range []int{pair.A, pair.B} {
		body := w.placed[index].body
		if !w.bodies.IsStatic(body) && (len(bodies) == 0 || bodies[0] != body) {
			bodies = append(bodies, body)
		}
	}
	return bodies
}

func (w *World) colliderTransform(placed *placedCollider) actor.Transform {
	collider, ok := w.colliders.Get(placed.id)
	if !ok {
		return placed.transform
	}
	return collider.WorldTransform(w.bodies.Transforms[placed.body])
}

// ccdBody describes the motion of a placed collider over the substep.
func (w *World) ccdBody(placed *placedCollider) ccd.Body {
	body := placed.body
	if w.bodies.IsStatic(body) || !w.bodies.Awake[body] {
		return ccd.Body{Shape: placed.shape, Transform: placed.transform}
	}
	arm := placed.transform.Position.Sub(w.bodies.Transforms[body].Position)
	return ccd.Body{
		Shape:           placed.shape,
		Transform:       placed.transform,
		Velocity:        w.bodies.VelocityAt(body, arm),
		AngularVelocity: w.bodies.AngularVelocities[body],
	}
}

func (w *World) buildContact(a, b *placedCollider, m *manifold.Manifold) *constraint.ContactConstraint {
	contact := &constraint.ContactConstraint{
		ColliderA: a.id,
		ColliderB: b.id,
		BodyA:     a.body,
		BodyB:     b.body,
		Normal:    m.Normal,
		Points:    make([]constraint.ContactPoint, 0, len(m.Points)),
		Material:  actor.CombineMaterials(w.bodies.Materials[a.body], w.bodies.Materials[b.body]),
	}
	for _, p := range m.Points {
		contact.Points = append(contact.Points, constraint.ContactPoint{
			Position: p.Position,
			LocalA:   p.LocalA,
			Depth:    p.Depth,
			Feature:  p.Feature,
		})
	}
	return contact
}
