package particle_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/akmonengine/particle"
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/akmonengine/particle/articulation"
	"github.com/akmonengine/particle/compute"
	"github.com/akmonengine/particle/config"
	"github.com/akmonengine/particle/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const dt = 1.0 / 60.0

func newWorld() *particle.World {
	world, err := particle.NewWorld(nil)
	Expect(err).NotTo(HaveOccurred())
	return world
}

func addBody(world *particle.World, position mgl64.Vec3, shape actor.Shape, bodyType actor.BodyType) arena.EntityID {
	id := world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(position), shape, bodyType, 1))
	_, err := world.AddCollider(actor.NewCollider(id, shape))
	Expect(err).NotTo(HaveOccurred())
	return id
}

func addGround(world *particle.World) arena.EntityID {
	return addBody(world, mgl64.Vec3{0, -0.5, 0}, actor.NewBox(mgl64.Vec3{10, 0.5, 10}), actor.BodyTypeStatic)
}

func position(world *particle.World, id arena.EntityID) mgl64.Vec3 {
	body, ok := world.Body(id)
	Expect(ok).To(BeTrue())
	return body.Transform.Position
}

func stepN(world *particle.World, n int) {
	for range n {
		world.Step(dt)
	}
}

var _ = Describe("World", func() {
	Describe("construction", func() {
		It("rejects an invalid configuration", func() {
			cfg := config.Default()
			cfg.Substeps = 0
			_, err := particle.NewWorld(cfg)
			Expect(errors.Is(err, config.ErrInvalid)).To(BeTrue())
		})

		It("runs whole ticks and keeps the remainder", func() {
			world := newWorld()
			world.Step(dt / 2)
			Expect(world.Frame()).To(BeZero())
			Expect(world.Alpha()).To(BeNumerically("~", 0.5, 1e-9))

			world.Step(dt / 2)
			Expect(world.Frame()).To(Equal(uint64(1)))
			Expect(world.Alpha()).To(BeNumerically("~", 0, 1e-9))

			world.Step(3 * dt)
			Expect(world.Frame()).To(Equal(uint64(4)))
		})
	})

	Describe("gravity", func() {
		It("moves a free dynamic body down after one step", func() {
			world := newWorld()
			id := world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 10, 0}), actor.NewSphere(1), actor.BodyTypeDynamic, 1))

			world.Step(dt)

			Expect(position(world, id).Y()).To(BeNumerically("<", 10))
		})

		It("leaves static bodies in place", func() {
			world := newWorld()
			ground := addGround(world)
			stepN(world, 10)
			Expect(position(world, ground)).To(Equal(mgl64.Vec3{0, -0.5, 0}))
		})

		It("follows the gravity setter", func() {
			world := newWorld()
			world.SetGravity(mgl64.Vec3{})
			id := world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 10, 0}), actor.NewSphere(1), actor.BodyTypeDynamic, 1))
			stepN(world, 10)
			Expect(position(world, id)).To(Equal(mgl64.Vec3{0, 10, 0}))
		})
	})

	Describe("continuous collision", func() {
		// a sphere at 600 m/s moves 10 m per tick toward a 1 m thick wall
		bullet := func(ccd bool) (*particle.World, arena.EntityID) {
			world := newWorld()
			world.SetGravity(mgl64.Vec3{})
			world.SetCCDEnabled(ccd)

			wall := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{5, 0, 0}), nil, actor.BodyTypeStatic, 1)
			wall.Material.Restitution = 1
			wallID := world.AddRigidBody(wall)
			_, err := world.AddCollider(actor.NewCollider(wallID, actor.NewBox(mgl64.Vec3{0.5, 5, 5})))
			Expect(err).NotTo(HaveOccurred())

			sphere := actor.NewSphere(0.5)
			ball := actor.NewRigidBody(actor.NewTransform(), sphere, actor.BodyTypeDynamic, 1)
			ball.Material.Restitution = 1
			ball.LinearDamping = 0
			ball.AngularDamping = 0
			ball.Velocity = mgl64.Vec3{600, 0, 0}
			ballID := world.AddRigidBody(ball)
			_, err = world.AddCollider(actor.NewCollider(ballID, sphere))
			Expect(err).NotTo(HaveOccurred())

			return world, ballID
		}

		It("stops a fast sphere at the wall and bounces it back", func() {
			world, ball := bullet(true)
			world.Step(dt)

			body, _ := world.Body(ball)
			Expect(body.Transform.Position.X()).To(BeNumerically("<", 5.5))
			Expect(body.Velocity.X()).To(BeNumerically("<", 0))
			Expect(world.Profile().Counts.Swept).To(Equal(1))
		})

		It("lets the sphere tunnel when disabled", func() {
			world, ball := bullet(false)
			world.Step(dt)

			body, _ := world.Body(ball)
			Expect(body.Transform.Position.X()).To(BeNumerically(">", 5.5))
			Expect(body.Velocity.X()).To(BeNumerically("~", 600, 1e-6))
		})

		// the far wall is registered first so that its pair comes first
		twoWalls := func(restitution float64) (*particle.World, arena.EntityID, arena.EntityID) {
			world := newWorld()
			world.SetGravity(mgl64.Vec3{})
			world.SetCCDEnabled(true)

			var near arena.EntityID
			for _, x := range []float64{8, 5} {
				wall := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{x, 0, 0}), nil, actor.BodyTypeStatic, 1)
				wall.Material.Restitution = restitution
				wallID := world.AddRigidBody(wall)
				_, err := world.AddCollider(actor.NewCollider(wallID, actor.NewBox(mgl64.Vec3{0.5, 5, 5})))
				Expect(err).NotTo(HaveOccurred())
				near = wallID
			}

			sphere := actor.NewSphere(0.5)
			ball := actor.NewRigidBody(actor.NewTransform(), sphere, actor.BodyTypeDynamic, 1)
			ball.Material.Restitution = restitution
			ball.LinearDamping = 0
			ball.AngularDamping = 0
			ball.Velocity = mgl64.Vec3{600, 0, 0}
			ballID := world.AddRigidBody(ball)
			_, err := world.AddCollider(actor.NewCollider(ballID, sphere))
			Expect(err).NotTo(HaveOccurred())

			return world, ballID, near
		}

		It("stops a fast sphere at the nearest of two walls", func() {
			world, ball, near := twoWalls(0)
			var swept []particle.ManifoldInfo
			world.SetManifoldHook(func(manifolds []particle.ManifoldInfo) {
				for _, m := range manifolds {
					if m.Swept {
						swept = append(swept, m)
					}
				}
			})
			world.Step(dt)

			body, _ := world.Body(ball)
			Expect(body.Transform.Position.X()).To(BeNumerically("~", 4, 0.1))
			Expect(math.Abs(body.Velocity.X())).To(BeNumerically("<", 1))
			Expect(world.Profile().Counts.Swept).To(Equal(1))
			Expect(swept).To(HaveLen(1))
			Expect([]arena.EntityID{swept[0].BodyA, swept[0].BodyB}).To(ContainElement(near))
		})

		It("bounces a fast sphere off the nearest of two walls", func() {
			world, ball, _ := twoWalls(1)
			world.Step(dt)

			body, _ := world.Body(ball)
			Expect(body.Transform.Position.X()).To(BeNumerically("<", 4.5))
			Expect(body.Velocity.X()).To(BeNumerically("<", 0))
			Expect(world.Profile().Counts.Swept).To(Equal(1))
		})

		It("keeps a falling sphere out of the ground with speculative contacts", func() {
			penetration := func(speculative bool) float64 {
				world := newWorld()
				world.SetSpeculativeEnabled(speculative)
				addGround(world)

				sphere := actor.NewSphere(0.5)
				ball := actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 1, 0}), sphere, actor.BodyTypeDynamic, 1)
				ball.Material.Restitution = 0
				ball.Velocity = mgl64.Vec3{0, -20, 0}
				id := world.AddRigidBody(ball)
				_, err := world.AddCollider(actor.NewCollider(id, sphere))
				Expect(err).NotTo(HaveOccurred())

				deepest := 0.0
				for range 10 {
					world.Step(dt)
					deepest = math.Max(deepest, 0.5-position(world, id).Y())
				}
				return deepest
			}

			Expect(penetration(true)).To(BeNumerically("<", 0.02))
			Expect(penetration(false)).To(BeNumerically(">", 0.1))
		})
	})

	Describe("contacts", func() {
		It("reports box manifolds of one to four penetrating points", func() {
			world := newWorld()
			addGround(world)
			addBody(world, mgl64.Vec3{0, 0.49, 0}, actor.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), actor.BodyTypeDynamic)

			var infos []particle.ManifoldInfo
			world.SetManifoldHook(func(manifolds []particle.ManifoldInfo) {
				if infos == nil {
					infos = append([]particle.ManifoldInfo{}, manifolds...)
				}
			})
			world.Step(dt)

			Expect(infos).To(HaveLen(1))
			Expect(len(infos[0].Points)).To(BeNumerically(">=", 1))
			Expect(len(infos[0].Points)).To(BeNumerically("<=", 4))
			Expect(math.Abs(infos[0].Normal.Y())).To(BeNumerically("~", 1, 1e-6))
			for _, p := range infos[0].Points {
				Expect(p.Depth).To(BeNumerically(">", 0))
			}
		})

		It("rests a box on the ground", func() {
			world := newWorld()
			addGround(world)
			box := addBody(world, mgl64.Vec3{0, 0.6, 0}, actor.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), actor.BodyTypeDynamic)

			stepN(world, 120)

			Expect(position(world, box).Y()).To(BeNumerically("~", 0.5, 0.03))
			Expect(world.SolverMetrics().NormalImpulse).To(BeNumerically(">=", 0))
		})

		It("puts a resting body to sleep and reports it", func() {
			world := newWorld()
			addGround(world)
			ball := addBody(world, mgl64.Vec3{0, 0.49, 0}, actor.NewSphere(0.5), actor.BodyTypeDynamic)

			var slept []arena.EntityID
			world.Events.Subscribe(particle.ON_SLEEP, func(event particle.Event) {
				slept = append(slept, event.(particle.SleepEvent).Body)
			})

			stepN(world, 240)

			body, _ := world.Body(ball)
			Expect(body.IsSleeping).To(BeTrue())
			Expect(slept).To(ContainElement(ball))
		})

		It("wakes a sleeping body when a force is applied", func() {
			world := newWorld()
			addGround(world)
			ball := addBody(world, mgl64.Vec3{0, 0.49, 0}, actor.NewSphere(0.5), actor.BodyTypeDynamic)
			stepN(world, 240)

			handle, ok := world.BodyMut(ball)
			Expect(ok).To(BeTrue())
			handle.ApplyForce(mgl64.Vec3{100, 0, 0})
			world.Step(dt)

			body, _ := world.Body(ball)
			Expect(body.IsSleeping).To(BeFalse())
			Expect(body.Velocity.X()).To(BeNumerically(">", 0))
		})

		It("reports trigger overlaps without pushing the body", func() {
			world := newWorld()
			world.SetSleepEnabled(false)

			sensorID := world.AddRigidBody(actor.NewRigidBody(actor.NewTransform(), nil, actor.BodyTypeStatic, 1))
			sensor := actor.NewCollider(sensorID, actor.NewBox(mgl64.Vec3{1, 1, 1}))
			sensor.IsTrigger = true
			_, err := world.AddCollider(sensor)
			Expect(err).NotTo(HaveOccurred())

			inside := addBody(world, mgl64.Vec3{0, 1.2, 0}, actor.NewSphere(0.5), actor.BodyTypeDynamic)
			free := world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{50, 1.2, 0}), actor.NewSphere(0.5), actor.BodyTypeDynamic, 1))

			var entered []particle.Contact
			world.Events.Subscribe(particle.TRIGGER_ENTER, func(event particle.Event) {
				entered = append(entered, event.(particle.TriggerEnterEvent).Contact)
			})
			var collided int
			world.Events.Subscribe(particle.COLLISION_ENTER, func(particle.Event) { collided++ })

			stepN(world, 30)

			Expect(entered).To(HaveLen(1))
			Expect([]arena.EntityID{entered[0].BodyA, entered[0].BodyB}).To(ContainElement(inside))
			Expect(collided).To(BeZero())
			Expect(position(world, inside).Y()).To(BeNumerically("~", position(world, free).Y(), 1e-9))
		})
	})

	Describe("raycast", func() {
		var world *particle.World
		var near, middle, far, sensor arena.EntityID

		BeforeEach(func() {
			world = newWorld()
			far = addBody(world, mgl64.Vec3{15, 0, 0}, actor.NewMesh(actor.BoxTriangleMesh(mgl64.Vec3{0.5, 0.5, 0.5})), actor.BodyTypeStatic)
			near = addBody(world, mgl64.Vec3{5, 0, 0}, actor.NewSphere(0.5), actor.BodyTypeStatic)
			middle = addBody(world, mgl64.Vec3{10, 0, 0}, actor.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), actor.BodyTypeStatic)

			sensor = world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{2, 0, 0}), nil, actor.BodyTypeStatic, 1))
			trigger := actor.NewCollider(sensor, actor.NewSphere(0.5))
			trigger.IsTrigger = true
			_, err := world.AddCollider(trigger)
			Expect(err).NotTo(HaveOccurred())
		})

		bodiesOf := func(hits []particle.RaycastHit) []arena.EntityID {
			var ids []arena.EntityID
			for _, hit := range hits {
				ids = append(ids, hit.Body)
			}
			return ids
		}

		It("returns every hit sorted by distance", func() {
			hits := world.Raycast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 100, math.MaxUint32, false, false)

			Expect(bodiesOf(hits)).To(Equal([]arena.EntityID{sensor, near, middle, far}))
			Expect(hits[1].Distance).To(BeNumerically("~", 4.5, 1e-9))
			Expect(hits[2].Distance).To(BeNumerically("~", 9.5, 1e-9))
			Expect(hits[3].Distance).To(BeNumerically("~", 14.5, 1e-9))
			Expect(hits[2].Normal).To(Equal(mgl64.Vec3{-1, 0, 0}))
			for i := 1; i < len(hits); i++ {
				Expect(hits[i].Distance).To(BeNumerically(">=", hits[i-1].Distance))
			}
		})

		It("skips triggers and keeps only the closest hit", func() {
			hits := world.Raycast(mgl64.Vec3{}, mgl64.Vec3{2, 0, 0}, 100, math.MaxUint32, true, true)
			Expect(bodiesOf(hits)).To(Equal([]arena.EntityID{near}))
		})

		It("filters by layer mask and distance", func() {
			hits := world.Raycast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 12, 2, false, false)
			Expect(hits).To(BeEmpty())

			hits = world.Raycast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 12, 1, true, false)
			Expect(bodiesOf(hits)).To(Equal([]arena.EntityID{near, middle}))
		})

		It("applies a caller predicate", func() {
			hits := world.RaycastWithFilter(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 100, func(_ arena.EntityID, c *actor.Collider) bool {
				return c.Shape.Kind() == actor.ShapeKindMesh
			}, false)
			Expect(bodiesOf(hits)).To(Equal([]arena.EntityID{far}))
		})

		It("returns nothing for a zero direction", func() {
			Expect(world.Raycast(mgl64.Vec3{}, mgl64.Vec3{}, 100, math.MaxUint32, false, false)).To(BeEmpty())
		})
	})

	Describe("articulated bodies", func() {
		It("swings a released pendulum and drives its link body", func() {
			world := newWorld()

			multibody := articulation.NewMultibody(actor.NewTransformAt(mgl64.Vec3{0, 5, 0}))
			link := articulation.NewLink("arm", articulation.NoParent, articulation.Revolute(mgl64.Vec3{0, 0, 1}))
			link.COM = mgl64.Vec3{0, -1, 0}
			link.Body = world.AddRigidBody(actor.NewRigidBody(actor.NewTransform(), nil, actor.BodyTypeKinematic, 1))
			_, err := multibody.AddLink(link)
			Expect(err).NotTo(HaveOccurred())
			multibody.Q[0] = 0.5

			id := world.AddMultibody(multibody)
			stepN(world, 60)

			mb, ok := world.Multibody(id)
			Expect(ok).To(BeTrue())
			Expect(math.Abs(mb.Q[0])).To(BeNumerically(">", 0))
			Expect(mb.Q[0]).To(BeNumerically("<", 0.4))

			body, _ := world.Body(link.Body)
			Expect(body.Transform.Position).To(Equal(mb.LinkTransform(0).Position))
		})

		It("leaves other bodies alone when a link has no body", func() {
			world := newWorld()
			world.SetGravity(mgl64.Vec3{})
			first := addBody(world, mgl64.Vec3{3, 1, 0}, actor.NewSphere(0.5), actor.BodyTypeDynamic)

			multibody := articulation.NewMultibody(actor.NewTransformAt(mgl64.Vec3{0, 5, 0}))
			_, err := multibody.AddLink(articulation.Link{
				Name:          "bare",
				Parent:        articulation.NoParent,
				Joint:         articulation.Revolute(mgl64.Vec3{0, 0, 1}),
				ParentToJoint: actor.NewTransform(),
				Mass:          1,
				Inertia:       mgl64.Ident3(),
				COM:           mgl64.Vec3{0, -1, 0},
			})
			Expect(err).NotTo(HaveOccurred())
			multibody.Q[0] = 0.5

			world.AddMultibody(multibody)
			stepN(world, 10)

			Expect(position(world, first)).To(Equal(mgl64.Vec3{3, 1, 0}))
		})

		It("reports a link cycle at construction", func() {
			multibody := articulation.NewMultibody(actor.NewTransform())
			_, err := multibody.AddLink(articulation.NewLink("loop", 0, articulation.Fixed()))
			Expect(errors.Is(err, articulation.ErrInvalidParent)).To(BeTrue())
		})
	})

	Describe("joints", func() {
		It("keeps a bob at the rod length", func() {
			world := newWorld()
			anchor := world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 5, 0}), nil, actor.BodyTypeStatic, 1))
			bob := world.AddRigidBody(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{2, 5, 0}), actor.NewSphere(0.2), actor.BodyTypeDynamic, 1))

			_, err := world.AddJoint(constraint.NewDistanceJoint(anchor, bob, mgl64.Vec3{}, mgl64.Vec3{}, 2))
			Expect(err).NotTo(HaveOccurred())

			stepN(world, 60)

			p := position(world, bob)
			Expect(p.Sub(mgl64.Vec3{0, 5, 0}).Len()).To(BeNumerically("~", 2, 0.1))
			Expect(p.Y()).To(BeNumerically("<", 5))
		})

		It("rejects a joint on a removed body", func() {
			world := newWorld()
			a := world.AddRigidBody(actor.NewRigidBody(actor.NewTransform(), nil, actor.BodyTypeStatic, 1))
			b := world.AddRigidBody(actor.NewRigidBody(actor.NewTransform(), actor.NewSphere(1), actor.BodyTypeDynamic, 1))
			world.RemoveRigidBody(b)

			_, err := world.AddJoint(constraint.NewDistanceJoint(a, b, mgl64.Vec3{}, mgl64.Vec3{}, 1))
			Expect(errors.Is(err, arena.ErrStaleID)).To(BeTrue())
		})
	})

	Describe("handles", func() {
		It("fails every lookup through a removed id", func() {
			world := newWorld()
			old := addBody(world, mgl64.Vec3{}, actor.NewSphere(1), actor.BodyTypeDynamic)
			Expect(world.ColliderCount()).To(Equal(1))

			Expect(world.RemoveRigidBody(old)).To(BeTrue())
			Expect(world.ColliderCount()).To(BeZero())

			reused := world.AddRigidBody(actor.NewRigidBody(actor.NewTransform(), actor.NewSphere(1), actor.BodyTypeDynamic, 1))
			Expect(reused.Index).To(Equal(old.Index))

			_, ok := world.Body(old)
			Expect(ok).To(BeFalse())
			_, ok = world.BodyMut(old)
			Expect(ok).To(BeFalse())
			Expect(world.RemoveRigidBody(old)).To(BeFalse())

			_, err := world.AddCollider(actor.NewCollider(old, actor.NewSphere(1)))
			Expect(errors.Is(err, arena.ErrStaleID)).To(BeTrue())
		})
	})

	Describe("parallel mode", func() {
		scene := func(parallel bool) (*particle.World, []arena.EntityID) {
			world := newWorld()
			world.SetParallelEnabled(parallel)
			world.SetWorkers(4)
			world.SetPCIEnabled(true)
			addGround(world)

			var ids []arena.EntityID
			for x := -4; x <= 4; x += 2 {
				for y := 0; y < 3; y++ {
					ids = append(ids, addBody(world, mgl64.Vec3{float64(x), 0.5 + float64(y)*1.01, 0}, actor.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), actor.BodyTypeDynamic))
				}
				ids = append(ids, addBody(world, mgl64.Vec3{float64(x) + 0.3, 6, 0.2}, actor.NewSphere(0.4), actor.BodyTypeDynamic))
			}

			multibody := articulation.NewMultibody(actor.NewTransformAt(mgl64.Vec3{0, 8, 5}))
			_, err := multibody.AddLink(articulation.NewLink("arm", articulation.NoParent, articulation.Revolute(mgl64.Vec3{0, 0, 1})))
			Expect(err).NotTo(HaveOccurred())
			multibody.Q[0] = 1
			world.AddMultibody(multibody)

			return world, ids
		}

		It("gives the same result as the sequential mode", func() {
			sequential, ids := scene(false)
			parallel, _ := scene(true)

			stepN(sequential, 90)
			stepN(parallel, 90)

			for _, id := range ids {
				a, _ := sequential.Body(id)
				b, _ := parallel.Body(id)
				Expect(b.Transform).To(Equal(a.Transform))
				Expect(b.Velocity).To(Equal(a.Velocity))
			}
			Expect(parallel.SolverMetrics()).To(Equal(sequential.SolverMetrics()))
		})
	})

	Describe("compute backend", func() {
		It("feeds the snapshot to an installed backend", func() {
			world := newWorld()
			Expect(world.BackendName()).To(Equal("cpu-noop"))

			stats := compute.NewStatsBackend()
			world.SetBackend(stats)
			addGround(world)
			addBody(world, mgl64.Vec3{0, 3, 0}, actor.NewSphere(0.5), actor.BodyTypeDynamic)

			stepN(world, 3)

			Expect(world.BackendName()).To(Equal("cpu-stats"))
			Expect(stats.Steps()).To(Equal(3))
			Expect(stats.Last().Bodies).To(Equal(2))
			Expect(stats.Last().MaxSpeed).To(BeNumerically(">", 0))

			world.SetBackend(nil)
			Expect(world.BackendName()).To(Equal("cpu-noop"))
		})
	})
})
