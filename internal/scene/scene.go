// Package scene describes worlds in YAML and builds them.
package scene

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/akmonengine/particle"
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/akmonengine/particle/articulation"
	"github.com/akmonengine/particle/config"
	"github.com/akmonengine/particle/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

const DefaultDuration = 5.0

var ErrInvalid = errors.New("scene: invalid")

type Scene struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Duration    float64 `yaml:"duration"`
	// Track names the body whose trajectory is plotted.
	Track       string         `yaml:"track,omitempty"`
	World       *config.Config `yaml:"world"`
	Bodies      []Body         `yaml:"bodies"`
	Joints      []Joint        `yaml:"joints,omitempty"`
	Forces      []Force        `yaml:"forces,omitempty"`
	Multibodies []Multibody    `yaml:"multibodies,omitempty"`
}

type Body struct {
	Name string `yaml:"name"`
	// Type is dynamic, static or kinematic.
	Type     string      `yaml:"type"`
	Position config.Vec3 `yaml:"position"`
	// Rotation holds XYZ Euler angles in degrees.
	Rotation        config.Vec3 `yaml:"rotation,omitempty"`
	Velocity        config.Vec3 `yaml:"velocity,omitempty"`
	AngularVelocity config.Vec3 `yaml:"angular_velocity,omitempty"`
	Density         float64     `yaml:"density,omitempty"`
	GravityScale    *float64    `yaml:"gravity_scale,omitempty"`
	Material        string      `yaml:"material,omitempty"`
	Restitution     *float64    `yaml:"restitution,omitempty"`
	Friction        *float64    `yaml:"friction,omitempty"`
	Shape           *Shape      `yaml:"shape,omitempty"`
	Trigger         bool        `yaml:"trigger,omitempty"`
	Layer           uint32      `yaml:"layer,omitempty"`
	Mask            uint32      `yaml:"mask,omitempty"`
}

type Shape struct {
	// Kind is sphere, box, box_mesh or mesh.
	Kind        string        `yaml:"kind"`
	Radius      float64       `yaml:"radius,omitempty"`
	HalfExtents config.Vec3   `yaml:"half_extents,omitempty"`
	Vertices    []config.Vec3 `yaml:"vertices,omitempty"`
	Triangles   [][3]uint32   `yaml:"triangles,omitempty"`
}

type Joint struct {
	// Kind is distance or spring.
	Kind    string      `yaml:"kind"`
	A       string      `yaml:"a"`
	B       string      `yaml:"b"`
	AnchorA config.Vec3 `yaml:"anchor_a,omitempty"`
	AnchorB config.Vec3 `yaml:"anchor_b,omitempty"`
	// Length <= 0 keeps the distance between the anchors at build time.
	Length    float64 `yaml:"length,omitempty"`
	Stiffness float64 `yaml:"stiffness,omitempty"`
	Damping   float64 `yaml:"damping,omitempty"`
}

type Force struct {
	// Kind is drag or spring.
	Kind       string      `yaml:"kind"`
	Linear     float64     `yaml:"linear,omitempty"`
	Quadratic  float64     `yaml:"quadratic,omitempty"`
	A          string      `yaml:"a,omitempty"`
	B          string      `yaml:"b,omitempty"`
	AnchorA    config.Vec3 `yaml:"anchor_a,omitempty"`
	AnchorB    config.Vec3 `yaml:"anchor_b,omitempty"`
	RestLength float64     `yaml:"rest_length,omitempty"`
	Stiffness  float64     `yaml:"stiffness,omitempty"`
	Damping    float64     `yaml:"damping,omitempty"`
}

type Multibody struct {
	Name    string      `yaml:"name"`
	Base    config.Vec3 `yaml:"base"`
	Damping float64     `yaml:"damping,omitempty"`
	Links   []Link      `yaml:"links"`
}

type Link struct {
	Name string `yaml:"name"`
	// Parent is the name of an earlier link; empty for the root.
	Parent string `yaml:"parent,omitempty"`
	// Joint is fixed, revolute or prismatic.
	Joint  string      `yaml:"joint"`
	Axis   config.Vec3 `yaml:"axis,omitempty"`
	Offset config.Vec3 `yaml:"offset,omitempty"`
	Mass   float64     `yaml:"mass,omitempty"`
	COM    config.Vec3 `yaml:"com,omitempty"`
	Q      float64     `yaml:"q,omitempty"`
	DQ     float64     `yaml:"dq,omitempty"`
	// Shape gives the link a kinematic collider body, placed at COM.
	Shape *Shape `yaml:"shape,omitempty"`
}

// Built is a scene turned into a world.
type Built struct {
	World       *particle.World
	Duration    float64
	Track       arena.EntityID
	Bodies      map[string]arena.EntityID
	Multibodies map[string]arena.EntityID
}

// Load reads a scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scene. The world section is read over config.Default().
func Parse(data []byte) (*Scene, error) {
	s := &Scene{Duration: DefaultDuration, World: config.Default()}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("scene: decode: %w", err)
	}
	if s.World == nil {
		s.World = config.Default()
	}
	if err := s.World.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func Marshal(s *Scene) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("scene: encode: %w", err)
	}
	return data, nil
}

// Build creates a world holding every element of the scene.
func (s *Scene) Build() (*Built, error) {
	world, err := particle.NewWorld(s.World)
	if err != nil {
		return nil, err
	}

	built := &Built{
		World:       world,
		Duration:    s.Duration,
		Track:       arena.Invalid,
		Bodies:      make(map[string]arena.EntityID, len(s.Bodies)),
		Multibodies: make(map[string]arena.EntityID, len(s.Multibodies)),
	}
	if built.Duration <= 0 {
		built.Duration = DefaultDuration
	}

	for i := range s.Bodies {
		if err := built.addBody(&s.Bodies[i]); err != nil {
			return nil, err
		}
	}
	for i := range s.Multibodies {
		if err := built.addMultibody(&s.Multibodies[i]); err != nil {
			return nil, err
		}
	}
	for i := range s.Joints {
		if err := built.addJoint(&s.Joints[i]); err != nil {
			return nil, err
		}
	}
	for i := range s.Forces {
		if err := built.addForce(&s.Forces[i]); err != nil {
			return nil, err
		}
	}

	if s.Track != "" {
		id, ok := built.Bodies[s.Track]
		if !ok {
			return nil, fmt.Errorf("%w: track: unknown body %q", ErrInvalid, s.Track)
		}
		built.Track = id
	}
	return built, nil
}

// Tracked returns the position of the tracked body.
func (b *Built) Tracked() (mgl64.Vec3, bool) {
	body, ok := b.World.Body(b.Track)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return body.Transform.Position, true
}

func (b *Built) register(name string, id arena.EntityID) error {
	if name == "" {
		return nil
	}
	if _, ok := b.Bodies[name]; ok {
		return fmt.Errorf("%w: duplicate body %q", ErrInvalid, name)
	}
	b.Bodies[name] = id
	return nil
}

func (b *Built) body(name string) (arena.EntityID, error) {
	id, ok := b.Bodies[name]
	if !ok {
		return arena.Invalid, fmt.Errorf("%w: unknown body %q", ErrInvalid, name)
	}
	return id, nil
}

func (b *Built) addBody(desc *Body) error {
	bodyType, err := parseBodyType(desc.Type)
	if err != nil {
		return fmt.Errorf("body %q: %w", desc.Name, err)
	}

	var shape actor.Shape
	if desc.Shape != nil {
		if shape, err = desc.Shape.build(); err != nil {
			return fmt.Errorf("body %q: %w", desc.Name, err)
		}
	}

	density := desc.Density
	if density <= 0 {
		density = 1
	}
	rotation := mgl64.AnglesToQuat(
		mgl64.DegToRad(desc.Rotation[0]),
		mgl64.DegToRad(desc.Rotation[1]),
		mgl64.DegToRad(desc.Rotation[2]),
		mgl64.XYZ,
	)
	rb := actor.NewRigidBody(actor.NewTransformWith(vec(desc.Position), rotation), shape, bodyType, density)
	rb.Velocity = vec(desc.Velocity)
	rb.AngularVelocity = vec(desc.AngularVelocity)
	if desc.GravityScale != nil {
		rb.GravityScale = *desc.GravityScale
	}

	material, ok := actor.MaterialByName(desc.Material)
	if !ok {
		return fmt.Errorf("%w: body %q: unknown material %q", ErrInvalid, desc.Name, desc.Material)
	}
	material.Density = density
	if desc.Restitution != nil {
		material.Restitution = *desc.Restitution
	}
	if desc.Friction != nil {
		material.StaticFriction = *desc.Friction
		material.DynamicFriction = *desc.Friction
	}
	rb.Material = material

	id := b.World.AddRigidBody(rb)
	if err := b.register(desc.Name, id); err != nil {
		return err
	}
	if shape == nil {
		return nil
	}

	collider := actor.NewCollider(id, shape)
	collider.IsTrigger = desc.Trigger
	if desc.Layer != 0 {
		collider.Filter.Layer = desc.Layer
	}
	if desc.Mask != 0 {
		collider.Filter.Mask = desc.Mask
	}
	_, err = b.World.AddCollider(collider)
	return err
}

func (b *Built) addMultibody(desc *Multibody) error {
	multibody := articulation.NewMultibody(actor.NewTransformAt(vec(desc.Base)))
	multibody.Damping = desc.Damping

	indices := make(map[string]int, len(desc.Links))
	for i := range desc.Links {
		link := &desc.Links[i]

		joint, err := parseJoint(link.Joint, vec(link.Axis))
		if err != nil {
			return fmt.Errorf("multibody %q: link %q: %w", desc.Name, link.Name, err)
		}
		parent := articulation.NoParent
		if link.Parent != "" {
			index, ok := indices[link.Parent]
			if !ok {
				return fmt.Errorf("%w: multibody %q: link %q: unknown parent %q", ErrInvalid, desc.Name, link.Name, link.Parent)
			}
			parent = index
		}

		l := articulation.NewLink(link.Name, parent, joint)
		l.ParentToJoint = actor.NewTransformAt(vec(link.Offset))
		l.COM = vec(link.COM)
		if link.Mass > 0 {
			l.Mass = link.Mass
		}
		if link.Shape != nil {
			shape, err := link.Shape.build()
			if err != nil {
				return fmt.Errorf("multibody %q: link %q: %w", desc.Name, link.Name, err)
			}
			l.Body = b.World.AddRigidBody(actor.NewRigidBody(actor.NewTransform(), nil, actor.BodyTypeKinematic, 1))
			collider := actor.NewCollider(l.Body, shape)
			collider.Offset = actor.NewTransformAt(l.COM)
			if _, err := b.World.AddCollider(collider); err != nil {
				return err
			}
			if err := b.register(desc.Name+"/"+link.Name, l.Body); err != nil {
				return err
			}
		}

		index, err := multibody.AddLink(l)
		if err != nil {
			return fmt.Errorf("multibody %q: %w", desc.Name, err)
		}
		indices[link.Name] = index
		if dof := multibody.Links[index].Dof(); dof >= 0 {
			multibody.Q[dof] = link.Q
			multibody.DQ[dof] = link.DQ
		}
	}
	multibody.UpdateKinematics()

	id := b.World.AddMultibody(multibody)
	if desc.Name != "" {
		b.Multibodies[desc.Name] = id
	}
	return nil
}

func (b *Built) addJoint(desc *Joint) error {
	a, err := b.body(desc.A)
	if err != nil {
		return fmt.Errorf("joint: %w", err)
	}
	c, err := b.body(desc.B)
	if err != nil {
		return fmt.Errorf("joint: %w", err)
	}

	anchorA, anchorB := vec(desc.AnchorA), vec(desc.AnchorB)
	length := desc.Length
	if length <= 0 {
		bodyA, _ := b.World.Body(a)
		bodyB, _ := b.World.Body(c)
		length = bodyB.Transform.TransformPoint(anchorB).Sub(bodyA.Transform.TransformPoint(anchorA)).Len()
	}

	var joint constraint.Joint
	switch desc.Kind {
	case "distance", "":
		joint = constraint.NewDistanceJoint(a, c, anchorA, anchorB, length)
	case "spring":
		joint = constraint.NewSpringJoint(a, c, anchorA, anchorB, length, desc.Stiffness, desc.Damping)
	default:
		return fmt.Errorf("%w: unknown joint kind %q", ErrInvalid, desc.Kind)
	}
	_, err = b.World.AddJoint(joint)
	return err
}

func (b *Built) addForce(desc *Force) error {
	switch desc.Kind {
	case "drag":
		b.World.AddForce(particle.DragForce{Linear: desc.Linear, Quadratic: desc.Quadratic})
	case "spring":
		a, err := b.body(desc.A)
		if err != nil {
			return fmt.Errorf("force: %w", err)
		}
		c, err := b.body(desc.B)
		if err != nil {
			return fmt.Errorf("force: %w", err)
		}
		b.World.AddForce(&particle.SpringForce{
			BodyA:      a,
			BodyB:      c,
			AnchorA:    vec(desc.AnchorA),
			AnchorB:    vec(desc.AnchorB),
			RestLength: desc.RestLength,
			Stiffness:  desc.Stiffness,
			Damping:    desc.Damping,
		})
	default:
		return fmt.Errorf("%w: unknown force kind %q", ErrInvalid, desc.Kind)
	}
	return nil
}

func (s *Shape) build() (actor.Shape, error) {
	switch s.Kind {
	case "sphere":
		if s.Radius <= 0 || math.IsNaN(s.Radius) {
			return nil, fmt.Errorf("%w: sphere radius %v", ErrInvalid, s.Radius)
		}
		return actor.NewSphere(s.Radius), nil
	case "box":
		return actor.NewBox(vec(s.HalfExtents)), nil
	case "box_mesh":
		return actor.NewMesh(actor.BoxTriangleMesh(vec(s.HalfExtents))), nil
	case "mesh":
		vertices := make([]mgl64.Vec3, len(s.Vertices))
		for i, v := range s.Vertices {
			vertices[i] = vec(v)
		}
		triangles := make([]actor.Triangle, len(s.Triangles))
		for i, t := range s.Triangles {
			triangles[i] = actor.Triangle(t)
		}
		mesh, err := actor.NewMeshBuilder(vertices, triangles).WeldVertices(1e-6).Recenter().Build()
		if err != nil {
			return nil, fmt.Errorf("mesh: %w", err)
		}
		return actor.NewMesh(mesh), nil
	default:
		return nil, fmt.Errorf("%w: unknown shape kind %q", ErrInvalid, s.Kind)
	}
}

func parseBodyType(name string) (actor.BodyType, error) {
	switch name {
	case "dynamic", "":
		return actor.BodyTypeDynamic, nil
	case "static":
		return actor.BodyTypeStatic, nil
	case "kinematic":
		return actor.BodyTypeKinematic, nil
	default:
		return 0, fmt.Errorf("%w: unknown body type %q", ErrInvalid, name)
	}
}

func parseJoint(name string, axis mgl64.Vec3) (articulation.Joint, error) {
	jointType, ok := articulation.ParseJointType(name)
	if !ok {
		return articulation.Joint{}, fmt.Errorf("%w: unknown joint %q", ErrInvalid, name)
	}
	if jointType != articulation.JointFixed && axis.Len() == 0 {
		axis = mgl64.Vec3{0, 0, 1}
	}
	switch jointType {
	case articulation.JointRevolute:
		return articulation.Revolute(axis), nil
	case articulation.JointPrismatic:
		return articulation.Prismatic(axis), nil
	default:
		return articulation.Fixed(), nil
	}
}

func vec(v config.Vec3) mgl64.Vec3 {
	return mgl64.Vec3(v)
}
