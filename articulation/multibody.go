package articulation

import (
	"fmt"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// NoParent is the parent index of the root link.
const NoParent = -1

// Link is one rigid segment of a multibody.
type Link struct {
	Name string
	// Parent is the index of an earlier link, or NoParent for the root.
	Parent int
	Joint  Joint
	// ParentToJoint places the joint frame in the parent link frame. For the
	// root, the parent frame is the multibody base.
	ParentToJoint actor.Transform

	Mass float64
	// COM is the center of mass in the link frame.
	COM mgl64.Vec3
	// Inertia is the rotational inertia about COM.
	Inertia mgl64.Mat3

	// Body is an optional kinematic rigid body driven to the link pose each
	// step, so the link can collide with the rest of the world. The zero
	// value drives nothing.
	Body arena.EntityID

	dof int
}

// NewLink returns a unit-mass link with unit inertia, centered on its frame.
func NewLink(name string, parent int, joint Joint) Link {
	return Link{
		Name:          name,
		Parent:        parent,
		Joint:         joint,
		ParentToJoint: actor.NewTransform(),
		Mass:          1,
		Inertia:       mgl64.Ident3(),
		Body:          arena.Invalid,
	}
}

// SpatialInertia returns the inertia of the link in its own frame.
func (l *Link) SpatialInertia() SpatialInertia {
	return SpatialInertia{Mass: l.Mass, COM: l.COM, Inertia: l.Inertia}
}

// AddMass merges a point-like part of mass with its own rotational inertia
// about com into the link.
func (l *Link) AddMass(mass float64, com mgl64.Vec3, inertia mgl64.Mat3) {
	merged := l.SpatialInertia().Add(SpatialInertia{Mass: mass, COM: com, Inertia: inertia})
	l.Mass, l.COM, l.Inertia = merged.Mass, merged.COM, merged.Inertia
}

// Dof returns the index of the link coordinate in Q, or -1 for a fixed joint.
func (l *Link) Dof() int {
	return l.dof
}

// Multibody is a tree of links in reduced coordinates. The base, parent frame
// of the root link, is welded to the world.
//
// Q, DQ and DDQ hold one generalized position, velocity and acceleration per
// degree of freedom; Tau holds the joint torques (or forces for prismatic
// joints) applied during the next step.
type Multibody struct {
	Base  actor.Transform
	Links []Link

	Q   []float64
	DQ  []float64
	DDQ []float64
	Tau []float64

	// Damping is a viscous joint damping: each joint receives -Damping * dq.
	Damping float64

	poses []actor.Transform
	abaScratch
}

func NewMultibody(base actor.Transform) *Multibody {
	if base.Rotation == (mgl64.Quat{}) {
		base.Rotation = mgl64.QuatIdent()
	}
	return &Multibody{Base: base}
}

// AddLink appends link and returns its index. The first link must have no
// parent, every other link must reference an earlier one.
func (m *Multibody) AddLink(link Link) (int, error) {
	index := len(m.Links)

	if index == 0 && link.Parent != NoParent {
		return -1, fmt.Errorf("link %q: parent %d: %w", link.Name, link.Parent, ErrInvalidParent)
	}
	if index > 0 && (link.Parent < 0 || link.Parent >= index) {
		return -1, fmt.Errorf("link %q: parent %d: %w", link.Name, link.Parent, ErrInvalidParent)
	}
	if link.Joint.Type != JointFixed && link.Joint.Axis.LenSqr() < 1e-12 {
		return -1, fmt.Errorf("link %q: %w", link.Name, ErrInvalidAxis)
	}
	if link.Mass < 0 {
		return -1, fmt.Errorf("link %q: mass %v: %w", link.Name, link.Mass, ErrInvalidMass)
	}

	if link.ParentToJoint.Rotation == (mgl64.Quat{}) {
		link.ParentToJoint.Rotation = mgl64.QuatIdent()
	}
	link.Joint.Axis = link.Joint.Axis.Normalize()
	if link.Joint.Type == JointFixed {
		link.Joint.Axis = mgl64.Vec3{}
	}

	link.dof = -1
	if link.Joint.Dofs() > 0 {
		link.dof = len(m.Q)
		m.Q = append(m.Q, 0)
		m.DQ = append(m.DQ, 0)
		m.DDQ = append(m.DDQ, 0)
		m.Tau = append(m.Tau, 0)
	}

	m.Links = append(m.Links, link)
	m.UpdateKinematics()
	return index, nil
}

// Dofs returns the number of generalized coordinates.
func (m *Multibody) Dofs() int {
	return len(m.Q)
}

// jointPose returns the pose of link i in its parent frame at the current Q.
func (m *Multibody) jointPose(i int) actor.Transform {
	link := &m.Links[i]
	q := 0.0
	if link.dof >= 0 {
		q = m.Q[link.dof]
	}
	return link.ParentToJoint.Combine(link.Joint.Transform(q))
}

// UpdateKinematics recomputes the world pose of every link from Q. It runs
// after each Step; call it after editing Q directly.
func (m *Multibody) UpdateKinematics() {
	if cap(m.poses) < len(m.Links) {
		m.poses = make([]actor.Transform, len(m.Links))
	}
	m.poses = m.poses[:len(m.Links)]

	for i := range m.Links {
		parent := m.Base
		if p := m.Links[i].Parent; p != NoParent {
			parent = m.poses[p]
		}
		m.poses[i] = parent.Combine(m.jointPose(i))
	}
}

// LinkTransform returns the world pose of link i as of the last UpdateKinematics.
func (m *Multibody) LinkTransform(i int) actor.Transform {
	return m.poses[i]
}

// KineticEnergy returns ½ Σ vᵢ·(Iᵢ vᵢ) at the current Q and DQ.
func (m *Multibody) KineticEnergy() float64 {
	m.propagateVelocities()

	energy := 0.0
	for i := range m.Links {
		inertia := m.Links[i].SpatialInertia()
		energy += 0.5 * m.velocity[i].Dot(inertia.MulMotion(m.velocity[i]))
	}
	return energy
}

// PotentialEnergy returns -Σ mᵢ g·cᵢ for the world centers of mass cᵢ of the
// last UpdateKinematics.
func (m *Multibody) PotentialEnergy(gravity mgl64.Vec3) float64 {
	energy := 0.0
	for i := range m.Links {
		com := m.poses[i].TransformPoint(m.Links[i].COM)
		energy -= m.Links[i].Mass * gravity.Dot(com)
	}
	return energy
}

// CompositeInertia returns the inertia of the whole tree in world coordinates,
// at the poses of the last UpdateKinematics.
func (m *Multibody) CompositeInertia() SpatialInertia {
	var total SpatialInertia
	for i := range m.Links {
		total = total.Add(m.Links[i].SpatialInertia().Transformed(m.poses[i]))
	}
	return total
}
