package articulation

import "github.com/go-gl/mathgl/mgl64"

// minArticulatedInertia is the joint-space inertia under which a joint is
// treated as locked for the step.
const minArticulatedInertia = 1e-12

// abaScratch holds the per-link buffers of the articulated-body algorithm,
// reused across steps.
type abaScratch struct {
	toChild   []SpatialTransform
	velocity  []SpatialVec
	bias      []SpatialVec // velocity-product acceleration c
	inertia   []SpatialMat // articulated inertia IA
	force     []SpatialVec // articulated bias force pA
	accel     []SpatialVec
	projected []SpatialVec // U = IA S
	dInv      []float64
	effort    []float64 // u = tau - Sᵀ pA
}

func (s *abaScratch) resize(n int) {
	if cap(s.velocity) >= n {
		s.toChild = s.toChild[:n]
		s.velocity = s.velocity[:n]
		s.bias = s.bias[:n]
		s.inertia = s.inertia[:n]
		s.force = s.force[:n]
		s.accel = s.accel[:n]
		s.projected = s.projected[:n]
		s.dInv = s.dInv[:n]
		s.effort = s.effort[:n]
		return
	}
	s.toChild = make([]SpatialTransform, n)
	s.velocity = make([]SpatialVec, n)
	s.bias = make([]SpatialVec, n)
	s.inertia = make([]SpatialMat, n)
	s.force = make([]SpatialVec, n)
	s.accel = make([]SpatialVec, n)
	s.projected = make([]SpatialVec, n)
	s.dInv = make([]float64, n)
	s.effort = make([]float64, n)
}

// jointVelocity returns S dq for link i.
func (m *Multibody) jointVelocity(i int) SpatialVec {
	link := &m.Links[i]
	if link.dof < 0 {
		return SpatialVec{}
	}
	return link.Joint.Subspace().Mul(m.DQ[link.dof])
}

// propagateVelocities computes the parent-to-link transforms and the link
// velocities, each in its own link frame, from the root outward.
func (m *Multibody) propagateVelocities() {
	m.resize(len(m.Links))

	for i := range m.Links {
		pose := m.jointPose(i)
		x := TransformFromPose(pose.Position, pose.Rotation)
		m.toChild[i] = x

		velocity := m.jointVelocity(i)
		if parent := m.Links[i].Parent; parent != NoParent {
			velocity = x.ApplyMotion(m.velocity[parent]).Add(velocity)
		}
		m.velocity[i] = velocity
	}
}

// ForwardDynamics computes DDQ from Q, DQ, Tau, Damping and gravity (world
// coordinates) with the articulated-body algorithm: velocities outward,
// articulated inertias inward, accelerations outward.
func (m *Multibody) ForwardDynamics(gravity mgl64.Vec3) {
	n := len(m.Links)
	if n == 0 {
		return
	}

	// ========== OUTWARD: velocities and bias forces ==========
	m.propagateVelocities()
	for i := range m.Links {
		m.bias[i] = m.velocity[i].CrossMotion(m.jointVelocity(i))

		rigid := m.Links[i].SpatialInertia()
		m.inertia[i] = rigid.Matrix()
		m.force[i] = m.velocity[i].CrossForce(rigid.MulMotion(m.velocity[i]))
	}

	// ========== INWARD: articulated inertias ==========
	for i := n - 1; i >= 0; i-- {
		link := &m.Links[i]
		articulated := m.inertia[i]
		m.projected[i] = SpatialVec{}
		m.dInv[i] = 0
		m.effort[i] = 0

		var carried SpatialVec
		if link.dof >= 0 {
			s := link.Joint.Subspace()
			u := m.inertia[i].MulVec(s)
			d := s.Dot(u)
			tau := m.Tau[link.dof] - m.Damping*m.DQ[link.dof]

			if d > minArticulatedInertia {
				m.projected[i] = u
				m.dInv[i] = 1 / d
				m.effort[i] = tau - s.Dot(m.force[i])
				articulated = articulated.Sub(OuterProduct(u, u).Scale(m.dInv[i]))
				carried = u.Mul(m.dInv[i] * m.effort[i])
			}
		}

		if link.Parent == NoParent {
			continue
		}
		transmitted := m.force[i].Add(articulated.MulVec(m.bias[i])).Add(carried)
		m.inertia[link.Parent] = m.inertia[link.Parent].Add(m.toChild[i].InverseTransformInertia(articulated))
		m.force[link.Parent] = m.force[link.Parent].Add(m.toChild[i].InverseApplyForce(transmitted))
	}

	// ========== OUTWARD: accelerations ==========
	// gravity enters as an upward acceleration of the base
	baseAccel := SpatialVec{Linear: m.Base.InverseTransformDirection(gravity).Mul(-1)}
	for i := range m.Links {
		link := &m.Links[i]
		parentAccel := baseAccel
		if link.Parent != NoParent {
			parentAccel = m.accel[link.Parent]
		}

		accel := m.toChild[i].ApplyMotion(parentAccel).Add(m.bias[i])
		if link.dof >= 0 {
			ddq := m.dInv[i] * (m.effort[i] - m.projected[i].Dot(accel))
			m.DDQ[link.dof] = ddq
			accel = accel.Add(link.Joint.Subspace().Mul(ddq))
		}
		m.accel[i] = accel
	}
}

// Integrate advances DQ then Q by dt with the current DDQ (semi-implicit Euler).
func (m *Multibody) Integrate(dt float64) {
	for i := range m.Q {
		m.DQ[i] += m.DDQ[i] * dt
		m.Q[i] += m.DQ[i] * dt
	}
}

// Step runs forward dynamics, integrates and updates the link poses.
func (m *Multibody) Step(gravity mgl64.Vec3, dt float64) {
	m.ForwardDynamics(gravity)
	m.Integrate(dt)
	m.UpdateKinematics()
}
