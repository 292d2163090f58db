// Package compute lets an external accelerator follow the simulation.
//
// Once per step, when a backend other than NoopBackend is installed, the world
// copies its state into a GpuWorldState and hands it to the backend hooks:
//
//	world.SetBackend(compute.NewStatsBackend())
//
// Backends only read the snapshot. The simulation itself always runs on the CPU.
package compute

type Backend interface {
	Name() string
	// PrepareStep is called once per step, right after the snapshot is synchronized.
	PrepareStep(state *GpuWorldState)
	// DispatchBroadphase is called after the broad-phase built its pairs.
	DispatchBroadphase(state *GpuWorldState)
	// DispatchSolver is called after the velocity solver and the PCI pass.
	DispatchSolver(state *GpuWorldState)
}

// NoopBackend keeps all the work on the CPU. It is the default backend, and the
// world skips the snapshot synchronization while it is installed.
type NoopBackend struct{}

func (NoopBackend) Name() string                      { return "cpu-noop" }
func (NoopBackend) PrepareStep(*GpuWorldState)        {}
func (NoopBackend) DispatchBroadphase(*GpuWorldState) {}
func (NoopBackend) DispatchSolver(*GpuWorldState)     {}

// IsNoop reports whether backend does nothing with the snapshot.
func IsNoop(backend Backend) bool {
	switch backend.(type) {
	case nil, NoopBackend, *NoopBackend:
		return true
	default:
		return false
	}
}
