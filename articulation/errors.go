package articulation

import "errors"

// Construction errors of a multibody. Simulation itself never fails.
var (
	// ErrInvalidParent indicates a link whose parent is not an earlier link,
	// or a first link that has a parent.
	ErrInvalidParent = errors.New("articulation: parent must be an earlier link")

	// ErrInvalidAxis indicates a revolute or prismatic joint with a zero axis.
	ErrInvalidAxis = errors.New("articulation: joint axis must be non-zero")

	// ErrInvalidMass indicates a negative link mass.
	ErrInvalidMass = errors.New("articulation: link mass must not be negative")
)
