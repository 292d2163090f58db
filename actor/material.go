package actor

import "math"

// MixingMode selects how the coefficients of two materials combine.
// When two materials disagree, the mode with the higher value wins.
type MixingMode int

const (
	MixAverage MixingMode = iota
	MixMin
	MixGeometricMean
	MixMax
)

func (m MixingMode) String() string {
	switch m {
	case MixAverage:
		return "average"
	case MixMin:
		return "min"
	case MixGeometricMean:
		return "geometric_mean"
	case MixMax:
		return "max"
	default:
		return "unknown"
	}
}

// ParseMixingMode is the inverse of String. Unknown names return false.
func ParseMixingMode(name string) (MixingMode, bool) {
	for _, mode := range []MixingMode{MixAverage, MixMin, MixGeometricMean, MixMax} {
		if mode.String() == name {
			return mode, true
		}
	}
	return MixAverage, false
}

// Combine mixes a and b.
func (m MixingMode) Combine(a, b float64) float64 {
	switch m {
	case MixMin:
		return math.Min(a, b)
	case MixMax:
		return math.Max(a, b)
	case MixGeometricMean:
		return math.Sqrt(math.Abs(a * b))
	default:
		return 0.5 * (a + b)
	}
}

// Resolve picks the mode used for a pair.
func (m MixingMode) Resolve(other MixingMode) MixingMode {
	if other > m {
		return other
	}
	return m
}

type Material struct {
	Density     float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	StaticFriction  float64
	DynamicFriction float64

	FrictionMixing    MixingMode
	RestitutionMixing MixingMode
}

// DefaultMaterial is used by bodies that do not set one.
func DefaultMaterial() Material {
	return Material{
		Density:         1.0,
		Restitution:     0.1,
		StaticFriction:  0.5,
		DynamicFriction: 0.3,
	}
}

func Rubber() Material {
	return Material{
		Density:         1.4,
		Restitution:     0.8,
		StaticFriction:  1.2,
		DynamicFriction: 1.0,
	}
}

func Steel() Material {
	return Material{
		Density:         7.8,
		Restitution:     0.4,
		StaticFriction:  0.58,
		DynamicFriction: 0.44,
	}
}

func Ice() Material {
	return Material{
		Density:         0.9,
		Restitution:     0.05,
		StaticFriction:  0.05,
		DynamicFriction: 0.03,
		FrictionMixing:  MixMin,
	}
}

// MaterialByName returns a preset by its lowercase name.
func MaterialByName(name string) (Material, bool) {
	switch name {
	case "default", "":
		return DefaultMaterial(), true
	case "rubber":
		return Rubber(), true
	case "steel":
		return Steel(), true
	case "ice":
		return Ice(), true
	default:
		return Material{}, false
	}
}

// MaterialPair holds the combined coefficients of a contact.
type MaterialPair struct {
	Restitution     float64
	StaticFriction  float64
	DynamicFriction float64
}

// CombineMaterials mixes the coefficients of two materials once per contact.
// The dynamic coefficient never exceeds the static one.
func CombineMaterials(a, b Material) MaterialPair {
	friction := a.FrictionMixing.Resolve(b.FrictionMixing)
	restitution := a.RestitutionMixing.Resolve(b.RestitutionMixing)

	pair := MaterialPair{
		Restitution:     restitution.Combine(a.Restitution, b.Restitution),
		StaticFriction:  friction.Combine(a.StaticFriction, b.StaticFriction),
		DynamicFriction: friction.Combine(a.DynamicFriction, b.DynamicFriction),
	}
	pair.Restitution = math.Max(0, math.Min(1, pair.Restitution))
	pair.StaticFriction = math.Max(0, pair.StaticFriction)
	pair.DynamicFriction = math.Max(0, math.Min(pair.DynamicFriction, pair.StaticFriction))

	return pair
}
