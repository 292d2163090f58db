package constraint

import (
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// normalCoherence is the minimum cosine between the normals of two steps for
// their impulses to be carried over.
const normalCoherence = 0.9

// PairKey identifies a collider pair, A before B.
type PairKey struct {
	A, B arena.EntityID
}

// MakePairKey orders the two ids so that a pair has a single key.
func MakePairKey(a, b arena.EntityID) PairKey {
	if b.Less(a) {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

type cachedManifold struct {
	normal    mgl64.Vec3
	points    []ContactPoint
	lastFrame uint64
}

// ManifoldCache keeps the solved impulses of each collider pair across steps so
// new contacts can be warm started. A new point inherits the impulses of the old
// point with the same feature id, or else of the nearest old point within
// MatchTolerance in collider A's frame.
type ManifoldCache struct {
	MaxAge         uint64
	MatchTolerance float64

	entries map[PairKey]*cachedManifold
}

func NewManifoldCache(maxAge uint64, matchTolerance float64) *ManifoldCache {
	return &ManifoldCache{
		MaxAge:         maxAge,
		MatchTolerance: matchTolerance,
		entries:        make(map[PairKey]*cachedManifold),
	}
}

func (c *ManifoldCache) Len() int {
	return len(c.entries)
}

// WarmStart copies cached impulses into contact and returns the number of matched points.
func (c *ManifoldCache) WarmStart(contact *ContactConstraint) int {
	entry, ok := c.entries[MakePairKey(contact.ColliderA, contact.ColliderB)]
	if !ok || entry.normal.Dot(contact.Normal) < normalCoherence {
		return 0
	}

	matched := 0
	used := make([]bool, len(entry.points))
	for i := range contact.Points {
		p := &contact.Points[i]
		j := c.match(entry.points, used, p)
		if j < 0 {
			continue
		}
		used[j] = true
		p.NormalImpulse = entry.points[j].NormalImpulse
		p.TangentImpulse = entry.points[j].TangentImpulse
		matched++
	}
	return matched
}

func (c *ManifoldCache) match(old []ContactPoint, used []bool, p *ContactPoint) int {
	for j := range old {
		if !used[j] && old[j].Feature == p.Feature {
			return j
		}
	}

	best := -1
	bestDistance := c.MatchTolerance * c.MatchTolerance
	for j := range old {
		if used[j] {
			continue
		}
		if d := old[j].LocalA.Sub(p.LocalA).LenSqr(); d <= bestDistance {
			best = j
			bestDistance = d
		}
	}
	return best
}

// Store records the solved impulses of contact at frame.
func (c *ManifoldCache) Store(contact *ContactConstraint, frame uint64) {
	key := MakePairKey(contact.ColliderA, contact.ColliderB)
	entry, ok := c.entries[key]
	if !ok {
		entry = &cachedManifold{}
		c.entries[key] = entry
	}
	entry.normal = contact.Normal
	entry.points = append(entry.points[:0], contact.Points...)
	entry.lastFrame = frame
}

// Prune drops the pairs not stored during the last MaxAge frames and returns how many were dropped.
func (c *ManifoldCache) Prune(frame uint64) int {
	dropped := 0
	for key, entry := range c.entries {
		if frame-entry.lastFrame > c.MaxAge {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Forget drops every pair involving collider.
func (c *ManifoldCache) Forget(collider arena.EntityID) {
	for key := range c.entries {
		if key.A == collider || key.B == collider {
			delete(c.entries, key)
		}
	}
}
