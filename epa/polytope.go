package epa

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/akmonengine/particle/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Face is a triangle of the polytope, wound counter-clockwise seen from outside.
// Vertices index into the polytope vertex list.
type Face struct {
	Vertices [3]int
	Normal   mgl64.Vec3
	// Distance is the distance from the origin to the face plane.
	Distance float64

	// flat faces have no usable normal and are never picked as closest
	flat    bool
	visible bool
}

// edge is a directed face edge. Two faces sharing an edge traverse it in opposite directions.
type edge struct {
	from, to int
}

// Polytope is the convex hull grown from the GJK tetrahedron toward the
// boundary of the Minkowski difference. It is reused through a pool.
type Polytope struct {
	vertices []mgl64.Vec3
	faces    []Face
	horizon  []edge
}

var polytopePool = sync.Pool{
	New: func() interface{} {
		return &Polytope{
			vertices: make([]mgl64.Vec3, 0, polytopeInitialCapacity*4),
			faces:    make([]Face, 0, polytopeInitialCapacity*8),
			horizon:  make([]edge, 0, polytopeInitialCapacity*4),
		}
	},
}

func (p *Polytope) Reset() {
	p.vertices = p.vertices[:0]
	p.faces = p.faces[:0]
	p.horizon = p.horizon[:0]
}

// Faces exposes the current faces, mostly for inspection in tests.
func (p *Polytope) Faces() []Face {
	return p.faces
}

// Vertex returns a polytope vertex by index.
func (p *Polytope) Vertex(i int) mgl64.Vec3 {
	return p.vertices[i]
}

// Init seeds the polytope with the four faces of a GJK tetrahedron.
func (p *Polytope) Init(simplex *gjk.Simplex) error {
	if simplex.Count != 4 {
		return fmt.Errorf("%w: %d points (expected 4)", ErrInvalidSimplex, simplex.Count)
	}
	a, b, c, d := simplex.Points[0], simplex.Points[1], simplex.Points[2], simplex.Points[3]

	volume := b.Sub(a).Cross(c.Sub(a)).Dot(d.Sub(a))
	if math.Abs(volume) < minVolume {
		return fmt.Errorf("%w: flat tetrahedron", ErrInvalidSimplex)
	}
	// abc must face away from d
	if volume > 0 {
		b, c = c, b
	}

	p.Reset()
	p.vertices = append(p.vertices, a, b, c, d)
	p.addFace(0, 1, 2)
	p.addFace(0, 3, 1)
	p.addFace(1, 3, 2)
	p.addFace(2, 3, 0)
	return nil
}

// addFace appends the face (i, j, k); its normal follows the winding.
func (p *Polytope) addFace(i, j, k int) {
	v0, v1, v2 := p.vertices[i], p.vertices[j], p.vertices[k]
	face := Face{Vertices: [3]int{i, j, k}}

	normal := v1.Sub(v0).Cross(v2.Sub(v0))
	length := normal.Len()
	if length < 1e-12 {
		face.flat = true
		face.Distance = math.Inf(1)
		p.faces = append(p.faces, face)
		return
	}

	face.Normal = normal.Mul(1 / length)
	// the origin sits inside the hull, a negative distance is rounding
	face.Distance = math.Max(v0.Dot(face.Normal), 0)
	p.faces = append(p.faces, face)
}

// Closest returns the index of the face nearest the origin, -1 if there is none.
func (p *Polytope) Closest() int {
	closest := -1
	for i := range p.faces {
		if p.faces[i].flat {
			continue
		}
		if closest < 0 || p.faces[i].Distance < p.faces[closest].Distance {
			closest = i
		}
	}
	return closest
}

// Expand adds support to the hull: every face that sees it is removed and the
// hole is closed with a fan of faces around the new vertex. It reports false
// when no face sees the point, which means the hull cannot grow.
func (p *Polytope) Expand(support mgl64.Vec3) bool {
	seen := 0
	for i := range p.faces {
		face := &p.faces[i]
		origin := p.vertices[face.Vertices[0]]
		face.visible = !face.flat && support.Sub(origin).Dot(face.Normal) > visibilityEpsilon
		if face.visible {
			seen++
		}
	}
	if seen == 0 {
		return false
	}

	p.horizon = p.horizon[:0]
	for i := range p.faces {
		if p.faces[i].visible {
			p.addHorizon(p.faces[i].Vertices)
		}
	}

	p.faces = slices.DeleteFunc(p.faces, func(face Face) bool {
		return face.visible
	})

	p.vertices = append(p.vertices, support)
	apex := len(p.vertices) - 1
	for _, e := range p.horizon {
		p.addFace(e.from, e.to, apex)
	}
	return true
}

// addHorizon toggles the edges of a visible face: an edge shared with another
// visible face cancels out, the ones left form the horizon.
func (p *Polytope) addHorizon(vertices [3]int) {
	for k := range 3 {
		e := edge{from: vertices[k], to: vertices[(k+1)%3]}
		reverse := edge{from: e.to, to: e.from}
		if i := slices.Index(p.horizon, reverse); i >= 0 {
			p.horizon = slices.Delete(p.horizon, i, i+1)
			continue
		}
		p.horizon = append(p.horizon, e)
	}
}
