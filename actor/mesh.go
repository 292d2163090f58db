package actor

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrEmptyMesh       = errors.New("actor: mesh has no vertices or no triangles")
	ErrIndexOutOfRange = errors.New("actor: triangle index out of range")
)

const minMeshMassProperty = 1e-4

// Triangle is a triple of vertex indices.
type Triangle [3]uint32

// TriangleMesh is an immutable vertex + index buffer, built with a MeshBuilder.
type TriangleMesh struct {
	vertices  []mgl64.Vec3
	triangles []Triangle
	bounds    AABB
	radius    float64
}

func (m *TriangleMesh) Vertices() []mgl64.Vec3 {
	return m.vertices
}

func (m *TriangleMesh) Triangles() []Triangle {
	return m.triangles
}

func (m *TriangleMesh) Bounds() AABB {
	return m.bounds
}

// Triangle returns the three vertices of triangle i.
func (m *TriangleMesh) Triangle(i int) (mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
	t := m.triangles[i]
	return m.vertices[t[0]], m.vertices[t[1]], m.vertices[t[2]]
}

// Raycast intersects a local-space ray with every triangle (Möller–Trumbore)
// and returns the nearest hit distance and the face normal.
func (m *TriangleMesh) Raycast(origin, dir mgl64.Vec3, maxDistance float64) (float64, mgl64.Vec3, bool) {
	const epsilon = 1e-9

	best := maxDistance
	var bestNormal mgl64.Vec3
	hit := false

	for i := range m.triangles {
		v0, v1, v2 := m.Triangle(i)
		edge1 := v1.Sub(v0)
		edge2 := v2.Sub(v0)

		p := dir.Cross(edge2)
		det := edge1.Dot(p)
		if math.Abs(det) < epsilon {
			continue
		}
		invDet := 1.0 / det

		s := origin.Sub(v0)
		u := s.Dot(p) * invDet
		if u < 0 || u > 1 {
			continue
		}

		q := s.Cross(edge1)
		v := dir.Dot(q) * invDet
		if v < 0 || u+v > 1 {
			continue
		}

		t := edge2.Dot(q) * invDet
		if t < 0 || t > best {
			continue
		}

		normal := edge1.Cross(edge2)
		if normal.Dot(dir) > 0 {
			normal = normal.Mul(-1)
		}
		if normal.Len() > epsilon {
			normal = normal.Normalize()
		}

		best = t
		bestNormal = normal
		hit = true
	}

	return best, bestNormal, hit
}

// Mesh is the triangle-mesh collision shape. Its support mapping is the
// convex hull of its vertices.
type Mesh struct {
	Data *TriangleMesh
}

func NewMesh(data *TriangleMesh) *Mesh {
	return &Mesh{Data: data}
}

func (m *Mesh) Kind() ShapeKind { return ShapeKindMesh }
func (m *Mesh) sealed()         {}

func (m *Mesh) Support(direction mgl64.Vec3) mgl64.Vec3 {
	if m.Data == nil || len(m.Data.vertices) == 0 {
		return mgl64.Vec3{}
	}

	best := m.Data.vertices[0]
	bestDot := best.Dot(direction)
	for _, v := range m.Data.vertices[1:] {
		if d := v.Dot(direction); d > bestDot {
			best = v
			bestDot = d
		}
	}
	return best
}

func (m *Mesh) BoundingRadius() float64 {
	if m.Data == nil {
		return 0
	}
	return m.Data.radius
}

func (m *Mesh) LocalAABB() AABB {
	if m.Data == nil {
		return AABB{}
	}
	return m.Data.bounds
}

// MassProperties approximates the mesh by the solid box of its bounds.
func (m *Mesh) MassProperties(density float64) (float64, mgl64.Mat3) {
	if m.Data == nil {
		return 0, mgl64.Mat3{}
	}

	size := m.Data.bounds.Extents().Mul(2)
	density = math.Max(density, minMeshMassProperty)
	mass := math.Max(size.X()*size.Y()*size.Z()*density, minMeshMassProperty)

	return mass, BoxInertia(size.Mul(0.5), mass)
}

func (m *Mesh) IsDegenerate() bool {
	return m.Data == nil || len(m.Data.triangles) == 0 || m.Data.radius < DegenerateEpsilon
}

// MeshBuilder cooks a TriangleMesh from raw buffers.
type MeshBuilder struct {
	vertices      []mgl64.Vec3
	triangles     []Triangle
	weldTolerance float64
	recenter      bool
}

func NewMeshBuilder(vertices []mgl64.Vec3, triangles []Triangle) *MeshBuilder {
	return &MeshBuilder{
		vertices:  append([]mgl64.Vec3(nil), vertices...),
		triangles: append([]Triangle(nil), triangles...),
	}
}

// WeldVertices merges vertices falling in the same cell of a grid of size tolerance.
func (b *MeshBuilder) WeldVertices(tolerance float64) *MeshBuilder {
	b.weldTolerance = tolerance
	return b
}

// Recenter moves the vertices so that their centroid sits at the origin.
func (b *MeshBuilder) Recenter() *MeshBuilder {
	b.recenter = true
	return b
}

func (b *MeshBuilder) Build() (*TriangleMesh, error) {
	if len(b.vertices) == 0 || len(b.triangles) == 0 {
		return nil, ErrEmptyMesh
	}
	for i, t := range b.triangles {
		for _, index := range t {
			if int(index) >= len(b.vertices) {
				return nil, fmt.Errorf("triangle %d references vertex %d of %d: %w", i, index, len(b.vertices), ErrIndexOutOfRange)
			}
		}
	}

	vertices, triangles := b.vertices, b.triangles
	if b.weldTolerance > 0 {
		vertices, triangles = weld(vertices, triangles, b.weldTolerance)
	}

	if b.recenter {
		var centroid mgl64.Vec3
		for _, v := range vertices {
			centroid = centroid.Add(v)
		}
		centroid = centroid.Mul(1.0 / float64(len(vertices)))
		for i := range vertices {
			vertices[i] = vertices[i].Sub(centroid)
		}
	}

	radius := 0.0
	for _, v := range vertices {
		radius = math.Max(radius, v.Len())
	}

	return &TriangleMesh{
		vertices:  vertices,
		triangles: triangles,
		bounds:    AABBFromPoints(vertices),
		radius:    radius,
	}, nil
}

type weldKey [3]int64

func weld(vertices []mgl64.Vec3, triangles []Triangle, tolerance float64) ([]mgl64.Vec3, []Triangle) {
	inv := 1.0 / tolerance
	cells := make(map[weldKey]uint32, len(vertices))
	welded := make([]mgl64.Vec3, 0, len(vertices))
	remap := make([]uint32, len(vertices))

	for i, v := range vertices {
		key := weldKey{
			int64(math.Round(v.X() * inv)),
			int64(math.Round(v.Y() * inv)),
			int64(math.Round(v.Z() * inv)),
		}
		index, ok := cells[key]
		if !ok {
			index = uint32(len(welded))
			cells[key] = index
			welded = append(welded, v)
		}
		remap[i] = index
	}

	out := make([]Triangle, len(triangles))
	for i, t := range triangles {
		out[i] = Triangle{remap[t[0]], remap[t[1]], remap[t[2]]}
	}

	return welded, out
}

// BoxTriangleMesh returns the 12-triangle mesh of a box, wound counter-clockwise from outside.
func BoxTriangleMesh(halfExtents mgl64.Vec3) *TriangleMesh {
	box := NewBox(halfExtents)
	corners := box.Corners()

	triangles := []Triangle{
		{0, 2, 1}, {1, 2, 3}, // -z
		{4, 5, 6}, {5, 7, 6}, // +z
		{0, 1, 4}, {1, 5, 4}, // -y
		{2, 6, 3}, {3, 6, 7}, // +y
		{0, 4, 2}, {2, 4, 6}, // -x
		{1, 3, 5}, {3, 7, 5}, // +x
	}

	mesh, _ := NewMeshBuilder(corners[:], triangles).Build()
	return mesh
}
