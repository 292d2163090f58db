package particle

import (
	"math"
	"slices"
	"sync"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey is the integer coordinate of a grid cell.
type CellKey struct {
	X, Y, Z int
}

// Cell lists the proxies overlapping a hashed cell. Distinct cells may share a bucket.
type Cell struct {
	proxies []int
}

// Proxy is the broad-phase view of a collider.
type Proxy struct {
	Collider arena.EntityID
	// Body is the dense BodyStore index of the owning body.
	Body   int
	Bounds actor.AABB
	Filter actor.CollisionFilter
	// Static proxies belong to static bodies.
	Static bool
	// Active proxies belong to awake, non-static bodies.
	Active bool
}

// Pair is a candidate pair of proxy indices, A < B.
type Pair struct {
	A, B int
}

// SpatialGrid is a uniform grid hashed into a fixed number of buckets. Proxies
// covering more cells than there are buckets are kept aside and tested against
// every other proxy.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int
	large    []int
	isLarge  []bool
}

func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].proxies = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert adds proxy index to every cell its bounds overlap.
func (sg *SpatialGrid) Insert(index int, bounds actor.AABB) {
	minCell := sg.worldToCell(bounds.Min)
	maxCell := sg.worldToCell(bounds.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cellIdx := sg.hashCell(CellKey{x, y, z})
				sg.cells[cellIdx].proxies = append(sg.cells[cellIdx].proxies, index)
			}
		}
	}
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].proxies = sg.cells[i].proxies[:0]
	}
	sg.large = sg.large[:0]
	sg.isLarge = sg.isLarge[:0]
}

// Build clears the grid and inserts every proxy.
func (sg *SpatialGrid) Build(proxies []Proxy) {
	sg.Clear()
	for i := range proxies {
		large := sg.cellCount(proxies[i].Bounds) > float64(len(sg.cells))
		sg.isLarge = append(sg.isLarge, large)
		if large {
			sg.large = append(sg.large, i)
			continue
		}
		sg.Insert(i, proxies[i].Bounds)
	}
}

func (sg *SpatialGrid) cellCount(bounds actor.AABB) float64 {
	minCell := sg.worldToCell(bounds.Min)
	maxCell := sg.worldToCell(bounds.Max)
	return float64(maxCell.X-minCell.X+1) * float64(maxCell.Y-minCell.Y+1) * float64(maxCell.Z-minCell.Z+1)
}

// canPair applies the pair filters: distinct bodies, not both static, at least
// one active, accepted by both collision filters, overlapping bounds.
func canPair(a, b *Proxy) bool {
	if a.Body == b.Body {
		return false
	}
	if a.Static && b.Static {
		return false
	}
	if !a.Active && !b.Active {
		return false
	}
	if !a.Filter.CanCollide(b.Filter) {
		return false
	}
	return a.Bounds.Overlaps(b.Bounds)
}

// FindPairs returns the candidate pairs ordered by A, then by first encounter of B.
func (sg *SpatialGrid) FindPairs(proxies []Proxy) []Pair {
	seen := make([]int, len(proxies))
	return sg.findPairs(proxies, 0, len(proxies), seen, make([]Pair, 0, len(proxies)/2))
}

// FindPairsParallel splits the proxies between workers. The result is the same
// as FindPairs, in the same order.
func (sg *SpatialGrid) FindPairsParallel(proxies []Proxy, numWorkers int) []Pair {
	if numWorkers <= 1 || len(proxies) < 2*numWorkers {
		return sg.FindPairs(proxies)
	}

	var wg sync.WaitGroup
	chunkSize := (len(proxies) + numWorkers - 1) / numWorkers
	results := make([][]Pair, numWorkers)

	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, len(proxies))
		if start >= end {
			break
		}

		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			seen := make([]int, len(proxies))
			results[w] = sg.findPairs(proxies, start, end, seen, nil)
		}(w, start, end)
	}
	wg.Wait()

	return slices.Concat(results...)
}

// findPairs tests proxies [start, end) against the higher proxies sharing a cell.
// seen holds, per proxy, 1 + the last proxy index it was tested against.
func (sg *SpatialGrid) findPairs(proxies []Proxy, start, end int, seen []int, pairs []Pair) []Pair {
	for a := start; a < end; a++ {
		proxyA := &proxies[a]

		if sg.isLarge[a] {
			for b := a + 1; b < len(proxies); b++ {
				if canPair(proxyA, &proxies[b]) {
					pairs = append(pairs, Pair{A: a, B: b})
				}
			}
			continue
		}
		for _, b := range sg.large {
			if b > a {
				seen[b] = a + 1
			}
		}

		minCell := sg.worldToCell(proxyA.Bounds.Min)
		maxCell := sg.worldToCell(proxyA.Bounds.Max)

		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					cellIdx := sg.hashCell(CellKey{x, y, z})

					for _, b := range sg.cells[cellIdx].proxies {
						// each pair once, from its lower proxy
						if b <= a || seen[b] == a+1 {
							continue
						}
						seen[b] = a + 1

						if canPair(proxyA, &proxies[b]) {
							pairs = append(pairs, Pair{A: a, B: b})
						}
					}
				}
			}
		}

		for _, b := range sg.large {
			if b > a && canPair(proxyA, &proxies[b]) {
				pairs = append(pairs, Pair{A: a, B: b})
			}
		}
	}

	return pairs
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
