package particle

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

func TestWorldToCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected CellKey
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, CellKey{0, 0, 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, CellKey{1, 2, 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, CellKey{-2, -3, -4}},
		{"fractional", mgl64.Vec3{0.5, 0.5, 0.5}, CellKey{0, 0, 0}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, CellKey{100, -201, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.worldToCell(tt.position)
			if result != tt.expected {
				t.Errorf("worldToCell(%v) = %v, want %v", tt.position, result, tt.expected)
			}
		})
	}
}

func TestHashCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16) // mask = 15

	tests := []struct {
		name     string
		key      CellKey
		expected int
	}{
		{"origin", CellKey{0, 0, 0}, 0},
		{"simple", CellKey{1, 2, 3}, 6},
		{"negative", CellKey{-1, -2, -3}, 10},
		{"large", CellKey{100, 200, 300}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.hashCell(tt.key)
			if result < 0 || result >= len(grid.cells) {
				t.Fatalf("hashCell(%v) = %d, out of range [0, %d)", tt.key, result, len(grid.cells))
			}
			if result != tt.expected {
				t.Errorf("hashCell(%v) = %d, want %d", tt.key, result, tt.expected)
			}
		})
	}
}

func TestHashCell_Spread(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	used := make(map[int]bool)
	for x := -4; x < 4; x++ {
		for y := -4; y < 4; y++ {
			for z := -4; z < 4; z++ {
				key := CellKey{x, y, z}
				h := grid.hashCell(key)
				if h < 0 || h >= len(grid.cells) {
					t.Fatalf("hashCell(%v) = %d, out of range [0, %d)", key, h, len(grid.cells))
				}
				if again := grid.hashCell(key); again != h {
					t.Fatalf("hashCell(%v) not deterministic: %d then %d", key, h, again)
				}
				used[h] = true
			}
		}
	}
	if len(used) < len(grid.cells)/2 {
		t.Errorf("512 neighbouring cells landed in %d of %d buckets", len(used), len(grid.cells))
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1}, {1, 1}, {3, 4}, {16, 16}, {17, 32}, {4000, 4096},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func createProxy(body int, center mgl64.Vec3, radius float64) Proxy {
	return Proxy{
		Collider: arena.EntityID{Index: uint32(body)},
		Body:     body,
		Bounds:   actor.AABBFromSphere(center, radius),
		Filter:   actor.DefaultCollisionFilter(),
		Active:   true,
	}
}

func TestSpatialGrid_Insert(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)
	bounds := actor.AABB{Min: mgl64.Vec3{0.5, 0.5, 0.5}, Max: mgl64.Vec3{1.5, 0.8, 0.8}}

	grid.Insert(7, bounds)

	for _, key := range []CellKey{{0, 0, 0}, {1, 0, 0}} {
		if !slices.Contains(grid.cells[grid.hashCell(key)].proxies, 7) {
			t.Errorf("cell %v does not hold proxy 7", key)
		}
	}

	grid.Clear()
	for i := range grid.cells {
		if len(grid.cells[i].proxies) != 0 {
			t.Fatalf("cell %d not cleared", i)
		}
	}
}

func TestSpatialGrid_FindPairs(t *testing.T) {
	tests := []struct {
		name    string
		proxies func() []Proxy
		want    []Pair
	}{
		{
			name: "overlapping",
			proxies: func() []Proxy {
				return []Proxy{createProxy(0, mgl64.Vec3{0, 0, 0}, 1), createProxy(1, mgl64.Vec3{1.5, 0, 0}, 1)}
			},
			want: []Pair{{0, 1}},
		},
		{
			name: "separated",
			proxies: func() []Proxy {
				return []Proxy{createProxy(0, mgl64.Vec3{0, 0, 0}, 1), createProxy(1, mgl64.Vec3{5, 0, 0}, 1)}
			},
			want: nil,
		},
		{
			name: "same body",
			proxies: func() []Proxy {
				return []Proxy{createProxy(3, mgl64.Vec3{0, 0, 0}, 1), createProxy(3, mgl64.Vec3{0.5, 0, 0}, 1)}
			},
			want: nil,
		},
		{
			name: "both static",
			proxies: func() []Proxy {
				a, b := createProxy(0, mgl64.Vec3{}, 1), createProxy(1, mgl64.Vec3{}, 1)
				a.Static, b.Static = true, true
				a.Active, b.Active = false, false
				return []Proxy{a, b}
			},
			want: nil,
		},
		{
			name: "both sleeping",
			proxies: func() []Proxy {
				a, b := createProxy(0, mgl64.Vec3{}, 1), createProxy(1, mgl64.Vec3{}, 1)
				a.Active, b.Active = false, false
				return []Proxy{a, b}
			},
			want: nil,
		},
		{
			name: "static against active",
			proxies: func() []Proxy {
				a, b := createProxy(0, mgl64.Vec3{}, 1), createProxy(1, mgl64.Vec3{0, 1, 0}, 1)
				a.Static, a.Active = true, false
				return []Proxy{a, b}
			},
			want: []Pair{{0, 1}},
		},
		{
			name: "filtered out",
			proxies: func() []Proxy {
				a, b := createProxy(0, mgl64.Vec3{}, 1), createProxy(1, mgl64.Vec3{}, 1)
				a.Filter = actor.CollisionFilter{Layer: 1, Mask: 1}
				b.Filter = actor.CollisionFilter{Layer: 2, Mask: 0xFFFFFFFF}
				return []Proxy{a, b}
			},
			want: nil,
		},
		{
			name: "many shared cells reported once",
			proxies: func() []Proxy {
				return []Proxy{createProxy(0, mgl64.Vec3{}, 2.5), createProxy(1, mgl64.Vec3{0.5, 0.5, 0.5}, 2.5)}
			},
			want: []Pair{{0, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxies := tt.proxies()
			grid := NewSpatialGrid(1.0, 256)
			grid.Build(proxies)

			got := grid.FindPairs(proxies)
			if !slices.Equal(got, tt.want) {
				t.Errorf("FindPairs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpatialGrid_LargeProxy(t *testing.T) {
	// the ground covers far more cells than there are buckets
	ground := createProxy(0, mgl64.Vec3{}, 500)
	ground.Static, ground.Active = true, false
	proxies := []Proxy{
		ground,
		createProxy(1, mgl64.Vec3{0, 1, 0}, 1),
		createProxy(2, mgl64.Vec3{300, 1, 0}, 1),
		createProxy(3, mgl64.Vec3{2000, 1, 0}, 1),
	}

	grid := NewSpatialGrid(1.0, 64)
	grid.Build(proxies)
	if len(grid.large) != 1 || grid.large[0] != 0 {
		t.Fatalf("large = %v, want [0]", grid.large)
	}

	got := grid.FindPairs(proxies)
	want := []Pair{{0, 1}, {0, 2}}
	if !slices.Equal(got, want) {
		t.Errorf("FindPairs() = %v, want %v", got, want)
	}
}

func randomProxies(n int, seed int64) []Proxy {
	rng := rand.New(rand.NewSource(seed))
	proxies := make([]Proxy, n)
	for i := range proxies {
		center := mgl64.Vec3{rng.Float64() * 40, rng.Float64() * 40, rng.Float64() * 40}
		proxies[i] = createProxy(i, center, 0.5+rng.Float64())
		proxies[i].Active = rng.Intn(4) != 0
	}
	return proxies
}

func TestSpatialGrid_FindPairsMatchesBruteForce(t *testing.T) {
	proxies := randomProxies(300, 1)
	grid := NewSpatialGrid(2.0, 512)
	grid.Build(proxies)

	got := grid.FindPairs(proxies)

	var want []Pair
	for a := range proxies {
		for b := a + 1; b < len(proxies); b++ {
			if canPair(&proxies[a], &proxies[b]) {
				want = append(want, Pair{a, b})
			}
		}
	}

	sorted := slices.Clone(got)
	slices.SortFunc(sorted, func(x, y Pair) int {
		if x.A != y.A {
			return x.A - y.A
		}
		return x.B - y.B
	})
	if !slices.Equal(sorted, want) {
		t.Fatalf("FindPairs() found %d pairs, brute force %d", len(got), len(want))
	}
	if len(slices.Compact(sorted)) != len(got) {
		t.Error("FindPairs() reported a pair twice")
	}
}

func TestSpatialGrid_FindPairsParallel(t *testing.T) {
	proxies := randomProxies(500, 2)
	grid := NewSpatialGrid(2.0, 1024)
	grid.Build(proxies)

	sequential := grid.FindPairs(proxies)
	for _, workers := range []int{1, 2, 3, 8} {
		parallel := grid.FindPairsParallel(proxies, workers)
		if !slices.Equal(parallel, sequential) {
			t.Errorf("FindPairsParallel(%d) differs from FindPairs: %d vs %d pairs", workers, len(parallel), len(sequential))
		}
	}
}

func BenchmarkFindPairs(b *testing.B) {
	proxies := randomProxies(2000, 3)
	grid := NewSpatialGrid(2.0, 4096)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		grid.Build(proxies)
		grid.FindPairs(proxies)
	}
}

func BenchmarkFindPairsParallel(b *testing.B) {
	proxies := randomProxies(2000, 3)
	grid := NewSpatialGrid(2.0, 4096)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		grid.Build(proxies)
		grid.FindPairsParallel(proxies, 4)
	}
}
