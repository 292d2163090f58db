package constraint

import "github.com/akmonengine/particle/actor"

// Island is a maximal set of dynamic bodies connected by contacts or joints.
// Static and kinematic bodies never join islands: they are shared read-only.
type Island struct {
	// Bodies are dense BodyStore indices, ascending.
	Bodies   []int
	Contacts []*ContactConstraint
	Joints   []Joint
}

// Awake reports whether at least one body of the island is awake.
func (island *Island) Awake(bodies *actor.BodyStore) bool {
	for _, i := range island.Bodies {
		if bodies.Awake[i] {
			return true
		}
	}
	return false
}

// IslandBuilder partitions bodies with a union-find, reusing its buffers across steps.
type IslandBuilder struct {
	parent []int
	rank   []int
	slot   []int
}

func (u *IslandBuilder) reset(n int) {
	if cap(u.parent) < n {
		u.parent = make([]int, n)
		u.rank = make([]int, n)
		u.slot = make([]int, n)
	}
	u.parent = u.parent[:n]
	u.rank = u.rank[:n]
	u.slot = u.slot[:n]
	for i := 0; i < n; i++ {
		u.parent[i] = i
		u.rank[i] = 0
		u.slot[i] = -1
	}
}

func (u *IslandBuilder) find(i int) int {
	for u.parent[i] != i {
		// path halving
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *IslandBuilder) union(a, b int) {
	rootA, rootB := u.find(a), u.find(b)
	if rootA == rootB {
		return
	}
	switch {
	case u.rank[rootA] < u.rank[rootB]:
		u.parent[rootA] = rootB
	case u.rank[rootA] > u.rank[rootB]:
		u.parent[rootB] = rootA
	default:
		u.parent[rootB] = rootA
		u.rank[rootA]++
	}
}

// Build returns the islands of the dynamic bodies of the store. Islands are ordered
// by their lowest body index and keep the input order of their constraints, so the
// result only depends on the store and on the constraint order.
func (u *IslandBuilder) Build(bodies *actor.BodyStore, contacts []*ContactConstraint, joints []Joint) []Island {
	n := bodies.Len()
	u.reset(n)

	link := func(a, b int) {
		if bodies.IsDynamic(a) && bodies.IsDynamic(b) {
			u.union(a, b)
		}
	}
	for _, c := range contacts {
		link(c.BodyA, c.BodyB)
	}
	for _, j := range joints {
		link(j.Bodies())
	}

	var islands []Island
	for i := 0; i < n; i++ {
		if !bodies.IsDynamic(i) {
			continue
		}
		root := u.find(i)
		if u.slot[root] < 0 {
			u.slot[root] = len(islands)
			islands = append(islands, Island{})
		}
		island := &islands[u.slot[root]]
		island.Bodies = append(island.Bodies, i)
	}

	// a constraint belongs to the island of its dynamic body
	owner := func(a, b int) int {
		switch {
		case bodies.IsDynamic(a):
			return u.slot[u.find(a)]
		case bodies.IsDynamic(b):
			return u.slot[u.find(b)]
		default:
			return -1
		}
	}
	for _, c := range contacts {
		if index := owner(c.BodyA, c.BodyB); index >= 0 {
			islands[index].Contacts = append(islands[index].Contacts, c)
		}
	}
	for _, j := range joints {
		if index := owner(j.Bodies()); index >= 0 {
			islands[index].Joints = append(islands[index].Joints, j)
		}
	}

	return islands
}
