package gjk

// Pair is one query of a Batch.
type Pair struct {
	A, B Convex
}

// Batch evaluates many distance queries in lockstep: every active lane advances
// by one iteration before any lane takes its next one. The lanes use the same
// step as Distance, so a batched result equals the scalar result for the same pair.
type Batch struct {
	lanes   []distanceState
	results []DistanceResult
}

func NewBatch(capacity int) *Batch {
	return &Batch{
		lanes:   make([]distanceState, 0, capacity),
		results: make([]DistanceResult, 0, capacity),
	}
}

// Distances runs every pair to completion. The returned slice is reused by the next call.
func (b *Batch) Distances(pairs []Pair) []DistanceResult {
	b.lanes = b.lanes[:0]
	for _, pair := range pairs {
		b.lanes = append(b.lanes, distanceState{})
		b.lanes[len(b.lanes)-1].init(pair.A, pair.B)
	}

	for active := len(b.lanes); active > 0; {
		active = 0
		for i := range b.lanes {
			lane := &b.lanes[i]
			if lane.done {
				continue
			}
			lane.step()
			if !lane.done {
				active++
			}
		}
	}

	b.results = b.results[:0]
	for i := range b.lanes {
		b.results = append(b.results, b.lanes[i].result)
	}
	return b.results
}

// Intersects reports, per pair, whether the two volumes overlap or touch.
func (b *Batch) Intersects(pairs []Pair) []bool {
	results := b.Distances(pairs)
	hits := make([]bool, len(results))
	for i, result := range results {
		hits[i] = result.Intersecting
	}
	return hits
}
