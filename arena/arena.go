// Package arena implements generational-index storage.
//
// Every entity of the simulation (bodies, colliders, multibodies) is addressed through an
// EntityID: a dense slot index paired with the generation the slot had when the entity was
// inserted. Removing an entity bumps the slot generation, so any handle kept by a caller
// stops resolving instead of silently aliasing whatever reuses the slot later.
// Generations start at 1, so the zero EntityID never resolves either.
package arena

import (
	"errors"
	"fmt"
	"math"
)

// ErrStaleID is returned by callers that need an error instead of the (zero, false) lookup result.
var ErrStaleID = errors.New("arena: stale or unknown entity id")

// InvalidIndex is the index carried by the zero-value-like Invalid handle.
const InvalidIndex = math.MaxUint32

// EntityID is an opaque handle: slot index + slot generation.
type EntityID struct {
	Index      uint32
	Generation uint32
}

// Invalid never resolves in any arena.
var Invalid = EntityID{Index: InvalidIndex}

// IsValid reports whether the id could refer to a slot at all (it may still be stale).
// The zero value is not valid.
func (id EntityID) IsValid() bool {
	return id.Index != InvalidIndex && id.Generation != 0
}

func (id EntityID) String() string {
	if !id.IsValid() {
		return "EntityID(invalid)"
	}
	return fmt.Sprintf("EntityID(%d#%d)", id.Index, id.Generation)
}

// Less orders ids by index, then generation. Used for deterministic iteration.
func (id EntityID) Less(other EntityID) bool {
	if id.Index != other.Index {
		return id.Index < other.Index
	}
	return id.Generation < other.Generation
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// bump moves to the next generation, skipping 0 on wraparound.
func (s *slot[T]) bump() {
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
}

// Arena stores values of type T behind generational handles.
// Freed slots are reused in FIFO order.
type Arena[T any] struct {
	slots    []slot[T]
	freeList []uint32
	len      int
}

// New creates an arena with room for capacity values before growing.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots:    make([]slot[T], 0, capacity),
		freeList: make([]uint32, 0, 8),
	}
}

// Insert stores value in a free slot (or appends one) and returns its handle.
func (a *Arena[T]) Insert(value T) EntityID {
	a.len++

	if len(a.freeList) > 0 {
		index := a.freeList[0]
		a.freeList = a.freeList[1:]

		s := &a.slots[index]
		s.value = value
		s.occupied = true
		return EntityID{Index: index, Generation: s.generation}
	}

	a.slots = append(a.slots, slot[T]{value: value, generation: 1, occupied: true})
	return EntityID{Index: uint32(len(a.slots) - 1), Generation: 1}
}

func (a *Arena[T]) lookup(id EntityID) *slot[T] {
	if int64(id.Index) >= int64(len(a.slots)) {
		return nil
	}
	s := &a.slots[id.Index]
	if !s.occupied || s.generation != id.Generation {
		return nil
	}
	return s
}

// Contains reports whether id currently resolves.
func (a *Arena[T]) Contains(id EntityID) bool {
	return a.lookup(id) != nil
}

// Get returns a pointer to the stored value, valid until the next Insert or Remove.
func (a *Arena[T]) Get(id EntityID) (*T, bool) {
	s := a.lookup(id)
	if s == nil {
		return nil, false
	}
	return &s.value, true
}

// Get2 returns two distinct live entries at once.
// It fails when either id is stale or both ids address the same slot.
func (a *Arena[T]) Get2(idA, idB EntityID) (*T, *T, bool) {
	if idA.Index == idB.Index {
		return nil, nil, false
	}
	sa := a.lookup(idA)
	sb := a.lookup(idB)
	if sa == nil || sb == nil {
		return nil, nil, false
	}
	return &sa.value, &sb.value, true
}

// Remove frees the slot and bumps its generation.
func (a *Arena[T]) Remove(id EntityID) (T, bool) {
	var zero T
	s := a.lookup(id)
	if s == nil {
		return zero, false
	}

	value := s.value
	s.value = zero
	s.occupied = false
	s.bump()
	a.freeList = append(a.freeList, id.Index)
	a.len--

	return value, true
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	return a.len
}

// IDs returns the live handles in slot order.
func (a *Arena[T]) IDs() []EntityID {
	ids := make([]EntityID, 0, a.len)
	for i := range a.slots {
		if a.slots[i].occupied {
			ids = append(ids, EntityID{Index: uint32(i), Generation: a.slots[i].generation})
		}
	}
	return ids
}

// Each calls fn for every live entry in slot order. fn must not insert or remove.
func (a *Arena[T]) Each(fn func(id EntityID, value *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.occupied {
			fn(EntityID{Index: uint32(i), Generation: s.generation}, &s.value)
		}
	}
}

// Clear removes every entry, bumping all generations.
func (a *Arena[T]) Clear() {
	var zero T
	a.freeList = a.freeList[:0]
	for i := range a.slots {
		s := &a.slots[i]
		if s.occupied {
			s.bump()
		}
		s.value = zero
		s.occupied = false
		a.freeList = append(a.freeList, uint32(i))
	}
	a.len = 0
}
