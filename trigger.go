package particle

import (
	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/akmonengine/particle/constraint"
)

const (
	TRIGGER_ENTER EventType = iota
	COLLISION_ENTER
	TRIGGER_STAY
	COLLISION_STAY
	TRIGGER_EXIT
	COLLISION_EXIT
	ON_SLEEP
	ON_WAKE
)

type EventType uint8

func (t EventType) String() string {
	switch t {
	case TRIGGER_ENTER:
		return "trigger_enter"
	case COLLISION_ENTER:
		return "collision_enter"
	case TRIGGER_STAY:
		return "trigger_stay"
	case COLLISION_STAY:
		return "collision_stay"
	case TRIGGER_EXIT:
		return "trigger_exit"
	case COLLISION_EXIT:
		return "collision_exit"
	case ON_SLEEP:
		return "sleep"
	case ON_WAKE:
		return "wake"
	default:
		return "unknown"
	}
}

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Contact identifies the two colliders of a pair event, and their bodies.
type Contact struct {
	ColliderA, ColliderB arena.EntityID
	BodyA, BodyB         arena.EntityID
}

// Trigger events
type TriggerEnterEvent struct{ Contact }
type TriggerStayEvent struct{ Contact }
type TriggerExitEvent struct{ Contact }

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }
func (e TriggerStayEvent) Type() EventType  { return TRIGGER_STAY }
func (e TriggerExitEvent) Type() EventType  { return TRIGGER_EXIT }

// Collision events
type CollisionEnterEvent struct{ Contact }
type CollisionStayEvent struct{ Contact }
type CollisionExitEvent struct{ Contact }

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }
func (e CollisionStayEvent) Type() EventType  { return COLLISION_STAY }
func (e CollisionExitEvent) Type() EventType  { return COLLISION_EXIT }

// Sleep/Wake events
type SleepEvent struct {
	Body arena.EntityID
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body arena.EntityID
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

type activePair struct {
	bodyA, bodyB arena.EntityID
	trigger      bool
}

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Collision tracking for Enter/Stay/Exit detection, keyed by collider pair
	previousActivePairs map[constraint.PairKey]activePair
	currentActivePairs  map[constraint.PairKey]activePair

	sleepStates map[arena.EntityID]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[constraint.PairKey]activePair),
		currentActivePairs:  make(map[constraint.PairKey]activePair),
		sleepStates:         make(map[arena.EntityID]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordPair marks a touching collider pair during a substep.
func (e *Events) recordPair(colliderA, colliderB, bodyA, bodyB arena.EntityID, trigger bool) {
	key := constraint.MakePairKey(colliderA, colliderB)
	if key.A != colliderA {
		bodyA, bodyB = bodyB, bodyA
	}
	e.currentActivePairs[key] = activePair{bodyA: bodyA, bodyB: bodyB, trigger: trigger}
}

// processCollisionEvents compares current and previous pairs to detect Enter/Stay/Exit.
// A pair missing because both its bodies rest is carried over silently: resting
// bodies leave the broad phase without separating.
func (e *Events) processCollisionEvents(active func(body arena.EntityID) bool) {
	for key, pair := range e.previousActivePairs {
		if _, ok := e.currentActivePairs[key]; ok {
			continue
		}
		if !active(pair.bodyA) && !active(pair.bodyB) {
			e.currentActivePairs[key] = pair
			continue
		}

		contact := pair.contact(key)
		if pair.trigger {
			e.buffer = append(e.buffer, TriggerExitEvent{contact})
		} else {
			e.buffer = append(e.buffer, CollisionExitEvent{contact})
		}
	}

	for key, pair := range e.currentActivePairs {
		// Skip resting pairs, to avoid spamming events
		if !active(pair.bodyA) && !active(pair.bodyB) {
			continue
		}

		contact := pair.contact(key)
		_, stay := e.previousActivePairs[key]
		switch {
		case stay && pair.trigger:
			e.buffer = append(e.buffer, TriggerStayEvent{contact})
		case stay:
			e.buffer = append(e.buffer, CollisionStayEvent{contact})
		case pair.trigger:
			e.buffer = append(e.buffer, TriggerEnterEvent{contact})
		default:
			e.buffer = append(e.buffer, CollisionEnterEvent{contact})
		}
	}

	// Swap for next frame and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func (p activePair) contact(key constraint.PairKey) Contact {
	return Contact{ColliderA: key.A, ColliderB: key.B, BodyA: p.bodyA, BodyB: p.bodyB}
}

func (e *Events) processSleepEvents(bodies *actor.BodyStore) {
	for i := 0; i < bodies.Len(); i++ {
		if bodies.IsStatic(i) {
			continue
		}
		id := bodies.ID(i)
		sleeping := !bodies.Awake[i]

		trackedState, exists := e.sleepStates[id]
		if !exists {
			e.sleepStates[id] = sleeping
			continue
		}

		if !trackedState && sleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: id})
			e.sleepStates[id] = true
		} else if trackedState && !sleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: id})
			e.sleepStates[id] = false
		}
	}
}

// forgetBody drops the tracking state of a removed body, without events.
func (e *Events) forgetBody(body arena.EntityID) {
	delete(e.sleepStates, body)
	for key, pair := range e.previousActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.previousActivePairs, key)
		}
	}
}

// forgetCollider drops the pairs of a removed collider, without events.
func (e *Events) forgetCollider(collider arena.EntityID) {
	for key := range e.previousActivePairs {
		if key.A == collider || key.B == collider {
			delete(e.previousActivePairs, key)
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush(active func(body arena.EntityID) bool) {
	e.processCollisionEvents(active)

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
