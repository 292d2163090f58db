package particle

import (
	"testing"

	"github.com/akmonengine/particle/actor"
	"github.com/akmonengine/particle/arena"
	"github.com/go-gl/mathgl/mgl64"
)

type eventCapture struct {
	events []Event
}

func (ec *eventCapture) capture(event Event) {
	ec.events = append(ec.events, event)
}

func (ec *eventCapture) reset() {
	ec.events = ec.events[:0]
}

func (ec *eventCapture) count() int {
	return len(ec.events)
}

func (ec *eventCapture) hasEventType(eventType EventType) bool {
	for _, e := range ec.events {
		if e.Type() == eventType {
			return true
		}
	}
	return false
}

// testPair holds the ids of two colliders and of their bodies.
type testPair struct {
	colliderA, colliderB arena.EntityID
	bodyA, bodyB         arena.EntityID
}

func newTestPair() testPair {
	return testPair{
		colliderA: arena.EntityID{Index: 0},
		colliderB: arena.EntityID{Index: 1},
		bodyA:     arena.EntityID{Index: 10},
		bodyB:     arena.EntityID{Index: 11},
	}
}

func (p testPair) record(events *Events, trigger bool) {
	events.recordPair(p.colliderA, p.colliderB, p.bodyA, p.bodyB, trigger)
}

func allActive(arena.EntityID) bool { return true }
func noneActive(arena.EntityID) bool { return false }

// =============================================================================
// Subscribe and Listeners Tests
// =============================================================================

func TestEvents_Subscribe(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}

	events.Subscribe(COLLISION_ENTER, capture.capture)

	if len(events.listeners[COLLISION_ENTER]) != 1 {
		t.Errorf("Expected 1 listener for COLLISION_ENTER, got %d", len(events.listeners[COLLISION_ENTER]))
	}
}

func TestEvents_MultipleListeners(t *testing.T) {
	events := NewEvents()
	captures := []*eventCapture{{}, {}, {}}
	for _, capture := range captures {
		events.Subscribe(COLLISION_ENTER, capture.capture)
	}

	newTestPair().record(&events, false)
	events.flush(allActive)

	for i, capture := range captures {
		if capture.count() != 1 {
			t.Errorf("capture %d: expected 1 event, got %d", i, capture.count())
		}
	}
}

func TestEvents_RecordPair_Ordering(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(COLLISION_ENTER, capture.capture)

	// recorded with B before A: the event is normalized to the lower collider
	p := newTestPair()
	events.recordPair(p.colliderB, p.colliderA, p.bodyB, p.bodyA, false)
	events.flush(allActive)

	if capture.count() != 1 {
		t.Fatalf("Expected 1 event, got %d", capture.count())
	}
	event := capture.events[0].(CollisionEnterEvent)
	if event.ColliderA != p.colliderA || event.BodyA != p.bodyA {
		t.Errorf("event A = collider %v body %v, want collider %v body %v", event.ColliderA, event.BodyA, p.colliderA, p.bodyA)
	}
	if event.ColliderB != p.colliderB || event.BodyB != p.bodyB {
		t.Errorf("event B = collider %v body %v, want collider %v body %v", event.ColliderB, event.BodyB, p.colliderB, p.bodyB)
	}
}

// =============================================================================
// Enter / Stay / Exit
// =============================================================================

func TestEvents_PairLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		trigger bool
		enter   EventType
		stay    EventType
		exit    EventType
	}{
		{"collision", false, COLLISION_ENTER, COLLISION_STAY, COLLISION_EXIT},
		{"trigger", true, TRIGGER_ENTER, TRIGGER_STAY, TRIGGER_EXIT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := NewEvents()
			capture := &eventCapture{}
			for _, eventType := range []EventType{tt.enter, tt.stay, tt.exit} {
				events.Subscribe(eventType, capture.capture)
			}
			pair := newTestPair()

			// Frame 1: Enter
			pair.record(&events, tt.trigger)
			events.flush(allActive)
			if capture.count() != 1 || !capture.hasEventType(tt.enter) {
				t.Fatalf("frame 1: events = %v, want one %v", capture.events, tt.enter)
			}

			// Frame 2: Stay
			capture.reset()
			pair.record(&events, tt.trigger)
			events.flush(allActive)
			if capture.count() != 1 || !capture.hasEventType(tt.stay) {
				t.Fatalf("frame 2: events = %v, want one %v", capture.events, tt.stay)
			}

			// Frame 3: Exit
			capture.reset()
			events.flush(allActive)
			if capture.count() != 1 || !capture.hasEventType(tt.exit) {
				t.Fatalf("frame 3: events = %v, want one %v", capture.events, tt.exit)
			}

			// Frame 4: nothing left
			capture.reset()
			events.flush(allActive)
			if capture.count() != 0 {
				t.Errorf("frame 4: events = %v, want none", capture.events)
			}
		})
	}
}

func TestEvents_RestingPairIsCarriedOver(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	for _, eventType := range []EventType{COLLISION_ENTER, COLLISION_STAY, COLLISION_EXIT} {
		events.Subscribe(eventType, capture.capture)
	}
	pair := newTestPair()

	pair.record(&events, false)
	events.flush(allActive)

	// both bodies fell asleep: the pair leaves the broad phase without an exit
	capture.reset()
	events.flush(noneActive)
	if capture.count() != 0 {
		t.Fatalf("resting frame: events = %v, want none", capture.events)
	}

	// woken up and still touching: stay, not enter
	pair.record(&events, false)
	events.flush(allActive)
	if capture.count() != 1 || !capture.hasEventType(COLLISION_STAY) {
		t.Errorf("after wake: events = %v, want one COLLISION_STAY", capture.events)
	}
}

func TestEvents_MultipleFrames_EnterExitEnter(t *testing.T) {
	events := NewEvents()
	captureEnter := &eventCapture{}
	captureExit := &eventCapture{}

	events.Subscribe(COLLISION_ENTER, captureEnter.capture)
	events.Subscribe(COLLISION_EXIT, captureExit.capture)
	pair := newTestPair()

	// Frame 1: Enter
	pair.record(&events, false)
	events.flush(allActive)
	if captureEnter.count() != 1 {
		t.Error("Expected ENTER on frame 1")
	}

	// Frame 2: Exit
	captureEnter.reset()
	events.flush(allActive)
	if captureExit.count() != 1 {
		t.Error("Expected EXIT on frame 2")
	}

	// Frame 3: Enter again
	captureExit.reset()
	pair.record(&events, false)
	events.flush(allActive)
	if captureEnter.count() != 1 {
		t.Error("Expected ENTER again on frame 3")
	}
}

func TestEvents_ForgetCollider(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(COLLISION_EXIT, capture.capture)
	pair := newTestPair()

	pair.record(&events, false)
	events.flush(allActive)

	events.forgetCollider(pair.colliderB)
	events.flush(allActive)
	if capture.count() != 0 {
		t.Errorf("events = %v, want no exit for a removed collider", capture.events)
	}
}

// =============================================================================
// Sleep / Wake
// =============================================================================

func createSleepStore() (*actor.BodyStore, arena.EntityID) {
	bodies := actor.NewBodyStore(2)
	bodies.Insert(actor.NewRigidBody(actor.NewTransform(), actor.NewBox(mgl64.Vec3{5, 1, 5}), actor.BodyTypeStatic, 1))
	id := bodies.Insert(actor.NewRigidBody(actor.NewTransformAt(mgl64.Vec3{0, 2, 0}), actor.NewSphere(1), actor.BodyTypeDynamic, 1))
	return bodies, id
}

func TestEvents_SleepWakeWorkflow(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(ON_SLEEP, capture.capture)
	events.Subscribe(ON_WAKE, capture.capture)

	bodies, id := createSleepStore()
	index, _ := bodies.Index(id)

	// Frame 1: initialization emits nothing
	events.processSleepEvents(bodies)
	events.flush(allActive)
	if capture.count() != 0 {
		t.Fatalf("Expected no events on initialization, got %d", capture.count())
	}

	// Frame 2: sleep
	bodies.Sleep(index)
	events.processSleepEvents(bodies)
	events.flush(allActive)
	if capture.count() != 1 {
		t.Fatalf("Expected 1 event, got %d", capture.count())
	}
	if event, ok := capture.events[0].(SleepEvent); !ok || event.Body != id {
		t.Errorf("event = %#v, want SleepEvent for %v", capture.events[0], id)
	}

	// Frame 3: still asleep, no new event
	capture.reset()
	events.processSleepEvents(bodies)
	events.flush(allActive)
	if capture.count() != 0 {
		t.Errorf("Expected no event while asleep, got %d", capture.count())
	}

	// Frame 4: wake
	bodies.Wake(index)
	events.processSleepEvents(bodies)
	events.flush(allActive)
	if capture.count() != 1 || !capture.hasEventType(ON_WAKE) {
		t.Errorf("events = %v, want one ON_WAKE", capture.events)
	}
}

func TestEvents_StaticBodiesAreNotTracked(t *testing.T) {
	events := NewEvents()
	bodies, _ := createSleepStore()

	events.processSleepEvents(bodies)
	if _, ok := events.sleepStates[bodies.ID(0)]; ok {
		t.Error("static body should not be tracked")
	}
	if len(events.sleepStates) != 1 {
		t.Errorf("tracked %d bodies, want 1", len(events.sleepStates))
	}
}

func TestEvents_Flush_ClearsBuffer(t *testing.T) {
	events := NewEvents()
	capture := &eventCapture{}
	events.Subscribe(COLLISION_ENTER, capture.capture)

	newTestPair().record(&events, false)
	events.flush(allActive)
	if len(events.buffer) != 0 {
		t.Errorf("buffer holds %d events after flush", len(events.buffer))
	}
}

func TestEvents_NoListeners(t *testing.T) {
	events := NewEvents()
	newTestPair().record(&events, true)
	// must not panic
	events.flush(allActive)
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{TRIGGER_ENTER, "trigger_enter"},
		{COLLISION_STAY, "collision_stay"},
		{ON_WAKE, "wake"},
		{EventType(200), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.eventType.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}
