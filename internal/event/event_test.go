package event

import "testing"

func TestEmitFanOutOrder(t *testing.T) {
	d := New()
	var order []int
	d.On(QueueExecutionFinished, func(ev Event) { order = append(order, 1) })
	d.On(QueueExecutionFinished, func(ev Event) { order = append(order, 2) })
	d.On(QueueExecutionFinished, func(ev Event) { order = append(order, 3) })

	d.Emit(Event{Type: QueueExecutionFinished, Frame: 7})

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d", i, order[i], want[i])
		}
	}
}

func TestEmitPassesEventData(t *testing.T) {
	d := New()
	var got Event
	d.On(StagingFlushed, func(ev Event) { got = ev })

	d.Emit(Event{Type: StagingFlushed, Frame: 42})

	if got.Type != StagingFlushed || got.Frame != 42 {
		t.Errorf("got = %+v, want {StagingFlushed 42}", got)
	}
}

func TestEmitIsolatedByType(t *testing.T) {
	d := New()
	called := false
	d.On(QueueExecutionFinished, func(ev Event) { called = true })

	d.Emit(Event{Type: StagingFlushed})

	if called {
		t.Errorf("listener for QueueExecutionFinished fired on a StagingFlushed emit")
	}
}

func TestEmitWithNoListeners(t *testing.T) {
	d := New()
	// must not panic when no listener is registered for the type.
	d.Emit(Event{Type: QueueExecutionFinished})
}
