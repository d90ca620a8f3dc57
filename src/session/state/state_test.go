package state

import "testing"

func TestGoFuncLimit(t *testing.T) {
	var m Manager

	release := make(chan struct{})
	started := make(chan struct{}, RoutineLimit)

	for i := 0; i < RoutineLimit; i++ {
		ok := m.GoFunc(func() {
			started <- struct{}{}
			<-release
		})
		if !ok {
			t.Fatalf("goroutine %d should have been launched", i)
		}
	}
	for i := 0; i < RoutineLimit; i++ {
		<-started
	}

	if m.GoFunc(func() {}) {
		t.Fatal("no goroutine should be launched over the limit")
	}
	if m.Running() != RoutineLimit {
		t.Fatalf("expected %d running goroutines, got %d", RoutineLimit, m.Running())
	}

	close(release)
	m.WaitRoutines()

	if m.Running() != 0 {
		t.Fatalf("expected no running goroutine, got %d", m.Running())
	}
	if !m.GoFunc(func() {}) {
		t.Fatal("a goroutine should be launched once the others returned")
	}
	m.WaitRoutines()
}

func TestState(t *testing.T) {
	var m Manager

	if m.GetState() != Loading {
		t.Fatalf("the zero state should be Loading, not %s", m.GetState())
	}

	m.SetState(Following)
	if m.GetState() != Following || m.GetState().String() != "Following" {
		t.Fatalf("expected Following, got %s", m.GetState())
	}

	if State(42).String() != "Unknown" {
		t.Fatal("out of range states should be Unknown")
	}
}
