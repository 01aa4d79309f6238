package scheduler

import "testing"

func TestLifecycleStateString(t *testing.T) {
	cases := map[LifecycleState]string{
		LifecycleInit:     "init",
		LifecycleEnabled:  "enabled",
		LifecycleDisabled: "disabled",
		LifecycleStopped:  "stopped",
		LifecycleState(99): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("LifecycleState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestFastStateLoadStore(t *testing.T) {
	s := newFastState(LifecycleInit)
	if s.Load() != LifecycleInit {
		t.Fatalf("newFastState should start at the given initial state")
	}
	s.Store(LifecycleEnabled)
	if !s.IsEnabled() {
		t.Fatalf("IsEnabled should be true after storing LifecycleEnabled")
	}
	s.Store(LifecycleDisabled)
	if s.IsEnabled() {
		t.Fatalf("IsEnabled should be false after storing LifecycleDisabled")
	}
}

func TestFastStateTryTransition(t *testing.T) {
	s := newFastState(LifecycleInit)
	if !s.TryTransition(LifecycleInit, LifecycleEnabled) {
		t.Fatalf("expected the transition from the current state to succeed")
	}
	if s.Load() != LifecycleEnabled {
		t.Fatalf("state should reflect the successful transition")
	}
	if s.TryTransition(LifecycleInit, LifecycleDisabled) {
		t.Fatalf("a transition from a stale expected state should fail")
	}
	if s.Load() != LifecycleEnabled {
		t.Fatalf("a failed transition must not change the state")
	}
}
