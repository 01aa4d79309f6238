package scheduler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveOptionsDefaultsMatchDefaultTunables(t *testing.T) {
	tn, _, err := resolveOptions(nil)
	if err != nil {
		t.Fatalf("resolveOptions(nil): %v", err)
	}
	if diff := cmp.Diff(defaultTunables(), tn); diff != "" {
		t.Fatalf("resolveOptions(nil) tunables diverge from defaultTunables() (-want +got):\n%s", diff)
	}
}

func TestResolveOptionsAppliesOverridesOnTopOfDefaults(t *testing.T) {
	tn, _, err := resolveOptions([]Option{WithMode(PowerSaving), WithSMTConflictFactor(0.4)})
	if err != nil {
		t.Fatalf("resolveOptions: %v", err)
	}

	want := defaultTunables()
	want.Mode = PowerSaving
	want.SMTConflictFactor = 0.4
	if diff := cmp.Diff(want, tn); diff != "" {
		t.Fatalf("resolved tunables diverge from expected overrides (-want +got):\n%s", diff)
	}
}

func TestResolveOptionsRejectsInvalidMode(t *testing.T) {
	if _, _, err := resolveOptions([]Option{WithMode(Mode(99))}); err == nil {
		t.Fatalf("expected an error for an invalid mode")
	}
}

func TestResolveOptionsRejectsOutOfRangeSMTConflictFactor(t *testing.T) {
	if _, _, err := resolveOptions([]Option{WithSMTConflictFactor(1.5)}); err == nil {
		t.Fatalf("expected an error for an SMT conflict factor outside [0,1]")
	}
}

func TestTunablesSnapshotRoundTripsThroughAtomicTunables(t *testing.T) {
	var a atomicTunables
	want := defaultTunables()
	want.MaxIRQsPerCycle = 7
	a.store(want)
	if diff := cmp.Diff(want, a.load()); diff != "" {
		t.Fatalf("atomicTunables round-trip diverges (-want +got):\n%s", diff)
	}
}
