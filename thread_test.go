package scheduler

import "testing"

func TestCPUSetBasics(t *testing.T) {
	s := NewCPUSet(0, 2, 3)
	for _, c := range []int{0, 2, 3} {
		if !s.Has(c) {
			t.Fatalf("expected CPU %d in set", c)
		}
	}
	if s.Has(1) {
		t.Fatalf("CPU 1 should not be in set")
	}
	s = s.Without(2)
	if s.Has(2) {
		t.Fatalf("CPU 2 should have been removed")
	}
	if s.Empty() {
		t.Fatalf("set should not be empty")
	}
	if !(CPUSet(0)).Empty() {
		t.Fatalf("zero-value CPUSet should be empty")
	}
}

func TestAllCPUs(t *testing.T) {
	s := AllCPUs(4)
	for c := 0; c < 4; c++ {
		if !s.Has(c) {
			t.Fatalf("AllCPUs(4) missing CPU %d", c)
		}
	}
	if s.Has(4) {
		t.Fatalf("AllCPUs(4) should not include CPU 4")
	}
	all := AllCPUs(64)
	for c := 0; c < 64; c++ {
		if !all.Has(c) {
			t.Fatalf("AllCPUs(64) missing CPU %d", c)
		}
	}
}

func TestThreadEligible(t *testing.T) {
	th := NewThreadState(1, PriorityNormalBase)
	th.EligibleTime = 100
	if th.eligible(99) {
		t.Fatalf("thread should not be eligible before its eligible time")
	}
	if !th.eligible(100) {
		t.Fatalf("thread should be eligible exactly at its eligible time")
	}
	if !th.eligible(101) {
		t.Fatalf("thread should be eligible after its eligible time")
	}
}

func TestThreadPermittedOnRespectsPin(t *testing.T) {
	th := NewThreadState(1, PriorityNormalBase)
	th.CPUMask = AllCPUs(8)
	th.PinnedToCPU = 3
	if th.permittedOn(2) {
		t.Fatalf("pinned thread should not be permitted on a different CPU")
	}
	if !th.permittedOn(3) {
		t.Fatalf("pinned thread should be permitted on its pinned CPU")
	}
}

func TestThreadPermittedOnRespectsMask(t *testing.T) {
	th := NewThreadState(1, PriorityNormalBase)
	th.CPUMask = NewCPUSet(0, 1)
	if th.permittedOn(2) {
		t.Fatalf("thread should not be permitted on a CPU outside its mask")
	}
	if !th.permittedOn(1) {
		t.Fatalf("thread should be permitted on a CPU inside its mask")
	}
}

func TestAddAffinitizedIRQDedupesAndCaps(t *testing.T) {
	th := NewThreadState(1, PriorityNormalBase)
	for i := 0; i < maxAffinitizedIRQs; i++ {
		if err := th.addAffinitizedIRQ(i); err != nil {
			t.Fatalf("addAffinitizedIRQ(%d) = %v, want nil", i, err)
		}
	}
	if err := th.addAffinitizedIRQ(0); err != nil {
		t.Fatalf("re-adding an existing IRQ should be a no-op, got %v", err)
	}
	if len(th.AffinitizedIRQs) != maxAffinitizedIRQs {
		t.Fatalf("len(AffinitizedIRQs) = %d, want %d (dedup should not grow it)", len(th.AffinitizedIRQs), maxAffinitizedIRQs)
	}
	if err := th.addAffinitizedIRQ(999); err == nil {
		t.Fatalf("expected an error adding beyond the cap")
	}
}

func TestRemoveAffinitizedIRQ(t *testing.T) {
	th := NewThreadState(1, PriorityNormalBase)
	_ = th.addAffinitizedIRQ(5)
	_ = th.addAffinitizedIRQ(6)
	th.removeAffinitizedIRQ(5)
	if len(th.AffinitizedIRQs) != 1 || th.AffinitizedIRQs[0] != 6 {
		t.Fatalf("AffinitizedIRQs = %v, want [6]", th.AffinitizedIRQs)
	}
	th.removeAffinitizedIRQ(42) // no-op for an IRQ not present
	if len(th.AffinitizedIRQs) != 1 {
		t.Fatalf("removing a non-existent IRQ should not change the list")
	}
}

func TestUnweightedLagWork(t *testing.T) {
	th := NewThreadState(1, PriorityNormalBase)
	th.Weight = weightScale
	th.Lag = 1000
	if got := th.unweightedLagWork(weightScale); got != 1000 {
		t.Fatalf("unweightedLagWork at baseline weight = %d, want 1000", got)
	}
	th.Weight = 0
	if got := th.unweightedLagWork(weightScale); got != 0 {
		t.Fatalf("unweightedLagWork with zero weight = %d, want 0", got)
	}
}
