package scheduler

import "testing"

func TestCPUEntryAdvanceMinVRuntimeMonotonic(t *testing.T) {
	c := newCPUEntry(0, &coreEntry{})
	c.advanceMinVRuntime(100)
	c.advanceMinVRuntime(50)
	if got := c.MinVRuntime(); got != 100 {
		t.Fatalf("MinVRuntime regressed: got %d, want 100", got)
	}
	c.advanceMinVRuntime(150)
	if got := c.MinVRuntime(); got != 150 {
		t.Fatalf("MinVRuntime = %d, want 150", got)
	}
}

func TestCPUEntryLoadEWMA(t *testing.T) {
	c := newCPUEntry(0, &coreEntry{})
	c.updateLoad(1.0, 0.5)
	if got := c.Load(); got != 0.5 {
		t.Fatalf("Load after one sample = %f, want 0.5", got)
	}
	c.updateLoad(1.0, 0.5)
	if got := c.Load(); got != 0.75 {
		t.Fatalf("Load after two samples = %f, want 0.75", got)
	}
}

func TestCPUEntryRecomputeSMTKeyFoldsSiblingLoad(t *testing.T) {
	core := &coreEntry{}
	a := newCPUEntry(0, core)
	b := newCPUEntry(1, core)
	core.CPUs = []*cpuEntry{a, b}

	a.updateLoad(0.2, 1.0)
	b.updateLoad(0.8, 1.0)

	a.recomputeSMTKey(0.5)
	want := a.Load() + 0.5*b.Load()
	if got := a.SMTKey(); diffWithin(got, want, 0.001) == false {
		t.Fatalf("SMTKey = %f, want approximately %f", got, want)
	}
}

func diffWithin(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestNewCPUEntryStartsWithIdleThread(t *testing.T) {
	c := newCPUEntry(3, &coreEntry{})
	if c.idle == nil {
		t.Fatalf("newCPUEntry should create an idle thread")
	}
	if c.idle.Priority != PriorityIdle {
		t.Fatalf("idle thread priority = %d, want %d", c.idle.Priority, PriorityIdle)
	}
	if c.idle.CPU != 3 {
		t.Fatalf("idle thread CPU = %d, want 3", c.idle.CPU)
	}
	if c.Current() != nil {
		t.Fatalf("a freshly created cpuEntry should not yet report a current thread")
	}
}
