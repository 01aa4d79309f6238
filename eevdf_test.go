package scheduler

import "testing"

func newTestScheduler(t *testing.T) (*Scheduler, *FakeClock) {
	t.Helper()
	clk := NewFakeClock(0)
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 1},
	}}}, WithClock(clk))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, clk
}

func TestUpdateEEVDFParametersSliceWithinBounds(t *testing.T) {
	s, clk := newTestScheduler(t)
	tn := s.Tunables()
	th := NewThreadState(1, PriorityNormalBase)
	cpu := s.topo.cpu(0)

	s.updateEEVDFParameters(th, cpu, true, clk.NowMicros())

	if th.SliceMicros < tn.MinGranularity.Microseconds() {
		t.Fatalf("slice %d below min granularity %d", th.SliceMicros, tn.MinGranularity.Microseconds())
	}
	if th.SliceMicros > tn.MaxSlice.Microseconds() {
		t.Fatalf("slice %d above max slice %d", th.SliceMicros, tn.MaxSlice.Microseconds())
	}
}

func TestUpdateEEVDFParametersEligibleNowWhenLagNonNegative(t *testing.T) {
	s, clk := newTestScheduler(t)
	th := NewThreadState(1, PriorityNormalBase)
	cpu := s.topo.cpu(0)

	now := clk.NowMicros()
	s.updateEEVDFParameters(th, cpu, true, now)

	if th.Lag < 0 {
		t.Fatalf("expected non-negative lag for a fresh thread on an empty queue, got %d", th.Lag)
	}
	if th.EligibleTime != now {
		t.Fatalf("EligibleTime = %d, want %d (now) when lag >= 0", th.EligibleTime, now)
	}
}

func TestUpdateEEVDFParametersDowryClampsVirtualRuntime(t *testing.T) {
	s, clk := newTestScheduler(t)
	cpu := s.topo.cpu(0)
	tn := s.Tunables()

	clk.Set(1_000_000)
	cpu.advanceMinVRuntime(1_000_000)

	th := NewThreadState(1, PriorityNormalBase)
	th.VirtualRuntime = -1_000_000_000 // far below any plausible floor

	s.updateEEVDFParameters(th, cpu, true, clk.NowMicros())

	floor := cpu.MinVRuntime() - (tn.TargetLatency.Microseconds()*tn.WeightScale)/(2*th.Weight)
	if th.VirtualRuntime < floor {
		t.Fatalf("VirtualRuntime %d was not clamped to floor %d", th.VirtualRuntime, floor)
	}
}

func TestUpdateEEVDFParametersLatencyNiceShrinksSlice(t *testing.T) {
	s, clk := newTestScheduler(t)
	cpu := s.topo.cpu(0)
	now := clk.NowMicros()

	lo := NewThreadState(1, PriorityNormalBase)
	lo.LatencyNice = -15
	s.updateEEVDFParameters(lo, cpu, true, now)

	hi := NewThreadState(2, PriorityNormalBase)
	hi.LatencyNice = 15
	s.updateEEVDFParameters(hi, cpu, true, now)

	if lo.SliceMicros >= hi.SliceMicros {
		t.Fatalf("negative latency-nice slice %d should be shorter than positive latency-nice slice %d", lo.SliceMicros, hi.SliceMicros)
	}
}

func TestGlobalMinVRuntimeMonotonic(t *testing.T) {
	s, _ := newTestScheduler(t)
	s.topo.advanceGlobalMinVRuntime(100)
	s.topo.advanceGlobalMinVRuntime(50)
	if got := s.topo.globalMinVRuntime(); got != 100 {
		t.Fatalf("globalMinVRuntime regressed: got %d, want 100", got)
	}
	s.topo.advanceGlobalMinVRuntime(200)
	if got := s.topo.globalMinVRuntime(); got != 200 {
		t.Fatalf("globalMinVRuntime = %d, want 200", got)
	}
}
