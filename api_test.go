package scheduler

import "testing"

func TestSetThreadPriorityUpdatesWeight(t *testing.T) {
	s, _ := newTestScheduler(t)
	th := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	beforeWeight := th.Weight

	old, err := s.SetThreadPriority(th.ID, PriorityNormalBase+20)
	if err != nil {
		t.Fatalf("SetThreadPriority: %v", err)
	}
	if old != PriorityNormalBase {
		t.Fatalf("SetThreadPriority returned old priority %d, want %d", old, PriorityNormalBase)
	}
	if th.Weight <= beforeWeight {
		t.Fatalf("weight should increase after raising priority: before=%d after=%d", beforeWeight, th.Weight)
	}
}

func TestSetThreadPriorityNoopWhenUnchanged(t *testing.T) {
	s, _ := newTestScheduler(t)
	th := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	old, err := s.SetThreadPriority(th.ID, PriorityNormalBase)
	if err != nil {
		t.Fatalf("SetThreadPriority: %v", err)
	}
	if old != PriorityNormalBase {
		t.Fatalf("old priority = %d, want %d", old, PriorityNormalBase)
	}
}

func TestSetThreadPriorityUnknownThread(t *testing.T) {
	s, _ := newTestScheduler(t)
	if _, err := s.SetThreadPriority(9999, 50); err == nil {
		t.Fatalf("expected an error for an unknown thread")
	}
}

func TestGetSetLatencyNiceRoundTrip(t *testing.T) {
	s, _ := newTestScheduler(t)
	th := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	if err := s.SetLatencyNice(th.ID, -5, 0, true); err != nil {
		t.Fatalf("SetLatencyNice: %v", err)
	}
	got, err := s.GetLatencyNice(th.ID)
	if err != nil {
		t.Fatalf("GetLatencyNice: %v", err)
	}
	if got != -5 {
		t.Fatalf("GetLatencyNice = %d, want -5", got)
	}
}

func TestSetLatencyNiceRejectsOutOfRange(t *testing.T) {
	s, _ := newTestScheduler(t)
	th := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	if err := s.SetLatencyNice(th.ID, 20, 0, true); err == nil {
		t.Fatalf("expected an error for latency-nice 20 (out of [-20, 19])")
	}
	if err := s.SetLatencyNice(th.ID, -21, 0, true); err == nil {
		t.Fatalf("expected an error for latency-nice -21 (out of [-20, 19])")
	}
}

func TestSetLatencyNiceDeniedAcrossTeamsWithoutPrivilege(t *testing.T) {
	s, _ := newTestScheduler(t)
	th := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	th.mu.Lock()
	th.SameTeamKey = 42
	th.mu.Unlock()

	if err := s.SetLatencyNice(th.ID, 3, 7, false); err == nil {
		t.Fatalf("expected a permission error for a caller in a different team without privilege")
	}
	if err := s.SetLatencyNice(th.ID, 3, 42, false); err != nil {
		t.Fatalf("same-team caller should be permitted: %v", err)
	}
	if err := s.SetLatencyNice(th.ID, 3, 7, true); err != nil {
		t.Fatalf("a privileged caller should bypass the team check: %v", err)
	}
}

func TestEstimateMaxSchedulingLatencyGrowsInPowerSaving(t *testing.T) {
	clk := NewFakeClock(0)
	low, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 1},
	}}}, WithClock(clk), WithMode(LowLatency))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	thLow := low.CreateThread(PriorityNormalBase, AllCPUs(1))
	estLow, err := low.EstimateMaxSchedulingLatency(thLow.ID)
	if err != nil {
		t.Fatalf("EstimateMaxSchedulingLatency: %v", err)
	}

	ps, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 1},
	}}}, WithClock(clk), WithMode(PowerSaving))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	thPS := ps.CreateThread(PriorityNormalBase, AllCPUs(1))
	estPS, err := ps.EstimateMaxSchedulingLatency(thPS.ID)
	if err != nil {
		t.Fatalf("EstimateMaxSchedulingLatency: %v", err)
	}

	if estPS <= estLow {
		t.Fatalf("Power-Saving estimate (%d) should exceed Low-Latency estimate (%d)", estPS, estLow)
	}
}

func TestEstimateMaxSchedulingLatencyUnknownThread(t *testing.T) {
	s, _ := newTestScheduler(t)
	if _, err := s.EstimateMaxSchedulingLatency(9999); err == nil {
		t.Fatalf("expected an error for an unknown thread")
	}
}
