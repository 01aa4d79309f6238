package scheduler

import "testing"

func TestDesignateConsolidationCorePrefersLittleAndIdle(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: Big, PerformanceCapacity: 1536, EnergyEfficiency: 0.6, SMTWidth: 1},
		{CoreType: Little, PerformanceCapacity: 512, EnergyEfficiency: 1.4, SMTWidth: 1},
	}}}, WithMode(PowerSaving))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.designateConsolidationCore()
	stc := s.getConsolidationTargetCore()
	if stc == nil {
		t.Fatalf("expected a Small-Task-Core to be designated")
	}
	if stc.CoreType != Little {
		t.Fatalf("STC should be the Little core, got %v", stc.CoreType)
	}
}

func TestDesignateConsolidationCoreNeverPicksBig(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: Big, PerformanceCapacity: 1536, SMTWidth: 1},
		{CoreType: Big, PerformanceCapacity: 1536, SMTWidth: 1},
	}}}, WithMode(PowerSaving))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.designateConsolidationCore()
	if s.getConsolidationTargetCore() != nil {
		t.Fatalf("no Little/Uniform core exists, STC should remain unset")
	}
}

func TestModeAllowsStealLowLatencyAlwaysTrue(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 1},
	}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !s.modeAllowsSteal(s.topo.cpu(0)) {
		t.Fatalf("Low-Latency mode should always allow stealing")
	}
}

func TestModeAllowsStealPowerSavingParksNonSTCWithRoom(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: Little, PerformanceCapacity: 512, SMTWidth: 1},
		{CoreType: Big, PerformanceCapacity: 1536, SMTWidth: 1},
	}}}, WithMode(PowerSaving))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stc := s.topo.cores[0]
	s.topo.setSmallTaskCore(stc)

	otherCPU := s.topo.cpu(1)
	if s.modeAllowsSteal(otherCPU) {
		t.Fatalf("a non-STC CPU should be parked (steal disallowed) while the STC still has room")
	}
}

func TestStcHasRoomRespectsCapacityFraction(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: Little, PerformanceCapacity: 512, SMTWidth: 1},
	}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	core := s.topo.cores[0]
	if !s.stcHasRoom(core) {
		t.Fatalf("an unloaded core should have room")
	}
	core.mu.Lock()
	core.load = float64(s.Tunables().NominalCapacity) // at nominal, over the 0.75 fraction
	core.mu.Unlock()
	if s.stcHasRoom(core) {
		t.Fatalf("a fully-loaded core should not report room")
	}
}
