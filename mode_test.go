package scheduler

import "testing"

func TestModeForDispatch(t *testing.T) {
	if _, ok := modeFor(LowLatency).(lowLatencyOps); !ok {
		t.Fatalf("modeFor(LowLatency) should be lowLatencyOps")
	}
	if _, ok := modeFor(PowerSaving).(powerSavingOps); !ok {
		t.Fatalf("modeFor(PowerSaving) should be powerSavingOps")
	}
}

func TestSetOperationModeRejectsInvalid(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.SetOperationMode(Mode(99)); err == nil {
		t.Fatalf("expected an error for an invalid mode")
	}
}

func TestSetOperationModeSwitches(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.SetOperationMode(PowerSaving); err != nil {
		t.Fatalf("SetOperationMode(PowerSaving): %v", err)
	}
	if s.topo.Mode() != PowerSaving {
		t.Fatalf("mode = %v, want PowerSaving", s.topo.Mode())
	}
}

func TestSetCPUEnabledDrainsQueue(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 2},
	}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	th := s.CreateThread(PriorityNormalBase, AllCPUs(2))
	if err := s.EnqueueInRunQueue(th); err != nil {
		t.Fatalf("EnqueueInRunQueue: %v", err)
	}
	cpu0 := s.topo.cpu(0)

	if err := s.SetCPUEnabled(0, false); err != nil {
		t.Fatalf("SetCPUEnabled(0, false): %v", err)
	}
	if s.topo.isEnabled(0) {
		t.Fatalf("CPU 0 should be disabled")
	}
	cpu0.queueMu.Lock()
	remaining := cpu0.queue.Count()
	cpu0.queueMu.Unlock()
	if remaining != 0 {
		t.Fatalf("disabling CPU 0 should have drained its queue, got %d remaining", remaining)
	}
}

func TestPickCPUOnCorePrefersLessLoaded(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 2},
	}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	core := s.topo.cores[0]
	core.CPUs[0].updateLoad(10, 1.0)
	core.CPUs[0].recomputeSMTKey(0)
	core.CPUs[1].recomputeSMTKey(0)

	th := NewThreadState(1, PriorityNormalBase)
	th.CPUMask = AllCPUs(2)
	picked := s.pickCPUOnCore(core, th)
	if picked == nil {
		t.Fatalf("pickCPUOnCore returned nil")
	}
	if picked.ID != core.CPUs[1].ID {
		t.Fatalf("pickCPUOnCore picked CPU %d, want the less-loaded CPU %d", picked.ID, core.CPUs[1].ID)
	}
}
