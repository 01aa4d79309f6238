package scheduler

import "testing"

func TestCreateThreadAssignsSequentialIDs(t *testing.T) {
	s, _ := newTestScheduler(t)
	a := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	b := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	if a.ID == b.ID {
		t.Fatalf("two created threads share an ID: %d", a.ID)
	}
	if a.State != StateWaiting {
		t.Fatalf("a freshly created thread should start StateWaiting, got %v", a.State)
	}
	if a.CPU != -1 {
		t.Fatalf("a freshly created thread should be unhomed, CPU = %d", a.CPU)
	}
}

func TestDestroyThreadRemovesState(t *testing.T) {
	s, _ := newTestScheduler(t)
	th := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	if err := s.DestroyThread(th.ID); err != nil {
		t.Fatalf("DestroyThread: %v", err)
	}
	if _, err := s.thread(th.ID); err == nil {
		t.Fatalf("destroyed thread should no longer be found")
	}
}

func TestDestroyThreadUnknownID(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.DestroyThread(9999); err == nil {
		t.Fatalf("expected an error destroying an unknown thread")
	}
}

func TestDestroyThreadClearsIRQOwnership(t *testing.T) {
	s, _ := newTestScheduler(t)
	th := s.CreateThread(PriorityNormalBase, AllCPUs(1))
	if err := s.SetIRQTaskColocation(5, th.ID, 0); err != nil {
		t.Fatalf("SetIRQTaskColocation: %v", err)
	}
	if err := s.DestroyThread(th.ID); err != nil {
		t.Fatalf("DestroyThread: %v", err)
	}
	if _, ok := s.irqOwner(5); ok {
		t.Fatalf("IRQ 5 should have no owner after its thread was destroyed")
	}
}

func TestTunablesReturnsConfiguredMode(t *testing.T) {
	s, err := New([]TopologyPackage{{Cores: []TopologyCore{
		{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 1},
	}}}, WithMode(PowerSaving))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Tunables().Mode != PowerSaving {
		t.Fatalf("Tunables().Mode = %v, want PowerSaving", s.Tunables().Mode)
	}
}

func TestNewRejectsOversizedTopology(t *testing.T) {
	cores := make([]TopologyCore, 65)
	for i := range cores {
		cores[i] = TopologyCore{CoreType: UniformPerformance, PerformanceCapacity: 1024, SMTWidth: 1}
	}
	_, err := New([]TopologyPackage{{Cores: cores}})
	if err == nil {
		t.Fatalf("expected an error for a topology with more than 64 CPUs")
	}
}
