package scheduler

// EnqueueInRunQueue transitions t into Ready on a chosen home CPU (spec §6:
// "must be called with interrupts disabled; may signal a remote CPU" — the
// "interrupts disabled" discipline is the caller's responsibility in a real
// kernel; here it is modeled by the caller holding no conflicting lock).
// It picks a home core via the active mode's choose_core policy, computes
// EEVDF parameters, and inserts t into that CPU's run queue, requesting a
// remote reschedule if t's deadline would preempt what is currently running
// there.
func (s *Scheduler) EnqueueInRunQueue(t *ThreadState) error {
	now := s.clock().NowMicros()

	t.mu.Lock()
	if t.Enqueued {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	// The mode's chooseCore takes t.mu itself, so it runs unlocked.
	core := s.chooseCore(t)
	if core == nil {
		return newError(InvalidArgument, "thread %d: no eligible core under affinity mask %x", t.ID, t.CPUMask)
	}
	cpu := s.pickCPUOnCore(core, t)
	invariant(cpu != nil, "core %d selected with no constituent CPU for thread %d", core.ID, t.ID)

	t.mu.Lock()
	if t.Enqueued {
		t.mu.Unlock()
		return nil
	}
	relocated := t.CPU != cpu.ID
	s.updateEEVDFParameters(t, cpu, relocated, now)
	t.CPU = cpu.ID
	t.State = StateReady
	t.Enqueued = true
	t.mu.Unlock()

	cpu.queueMu.Lock()
	cpu.queue.Insert(t)
	cpu.advanceMinVRuntime(cpu.queue.MinVRuntime())
	cur := cpu.Current()
	preempt := cur != nil && cur.ID != cpu.idle.ID && t.eligible(now) && t.VirtualDeadline < cur.VirtualDeadline
	cpu.queueMu.Unlock()

	core.recomputeLoad()
	core.noteActivity()

	if preempt {
		s.cfg.ipi.Send(cpu.ID, IPIReschedule, true)
	}
	return nil
}

// ReschedOutcome reports what a Reschedule call decided, for callers (and
// tests) that want to observe the driver's choice without re-deriving it.
type ReschedOutcome struct {
	CPU         int
	Next        *ThreadState
	WasIdle     bool
	SliceMicros int64
}

// Reschedule runs the §4.4 driver on cpuID: it closes out cur's accounting
// (nil if the CPU was idle), classifies cur's next state, selects the next
// thread to run (falling back to work-stealing, then idle), and performs
// Mechanism A's task-contextual IRQ re-evaluation for the chosen thread.
func (s *Scheduler) Reschedule(cpuID int, cur *ThreadState, nextState State, timeUsedMicros int64, stolenInterruptMicros int64) (ReschedOutcome, error) {
	cpu := s.topo.cpu(cpuID)
	if cpu == nil {
		return ReschedOutcome{}, newError(InvalidArgument, "no such CPU %d", cpuID)
	}
	now := s.clock().NowMicros()
	tn := s.Tunables()

	if cur != nil && cur.ID >= 0 {
		s.closeOutRunningThread(cpu, cur, nextState, timeUsedMicros, stolenInterruptMicros, now, tn)
	}

	cpu.queueMu.Lock()
	next := cpu.queue.chooseNext(now)
	if next == nil {
		cpu.queueMu.Unlock()
		if s.modeAllowsSteal(cpu) {
			stolen, _, err := s.attemptSteal(cpu, now)
			if err != nil {
				s.logEvent(Event{Level: LevelWarn, Category: "steal", CPU: cpuID, Err: err})
			}
			next = stolen
		}
		if next != nil {
			stolen := next
			cpu.queueMu.Lock()
			s.updateEEVDFParameters(stolen, cpu, true, now)
			stolen.mu.Lock()
			stolen.CPU = cpu.ID
			stolen.Enqueued = true
			stolen.mu.Unlock()
			cpu.queue.Insert(stolen)
			next = cpu.queue.chooseNext(now)
			if next != nil {
				cpu.queue.Remove(next)
				cpu.advanceMinVRuntime(cpu.queue.MinVRuntime())
			}
			cpu.queueMu.Unlock()
		}
	} else {
		cpu.queue.Remove(next)
		cpu.advanceMinVRuntime(cpu.queue.MinVRuntime())
		cpu.queueMu.Unlock()
	}

	wasIdle := next == nil
	if next == nil {
		next = cpu.idle
	}

	next.mu.Lock()
	wakeDelay := now - next.EligibleTime
	next.State = StateRunning
	next.CPU = cpu.ID
	next.TimeUsedInQuantum = 0
	next.Enqueued = false
	slice := next.SliceMicros
	if slice <= 0 {
		slice = tn.TargetLatency.Microseconds()
	}
	next.mu.Unlock()

	if !wasIdle {
		s.RecordSchedulingDelay(wakeDelay)
	}

	cpu.current.Store(next)
	cpu.updateLoad(1, 0.3)
	if !wasIdle {
		cpu.Core.noteActivity()
	}
	cpu.Core.recomputeLoad()

	s.taskContextualIRQReevaluation(cpu, next, now, tn)

	return ReschedOutcome{CPU: cpu.ID, Next: next, WasIdle: wasIdle, SliceMicros: slice}, nil
}

// closeOutRunningThread implements spec §4.4 steps 1-4: stop accounting,
// advance vruntime/lag by the actually-used (non-stolen) runtime, and
// classify cur's next state.
func (s *Scheduler) closeOutRunningThread(cpu *cpuEntry, cur *ThreadState, nextState State, timeUsedMicros, stolenInterruptMicros, now int64, tn Tunables) {
	actualRuntime := timeUsedMicros - stolenInterruptMicros
	if actualRuntime < 0 {
		actualRuntime = 0
	}

	cur.mu.Lock()
	if cur.Priority != PriorityIdle {
		capacity := tn.NominalCapacity
		if cpu.Core != nil && cpu.Core.PerformanceCapacity > 0 {
			capacity = cpu.Core.PerformanceCapacity
		}
		weight := cur.Weight
		if weight <= 0 {
			weight = 1
		}
		if nextState == StateWaiting {
			cur.AvgRunBurstEWMA = cur.AvgRunBurstEWMA*0.75 + float64(cur.TimeUsedInQuantum+actualRuntime)*0.25
			cur.VoluntarySleepTransition++
			cur.WentSleep = now
			cur.WentSleepActive = cur.TimeUsedInQuantum + actualRuntime
		}
		weightedRuntime := actualRuntime * capacity * tn.WeightScale / (tn.NominalCapacity * weight)
		cur.VirtualRuntime += weightedRuntime
		cur.Lag -= weightedRuntime
		cur.TimeUsedInQuantum += actualRuntime
	}
	cur.State = nextState
	cur.mu.Unlock()

	switch nextState {
	case StateReady:
		if cur.permittedOn(cpu.ID) {
			cpu.queueMu.Lock()
			s.updateEEVDFParameters(cur, cpu, false, now)
			cpu.queue.Insert(cur)
			cpu.advanceMinVRuntime(cpu.queue.MinVRuntime())
			cpu.queueMu.Unlock()
			cur.mu.Lock()
			cur.Enqueued = true
			cur.mu.Unlock()
		}
	case StateWaiting, StateDying:
		cur.mu.Lock()
		cur.Enqueued = false
		cur.mu.Unlock()
	}
	cpu.current.Store(nil)
}
