package scheduler

// modeOps is the "operation table" polymorphism spec §4.7/§9 describes:
// "naturally represented as a vtable-bearing handle." LowLatency and
// PowerSaving each implement it as a stateless value; Scheduler dispatches
// to whichever is active via modeFor(s.topo.Mode()).
type modeOps interface {
	switchTo(s *Scheduler)
	setCPUEnabled(s *Scheduler, cpu *cpuEntry, enabled bool)
	hasCacheExpired(s *Scheduler, t *ThreadState, core *coreEntry, now int64) bool
	chooseCore(s *Scheduler, t *ThreadState) *coreEntry
	rebalanceIRQs(s *Scheduler, cpu *cpuEntry, idle bool)
}

func modeFor(m Mode) modeOps {
	if m == PowerSaving {
		return powerSavingOps{}
	}
	return lowLatencyOps{}
}

// chooseCore dispatches to the active mode's choose_core. The dispatcher
// does no filtering itself; each mode implementation starts from
// eligibleCores (cores reachable under t's affinity mask with at least one
// enabled CPU) and ranks those.
func (s *Scheduler) chooseCore(t *ThreadState) *coreEntry {
	return modeFor(s.topo.Mode()).chooseCore(s, t)
}

// pickCPUOnCore selects the least-SMT-loaded CPU on core that admits t,
// tie-broken by queue depth then CPU id (the same tie-break balancer.go's
// Phase 4 commit step uses for its target CPU pick).
func (s *Scheduler) pickCPUOnCore(core *coreEntry, t *ThreadState) *cpuEntry {
	core.mu.RLock()
	cpus := append([]*cpuEntry(nil), core.CPUs...)
	core.mu.RUnlock()

	var best *cpuEntry
	var bestKey float64
	var bestDepth int
	for _, cpu := range cpus {
		if !cpu.Enabled() || !t.permittedOn(cpu.ID) {
			continue
		}
		key := cpu.SMTKey()
		cpu.queueMu.Lock()
		depth := cpu.queue.Count()
		cpu.queueMu.Unlock()
		if best == nil || key < bestKey ||
			(key == bestKey && depth < bestDepth) ||
			(key == bestKey && depth == bestDepth && cpu.ID < best.ID) {
			best, bestKey, bestDepth = cpu, key, depth
		}
	}
	return best
}

// eligibleCores returns cores reachable under t's affinity mask that have
// at least one enabled CPU, the base candidate set every mode's choose_core
// ranks from.
func (s *Scheduler) eligibleCores(t *ThreadState) []*coreEntry {
	var out []*coreEntry
	for _, core := range s.topo.cores {
		core.mu.RLock()
		cpus := core.CPUs
		core.mu.RUnlock()
		ok := false
		for _, cpu := range cpus {
			if cpu.Enabled() && t.permittedOn(cpu.ID) {
				ok = true
				break
			}
		}
		if ok {
			out = append(out, core)
		}
	}
	return out
}

// SetOperationMode switches between LowLatency and PowerSaving (spec §6:
// "set_operation_mode(mode)").
func (s *Scheduler) SetOperationMode(m Mode) error {
	if !m.valid() {
		return newError(InvalidArgument, "mode %d not in {LowLatency, PowerSaving}", m)
	}
	s.topo.setMode(m)
	tn := s.Tunables()
	tn.Mode = m
	s.tunables.store(tn)
	modeFor(m).switchTo(s)
	s.logEvent(Event{Level: LevelInfo, Category: "mode", Message: "switched operation mode", Fields: map[string]any{"mode": m.String()}})
	return nil
}

// SetCPUEnabled enables or disables a CPU (spec §6: "drain queues and
// re-home work when disabling; re-admit when enabling").
func (s *Scheduler) SetCPUEnabled(cpuID int, enabled bool) error {
	cpu := s.topo.cpu(cpuID)
	if cpu == nil {
		return newError(InvalidArgument, "no such CPU %d", cpuID)
	}
	if enabled {
		cpu.state.Store(LifecycleEnabled)
		s.topo.setEnabled(cpuID, true)
	} else {
		// Mark disabled before draining: drainCPU re-enqueues through
		// eligibleCores/pickCPUOnCore, which gate on cpu.Enabled() -- if
		// cpu still reported enabled during its own drain, a
		// single-CPU-per-core topology would hand every popped thread
		// straight back into the queue it was just popped from.
		cpu.state.Store(LifecycleDisabled)
		s.topo.setEnabled(cpuID, false)
		s.drainCPU(cpu)
	}
	modeFor(s.topo.Mode()).setCPUEnabled(s, cpu, enabled)
	return nil
}

// drainCPU moves every queued thread off cpu onto another eligible CPU. The
// caller must have already marked cpu disabled, so no thread is stranded on
// a run queue no reschedule driver will ever service again, and so
// eligibleCores/pickCPUOnCore don't hand threads straight back to cpu.
func (s *Scheduler) drainCPU(cpu *cpuEntry) {
	now := s.clock().NowMicros()
	for {
		cpu.queueMu.Lock()
		t := cpu.queue.PopMinimum()
		cpu.queueMu.Unlock()
		if t == nil {
			break
		}
		t.mu.Lock()
		t.Enqueued = false
		t.mu.Unlock()
		if err := s.EnqueueInRunQueue(t); err != nil {
			s.logEvent(Event{Level: LevelWarn, Category: "cpu", CPU: cpu.ID, ThreadID: t.ID, Err: err, Message: "failed to re-home thread while draining CPU"})
		}
	}
	if cur := cpu.Current(); cur != nil && cur.ID != cpu.idle.ID {
		s.cfg.ipi.Send(cpu.ID, IPIReschedule, true)
	}
	_ = now
}
