package scheduler

import "time"

// RunLoadBalanceCycle implements spec §4.6's periodic load-balance event.
// The embedding kernel (or cmd/schedctl's simulation harness) is
// responsible for driving it from a per-CPU or global timer armed for
// NextLoadBalanceInterval; the core package does not self-schedule.
func (s *Scheduler) RunLoadBalanceCycle() bool { return s.runLoadBalanceCycle() }

// NextLoadBalanceInterval returns how long to wait before the next
// RunLoadBalanceCycle call, shrinking after a successful migration and
// growing after a failed cycle (spec §4.6's dynamic interval).
func (s *Scheduler) NextLoadBalanceInterval(migrated bool) time.Duration {
	return s.nextLoadBalanceInterval(migrated)
}

// RunIRQBalanceCycle implements spec §4.8's periodic
// scheduler_irq_balance_event, driven the same way as RunLoadBalanceCycle.
func (s *Scheduler) RunIRQBalanceCycle() { s.runIRQBalanceCycle() }

// SetThreadPriority implements spec §6's set_thread_priority(thread, prio) ->
// old_prio: it updates the thread's weight and, if the thread is currently
// queued, recomputes its EEVDF parameters and re-keys it in its CPU's run
// queue (spec testable property 12).
func (s *Scheduler) SetThreadPriority(tid int64, prio int) (int, error) {
	t, err := s.thread(tid)
	if err != nil {
		return 0, err
	}
	now := s.clock().NowMicros()

	t.mu.Lock()
	old := t.Priority
	if old == prio {
		t.mu.Unlock()
		return old, nil
	}
	t.Priority = prio
	t.recomputeWeight()
	cpuID := t.CPU
	enqueued := t.Enqueued
	var ctxCPU *cpuEntry
	if cpuID >= 0 {
		ctxCPU = s.topo.cpu(cpuID)
	}
	s.updateEEVDFParameters(t, ctxCPU, false, now)
	t.mu.Unlock()

	if enqueued && ctxCPU != nil {
		ctxCPU.queueMu.Lock()
		ctxCPU.queue.Update(t)
		ctxCPU.advanceMinVRuntime(ctxCPU.queue.MinVRuntime())
		cur := ctxCPU.Current()
		preempt := cur != nil && cur.ID != ctxCPU.idle.ID && t.eligible(now) && t.VirtualDeadline < cur.VirtualDeadline
		ctxCPU.queueMu.Unlock()
		if preempt {
			s.cfg.ipi.Send(ctxCPU.ID, IPIReschedule, true)
		}
	}

	s.logEvent(Event{Level: LevelDebug, Category: "priority", ThreadID: tid, Message: "priority changed", Fields: map[string]any{"old": old, "new": prio}})
	return old, nil
}

// GetLatencyNice returns a thread's current latency-nice value (spec §6:
// "get_latency_nice(tid)").
func (s *Scheduler) GetLatencyNice(tid int64) (int, error) {
	t, err := s.thread(tid)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.LatencyNice, nil
}

// SetLatencyNice implements spec §6's set_latency_nice(tid, value): range
// validated to [-20, 19], permission-checked against callerTeamKey unless
// privileged, then applied and the thread's EEVDF parameters recomputed
// (its slice duration depends on latency-nice directly, per eevdf.go's
// latencyNiceFactor).
func (s *Scheduler) SetLatencyNice(tid int64, value int, callerTeamKey int, privileged bool) error {
	if value < -20 || value > 19 {
		return newError(InvalidArgument, "latency-nice %d out of range [-20, 19]", value)
	}
	t, err := s.thread(tid)
	if err != nil {
		return err
	}
	now := s.clock().NowMicros()

	t.mu.Lock()
	if !privileged && t.SameTeamKey != callerTeamKey {
		t.mu.Unlock()
		return newError(NotPermitted, "thread %d is not in caller's team and caller is not privileged", tid)
	}
	t.LatencyNice = value
	cpuID := t.CPU
	enqueued := t.Enqueued
	var ctxCPU *cpuEntry
	if cpuID >= 0 {
		ctxCPU = s.topo.cpu(cpuID)
	}
	s.updateEEVDFParameters(t, ctxCPU, false, now)
	t.mu.Unlock()

	if enqueued && ctxCPU != nil {
		ctxCPU.queueMu.Lock()
		ctxCPU.queue.Update(t)
		ctxCPU.advanceMinVRuntime(ctxCPU.queue.MinVRuntime())
		cur := ctxCPU.Current()
		preempt := cur != nil && cur.ID != ctxCPU.idle.ID && t.eligible(now) && t.VirtualDeadline < cur.VirtualDeadline
		ctxCPU.queueMu.Unlock()
		if preempt {
			s.cfg.ipi.Send(ctxCPU.ID, IPIReschedule, true)
		}
	}
	return nil
}

// estimateMaxSchedulingLatencyCapMultiplierPowerSaving scales the
// mode-dependent cap term (Tunables.MaxSchedDelayCap) that
// EstimateMaxSchedulingLatency adds on top of the thread's current eligible
// delay and its next slice: in Power-Saving mode the cap is doubled, so that
// mode tolerates a longer tail than Low-Latency.
const estimateMaxSchedulingLatencyCapMultiplierPowerSaving = 2

// EstimateMaxSchedulingLatency implements spec §6's
// estimate_max_scheduling_latency(thread): an upper-bound estimate built
// from the thread's current eligible delay, its next slice, and a
// mode-dependent cap.
func (s *Scheduler) EstimateMaxSchedulingLatency(tid int64) (int64, error) {
	t, err := s.thread(tid)
	if err != nil {
		return 0, err
	}
	now := s.clock().NowMicros()
	tn := s.Tunables()

	t.mu.Lock()
	delay := t.EligibleTime - now
	slice := t.SliceMicros
	t.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	if slice <= 0 {
		slice = tn.TargetLatency.Microseconds()
	}

	cap := tn.MaxSchedDelayCap.Microseconds()
	if s.topo.Mode() == PowerSaving {
		cap *= estimateMaxSchedulingLatencyCapMultiplierPowerSaving
	}
	return delay + slice + cap, nil
}

// LatencySnapshot reports observed scheduling-delay statistics across the
// whole scheduler (spec §6: "Tunables ... operator visible through debug
// commands or equivalent"), fed by RecordSchedulingDelay.
func (s *Scheduler) LatencySnapshot() LoadSnapshot { return s.latency.snapshot() }

// RecordSchedulingDelay feeds the wake-to-run delay observed for a thread
// transitioning into StateRunning into the P² estimators backing
// LatencySnapshot and, indirectly, operator visibility into the same
// eligible-delay term EstimateMaxSchedulingLatency derives analytically.
// Reschedule calls this for every non-idle thread it dispatches.
func (s *Scheduler) RecordSchedulingDelay(delayMicros int64) {
	if delayMicros < 0 {
		delayMicros = 0
	}
	s.latency.observe(float64(delayMicros))
}
