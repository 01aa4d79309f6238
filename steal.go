package scheduler

// stealStarvationMicros is the "~0.5 ms of nominal work" floor spec §4.5
// requires a victim's lag to exceed before it is worth stealing.
const stealStarvationMicros = 500

// attemptSteal implements spec §4.5: an idle thief CPU probes SMT siblings,
// then same-package cores, then a pseudo-random scan of other packages,
// looking for a thread it is allowed to take. It returns the stolen
// thread (already removed from its old queue, unassigned from its old
// core) and the victim CPU it came from, or (nil, nil, nil) if nothing was
// stolen. The caller (Reschedule) is responsible for recomputing the
// thread's EEVDF parameters against the thief and inserting it.
func (s *Scheduler) attemptSteal(thief *cpuEntry, now int64) (*ThreadState, *cpuEntry, error) {
	tn := s.Tunables()
	if !s.topo.thiefCooldown.Ready(thief.ID, now) {
		return nil, nil, nil
	}

	for _, victim := range s.stealProbeOrder(thief) {
		if victim.ID == thief.ID || !victim.Enabled() {
			continue
		}
		if !s.topo.victimCooldown.Ready(victim.ID, now) {
			continue
		}
		t := s.tryStealFrom(thief, victim, now, tn)
		if t != nil {
			s.topo.thiefCooldown.Arm(thief.ID, now, tn.StealSuccessCooldown.Microseconds())
			s.topo.victimCooldown.Arm(victim.ID, now, tn.VictimCooldown.Microseconds())
			return t, victim, nil
		}
	}
	s.topo.thiefCooldown.Arm(thief.ID, now, tn.StealFailureBackoff.Microseconds())
	return nil, nil, nil
}

// stealProbeOrder builds the SMT-sibling -> same-package -> cross-package
// candidate list spec §4.5 mandates. The cross-package segment rotates its
// starting point via a monotonic counter so repeated scans do not always
// hammer the same remote package first, approximating "a randomized scan"
// deterministically.
func (s *Scheduler) stealProbeOrder(thief *cpuEntry) []*cpuEntry {
	var out []*cpuEntry
	seen := make(map[int]bool)

	add := func(cpu *cpuEntry) {
		if cpu.ID == thief.ID || seen[cpu.ID] {
			return
		}
		seen[cpu.ID] = true
		out = append(out, cpu)
	}

	if thief.Core != nil {
		for _, sib := range thief.Core.CPUs {
			add(sib)
		}
	}

	var pkg *pkgEntry
	if thief.Core != nil {
		pkg = thief.Core.Pkg
	}
	if pkg != nil {
		pkg.mu.RLock()
		cores := append([]*coreEntry(nil), pkg.Cores...)
		pkg.mu.RUnlock()
		for _, core := range cores {
			if core == thief.Core {
				continue
			}
			core.mu.RLock()
			cpus := append([]*cpuEntry(nil), core.CPUs...)
			core.mu.RUnlock()
			for _, cpu := range cpus {
				add(cpu)
			}
		}
	}

	n := len(s.topo.pkgs)
	if n > 1 {
		start := int(s.topo.stealScanCounter.Add(1)) % n
		for i := 0; i < n; i++ {
			p := s.topo.pkgs[(start+i)%n]
			if p == pkg {
				continue
			}
			p.mu.RLock()
			cores := append([]*coreEntry(nil), p.Cores...)
			p.mu.RUnlock()
			for _, core := range cores {
				core.mu.RLock()
				cpus := append([]*cpuEntry(nil), core.CPUs...)
				core.mu.RUnlock()
				for _, cpu := range cpus {
					add(cpu)
				}
			}
		}
	}
	return out
}

func (s *Scheduler) tryStealFrom(thief, victim *cpuEntry, now int64, tn Tunables) *ThreadState {
	victim.queueMu.Lock()
	defer victim.queueMu.Unlock()

	if victim.queue.IsEmpty() {
		return nil
	}
	cand := victim.queue.PeekMinimum()

	cand.mu.Lock()
	ok := cand.Priority != PriorityIdle &&
		(cand.PinnedToCPU < 0 || cand.PinnedToCPU == thief.ID) &&
		cand.CPUMask.Has(thief.ID)
	if ok {
		owed := cand.unweightedLagWork(tn.WeightScale)
		ok = owed > stealStarvationMicros
	}
	if ok {
		ok = s.bigLittleStealAllowed(thief, victim, cand, tn)
	}
	if !ok {
		cand.mu.Unlock()
		return nil
	}
	cand.Enqueued = false
	cand.LastMigration = now
	cand.PreviousCPU = cand.CPU
	cand.mu.Unlock()

	victim.queue.PopMinimum()
	victim.advanceMinVRuntime(victim.queue.MinVRuntime())
	if victim.Core != nil {
		victim.Core.recomputeLoad()
	}
	return cand
}

// bigLittleStealAllowed implements spec §4.5's big.LITTLE work-stealing
// rule using the canonical classifyTask.
func (s *Scheduler) bigLittleStealAllowed(thief, victim *cpuEntry, cand *ThreadState, tn Tunables) bool {
	class := classifyTask(cand)
	thiefCore, victimCore := thief.Core, victim.Core
	if thiefCore == nil || victimCore == nil {
		return true
	}

	thiefIsLittle := thiefCore.CoreType == Little

	if !thiefIsLittle { // Big or Uniform thief.
		if class == classPCritical {
			return true
		}
		veryHigh := float64(tn.NominalCapacity) * 0.85
		return victimCore.normalizedLoad(tn.NominalCapacity) > veryHigh
	}

	// Little thief.
	if class != classPCritical {
		return true
	}
	if victimCore.CoreType == Little && victimCore.normalizedLoad(tn.NominalCapacity) > float64(tn.NominalCapacity)*0.85 {
		return true // rescue an overloaded Little.
	}
	load := estimatedLoad(cand, tn.TargetLatency.Microseconds())
	if load < 0.2 && s.allBigCoresSaturated(tn) {
		return true // all-Big-saturated escape valve, small task only.
	}
	return false
}

// allBigCoresSaturated reports whether every Big/Uniform core is at or
// above its very-high-load threshold, the condition under which a Little
// thief may rescue a small P-critical task anyway.
func (s *Scheduler) allBigCoresSaturated(tn Tunables) bool {
	veryHigh := float64(tn.NominalCapacity) * 0.85
	found := false
	saturated := true
	s.topo.loadShards.forEach(func(c *coreEntry) {
		if c.CoreType == Little {
			return
		}
		found = true
		if c.normalizedLoad(tn.NominalCapacity) <= veryHigh {
			saturated = false
		}
	})
	return found && saturated
}
