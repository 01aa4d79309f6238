package scheduler

import "time"

// benefit-score weights for Phase 3 of spec §4.6. Tuning constants, not
// spec-mandated values.
const (
	kLag              = 1.0
	kEligibility      = 1.0
	typeBonusLLGood   = 800.0 // Low-Latency: move P-critical Little -> Big.
	typeBonusLLBad    = -800.0
	typeBonusPSGood   = 600.0 // Power-Saving: move E-preferring Big -> Little.
	wakeAffinityBonus = 400.0
	idleTargetBonus   = 300.0
	queuePenaltyFactor = 50.0
	ioBoundPenaltyDivisor = 2.0

	pCriticalSuppressionFactor = 1.0 // multiples of target latency
)

// runLoadBalanceCycle implements spec §4.6's four phases once. It returns
// whether a migration was committed, used by the caller to compute the
// next dynamic interval (shrink on success, grow on failure).
func (s *Scheduler) runLoadBalanceCycle() bool {
	tn := s.Tunables()
	now := s.clock().NowMicros()

	source, target := s.selectBalancePair(tn)
	if source == nil || target == nil {
		return false
	}
	source, target = s.refineForMode(source, target, tn)
	if source == target {
		return false
	}

	if !s.imbalanceGate(source, target, tn) {
		return false
	}

	sourceCPU := s.mostLoadedCPUOnCore(source)
	if sourceCPU == nil {
		return false
	}

	cand, score := s.selectMigrationCandidate(sourceCPU, target, now, tn)
	if cand == nil {
		return false
	}
	if classifyTask(cand) == classPCritical && source.CoreType == Big && target.CoreType != Big {
		if score < float64(tn.TargetLatency.Microseconds())*pCriticalSuppressionFactor {
			sourceCPU.queueMu.Lock()
			sourceCPU.queue.Insert(cand)
			sourceCPU.queueMu.Unlock()
			return false
		}
	}

	s.commitMigration(sourceCPU, cand, target, now, tn)
	return true
}

// nextLoadBalanceInterval shrinks the dynamic timer on a successful
// migration and grows it on a failed cycle, clamped to
// [LoadBalanceIntervalMin, LoadBalanceIntervalMax].
func (s *Scheduler) nextLoadBalanceInterval(migrated bool) time.Duration {
	tn := s.Tunables()
	cur := s.topo.lbIntervalMicros.Load()
	if cur == 0 {
		cur = tn.LoadBalanceIntervalMin.Microseconds()
	}
	if migrated {
		cur = cur / 2
	} else {
		cur = cur * 3 / 2
	}
	if min := tn.LoadBalanceIntervalMin.Microseconds(); cur < min {
		cur = min
	}
	if max := tn.LoadBalanceIntervalMax.Microseconds(); cur > max {
		cur = max
	}
	s.topo.lbIntervalMicros.Store(cur)
	return time.Duration(cur) * time.Microsecond
}

func (s *Scheduler) selectBalancePair(tn Tunables) (source, target *coreEntry) {
	hasCandidates := func(c *coreEntry) bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		for _, cpu := range c.CPUs {
			if cpu.Enabled() {
				return true
			}
		}
		return false
	}
	source = s.topo.loadShards.mostLoaded(tn.NominalCapacity, hasCandidates)
	target = s.topo.loadShards.leastLoaded(tn.NominalCapacity, hasCandidates)
	if source != nil && source == target {
		for _, c := range s.topo.cores {
			if c != source && hasCandidates(c) {
				target = c
				break
			}
		}
	}
	return source, target
}

func (s *Scheduler) refineForMode(source, target *coreEntry, tn Tunables) (*coreEntry, *coreEntry) {
	if s.topo.Mode() == LowLatency {
		if source.CoreType == Little && target.CoreType == Little {
			if alt := s.topo.loadShards.leastLoaded(tn.NominalCapacity, func(c *coreEntry) bool {
				return c.CoreType != Little
			}); alt != nil {
				target = alt
			}
		}
		return source, target
	}

	// Power-Saving: redirect toward the STC if it has room.
	if stc := s.topo.smallTaskCore(); stc != nil && stc != source && s.stcHasRoom(stc) {
		return source, stc
	}
	if target.CoreType != Little {
		if alt := s.topo.loadShards.leastLoaded(tn.NominalCapacity, func(c *coreEntry) bool {
			return c.CoreType == Little && c != source
		}); alt != nil {
			target = alt
		}
	}
	return source, target
}

func (s *Scheduler) imbalanceGate(source, target *coreEntry, tn Tunables) bool {
	sourceLoad := source.normalizedLoad(tn.NominalCapacity)
	targetLoad := target.normalizedLoad(tn.NominalCapacity)

	threshold := tn.LoadDifferenceBase
	switch {
	case source.CoreType == Little && (target.CoreType == Big || target.CoreType == UniformPerformance):
		threshold *= 0.75
	case source.CoreType == Big && target.CoreType == Little:
		threshold *= 1.25
	}
	if threshold < tn.LoadDifferenceBase*0.5 {
		threshold = tn.LoadDifferenceBase * 0.5
	}
	if threshold > tn.LoadDifferenceBase*1.5 {
		threshold = tn.LoadDifferenceBase * 1.5
	}

	return sourceLoad > targetLoad+threshold
}

func (s *Scheduler) mostLoadedCPUOnCore(core *coreEntry) *cpuEntry {
	core.mu.RLock()
	cpus := append([]*cpuEntry(nil), core.CPUs...)
	core.mu.RUnlock()

	var best *cpuEntry
	var bestLoad float64
	for _, cpu := range cpus {
		if !cpu.Enabled() {
			continue
		}
		l := cpu.Load()
		if best == nil || l > bestLoad {
			best, bestLoad = cpu, l
		}
	}
	return best
}

func (s *Scheduler) selectMigrationCandidate(sourceCPU *cpuEntry, target *coreEntry, now int64, tn Tunables) (*ThreadState, float64) {
	sourceCPU.queueMu.Lock()
	candidates := sourceCPU.queue.PeekK(tn.CandidateScanDepth)
	for _, c := range candidates {
		sourceCPU.queue.Remove(c)
	}
	sourceCPU.queueMu.Unlock()

	var best *ThreadState
	var bestScore float64
	var rest []*ThreadState

	for _, cand := range candidates {
		cand.mu.Lock()
		eligible := cand.Priority != PriorityIdle &&
			cand.PinnedToCPU < 0 &&
			now-cand.LastMigration >= tn.MinTimeBetweenMigrate.Microseconds() &&
			cand.permittedOn(targetRepresentativeCPU(target))
		owed := cand.unweightedLagWork(tn.WeightScale)
		cand.mu.Unlock()

		if !eligible || owed <= tn.MinWorkForMigration.Microseconds() {
			rest = append(rest, cand)
			continue
		}

		score := s.benefitScore(cand, sourceCPU, target, now, tn)
		if best == nil || score > bestScore {
			if best != nil {
				rest = append(rest, best)
			}
			best, bestScore = cand, score
		} else {
			rest = append(rest, cand)
		}
	}

	if len(rest) > 0 {
		sourceCPU.queueMu.Lock()
		for _, c := range rest {
			sourceCPU.queue.Insert(c)
		}
		sourceCPU.queueMu.Unlock()
	}
	return best, bestScore
}

func targetRepresentativeCPU(core *coreEntry) int {
	core.mu.RLock()
	defer core.mu.RUnlock()
	if len(core.CPUs) == 0 {
		return -1
	}
	return core.CPUs[0].ID
}

func (s *Scheduler) benefitScore(cand *ThreadState, sourceCPU *cpuEntry, target *coreEntry, now int64, tn Tunables) float64 {
	cand.mu.Lock()
	lagWall := cand.unweightedLagWork(tn.WeightScale)
	eligOnSource := cand.EligibleTime
	prevCPU := cand.PreviousCPU
	ioBound := cand.VoluntarySleepTransition > 0 && cand.AvgRunBurstEWMA < float64(tn.MinGranularity.Microseconds())*2
	cand.mu.Unlock()
	class := classifyTask(cand)

	score := kLag * float64(lagWall)
	estimatedEligOnTarget := now
	score += kEligibility * float64(eligOnSource-estimatedEligOnTarget)

	switch s.topo.Mode() {
	case LowLatency:
		if class == classPCritical {
			if sourceCPU.Core.CoreType == Little && target.CoreType != Little {
				score += typeBonusLLGood
			}
			if sourceCPU.Core.CoreType != Little && target.CoreType == Little {
				score += typeBonusLLBad
			}
		}
	case PowerSaving:
		if class == classEPreferring && sourceCPU.Core.CoreType == Big && target.CoreType == Little {
			score += typeBonusPSGood
		}
	}

	targetRep := targetRepresentativeCPU(target)
	if prevCPU == targetRep {
		if cpu := s.topo.cpu(targetRep); cpu != nil && cpu.Current() == nil {
			score += wakeAffinityBonus
		}
	}
	if cpu := s.topo.cpu(targetRep); cpu != nil && cpu.Current() == nil {
		score += idleTargetBonus
	}

	sourceCPU.queueMu.Lock()
	depth := sourceCPU.queue.Count()
	sourceCPU.queueMu.Unlock()
	score -= float64(depth) * queuePenaltyFactor

	if ioBound && prevCPU != targetRep {
		score /= ioBoundPenaltyDivisor
	}
	return score
}

func (s *Scheduler) commitMigration(sourceCPU *cpuEntry, cand *ThreadState, target *coreEntry, now int64, tn Tunables) {
	targetCPU := s.pickCPUOnCore(target, cand)
	if targetCPU == nil {
		sourceCPU.queueMu.Lock()
		sourceCPU.queue.Insert(cand)
		sourceCPU.queueMu.Unlock()
		return
	}

	cand.mu.Lock()
	cand.Enqueued = false
	cand.LastMigration = now
	cand.PreviousCPU = cand.CPU
	cand.mu.Unlock()
	sourceCPU.Core.recomputeLoad()

	targetCPU.queueMu.Lock()
	s.updateEEVDFParameters(cand, targetCPU, true, now)
	cand.CPU = targetCPU.ID
	cand.Enqueued = true
	targetCPU.queue.Insert(cand)
	targetCPU.advanceMinVRuntime(targetCPU.queue.MinVRuntime())
	cur := targetCPU.Current()
	preempt := cur != nil && cur.ID != targetCPU.idle.ID && cand.eligible(now) && cand.VirtualDeadline < cur.VirtualDeadline
	targetCPU.queueMu.Unlock()
	target.recomputeLoad()

	s.irqFollowTask(cand, target)

	if preempt {
		s.cfg.ipi.Send(targetCPU.ID, IPIReschedule, true)
	}

	s.logEvent(Event{Level: LevelDebug, Category: "balance", ThreadID: cand.ID, CPU: targetCPU.ID, Message: "migrated by load balancer"})
}
