package scheduler

import "time"

// powerSavingCacheWindow and powerSavingCacheWorkBound are the "longer
// wall-clock bound and a core-work bound" spec §4.7 calls for.
const (
	powerSavingCacheWindow    = 20 * time.Millisecond
	powerSavingCacheWorkBound = 32
)

// M1-M5 scoring weights for Power-Saving's choose_core (spec §4.7). These
// are tuning constants, not spec-mandated values; kept together so the
// relative weighting is easy to retune in one place.
const (
	scoreTypeMatch       = 40.0
	scoreCapacityFit     = 25.0
	scoreCapacityOverflow = -60.0
	scoreIdleBonus       = 15.0
	scoreLoadBonus       = 10.0
	scoreCacheAffinity   = 20.0
	scoreSTCBonus        = 35.0
)

type powerSavingOps struct{}

func (powerSavingOps) switchTo(s *Scheduler) {}

func (powerSavingOps) setCPUEnabled(s *Scheduler, cpu *cpuEntry, enabled bool) {
	if !enabled {
		if stc := s.topo.smallTaskCore(); stc == cpu.Core {
			s.topo.clearSmallTaskCore(stc)
		}
	} else {
		s.attemptProactiveSTCDesignation()
	}
}

func (powerSavingOps) hasCacheExpired(s *Scheduler, t *ThreadState, core *coreEntry, now int64) bool {
	t.mu.Lock()
	lastMigration := t.LastMigration
	t.mu.Unlock()
	if now-lastMigration > powerSavingCacheWindow.Microseconds() {
		return true
	}
	return core.activityCount() > powerSavingCacheWorkBound
}

// chooseCore implements spec §4.7's five-metric Power-Saving scoring: type
// match (M1), capacity adequacy (M2), idle/low-load bonus (M3), cache
// affinity (M4), and current-STC bonus (M5). An idle "unwakeable" best
// choice is replaced by the best active alternative before falling back to
// waking it, per spec's explicit instruction.
func (powerSavingOps) chooseCore(s *Scheduler, t *ThreadState) *coreEntry {
	cores := s.eligibleCores(t)
	if len(cores) == 0 {
		return nil
	}
	tn := s.Tunables()
	class := classifyTask(t)
	load := estimatedLoad(t, tn.TargetLatency.Microseconds())
	stc := s.topo.smallTaskCore()

	t.mu.Lock()
	prevCPU := t.PreviousCPU
	t.mu.Unlock()

	var bestActive, bestIdle *coreEntry
	var bestActiveScore, bestIdleScore float64
	for _, core := range cores {
		score := powerSavingScore(s, core, class, load, prevCPU, stc, tn)
		if core.isIdle() {
			if bestIdle == nil || score > bestIdleScore {
				bestIdle, bestIdleScore = core, score
			}
			continue
		}
		if bestActive == nil || score > bestActiveScore {
			bestActive, bestActiveScore = core, score
		}
	}
	if bestActive != nil {
		return bestActive
	}
	return bestIdle
}

func powerSavingScore(s *Scheduler, core *coreEntry, class taskClass, load float64, prevCPU int, stc *coreEntry, tn Tunables) float64 {
	var score float64

	// M1: type match.
	switch {
	case class == classPCritical && core.CoreType == Big:
		score += scoreTypeMatch
	case class == classEPreferring && core.CoreType == Little:
		score += scoreTypeMatch
	case class == classPCritical && core.CoreType == Little:
		score -= scoreTypeMatch
	}

	// M2: capacity adequacy.
	capFrac := load * float64(tn.NominalCapacity) / float64(core.PerformanceCapacity)
	if capFrac <= 1 {
		score += scoreCapacityFit * (1 - capFrac)
	} else {
		score += scoreCapacityOverflow
	}

	// M3: idle / low-load bonus.
	if core.isIdle() {
		score += scoreIdleBonus
	} else {
		norm := core.normalizedLoad(tn.NominalCapacity)
		if norm < float64(tn.NominalCapacity)*0.2 {
			score += scoreLoadBonus
		}
	}

	// M4: cache affinity.
	if prevCPU >= 0 {
		if prevCore := s.topo.cpu(prevCPU); prevCore != nil && prevCore.Core == core {
			score += scoreCacheAffinity
		}
	}

	// M5: current-STC bonus, if it still has room for this task.
	if stc != nil && stc == core && stcHasRoomFor(core, load, tn) {
		score += scoreSTCBonus
	}

	return score
}
