package scheduler

import "time"

// lowLatencyCacheActivityThreshold bounds the core's cumulative activity
// count (coreEntry.activityCount, not reset per thread) above which
// cache-affinity is considered cold, on top of the wall-clock bound (spec
// §4.7: "wall-clock + a core-activity threshold").
const lowLatencyCacheActivityThreshold = 4

// lowLatencyCacheWindow is the wall-clock half of the cache-expiry bound.
const lowLatencyCacheWindow = 2 * time.Millisecond

// lowLatencyOps implements spec §4.7's Low-Latency mode: "favors cache
// affinity and spreads work across cores ... prefers Big/Uniform for
// P-critical tasks."
type lowLatencyOps struct{}

func (lowLatencyOps) switchTo(s *Scheduler) {
	s.topo.clearSmallTaskCore(s.topo.smallTaskCore())
}

func (lowLatencyOps) setCPUEnabled(s *Scheduler, cpu *cpuEntry, enabled bool) {
	if !enabled {
		if stc := s.topo.smallTaskCore(); stc == cpu.Core {
			s.topo.clearSmallTaskCore(stc)
		}
	}
}

func (lowLatencyOps) hasCacheExpired(s *Scheduler, t *ThreadState, core *coreEntry, now int64) bool {
	t.mu.Lock()
	lastMigration := t.LastMigration
	t.mu.Unlock()
	if now-lastMigration > lowLatencyCacheWindow.Microseconds() {
		return true
	}
	return core.activityCount() > lowLatencyCacheActivityThreshold
}

func (lowLatencyOps) chooseCore(s *Scheduler, t *ThreadState) *coreEntry {
	cores := s.eligibleCores(t)
	if len(cores) == 0 {
		return nil
	}

	t.mu.Lock()
	prevCPU := t.PreviousCPU
	t.mu.Unlock()
	if prevCPU >= 0 {
		if prevCore := s.topo.cpu(prevCPU); prevCore != nil && prevCore.Core != nil {
			core := prevCore.Core
			var ll lowLatencyOps
			if contains(cores, core) && !ll.hasCacheExpired(s, t, core, s.clock().NowMicros()) {
				return core
			}
		}
	}

	pCritical := classifyTask(t) == classPCritical
	var best *coreEntry
	var bestLoad float64
	for _, core := range cores {
		if pCritical && core.CoreType == Little && hasNonLittle(cores) {
			continue
		}
		l := core.normalizedLoad(s.Tunables().NominalCapacity)
		if best == nil || l < bestLoad {
			best, bestLoad = core, l
		}
	}
	if best == nil {
		best = cores[0]
	}
	return best
}

func (lowLatencyOps) rebalanceIRQs(s *Scheduler, cpu *cpuEntry, idle bool) {
	if !idle {
		return
	}
	s.migrateIRQsOffIdleCPU(cpu)
}

func contains(cores []*coreEntry, c *coreEntry) bool {
	for _, x := range cores {
		if x == c {
			return true
		}
	}
	return false
}

func hasNonLittle(cores []*coreEntry) bool {
	for _, c := range cores {
		if c.CoreType != Little {
			return true
		}
	}
	return false
}
