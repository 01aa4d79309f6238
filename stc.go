package scheduler

// stcCapacityFraction is the fraction of nominal capacity below which the
// Small-Task-Core is considered to "still have room" for another task
// (spec §4.7 M5: "large bonus for the current STC if it can still absorb
// the task").
const stcCapacityFraction = 0.75

// stcBaseHysteresisMargin is the score margin a consolidation candidate
// must clear over the incumbent STC before replacing it (spec §4.7: "the
// candidate's score must exceed the incumbent STC's score by a margin").
const stcBaseHysteresisMargin = 10.0

func stcHasRoomFor(core *coreEntry, load float64, tn Tunables) bool {
	existing := core.normalizedLoad(tn.NominalCapacity) / float64(tn.NominalCapacity)
	return existing+load < stcCapacityFraction
}

func (s *Scheduler) stcHasRoom(core *coreEntry) bool {
	tn := s.Tunables()
	return core.normalizedLoad(tn.NominalCapacity) < float64(tn.NominalCapacity)*stcCapacityFraction
}

// modeAllowsSteal implements the §4.4 step-5 "if the CPU is not effectively
// parked (mode-specific predicate)" gate. Low-Latency never parks an idle
// CPU. Power-Saving parks CPUs outside the current STC while the STC still
// has room, so consolidated cores actually stay idle instead of immediately
// re-acquiring work via stealing.
func (s *Scheduler) modeAllowsSteal(cpu *cpuEntry) bool {
	if s.topo.Mode() == LowLatency {
		return true
	}
	stc := s.topo.smallTaskCore()
	if stc == nil || stc == cpu.Core {
		return true
	}
	return !s.stcHasRoom(stc)
}

// hysteresisMargin computes the adaptive margin spec §4.7 describes:
// "shrinks when the STC is heavily loaded or when the candidate is
// completely idle, and grows when the STC is lightly loaded."
func hysteresisMargin(stc *coreEntry, candidateIdle bool, tn Tunables) float64 {
	margin := stcBaseHysteresisMargin
	loadFrac := stc.normalizedLoad(tn.NominalCapacity) / float64(tn.NominalCapacity)
	switch {
	case loadFrac > 0.6:
		margin *= 0.5
	case loadFrac < 0.2:
		margin *= 1.5
	}
	if candidateIdle {
		margin *= 0.5
	}
	return margin
}

// designateConsolidationCore scores every eligible core as a consolidation
// target and CAS-installs the winner as the Small-Task-Core if it clears
// the incumbent's hysteresis margin. Losers of the race re-read and accept
// whichever legitimate core ended up installed, per spec §4.7's explicit
// CAS-loser tolerance.
func (s *Scheduler) designateConsolidationCore() {
	tn := s.Tunables()
	incumbent := s.topo.smallTaskCore()

	var best *coreEntry
	var bestScore float64
	s.topo.loadShards.forEach(func(c *coreEntry) {
		if c.CoreType == Big {
			return
		}
		score := stcCandidateScore(c, tn)
		if best == nil || score > bestScore {
			best, bestScore = c, score
		}
	})
	if best == nil || best == incumbent {
		return
	}

	if incumbent == nil {
		s.topo.stc.CompareAndSwap(nil, best)
		return
	}

	incumbentScore := stcCandidateScore(incumbent, tn)
	margin := hysteresisMargin(incumbent, incumbent.isIdle(), tn)
	if bestScore > incumbentScore+margin {
		s.topo.stc.CompareAndSwap(incumbent, best)
	}
}

func stcCandidateScore(c *coreEntry, tn Tunables) float64 {
	score := 0.0
	if c.CoreType == Little {
		score += 20
	}
	norm := c.normalizedLoad(tn.NominalCapacity) / float64(tn.NominalCapacity)
	score += 30 * (1 - norm)
	if c.EnergyEfficiency > 0 {
		score += 10 * c.EnergyEfficiency
	}
	return score
}

// getConsolidationTargetCore returns the current STC, or nil if none is
// designated yet.
func (s *Scheduler) getConsolidationTargetCore() *coreEntry {
	return s.topo.smallTaskCore()
}

// shouldWakeCoreForLoad reports whether a core outside the STC must be
// woken because the STC alone cannot absorb additional estimated load.
func (s *Scheduler) shouldWakeCoreForLoad(additionalLoad float64) bool {
	stc := s.topo.smallTaskCore()
	if stc == nil {
		return true
	}
	tn := s.Tunables()
	return !stcHasRoomFor(stc, additionalLoad, tn)
}

// attemptProactiveSTCDesignation runs designateConsolidationCore
// opportunistically, e.g. after a CPU is re-enabled in Power-Saving mode
// (spec §4.7 names it among the "consolidation helpers").
func (s *Scheduler) attemptProactiveSTCDesignation() {
	if s.topo.Mode() != PowerSaving {
		return
	}
	s.designateConsolidationCore()
}
