package scheduler

// taskClass is the big.LITTLE placement classification of spec §4.6/§4.7:
// P-critical tasks want a Big/Uniform core, E-preferring tasks want a
// Little core, and Flexible tasks have no strong preference.
type taskClass int

const (
	classFlexible taskClass = iota
	classPCritical
	classEPreferring
)

func (c taskClass) String() string {
	switch c {
	case classPCritical:
		return "p-critical"
	case classEPreferring:
		return "e-preferring"
	default:
		return "flexible"
	}
}

// Canonical classification thresholds (spec §9 Open Question 2: "treat the
// thresholds stated in §4 as canonical"). §4.4 names latency_nice < -10 and
// real-time-display-or-higher priority as the task-contextual IRQ
// re-evaluation's "highly latency-sensitive" bar (isLatencySensitive,
// strictly below -10). classifyTask's P-critical bar is one step wider: it
// includes latency_nice == -10 itself. E-preferring mirrors it at +10 so the
// two classes are symmetric around Flexible rather than independently tuned.
const (
	pCriticalLatencyNiceMax = -10
	ePreferringLatencyNiceMin = 10
)

// isLatencySensitive reports the §4.4 "highly latency-sensitive" predicate
// used to gate Mechanism A's task-contextual IRQ re-evaluation.
func isLatencySensitive(t *ThreadState) bool {
	return isRealTime(t.Priority) || t.LatencyNice < pCriticalLatencyNiceMax
}

// classifyTask is the single canonical classifier consulted by both
// mode_powersaving.go's choose_core scoring (M1) and steal.go's big.LITTLE
// work-stealing rule, so the two can never drift out of sync with each
// other the way spec §9 flags the source as having done.
func classifyTask(t *ThreadState) taskClass {
	switch {
	case isRealTime(t.Priority) || t.LatencyNice <= pCriticalLatencyNiceMax:
		return classPCritical
	case t.LatencyNice >= ePreferringLatencyNiceMin:
		return classEPreferring
	default:
		return classFlexible
	}
}

// estimatedLoad approximates a thread's demand on a core as a fraction of
// nominal capacity in [0,1], from its recent average run-burst EWMA
// relative to target latency — used by the Little-core "load < 20% of
// nominal" placement rule (spec scenario S5) and the capacity-adequacy
// score (M2).
func estimatedLoad(t *ThreadState, targetLatencyMicros int64) float64 {
	if targetLatencyMicros <= 0 {
		return 0
	}
	l := t.AvgRunBurstEWMA / float64(targetLatencyMicros)
	if l < 0 {
		return 0
	}
	if l > 1 {
		return 1
	}
	return l
}
