package scheduler

import "math"

// Priority bands (spec §3, §4.1). Priority is a small dense integer space;
// bands are expressed as constants rather than configuration because the
// EEVDF math throughout this package (vruntime/lag/eligible-time
// conversions) is only meaningful relative to a fixed weight table.
const (
	// PriorityIdle is reserved for the per-CPU idle thread; it is never a
	// real, schedulable thread and always carries WeightIdle.
	PriorityIdle = 0

	// PriorityLowestActive is the lowest priority an ordinary runnable
	// thread may hold.
	PriorityLowestActive = 1

	// PriorityNormalBase is the "nice 0" baseline priority, anchored to
	// the nominal weight scale (1024).
	PriorityNormalBase = 100

	// PriorityNormalHighest is the highest priority still in the normal
	// (non-real-time) band.
	PriorityNormalHighest = 139

	// PriorityRealTimeThreshold is the lowest priority classified
	// real-time; priorities at or above this multiply the top of the
	// normal band upward by powers of two.
	PriorityRealTimeThreshold = 140

	// PriorityHighest is the highest priority value the weight table
	// accepts.
	PriorityHighest = 179

	// WeightIdle is the fixed weight of the idle thread.
	WeightIdle int64 = 1

	// weightScale anchors the "normal" baseline priority's weight.
	weightScale int64 = 1024

	// minActiveWeight is the floor enforced for any active (non-idle)
	// thread's weight, regardless of how low its priority sits in the
	// normal band.
	minActiveWeight int64 = 15

	// maxWeight caps the top of the real-time band.
	maxWeight int64 = 10_000_000
)

// priorityStepFactor is the per-priority-step geometric ratio of the normal
// band: each step up multiplies the weight by ≈1.0915, so roughly two and a
// half steps make one ≈1.25x nice level.
var priorityStepFactor = 1.0915

// weightFor returns the EEVDF weight for a thread at the given priority.
// It is a pure function: callers must re-derive and store the result
// whenever priority changes (spec §4.1: "the map is pure; callers
// recompute eagerly on priority change").
func weightFor(priority int) int64 {
	switch {
	case priority <= PriorityIdle:
		return WeightIdle
	case priority < PriorityLowestActive:
		priority = PriorityLowestActive
	}

	if priority >= PriorityRealTimeThreshold {
		return realTimeWeight(priority)
	}
	if priority > PriorityNormalHighest {
		priority = PriorityNormalHighest
	}
	return normalWeight(priority)
}

func normalWeight(priority int) int64 {
	offset := priority - PriorityNormalBase
	w := float64(weightScale) * math.Pow(priorityStepFactor, float64(offset))
	return clampWeight(int64(math.Round(w)))
}

func realTimeWeight(priority int) int64 {
	top := normalWeight(PriorityNormalHighest)
	steps := priority - PriorityRealTimeThreshold + 1
	if steps > 62 { // avoid overflow from the bit shift below
		steps = 62
	}
	w := top * (int64(1) << uint(steps))
	return clampWeight(w)
}

func clampWeight(w int64) int64 {
	if w < minActiveWeight {
		return minActiveWeight
	}
	if w > maxWeight {
		return maxWeight
	}
	return w
}

// isRealTime reports whether priority meets spec §3's
// ">= real-time threshold classifies the thread as real-time" rule.
func isRealTime(priority int) bool {
	return priority >= PriorityRealTimeThreshold
}
