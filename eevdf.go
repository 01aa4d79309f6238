package scheduler

import (
	"math"
	"time"
)

// latencyNiceFactor implements spec §3's "factor table ≈ 1.2ⁿ" scaling of
// slice duration by latency-nice. Extremes are reined in by the
// min-granularity/max-slice clamp in updateEEVDFParameters, so the raw
// exponential is used directly rather than pre-clamped here.
func latencyNiceFactor(latencyNice int) float64 {
	return math.Pow(1.2, float64(latencyNice))
}

// updateEEVDFParameters implements spec §4.2's UpdateEevdfParameters. t.mu
// must be held by the caller. ctxCPU supplies the min_vruntime to measure
// against (falling back to the scheduler's global minimum when nil), and
// core capacity for normalization; it is not necessarily t's current CPU —
// on a fresh placement it is the *candidate* CPU.
func (s *Scheduler) updateEEVDFParameters(t *ThreadState, ctxCPU *cpuEntry, isNewOrRelocated bool, now int64) {
	tn := s.Tunables()

	minV := s.globalMinVRuntime()
	var coreCapacity int64 = tn.NominalCapacity
	var activeWeighted int
	if ctxCPU != nil {
		minV = ctxCPU.MinVRuntime()
		if ctxCPU.Core != nil && ctxCPU.Core.PerformanceCapacity > 0 {
			coreCapacity = ctxCPU.Core.PerformanceCapacity
		}
		activeWeighted = ctxCPU.queue.Count() + 1 // +1 for the thread itself / currently running
	} else {
		activeWeighted = 1
	}
	if coreCapacity <= 0 {
		coreCapacity = tn.NominalCapacity
	}
	weight := t.Weight
	if weight <= 0 {
		weight = 1
	}

	// Step 2: dowry clamp on fresh/relocated placement.
	if isNewOrRelocated {
		halfSliceWeighted := (tn.TargetLatency.Microseconds() * tn.WeightScale) / (2 * weight)
		floor := minV - halfSliceWeighted
		if t.VirtualRuntime < floor {
			t.VirtualRuntime = floor
		}
	}

	// Step 3: wall-clock slice, adjusted by latency-nice, clamped.
	sliceWallclock := tn.TargetLatency
	if activeWeighted > 0 {
		sliceWallclock = time.Duration(int64(tn.TargetLatency) / int64(activeWeighted))
	}
	sliceWallclock = time.Duration(float64(sliceWallclock) * latencyNiceFactor(t.LatencyNice))
	if sliceWallclock < tn.MinGranularity {
		sliceWallclock = tn.MinGranularity
	}
	if sliceWallclock > tn.MaxSlice {
		sliceWallclock = tn.MaxSlice
	}

	// Step 4: normalize to target-core capacity.
	sliceWork := sliceWallclock.Microseconds() * coreCapacity / tn.NominalCapacity

	// Step 5: weighted entitlement.
	ent := sliceWork * tn.WeightScale / weight

	// Step 6: lag.
	t.Lag = ent - (t.VirtualRuntime - minV)

	// Step 7: eligibility.
	if t.Lag >= 0 {
		t.EligibleTime = now
	} else {
		delayMicros := (-t.Lag * weight * tn.NominalCapacity) / (tn.WeightScale * coreCapacity)
		if cap := tn.MaxSchedDelayCap.Microseconds(); delayMicros > cap {
			delayMicros = cap
		}
		if delayMicros < tn.MinGranularity.Microseconds() {
			delayMicros = tn.MinGranularity.Microseconds()
		}
		t.EligibleTime = now + delayMicros
	}

	// Step 8 & 9.
	t.VirtualDeadline = t.VirtualRuntime + ent
	t.SliceMicros = sliceWallclock.Microseconds()
}
