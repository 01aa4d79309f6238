package scheduler

import (
	"sync"
	"sync/atomic"
)

// cpuEntry is the per-CPU entry of spec §3: it owns the run queue, the
// idle thread, and the bookkeeping work-stealing and the load balancer
// consult (cached min_vruntime, instantaneous load, SMT-aware desirability
// key, steal cooldown timers).
type cpuEntry struct {
	ID    int
	Core  *coreEntry
	state *fastState

	queueMu  sync.Mutex
	queue    *runQueue
	idle     *ThreadState
	current  atomic.Pointer[ThreadState]

	minVRuntime atomic.Int64

	loadMu       sync.Mutex
	load         float64 // EWMA, updated on reschedule
	smtKey       atomic.Int64
	totalThreads atomic.Int32
}

func newCPUEntry(id int, core *coreEntry) *cpuEntry {
	c := &cpuEntry{
		ID:    id,
		Core:  core,
		state: newFastState(LifecycleInit),
		queue: newRunQueue(),
		idle:  NewThreadState(-int64(id)-1, PriorityIdle),
	}
	c.idle.CPU = id
	c.idle.State = StateRunning
	c.minVRuntime.Store(0)
	return c
}

func (c *cpuEntry) Enabled() bool { return c.state.IsEnabled() }

func (c *cpuEntry) Current() *ThreadState { return c.current.Load() }

func (c *cpuEntry) MinVRuntime() int64 { return c.minVRuntime.Load() }

// advanceMinVRuntime enforces the monotone-non-decreasing invariant (spec
// §4.3, testable property 1) via an atomic compare-and-swap loop.
func (c *cpuEntry) advanceMinVRuntime(candidate int64) {
	for {
		cur := c.minVRuntime.Load()
		if candidate <= cur {
			return
		}
		if c.minVRuntime.CompareAndSwap(cur, candidate) {
			return
		}
	}
}

// Load returns the CPU's instantaneous load EWMA.
func (c *cpuEntry) Load() float64 {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.load
}

// updateLoad folds a new sample into the EWMA with the given smoothing
// factor alpha (0,1].
func (c *cpuEntry) updateLoad(sample, alpha float64) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	c.load = c.load + alpha*(sample-c.load)
}

// recomputeSMTKey folds sibling load into this CPU's desirability key: a
// lower key is more desirable to steal into or place work on. It must be
// recomputed whenever any sibling's load changes (spec §3).
func (c *cpuEntry) recomputeSMTKey(smtConflictFactor float64) {
	var siblingLoad float64
	for _, sib := range c.Core.CPUs {
		if sib.ID == c.ID {
			continue
		}
		siblingLoad += sib.Load()
	}
	key := c.Load() + smtConflictFactor*siblingLoad
	// fixed-point with 3 decimal digits of precision for atomic storage
	c.smtKey.Store(int64(key * 1000))
}

func (c *cpuEntry) SMTKey() float64 { return float64(c.smtKey.Load()) / 1000 }

func (c *cpuEntry) ThreadCount() int32 { return c.totalThreads.Load() }
