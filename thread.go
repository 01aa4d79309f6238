package scheduler

import "sync"

// maxAffinitizedIRQs bounds the per-thread affinitized-IRQ list (spec §9:
// "treat this as a design constant, not an incidental limit").
const maxAffinitizedIRQs = 4

// State classifies what a ThreadState is currently doing, for the purposes
// of the reschedule driver's step-4 classification (spec §4.4).
type State int

const (
	StateReady State = iota
	StateRunning
	StateWaiting
	StateDying
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateDying:
		return "dying"
	default:
		return "unknown"
	}
}

// CPUSet is a fixed-size bitmask of permitted CPUs (spec §3 "cpumask:
// set of CPUs the thread is permitted to run on").
type CPUSet uint64

// NewCPUSet builds a CPUSet containing exactly the given CPU ids.
func NewCPUSet(cpus ...int) CPUSet {
	var s CPUSet
	for _, c := range cpus {
		s = s.With(c)
	}
	return s
}

// AllCPUs returns a CPUSet permitting the first n CPUs (n <= 64).
func AllCPUs(n int) CPUSet {
	if n >= 64 {
		return ^CPUSet(0)
	}
	return CPUSet(1<<uint(n)) - 1
}

func (s CPUSet) With(cpu int) CPUSet    { return s | (1 << uint(cpu)) }
func (s CPUSet) Without(cpu int) CPUSet { return s &^ (1 << uint(cpu)) }
func (s CPUSet) Has(cpu int) bool       { return s&(1<<uint(cpu)) != 0 }
func (s CPUSet) Empty() bool            { return s == 0 }

// ThreadState is the per-thread EEVDF bookkeeping described in spec §3. A
// thread's scheduling state is created alongside the thread and destroyed
// once the scheduler has removed it from every run queue and cleared its
// IRQ-affinity entries; lifecycle beyond that (the Thread object itself) is
// an external collaborator's responsibility per spec §1.
//
// mu is the "per-thread scheduler lock" of the locking hierarchy in spec
// §5: all field mutations happen under it, and a thread observes its own
// transitions in program order because callers hold it across them.
type ThreadState struct {
	mu sync.Mutex

	ID int64

	Priority    int
	LatencyNice int // [-20, 19]
	Weight      int64

	VirtualRuntime  int64 // weighted-normalized time units (microseconds)
	Lag             int64 // weighted-normalized units; positive = owed
	EligibleTime    int64 // microseconds since boot
	VirtualDeadline int64
	SliceMicros     int64

	TimeUsedInQuantum int64

	CPU         int // current owning CPU id; -1 if not homed
	PreviousCPU int
	Enqueued    bool
	State       State

	WentSleep       int64
	WentSleepActive int64
	LastMigration   int64

	AvgRunBurstEWMA          float64
	VoluntarySleepTransition int64

	AffinitizedIRQs []int

	CPUMask      CPUSet
	PinnedToCPU  int // -1 if not pinned
	SameTeamKey  int // opaque identity used for latency-nice permission checks

	// heapIndex and seq are internal to runQueue; exported fields above
	// this are the spec-described state, these two support the indexed
	// heap's O(log n) Update/Remove.
	heapIndex int
	seq       uint64
}

// NewThreadState creates scheduling state for a freshly-created thread at
// the given priority, unhomed and unenqueued.
func NewThreadState(id int64, priority int) *ThreadState {
	t := &ThreadState{
		ID:          id,
		Priority:    priority,
		Weight:      weightFor(priority),
		CPU:         -1,
		PreviousCPU: -1,
		PinnedToCPU: -1,
		CPUMask:     ^CPUSet(0),
		State:       StateWaiting,
		heapIndex:   -1,
	}
	return t
}

// recomputeWeight re-derives Weight from Priority. Callers must hold mu.
func (t *ThreadState) recomputeWeight() {
	t.Weight = weightFor(t.Priority)
}

// unweightedLagWork converts weighted lag into "unweighted normalized work
// owed" (spec §4.5/§4.6: lag * weight / weight_scale). Callers must hold mu
// or otherwise ensure exclusive access.
func (t *ThreadState) unweightedLagWork(scale int64) int64 {
	if t.Weight == 0 {
		return 0
	}
	return (t.Lag * t.Weight) / scale
}

// addAffinitizedIRQ appends irq to the thread's affinitized list, enforcing
// the capacity cap from spec §3/§9. Returns OutOfMemory if full.
func (t *ThreadState) addAffinitizedIRQ(irq int) error {
	for _, existing := range t.AffinitizedIRQs {
		if existing == irq {
			return nil
		}
	}
	if len(t.AffinitizedIRQs) >= maxAffinitizedIRQs {
		return newError(OutOfMemory, "thread %d affinitized-IRQ list full (cap %d)", t.ID, maxAffinitizedIRQs)
	}
	t.AffinitizedIRQs = append(t.AffinitizedIRQs, irq)
	return nil
}

func (t *ThreadState) removeAffinitizedIRQ(irq int) {
	for i, existing := range t.AffinitizedIRQs {
		if existing == irq {
			t.AffinitizedIRQs = append(t.AffinitizedIRQs[:i], t.AffinitizedIRQs[i+1:]...)
			return
		}
	}
}

// eligible reports whether the thread may run at time now (spec §4.3
// selection policy: eligible_time <= now).
func (t *ThreadState) eligible(now int64) bool {
	return t.EligibleTime <= now
}

// permittedOn reports whether the thread's affinity allows running on cpu.
func (t *ThreadState) permittedOn(cpu int) bool {
	if t.PinnedToCPU >= 0 && t.PinnedToCPU != cpu {
		return false
	}
	return t.CPUMask.Has(cpu)
}
