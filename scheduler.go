// Package scheduler implements the core of a topology-aware, preemptive SMP
// EEVDF thread scheduler: per-thread EEVDF bookkeeping, per-CPU run queues,
// the reschedule driver, work-stealing, a periodic load balancer, a
// Low-Latency/Power-Saving mode policy layer with Small-Task-Core
// consolidation, and a proactive/task-contextual IRQ balancer.
//
// The package never touches real hardware or a real kernel: bootstrap, CPU
// topology discovery, timer infrastructure, context-switch mechanics, and
// the IRQ-assignment primitive are all modeled as the narrow interfaces in
// external.go, supplied by the embedding kernel (or, for experimentation,
// cmd/schedctl's simulation harness).
package scheduler

import (
	"sync"
	"time"
)

// Scheduler is the top-level handle a kernel (or test harness) owns. All
// exported methods are safe for concurrent use from multiple CPUs.
type Scheduler struct {
	tunables atomicTunables

	cfg schedulerConfig

	topo *topology

	threadsMu sync.RWMutex
	threads   map[int64]*ThreadState

	irqMu    sync.RWMutex
	irqTask  map[int]int64        // irq -> owning thread id
	irqLoads map[int]*irqRecord // irq -> destination CPU + load, guarded by irqMu

	latency *schedulingLatency

	nextThreadID int64
}

// New constructs a Scheduler over the given topology description. The
// returned Scheduler starts in the Tunables' configured Mode (LowLatency by
// default) with every CPU enabled.
func New(pkgs []TopologyPackage, opts ...Option) (*Scheduler, error) {
	tn, cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	shardCount := len(pkgs)
	if shardCount < 1 {
		shardCount = 1
	}
	topo, err := newTopology(pkgs, shardCount)
	if err != nil {
		return nil, err
	}
	topo.setMode(tn.Mode)

	s := &Scheduler{
		cfg:     cfg,
		topo:    topo,
		threads:  make(map[int64]*ThreadState),
		irqTask:  make(map[int]int64),
		irqLoads: make(map[int]*irqRecord),
		latency:  newSchedulingLatency(),
	}
	s.tunables.store(tn)
	for _, cpu := range topo.cpus {
		cpu.idle.Weight = WeightIdle
	}
	return s, nil
}

// Tunables returns the current operator-visible configuration snapshot
// (spec §6).
func (s *Scheduler) Tunables() Tunables { return s.tunables.load() }

func (s *Scheduler) globalMinVRuntime() int64 { return s.topo.globalMinVRuntime() }

func (s *Scheduler) clock() Clock { return s.cfg.clock }

func (s *Scheduler) logEvent(e Event) {
	if !s.cfg.logger.Enabled(e.Level) {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.cfg.logger.Log(e)
}

// CreateThread registers scheduling state for a new thread at the given
// priority and cpumask, returning its ThreadState handle. The thread starts
// in StateWaiting, unhomed: the caller must follow up with
// EnqueueInRunQueue once it is ready to run.
func (s *Scheduler) CreateThread(priority int, mask CPUSet) *ThreadState {
	s.threadsMu.Lock()
	id := s.nextThreadID + 1
	s.nextThreadID = id
	t := NewThreadState(id, priority)
	t.CPUMask = mask
	s.threads[id] = t
	s.threadsMu.Unlock()
	return t
}

// DestroyThread removes a thread's scheduling state entirely: it must
// already be out of every run queue. Any IRQ colocation entries naming it
// are removed (spec §4.8: "when a thread is destroyed, its entries are
// removed").
func (s *Scheduler) DestroyThread(tid int64) error {
	s.threadsMu.Lock()
	t, ok := s.threads[tid]
	if !ok {
		s.threadsMu.Unlock()
		return newError(NoSuchThread, "thread %d not found", tid)
	}
	t.mu.Lock()
	invariant(!t.Enqueued, "thread %d destroyed while still enqueued", tid)
	irqs := append([]int(nil), t.AffinitizedIRQs...)
	t.mu.Unlock()
	delete(s.threads, tid)
	s.threadsMu.Unlock()

	s.irqMu.Lock()
	for _, irq := range irqs {
		if s.irqTask[irq] == tid {
			delete(s.irqTask, irq)
		}
	}
	s.irqMu.Unlock()
	return nil
}

func (s *Scheduler) thread(tid int64) (*ThreadState, error) {
	s.threadsMu.RLock()
	defer s.threadsMu.RUnlock()
	t, ok := s.threads[tid]
	if !ok {
		return nil, newError(NoSuchThread, "thread %d not found", tid)
	}
	return t, nil
}

