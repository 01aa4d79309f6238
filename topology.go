package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/tonestone57/haiku-sub004/internal/cooldown"
)

// topology owns the fixed CPU/core/package graph discovered at construction
// time (spec §6 treats discovery itself as out of scope; Scheduler is handed
// the already-discovered shape via New, which builds it with newTopology)
// plus the small set of
// process-wide, cross-CPU pieces of state spec §3/§4.6/§4.7/§4.8 describe as
// global: the enabled-CPU set, the sharded core-load view the load balancer
// and STC consolidation scan, the global monotone min_virtual_runtime, the
// active Mode, the current Small-Task-Core pointer, and the per-IRQ move
// cooldown gate.
type topology struct {
	cpus  []*cpuEntry
	cores []*coreEntry
	pkgs  []*pkgEntry

	enabledMu sync.RWMutex
	enabled   CPUSet

	loadShards *shardedCoreLoad

	globalMinV atomic.Int64

	mode atomic.Int32

	stc atomic.Pointer[coreEntry]

	irqCooldown    *cooldown.Gate
	thiefCooldown  *cooldown.Gate // category: thief CPU id
	victimCooldown *cooldown.Gate // category: victim CPU id

	stealScanCounter atomic.Uint64
	lbIntervalMicros atomic.Int64
}

// TopologyCore describes one physical core to New.
type TopologyCore struct {
	CoreType            CoreType
	PerformanceCapacity int64
	EnergyEfficiency    float64
	SMTWidth            int // number of CPUs (hardware threads) on this core
}

// TopologyPackage describes one physical package (socket) to New.
type TopologyPackage struct {
	Cores []TopologyCore
}

// newTopology builds the CPU/core/package graph from a static description.
// CPU ids are assigned sequentially in package/core/SMT-thread order
// starting at 0, matching how a kernel would enumerate them at boot.
func newTopology(pkgDescs []TopologyPackage, shardCount int) (*topology, error) {
	if len(pkgDescs) == 0 {
		return nil, newError(InvalidArgument, "topology must have at least one package")
	}
	tp := &topology{
		irqCooldown:    cooldown.NewGate(),
		thiefCooldown:  cooldown.NewGate(),
		victimCooldown: cooldown.NewGate(),
	}
	nextCPU := 0
	for pkgID, pd := range pkgDescs {
		pkg := newPkgEntry(pkgID)
		for _, cd := range pd.Cores {
			if cd.SMTWidth <= 0 {
				cd.SMTWidth = 1
			}
			capacity := cd.PerformanceCapacity
			if capacity <= 0 {
				return nil, newError(InvalidArgument, "core in package %d has non-positive performance capacity", pkgID)
			}
			core := newCoreEntry(len(tp.cores), pkg, cd.CoreType, capacity, cd.EnergyEfficiency)
			for i := 0; i < cd.SMTWidth; i++ {
				cpu := newCPUEntry(nextCPU, core)
				cpu.state.Store(LifecycleEnabled)
				nextCPU++
				core.CPUs = append(core.CPUs, cpu)
				tp.cpus = append(tp.cpus, cpu)
			}
			pkg.Cores = append(pkg.Cores, core)
			tp.cores = append(tp.cores, core)
		}
		tp.pkgs = append(tp.pkgs, pkg)
	}
	if len(tp.cpus) == 0 {
		return nil, newError(InvalidArgument, "topology has no CPUs")
	}
	if len(tp.cpus) > 64 {
		return nil, newError(InvalidArgument, "topology has %d CPUs, exceeding the 64-CPU CPUSet width", len(tp.cpus))
	}
	tp.enabled = AllCPUs(len(tp.cpus))
	tp.loadShards = newShardedCoreLoad(tp.cores, shardCount)
	tp.mode.Store(int32(LowLatency))
	return tp, nil
}

func (tp *topology) cpu(id int) *cpuEntry {
	if id < 0 || id >= len(tp.cpus) {
		return nil
	}
	return tp.cpus[id]
}

func (tp *topology) isEnabled(cpu int) bool {
	tp.enabledMu.RLock()
	defer tp.enabledMu.RUnlock()
	return tp.enabled.Has(cpu)
}

func (tp *topology) setEnabled(cpu int, enabled bool) {
	tp.enabledMu.Lock()
	defer tp.enabledMu.Unlock()
	if enabled {
		tp.enabled = tp.enabled.With(cpu)
	} else {
		tp.enabled = tp.enabled.Without(cpu)
	}
}

func (tp *topology) enabledSnapshot() CPUSet {
	tp.enabledMu.RLock()
	defer tp.enabledMu.RUnlock()
	return tp.enabled
}

func (tp *topology) Mode() Mode { return Mode(tp.mode.Load()) }

func (tp *topology) setMode(m Mode) { tp.mode.Store(int32(m)) }

// advanceGlobalMinVRuntime enforces the monotone-non-decreasing invariant
// (spec testable property 1) for the cross-CPU fallback used when a thread
// has no home CPU yet (eevdf.go's updateEEVDFParameters).
func (tp *topology) advanceGlobalMinVRuntime(candidate int64) {
	for {
		cur := tp.globalMinV.Load()
		if candidate <= cur {
			return
		}
		if tp.globalMinV.CompareAndSwap(cur, candidate) {
			return
		}
	}
}

func (tp *topology) globalMinVRuntime() int64 { return tp.globalMinV.Load() }

func (tp *topology) smallTaskCore() *coreEntry { return tp.stc.Load() }

func (tp *topology) setSmallTaskCore(c *coreEntry) { tp.stc.Store(c) }

func (tp *topology) clearSmallTaskCore(expect *coreEntry) bool {
	return tp.stc.CompareAndSwap(expect, nil)
}

// coreLoadShard guards a slice of cores with an RWMutex, the "sharded
// min-max heap of core load" of spec §4.6 simplified per design-notes §9 to
// a linear scan: the candidate counts per shard are small enough (one
// shard's share of a package's cores) that a real heap buys nothing a slice
// scan under a read lock does not already give, while avoiding the
// O(log n) Fix bookkeeping for a value (core load) that changes on every
// reschedule on every CPU — a heap would need re-keying almost as often as
// it would ever be queried.
type coreLoadShard struct {
	mu    sync.RWMutex
	cores []*coreEntry
}

// shardedCoreLoad partitions the core set into shards so the load balancer
// and STC consolidation scan can run concurrently from different CPUs
// without serializing on one lock (spec §4.6: "sharded... to bound
// contention").
type shardedCoreLoad struct {
	shards []coreLoadShard
}

func newShardedCoreLoad(cores []*coreEntry, shardCount int) *shardedCoreLoad {
	if shardCount <= 0 {
		shardCount = 1
	}
	if shardCount > len(cores) && len(cores) > 0 {
		shardCount = len(cores)
	}
	s := &shardedCoreLoad{shards: make([]coreLoadShard, shardCount)}
	for _, c := range cores {
		sh := &s.shards[c.ID%shardCount]
		sh.cores = append(sh.cores, c)
	}
	return s
}

// mostLoaded scans every shard and returns the core with the greatest
// nominal-capacity-normalized load among those satisfying pred, or nil if
// none qualify.
func (s *shardedCoreLoad) mostLoaded(nominalCapacity int64, pred func(*coreEntry) bool) *coreEntry {
	var best *coreEntry
	var bestLoad float64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, c := range sh.cores {
			if pred != nil && !pred(c) {
				continue
			}
			l := c.normalizedLoad(nominalCapacity)
			if best == nil || l > bestLoad {
				best, bestLoad = c, l
			}
		}
		sh.mu.RUnlock()
	}
	return best
}

// leastLoaded is mostLoaded's mirror, used to find a migration/steal/STC
// target.
func (s *shardedCoreLoad) leastLoaded(nominalCapacity int64, pred func(*coreEntry) bool) *coreEntry {
	var best *coreEntry
	var bestLoad float64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, c := range sh.cores {
			if pred != nil && !pred(c) {
				continue
			}
			l := c.normalizedLoad(nominalCapacity)
			if best == nil || l < bestLoad {
				best, bestLoad = c, l
			}
		}
		sh.mu.RUnlock()
	}
	return best
}

// forEach visits every core across all shards, holding each shard's read
// lock only for the duration of its own slice (spec §5 lock ordering:
// "4. Sharded global core-load RW-locks", taken and released one shard at a
// time so no caller ever holds two shard locks at once).
func (s *shardedCoreLoad) forEach(fn func(*coreEntry)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		cores := sh.cores
		sh.mu.RUnlock()
		for _, c := range cores {
			fn(c)
		}
	}
}
