package scheduler

import (
	"sync/atomic"
	"time"
)

// atomicTunables publishes a Tunables snapshot for lock-free concurrent
// reads from any CPU's reschedule driver, following the same
// copy-on-write-via-atomic-pointer discipline the teacher applies to its
// loop configuration swaps.
type atomicTunables struct {
	v atomic.Pointer[Tunables]
}

func (a *atomicTunables) store(t Tunables) { a.v.Store(&t) }

func (a *atomicTunables) load() Tunables {
	p := a.v.Load()
	if p == nil {
		return defaultTunables()
	}
	return *p
}

// Mode selects the operating-mode policy layer (spec §4.7).
type Mode int

const (
	// LowLatency favors cache affinity and spreads work across cores,
	// preferring Big/Uniform cores for latency-sensitive tasks.
	LowLatency Mode = iota
	// PowerSaving consolidates small/bursty work onto a Small-Task Core
	// and biases placement toward efficiency.
	PowerSaving
)

func (m Mode) String() string {
	switch m {
	case LowLatency:
		return "low-latency"
	case PowerSaving:
		return "power-saving"
	default:
		return "unknown"
	}
}

func (m Mode) valid() bool { return m == LowLatency || m == PowerSaving }

// Tunables is the operator-visible configuration snapshot spec §6 calls out
// ("operating mode; SMT conflict factor ...; IRQ balance interval; IRQ
// high-absolute and significant-difference thresholds; max IRQs to move per
// cycle"), readable at runtime via Scheduler.Tunables().
type Tunables struct {
	Mode Mode

	// SMTConflictFactor in [0,1] scales how heavily a loaded SMT sibling
	// penalizes a CPU's desirability key.
	SMTConflictFactor float64

	// WeightScale is the nominal weight the EEVDF arithmetic scales by when
	// converting between wall-clock and weighted work. weightFor uses the
	// package constant weightScale and does not read this field.
	WeightScale int64

	// NominalCapacity is the performance_capacity value a Uniform or
	// "normal" Big core reports (§3).
	NominalCapacity int64

	TargetLatency    time.Duration
	MinGranularity   time.Duration
	MaxSlice         time.Duration
	MaxSchedDelayCap time.Duration

	StealSuccessCooldown time.Duration
	StealFailureBackoff  time.Duration
	VictimCooldown       time.Duration

	LoadBalanceIntervalMin time.Duration
	LoadBalanceIntervalMax time.Duration
	MinTimeBetweenMigrate  time.Duration
	LoadDifferenceBase     float64
	CandidateScanDepth     int
	MinWorkForMigration    time.Duration

	IRQBalanceInterval       time.Duration
	IRQHighAbsoluteThreshold float64
	IRQSignificantDifference float64
	MaxIRQsPerCycle          int
	IRQCooldown              time.Duration
	IRQInterferenceThreshold float64
}

func defaultTunables() Tunables {
	return Tunables{
		Mode:                     LowLatency,
		SMTConflictFactor:        0.75,
		WeightScale:              1024,
		NominalCapacity:          1024,
		TargetLatency:            6 * time.Millisecond,
		MinGranularity:           750 * time.Microsecond,
		MaxSlice:                 24 * time.Millisecond,
		MaxSchedDelayCap:         50 * time.Millisecond,
		StealSuccessCooldown:     200 * time.Microsecond,
		StealFailureBackoff:      2 * time.Millisecond,
		VictimCooldown:           500 * time.Microsecond,
		LoadBalanceIntervalMin:   4 * time.Millisecond,
		LoadBalanceIntervalMax:   256 * time.Millisecond,
		MinTimeBetweenMigrate:    8 * time.Millisecond,
		LoadDifferenceBase:       25.0,
		CandidateScanDepth:       10,
		MinWorkForMigration:      time.Millisecond,
		IRQBalanceInterval:       50 * time.Millisecond,
		IRQHighAbsoluteThreshold: 40.0,
		IRQSignificantDifference: 20.0,
		MaxIRQsPerCycle:          4,
		IRQCooldown:              20 * time.Millisecond,
		IRQInterferenceThreshold: 0.05,
	}
}

// Option configures a Scheduler at construction time, following the
// functional-options pattern the teacher uses for LoopOption.
type Option interface {
	apply(*Tunables, *schedulerConfig) error
}

type schedulerConfig struct {
	logger      Logger
	clock       Clock
	ipi         InterProcessorInterrupt
	irqAssigner IRQAssigner
}

type optionFunc func(*Tunables, *schedulerConfig) error

func (f optionFunc) apply(t *Tunables, c *schedulerConfig) error { return f(t, c) }

// WithMode sets the initial operating mode.
func WithMode(m Mode) Option {
	return optionFunc(func(t *Tunables, _ *schedulerConfig) error {
		if !m.valid() {
			return newError(InvalidArgument, "mode %d not in {LowLatency, PowerSaving}", m)
		}
		t.Mode = m
		return nil
	})
}

// WithSMTConflictFactor sets the SMT conflict factor. A value outside [0,1]
// is rejected with InvalidArgument rather than silently clamped, so
// misconfiguration is visible.
func WithSMTConflictFactor(f float64) Option {
	return optionFunc(func(t *Tunables, _ *schedulerConfig) error {
		if f < 0 || f > 1 {
			return newError(InvalidArgument, "SMT conflict factor %.3f not in [0,1]", f)
		}
		t.SMTConflictFactor = f
		return nil
	})
}

// WithLogger attaches a structured Logger; defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return optionFunc(func(_ *Tunables, c *schedulerConfig) error {
		c.logger = l
		return nil
	})
}

// WithClock overrides the time source; defaults to WallClock. Tests should
// always supply a FakeClock.
func WithClock(clk Clock) Option {
	return optionFunc(func(_ *Tunables, c *schedulerConfig) error {
		c.clock = clk
		return nil
	})
}

// WithIPI overrides the inter-processor-interrupt sender.
func WithIPI(ipi InterProcessorInterrupt) Option {
	return optionFunc(func(_ *Tunables, c *schedulerConfig) error {
		c.ipi = ipi
		return nil
	})
}

// WithIRQAssigner overrides the IRQ assignment primitive.
func WithIRQAssigner(a IRQAssigner) Option {
	return optionFunc(func(_ *Tunables, c *schedulerConfig) error {
		c.irqAssigner = a
		return nil
	})
}

// WithIRQBalanceInterval overrides the IRQ balancer's timer period.
func WithIRQBalanceInterval(d time.Duration) Option {
	return optionFunc(func(t *Tunables, _ *schedulerConfig) error {
		if d <= 0 {
			return newError(InvalidArgument, "IRQ balance interval must be positive")
		}
		t.IRQBalanceInterval = d
		return nil
	})
}

// WithMaxIRQsPerCycle overrides how many IRQs the balancer may move in one
// pass.
func WithMaxIRQsPerCycle(n int) Option {
	return optionFunc(func(t *Tunables, _ *schedulerConfig) error {
		if n <= 0 {
			return newError(InvalidArgument, "max IRQs per cycle must be positive")
		}
		t.MaxIRQsPerCycle = n
		return nil
	})
}

func resolveOptions(opts []Option) (Tunables, schedulerConfig, error) {
	t := defaultTunables()
	c := schedulerConfig{
		logger:      NewNoopLogger(),
		clock:       NewWallClock(),
		ipi:         noopIPI{},
		irqAssigner: noopIRQAssigner{},
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(&t, &c); err != nil {
			return Tunables{}, schedulerConfig{}, err
		}
	}
	return t, c, nil
}
