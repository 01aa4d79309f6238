// Command schedctl drives the scheduler package against a synthetic
// workload: a CLI wrapper plus an in-process simulation harness, one
// goroutine per simulated CPU, useful for exercising the reschedule driver,
// work-stealing, the load balancer, and the IRQ balancer without a real
// kernel.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/tonestone57/haiku-sub004"
	"github.com/tonestone57/haiku-sub004/internal/affinity"
	"github.com/tonestone57/haiku-sub004/zlog"
)

type opts struct {
	packages   int
	bigCores   int
	littleCores int
	smtWidth   int
	fromHost   bool
	threads    int
	duration   time.Duration
	mode       string
	seed       int64
	verbose    bool
}

func main() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "schedctl: GOMAXPROCS: %v\n", err)
	}
	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		fmt.Fprintf(os.Stderr, "schedctl: GOMEMLIMIT: %v\n", err)
	}

	var o opts
	root := &cobra.Command{
		Use:   "schedctl",
		Short: "Drive the EEVDF scheduler core against a synthetic workload",
		Long: `schedctl builds a simulated CPU/core/package topology, populates it with a
synthetic mix of latency-sensitive and background threads, and runs the
scheduler's reschedule driver, work-stealer, load balancer, and IRQ
balancer against it for a fixed duration, then prints a one-line
scheduling-latency summary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}

	flags := root.Flags()
	flags.IntVar(&o.packages, "packages", 1, "number of simulated packages (sockets)")
	flags.IntVar(&o.bigCores, "big", 2, "Big cores per package")
	flags.IntVar(&o.littleCores, "little", 2, "Little cores per package")
	flags.IntVar(&o.smtWidth, "smt", 1, "hardware threads per core")
	flags.BoolVar(&o.fromHost, "from-host", false, "size a single uniform package from the host's usable CPU count instead of --big/--little")
	flags.IntVar(&o.threads, "threads", 64, "number of simulated threads to create")
	flags.DurationVar(&o.duration, "duration", 5*time.Second, "how long to run the simulation")
	flags.StringVar(&o.mode, "mode", "low-latency", "initial operation mode: low-latency or power-saving")
	flags.Int64Var(&o.seed, "seed", 1, "PRNG seed for the synthetic workload")
	flags.BoolVar(&o.verbose, "verbose", false, "also log every scheduling event to stderr (the final summary is printed either way)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	pkgs, err := buildTopology(o)
	if err != nil {
		return fmt.Errorf("topology: %w", err)
	}

	mode, err := parseMode(o.mode)
	if err != nil {
		return err
	}

	logger := scheduler.Logger(scheduler.NewNoopLogger())
	if o.verbose {
		logger = zlog.New(os.Stderr, scheduler.LevelDebug)
	}

	sched, err := scheduler.New(pkgs,
		scheduler.WithMode(mode),
		scheduler.WithLogger(logger),
		scheduler.WithIRQAssigner(simIRQAssigner{}),
	)
	if err != nil {
		return fmt.Errorf("scheduler.New: %w", err)
	}

	rng := rand.New(rand.NewSource(o.seed))
	nCPUs := countCPUs(pkgs)
	for i := 0; i < o.threads; i++ {
		priority, latencyNice := syntheticTraits(rng)
		t := sched.CreateThread(priority, scheduler.AllCPUs(nCPUs))
		if err := sched.SetLatencyNice(t.ID, latencyNice, 0, true); err != nil {
			return fmt.Errorf("SetLatencyNice: %w", err)
		}
		if err := sched.EnqueueInRunQueue(t); err != nil {
			return fmt.Errorf("EnqueueInRunQueue: %w", err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.duration)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for cpu := 0; cpu < nCPUs; cpu++ {
		cpu := cpu
		g.Go(func() error { return simulateCPU(gctx, sched, cpu, rng.Int63()) })
	}
	g.Go(func() error { return periodicBalance(gctx, sched) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}

	snap := sched.LatencySnapshot()
	fmt.Printf("scheduling latency over %d samples: p50=%.1fus p99=%.1fus\n", snap.Samples, snap.P50Micros, snap.P99Micros)
	return nil
}

func parseMode(s string) (scheduler.Mode, error) {
	switch s {
	case "low-latency", "":
		return scheduler.LowLatency, nil
	case "power-saving":
		return scheduler.PowerSaving, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want low-latency or power-saving)", s)
	}
}

func countCPUs(pkgs []scheduler.TopologyPackage) int {
	n := 0
	for _, p := range pkgs {
		for _, c := range p.Cores {
			w := c.SMTWidth
			if w <= 0 {
				w = 1
			}
			n += w
		}
	}
	return n
}

// buildTopology assembles the TopologyPackage description either from the
// --big/--little/--smt flags or, with --from-host, from the host's usable
// CPU count reported by internal/affinity, split evenly into a single
// uniform-performance package.
func buildTopology(o opts) ([]scheduler.TopologyPackage, error) {
	if o.fromHost {
		n, err := affinity.UsableCPUs()
		if err != nil {
			return nil, err
		}
		if n < 1 {
			n = 1
		}
		return []scheduler.TopologyPackage{{
			Cores: []scheduler.TopologyCore{{
				CoreType:            scheduler.UniformPerformance,
				PerformanceCapacity: 1024,
				EnergyEfficiency:    1.0,
				SMTWidth:            n,
			}},
		}}, nil
	}

	if o.bigCores+o.littleCores < 1 {
		return nil, fmt.Errorf("topology needs at least one core (got --big=%d --little=%d)", o.bigCores, o.littleCores)
	}
	var pkgs []scheduler.TopologyPackage
	for p := 0; p < o.packages; p++ {
		var cores []scheduler.TopologyCore
		for i := 0; i < o.bigCores; i++ {
			cores = append(cores, scheduler.TopologyCore{
				CoreType:            scheduler.Big,
				PerformanceCapacity: 1536,
				EnergyEfficiency:    0.6,
				SMTWidth:            o.smtWidth,
			})
		}
		for i := 0; i < o.littleCores; i++ {
			cores = append(cores, scheduler.TopologyCore{
				CoreType:            scheduler.Little,
				PerformanceCapacity: 512,
				EnergyEfficiency:    1.4,
				SMTWidth:            o.smtWidth,
			})
		}
		pkgs = append(pkgs, scheduler.TopologyPackage{Cores: cores})
	}
	return pkgs, nil
}

// syntheticTraits draws a plausible (priority, latency-nice) pair: most
// threads are ordinary background work, a minority are latency-sensitive
// (negative latency-nice), and a minority are explicitly background
// (positive latency-nice), so the simulated workload exercises Mechanism A
// and the big.LITTLE steal/balance rules instead of being uniform.
func syntheticTraits(rng *rand.Rand) (priority int, latencyNice int) {
	switch r := rng.Float64(); {
	case r < 0.15:
		return 80, -15 - rng.Intn(6)
	case r < 0.30:
		return 20, 10 + rng.Intn(10)
	default:
		return 50, rng.Intn(9) - 4
	}
}

// simulateCPU runs one simulated CPU's reschedule loop. Each iteration is
// one boundary of spec §4.4's driver: it closes out whatever ran last time
// (cur, nextState, timeUsed from the previous iteration), picks what runs
// next, sleeps a fraction of its assigned slice to stand in for actual
// execution, then carries that thread (or the idle thread) into the next
// iteration as the one to close out.
func simulateCPU(ctx context.Context, sched *scheduler.Scheduler, cpuID int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))

	var cur *scheduler.ThreadState
	nextState := scheduler.StateReady
	var timeUsedMicros int64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		outcome, err := sched.Reschedule(cpuID, cur, nextState, timeUsedMicros, 0)
		if err != nil {
			return fmt.Errorf("cpu %d: reschedule: %w", cpuID, err)
		}
		cur = outcome.Next

		runFor := time.Duration(outcome.SliceMicros) * time.Microsecond
		if runFor <= 0 {
			runFor = time.Millisecond
		}
		if !outcome.WasIdle && rng.Float64() < 0.3 {
			runFor /= 2
		}
		select {
		case <-time.After(runFor):
		case <-ctx.Done():
			return nil
		}

		timeUsedMicros = runFor.Microseconds()
		nextState = scheduler.StateReady
		if !outcome.WasIdle && rng.Float64() < 0.1 {
			nextState = scheduler.StateWaiting
		}
	}
}

// periodicBalance drives the load balancer and IRQ balancer from their own
// dynamic intervals, the role a real kernel's per-CPU timer infrastructure
// plays against RunLoadBalanceCycle/RunIRQBalanceCycle.
func periodicBalance(ctx context.Context, sched *scheduler.Scheduler) error {
	irqTicker := time.NewTicker(sched.Tunables().IRQBalanceInterval)
	defer irqTicker.Stop()

	interval := sched.NextLoadBalanceInterval(false)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-irqTicker.C:
			sched.RunIRQBalanceCycle()
		case <-timer.C:
			migrated := sched.RunLoadBalanceCycle()
			timer.Reset(sched.NextLoadBalanceInterval(migrated))
		}
	}
}

// simIRQAssigner accepts every IRQ reassignment, standing in for the real
// kernel's assign_io_interrupt_to_cpu primitive (spec §6).
type simIRQAssigner struct{}

func (simIRQAssigner) Assign(irq int, cpu int) error { return nil }
