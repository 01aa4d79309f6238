package scheduler

import "sync"

// quantileEstimator is an O(1)-per-sample streaming quantile estimator
// using Jain & Chlamtac's P² algorithm, adapted from the teacher's
// pSquareQuantile (eventloop/psquare.go) — there used for promise/task
// latency percentiles, here used to track the distribution of observed
// scheduling delay (wake-to-run latency), exposed for diagnostics via
// LoadSnapshot. Scheduler.EstimateMaxSchedulingLatency does not read it; it
// derives its eligible-delay term from the thread's own EEVDF state.
//
// Not safe for concurrent use; schedulingLatency below adds the lock.
type quantileEstimator struct {
	p          float64
	q          [5]float64
	n          [5]int
	np         [5]float64
	dn         [5]float64
	count      int
	initBuffer [5]float64
}

func newQuantileEstimator(p float64) *quantileEstimator {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &quantileEstimator{p: p, dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1}}
}

func (e *quantileEstimator) Update(x float64) {
	e.count++
	if e.count <= 5 {
		e.initBuffer[e.count-1] = x
		if e.count == 5 {
			e.initialize()
		}
		return
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if e.q[k] <= x && x < e.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.np[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.np[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qPrime := e.parabolic(i, sign)
			if e.q[i-1] < qPrime && qPrime < e.q[i+1] {
				e.q[i] = qPrime
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

func (e *quantileEstimator) initialize() {
	for i := 1; i < 5; i++ {
		key := e.initBuffer[i]
		j := i - 1
		for j >= 0 && e.initBuffer[j] > key {
			e.initBuffer[j+1] = e.initBuffer[j]
			j--
		}
		e.initBuffer[j+1] = key
	}
	for i := 0; i < 5; i++ {
		e.q[i] = e.initBuffer[i]
		e.n[i] = i
	}
	e.np = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
}

func (e *quantileEstimator) parabolic(i, d int) float64 {
	df := float64(d)
	ni, niPrev, niNext := float64(e.n[i]), float64(e.n[i-1]), float64(e.n[i+1])
	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (e.q[i+1] - e.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (e.q[i] - e.q[i-1]) / (ni - niPrev)
	return e.q[i] + term1*(term2+term3)
}

func (e *quantileEstimator) linear(i, d int) float64 {
	if d == 1 {
		return e.q[i] + (e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])
	}
	return e.q[i] - (e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1])
}

// Quantile returns the current estimate, or 0 if no samples were seen yet.
func (e *quantileEstimator) Quantile() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sorted := append([]float64{}, e.initBuffer[:e.count]...)
		for i := 1; i < len(sorted); i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		idx := int(float64(e.count-1) * e.p)
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return e.q[2]
}

// schedulingLatency is a thread-safe wrapper tracking P50/P99 wake-to-run
// delay observations across the whole scheduler.
type schedulingLatency struct {
	mu       sync.Mutex
	p50, p99 *quantileEstimator
	samples  int64
}

func newSchedulingLatency() *schedulingLatency {
	return &schedulingLatency{p50: newQuantileEstimator(0.50), p99: newQuantileEstimator(0.99)}
}

func (s *schedulingLatency) observe(delayMicros float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p50.Update(delayMicros)
	s.p99.Update(delayMicros)
	s.samples++
}

// LoadSnapshot is a point-in-time view of scheduling-latency statistics,
// the kind of thing a debug command (spec §6 "Tunables ... operator
// visible through debug commands or equivalent") would print.
type LoadSnapshot struct {
	Samples   int64
	P50Micros float64
	P99Micros float64
}

func (s *schedulingLatency) snapshot() LoadSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadSnapshot{Samples: s.samples, P50Micros: s.p50.Quantile(), P99Micros: s.p99.Quantile()}
}
