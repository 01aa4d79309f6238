package scheduler

import (
	"container/heap"

	"golang.org/x/exp/slices"
)

// runQueue is the per-CPU run queue of spec §4.3: a min-heap keyed by
// virtual deadline, with an indexed back-map (ThreadState.heapIndex) so
// Update/Remove run in O(log n) rather than requiring a linear scan — the
// same "augmented heap with a slot back-map" design-notes §9 calls out as
// acceptable, and the structural twin of the teacher's timer min-heap
// (eventloop/loop.go), here keyed by deadline instead of fire time.
//
// All methods assume the caller holds the owning cpuEntry.queueMu (spec §5
// lock ordering: "2. Per-CPU run-queue lock").
type runQueue struct {
	items   []*ThreadState
	nextSeq uint64

	// minVRuntime tracks the smallest vruntime among queued threads. Insert
	// lowers it when the new thread's vruntime is smaller; Remove and
	// PopMinimum recompute it from the remaining threads but only ever
	// raise it; an emptied queue retains the last value. It is therefore
	// not monotonic by itself: the per-CPU monotone cache is
	// cpuEntry.minVRuntime, advanced via advanceMinVRuntime.
	minVRuntime    int64
	minVRuntimeSet bool
}

func newRunQueue() *runQueue {
	return &runQueue{}
}

// heap.Interface plumbing. Keyed by VirtualDeadline; ties broken by
// insertion order (spec §4.3: "Ties on deadline are broken by insertion
// order").
func (q *runQueue) Len() int { return len(q.items) }
func (q *runQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.VirtualDeadline != b.VirtualDeadline {
		return a.VirtualDeadline < b.VirtualDeadline
	}
	return a.seq < b.seq
}
func (q *runQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].heapIndex = i
	q.items[j].heapIndex = j
}
func (q *runQueue) Push(x any) {
	t := x.(*ThreadState)
	t.heapIndex = len(q.items)
	q.items = append(q.items, t)
}
func (q *runQueue) Pop() any {
	old := q.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	q.items = old[:n-1]
	return t
}

// Insert places t into the queue keyed by its current VirtualDeadline.
func (q *runQueue) Insert(t *ThreadState) {
	invariant(t.heapIndex == -1, "thread %d inserted while already enqueued", t.ID)
	t.seq = q.nextSeq
	q.nextSeq++
	heap.Push(q, t)
	q.noteVRuntime(t.VirtualRuntime)
}

// Remove takes t out of the queue. t must currently be queued.
func (q *runQueue) Remove(t *ThreadState) {
	if t.heapIndex < 0 || t.heapIndex >= len(q.items) {
		return
	}
	heap.Remove(q, t.heapIndex)
	q.recomputeMinVRuntime()
}

// Update re-keys t after its VirtualDeadline (and/or VirtualRuntime) has
// changed in place, e.g. after a priority change (spec testable property
// 12).
func (q *runQueue) Update(t *ThreadState) {
	if t.heapIndex < 0 || t.heapIndex >= len(q.items) {
		return
	}
	heap.Fix(q, t.heapIndex)
	q.noteVRuntime(t.VirtualRuntime)
}

// PopMinimum removes and returns the queued thread with the smallest
// virtual deadline, or nil if the queue is empty.
func (q *runQueue) PopMinimum() *ThreadState {
	if len(q.items) == 0 {
		return nil
	}
	t := heap.Pop(q).(*ThreadState)
	q.recomputeMinVRuntime()
	return t
}

// PeekMinimum returns (without removing) the thread with the smallest
// virtual deadline.
func (q *runQueue) PeekMinimum() *ThreadState {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// PeekK returns a best-effort view of up to k threads in ascending
// deadline order, used by the load balancer's candidate scan (spec §4.6
// phase 3). It does not mutate the heap.
func (q *runQueue) PeekK(k int) []*ThreadState {
	if k <= 0 || len(q.items) == 0 {
		return nil
	}
	out := slices.Clone(q.items)
	slices.SortFunc(out, func(a, b *ThreadState) int {
		switch {
		case a.VirtualDeadline < b.VirtualDeadline:
			return -1
		case a.VirtualDeadline > b.VirtualDeadline:
			return 1
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

// IsEmpty reports whether the queue holds no threads.
func (q *runQueue) IsEmpty() bool { return len(q.items) == 0 }

// Count returns the number of queued threads.
func (q *runQueue) Count() int { return len(q.items) }

// MinVRuntime returns the queue's cached minimum vruntime. Per spec §4.3,
// "when the queue empties it retains the last value" — late arrivals are
// not penalized with an inflated dowry.
func (q *runQueue) MinVRuntime() int64 {
	return q.minVRuntime
}

func (q *runQueue) noteVRuntime(v int64) {
	if !q.minVRuntimeSet {
		q.minVRuntime = v
		q.minVRuntimeSet = true
		return
	}
	if v < q.minVRuntime {
		q.minVRuntime = v
	}
}

func (q *runQueue) recomputeMinVRuntime() {
	if len(q.items) == 0 {
		// retain last value; do not reset minVRuntimeSet
		return
	}
	min := q.items[0].VirtualRuntime
	for _, t := range q.items[1:] {
		if t.VirtualRuntime < min {
			min = t.VirtualRuntime
		}
	}
	if !q.minVRuntimeSet || min > q.minVRuntime {
		q.minVRuntime = min
		q.minVRuntimeSet = true
	}
}

// chooseNext implements spec §4.3's ChooseNextThread selection policy:
// among threads whose EligibleTime <= now, return the one with the
// smallest VirtualDeadline (the heap root, if it is eligible; otherwise a
// linear scan, since ineligible roots can mask an eligible non-root
// thread — ineligible threads are rare in a well-behaved queue so this
// scan is not expected to dominate cost).
func (q *runQueue) chooseNext(now int64) *ThreadState {
	if len(q.items) == 0 {
		return nil
	}
	if q.items[0].eligible(now) {
		return q.items[0]
	}
	var best *ThreadState
	for _, t := range q.items {
		if !t.eligible(now) {
			continue
		}
		if best == nil || t.VirtualDeadline < best.VirtualDeadline ||
			(t.VirtualDeadline == best.VirtualDeadline && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// earliestEligibleTime returns the smallest EligibleTime among queued,
// currently-ineligible threads, used to re-arm a timer when nothing is
// presently eligible (spec §4.3).
func (q *runQueue) earliestEligibleTime(now int64) (int64, bool) {
	var best int64
	found := false
	for _, t := range q.items {
		if t.eligible(now) {
			continue
		}
		if !found || t.EligibleTime < best {
			best = t.EligibleTime
			found = true
		}
	}
	return best, found
}
