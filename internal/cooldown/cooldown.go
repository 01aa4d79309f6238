// Package cooldown provides a lock-free, per-category "not before" gate:
// each category (a victim CPU id, a migrating thread id, an IRQ vector)
// remembers only the next instant at which it may be acted on again.
//
// This is deliberately a much smaller mechanism than the teacher's
// catrate.Limiter, which it is adapted from: catrate tracks a sliding
// window of discrete event timestamps per category to enforce a multi-rate
// budget (e.g. "10/s and 100/min"). Every cooldown spec.md needs — steal
// victim/thief backoff, migration hysteresis, per-IRQ move cooldown — is a
// single next-allowed-instant, CAS-updated so concurrent callers race
// safely without a mutex. Keeping catrate's ring-buffer event history here
// would track information nothing in this module reads.
package cooldown

import (
	"sync"
	"sync/atomic"
)

// Gate tracks a "not before" timestamp (in caller-defined time units,
// conventionally microseconds) per category.
type Gate struct {
	categories sync.Map // category (any, comparable) -> *int64 via atomic ops
}

// NewGate returns an empty Gate.
func NewGate() *Gate { return &Gate{} }

// Ready reports whether category may be acted on at time now, i.e. whether
// now is at or after the last-recorded cooldown expiry. A category never
// seen before is always ready.
func (g *Gate) Ready(category any, now int64) bool {
	v, ok := g.categories.Load(category)
	if !ok {
		return true
	}
	return now >= atomic.LoadInt64(v.(*int64))
}

// Arm sets category's cooldown to expire at now+duration (duration in the
// same units as Ready's `now`). Concurrent Arm calls on the same category
// race safely: it is a plain atomic store, so whichever write lands last
// wins and no caller learns whether it was first. It gives no "only one
// winner performs the move" guarantee; TryArm does.
func (g *Gate) Arm(category any, now int64, duration int64) {
	cell := g.cellFor(category)
	atomic.StoreInt64(cell, now+duration)
}

// TryArm attempts to move category's cooldown expiry from an observed
// already-expired state to now+duration, succeeding only if the category
// was actually Ready at now. This gives exactly the "only one of several
// concurrent movers wins" semantics spec §4.4 and §4.8 require for IRQ
// reassignment: callers race TryArm, and only the winner proceeds.
func (g *Gate) TryArm(category any, now int64, duration int64) bool {
	cell := g.cellFor(category)
	for {
		cur := atomic.LoadInt64(cell)
		if now < cur {
			return false
		}
		if atomic.CompareAndSwapInt64(cell, cur, now+duration) {
			return true
		}
	}
}

func (g *Gate) cellFor(category any) *int64 {
	cell := new(int64)
	actual, _ := g.categories.LoadOrStore(category, cell)
	return actual.(*int64)
}
